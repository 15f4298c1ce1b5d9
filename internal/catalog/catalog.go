// Package catalog provides the read-only product list the shop sells from.
//
// A catalog is either the built-in Default or a CUE document:
//
//	products: [
//		{id: 1, name: "Pommes (1 kg)", price: 2.5, stock: 10, tag: "vedette", category: "fruits"},
//	]
//
// Documents are unified with an embedded schema before any field is read, so
// negative prices, negative stock and blank names are rejected with the CUE
// position of the offending value.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/cartledger/internal/model"
)

//go:embed schema.cue
var schemaSource string

const schemaFilename = "schema.cue"

// TagAll selects every product in Filter.
const TagAll = "all"

// Catalog is an immutable, ordered product list.
type Catalog struct {
	products []model.Product
	byID     map[model.ProductID]model.Product
}

// New builds a catalog, rejecting duplicate ids.
func New(products ...model.Product) (*Catalog, error) {
	c := &Catalog{
		products: make([]model.Product, 0, len(products)),
		byID:     make(map[model.ProductID]model.Product, len(products)),
	}
	for _, p := range products {
		if _, dup := c.byID[p.ID]; dup {
			return nil, model.NewInvalidProduct(p.ID, "duplicate product id")
		}
		c.products = append(c.products, p)
		c.byID[p.ID] = p
	}
	return c, nil
}

// Lookup returns the product with id.
func (c *Catalog) Lookup(id model.ProductID) (model.Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Products returns every product in catalog order.
func (c *Catalog) Products() []model.Product {
	out := make([]model.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Filter returns the products carrying tag, in catalog order. An empty tag
// or TagAll returns everything.
func (c *Catalog) Filter(tag string) []model.Product {
	tag = strings.TrimSpace(tag)
	if tag == "" || tag == TagAll {
		return c.Products()
	}
	var out []model.Product
	for _, p := range c.products {
		if p.Tag == tag {
			out = append(out, p)
		}
	}
	return out
}

// Tags returns the distinct tags in first-seen order.
func (c *Catalog) Tags() []string {
	seen := make(map[string]bool)
	var tags []string
	for _, p := range c.products {
		if p.Tag == "" || seen[p.Tag] {
			continue
		}
		seen[p.Tag] = true
		tags = append(tags, p.Tag)
	}
	return tags
}

// Baseline returns the initial stock level of every product.
func (c *Catalog) Baseline() model.Stock {
	s := make(model.Stock, len(c.products))
	for _, p := range c.products {
		s[p.ID] = p.BaselineStock
	}
	return s
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}

// LoadError reports a catalog document that failed to load or validate.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads and validates the CUE catalog at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data, path)
}

// Parse validates a CUE catalog document. filename is used in positions.
func Parse(data []byte, filename string) (*Catalog, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename(schemaFilename))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}

	doc := ctx.CompileBytes(data, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := schema.LookupPath(cue.ParsePath("#Catalog")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	iter, err := v.LookupPath(cue.ParsePath("products")).List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var products []model.Product
	for iter.Next() {
		p, err := compileProduct(iter.Value())
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if len(products) == 0 {
		return nil, &LoadError{Field: "products", Message: "catalog lists no products", Pos: v.Pos()}
	}

	c, err := New(products...)
	if err != nil {
		return nil, &LoadError{Field: "products", Message: err.Error()}
	}
	return c, nil
}

func compileProduct(v cue.Value) (model.Product, error) {
	id, err := productID(v.LookupPath(cue.ParsePath("id")))
	if err != nil {
		return model.Product{}, err
	}

	name, err := v.LookupPath(cue.ParsePath("name")).String()
	if err != nil {
		return model.Product{}, formatCUEError(err)
	}

	priceVal := v.LookupPath(cue.ParsePath("price"))
	f, err := priceVal.Float64()
	if err != nil {
		return model.Product{}, formatCUEError(err)
	}
	price, err := model.MoneyFromFloat(f)
	if err != nil {
		return model.Product{}, &LoadError{Field: "price", Message: err.Error(), Pos: priceVal.Pos()}
	}

	stock, err := v.LookupPath(cue.ParsePath("stock")).Int64()
	if err != nil {
		return model.Product{}, formatCUEError(err)
	}

	p, err := model.NewProduct(id, name, price, int(stock))
	if err != nil {
		return model.Product{}, &LoadError{Field: "product", Message: err.Error(), Pos: v.Pos()}
	}
	return p.WithTag(optionalString(v, "tag"), optionalString(v, "category")), nil
}

// productID accepts both numeric and string ids.
func productID(v cue.Value) (model.ProductID, error) {
	if v.Kind() == cue.IntKind {
		n, err := v.Int64()
		if err != nil {
			return "", formatCUEError(err)
		}
		return model.ProductID(strconv.FormatInt(n, 10)), nil
	}
	s, err := v.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return model.ProductID(s), nil
}

func optionalString(v cue.Value, field string) string {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return ""
	}
	s, err := f.String()
	if err != nil {
		return ""
	}
	return s
}

// formatCUEError extracts the first position from a CUE error.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) == 0 {
		return &LoadError{Field: "cue", Message: first.Error()}
	}
	// Point at the document rather than the embedded schema when both apply.
	pos := positions[0]
	for _, p := range positions {
		if p.Filename() != schemaFilename {
			pos = p
			break
		}
	}
	return &LoadError{Field: "cue", Message: first.Error(), Pos: pos}
}

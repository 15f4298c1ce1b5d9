package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ClientID scopes a cart to one client. Always NFC-normalized and trimmed.
type ClientID string

// NewClientID normalizes raw and rejects an empty identity.
func NewClientID(raw string) (ClientID, error) {
	id := strings.TrimSpace(norm.NFC.String(raw))
	if id == "" {
		return "", NewMissingClientIdentity()
	}
	return ClientID(id), nil
}

// ParseQuantity parses user input into a positive quantity.
func ParseQuantity(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, NewInvalidQuantity("quantity %q is not a whole number", raw)
	}
	if n <= 0 {
		return 0, NewInvalidQuantity("quantity must be positive, got %d", n)
	}
	return n, nil
}

// LineItem is one product reserved in a cart. Name and UnitPrice are
// snapshots taken when the line was first created.
type LineItem struct {
	ProductID ProductID `json:"id"`
	Name      string    `json:"name"`
	UnitPrice Money     `json:"price"`
	Quantity  int       `json:"quantity"`
}

// NewLineItem snapshots p with a positive quantity.
func NewLineItem(p Product, qty int) (LineItem, error) {
	if qty <= 0 {
		return LineItem{}, NewInvalidQuantity("quantity must be positive, got %d", qty)
	}
	return LineItem{ProductID: p.ID, Name: p.Name, UnitPrice: p.UnitPrice, Quantity: qty}, nil
}

// LineTotal is UnitPrice × Quantity.
func (l LineItem) LineTotal() Money {
	return l.UnitPrice.Mul(l.Quantity)
}

// Cart is the set of line items owned by one client. At most one line per
// product; order is insertion order and carries no meaning.
type Cart struct {
	ClientID ClientID
	Lines    []LineItem
}

// IsEmpty reports whether c has no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Units is the total quantity across lines.
func (c Cart) Units() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Line returns the line for id, if present.
func (c Cart) Line(id ProductID) (LineItem, bool) {
	for _, l := range c.Lines {
		if l.ProductID == id {
			return l, true
		}
	}
	return LineItem{}, false
}

// Reserved returns the quantity of id held by c.
func (c Cart) Reserved(id ProductID) int {
	l, _ := c.Line(id)
	return l.Quantity
}

// Clone returns a deep copy of c.
func (c Cart) Clone() Cart {
	lines := make([]LineItem, len(c.Lines))
	copy(lines, c.Lines)
	return Cart{ClientID: c.ClientID, Lines: lines}
}

// WithAdded returns a copy of c with item merged in: an existing line for the
// same product gains item.Quantity and keeps its original snapshot.
func (c Cart) WithAdded(item LineItem) Cart {
	out := c.Clone()
	for i := range out.Lines {
		if out.Lines[i].ProductID == item.ProductID {
			out.Lines[i].Quantity += item.Quantity
			return out
		}
	}
	out.Lines = append(out.Lines, item)
	return out
}

// Without returns a copy of c with the line for id removed.
func (c Cart) Without(id ProductID) Cart {
	out := Cart{ClientID: c.ClientID, Lines: make([]LineItem, 0, len(c.Lines))}
	for _, l := range c.Lines {
		if l.ProductID != id {
			out.Lines = append(out.Lines, l)
		}
	}
	return out
}

// MarshalLines serializes lines as a canonical JSON list of
// {id, name, price, quantity} with price in cents.
func MarshalLines(lines []LineItem) (string, error) {
	list := make([]any, len(lines))
	for i, l := range lines {
		list[i] = map[string]any{
			"id":       string(l.ProductID),
			"name":     l.Name,
			"price":    l.UnitPrice.Cents(),
			"quantity": int64(l.Quantity),
		}
	}
	data, err := MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("marshal cart: %w", err)
	}
	return string(data), nil
}

// storedLine is the persisted shape of a LineItem. Price is in cents.
type storedLine struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// UnmarshalLines parses a persisted cart. Lines with a non-positive quantity
// or negative price are rejected.
func UnmarshalLines(data string) ([]LineItem, error) {
	if data == "" {
		return nil, nil
	}
	var stored []storedLine
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	lines := make([]LineItem, 0, len(stored))
	for _, l := range stored {
		if l.Quantity <= 0 || l.Price < 0 || l.ID == "" {
			return nil, fmt.Errorf("unmarshal cart: malformed line for product %q", l.ID)
		}
		lines = append(lines, LineItem{
			ProductID: ProductID(l.ID),
			Name:      l.Name,
			UnitPrice: Money(l.Price),
			Quantity:  l.Quantity,
		})
	}
	return lines, nil
}

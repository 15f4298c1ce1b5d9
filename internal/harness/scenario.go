package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of shop operations with expectations on
// the outcome of each step and on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog replaces the built-in catalog when non-empty.
	Catalog []CatalogProduct `yaml:"catalog,omitempty"`

	// Pricing overrides the default shipping rule.
	Pricing *PricingRule `yaml:"pricing,omitempty"`

	Flow []FlowStep `yaml:"flow"`

	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// CatalogProduct is an inline catalog record. Price is decimal text.
type CatalogProduct struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Price    string `yaml:"price"`
	Stock    int    `yaml:"stock"`
	Tag      string `yaml:"tag,omitempty"`
	Category string `yaml:"category,omitempty"`
}

// PricingRule mirrors invoice.Pricing with decimal text amounts.
type PricingRule struct {
	FreeShippingOver string `yaml:"free_shipping_over"`
	ShippingFee      string `yaml:"shipping_fee"`
}

// FlowStep invokes one operation on behalf of a client.
type FlowStep struct {
	// Client is the identity the step runs under. Empty means no identity
	// is bound, which cart operations reject.
	Client string `yaml:"client,omitempty"`

	Invoke string `yaml:"invoke"`

	Args StepArgs `yaml:"args,omitempty"`

	// Expect is nil when the step is assumed to succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// StepArgs holds the arguments of every invocable operation.
// Each operation reads only the fields it needs.
type StepArgs struct {
	Product string `yaml:"product,omitempty"`
	Qty     int    `yaml:"qty,omitempty"`
	Method  string `yaml:"method,omitempty"`
	Enabled *bool  `yaml:"enabled,omitempty"`
}

// ExpectClause names the expected completion case: "Success" or an error
// code such as "INSUFFICIENT_STOCK".
type ExpectClause struct {
	Case string `yaml:"case"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	Type string `yaml:"type"`

	Client  string `yaml:"client,omitempty"`
	Product string `yaml:"product,omitempty"`

	// Equals is the expected value for stock, cart_quantity and cart_lines.
	Equals *int `yaml:"equals,omitempty"`

	// Action and Count are used by trace_count.
	Action string `yaml:"action,omitempty"`
	Count  int    `yaml:"count,omitempty"`

	// Actions is the expected order for trace_order.
	Actions []string `yaml:"actions,omitempty"`
}

// Invocable operations.
const (
	InvokeAddItem          = "add_item"
	InvokeRemoveItem       = "remove_item"
	InvokeClearCart        = "clear_cart"
	InvokeBuildInvoice     = "build_invoice"
	InvokeSetStock         = "set_stock"
	InvokeResetStock       = "reset_stock"
	InvokeSetOnlinePayment = "set_online_payment"
)

// Assertion type constants.
const (
	AssertStock        = "stock"
	AssertCartQuantity = "cart_quantity"
	AssertCartLines    = "cart_lines"
	AssertConservation = "conservation"
	AssertTraceCount   = "trace_count"
	AssertTraceOrder   = "trace_order"
)

var invocable = map[string]bool{
	InvokeAddItem:          true,
	InvokeRemoveItem:       true,
	InvokeClearCart:        true,
	InvokeBuildInvoice:     true,
	InvokeSetStock:         true,
	InvokeResetStock:       true,
	InvokeSetOnlinePayment: true,
}

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes a scenario, rejecting unknown fields and missing
// required ones.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "assertion:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, p := range s.Catalog {
		if p.ID == "" {
			return fmt.Errorf("catalog[%d]: id is required", i)
		}
		if p.Price == "" {
			return fmt.Errorf("catalog[%d]: price is required", i)
		}
	}
	if s.Pricing != nil && (s.Pricing.FreeShippingOver == "" || s.Pricing.ShippingFee == "") {
		return fmt.Errorf("pricing: free_shipping_over and shipping_fee are required")
	}

	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step FlowStep) error {
	if step.Invoke == "" {
		return fmt.Errorf("invoke is required")
	}
	if !invocable[step.Invoke] {
		return fmt.Errorf("unknown operation %q", step.Invoke)
	}

	switch step.Invoke {
	case InvokeAddItem, InvokeRemoveItem, InvokeSetStock:
		if step.Args.Product == "" {
			return fmt.Errorf("%s requires args.product", step.Invoke)
		}
	case InvokeBuildInvoice:
		if step.Args.Method == "" {
			return fmt.Errorf("%s requires args.method", step.Invoke)
		}
	case InvokeSetOnlinePayment:
		if step.Args.Enabled == nil {
			return fmt.Errorf("%s requires args.enabled", step.Invoke)
		}
	}

	if step.Expect != nil && step.Expect.Case == "" {
		return fmt.Errorf("expect.case is required when expect is present")
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertStock:
		if a.Product == "" {
			return fmt.Errorf("stock assertion requires 'product' field")
		}
		if a.Equals == nil {
			return fmt.Errorf("stock assertion requires 'equals' field")
		}
	case AssertCartQuantity:
		if a.Client == "" || a.Product == "" {
			return fmt.Errorf("cart_quantity assertion requires 'client' and 'product' fields")
		}
		if a.Equals == nil {
			return fmt.Errorf("cart_quantity assertion requires 'equals' field")
		}
	case AssertCartLines:
		if a.Client == "" {
			return fmt.Errorf("cart_lines assertion requires 'client' field")
		}
		if a.Equals == nil {
			return fmt.Errorf("cart_lines assertion requires 'equals' field")
		}
	case AssertConservation:
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("trace_count assertion requires 'action' field")
		}
		if a.Count < 0 {
			return fmt.Errorf("trace_count assertion count cannot be negative")
		}
	case AssertTraceOrder:
		if len(a.Actions) < 2 {
			return fmt.Errorf("trace_order assertion requires at least 2 actions")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

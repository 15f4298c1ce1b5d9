package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/cartledger/internal/model"
	"github.com/roach88/cartledger/internal/session"
	"github.com/roach88/cartledger/internal/shop"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		switch event.Type {
		case EventInvocation:
			fmt.Fprintf(&buf, "  [%d] %s %s %v\n", event.Seq, clientLabel(event.Client), event.Action, event.Args)
		case EventCompletion:
			fmt.Fprintf(&buf, "      -> %s\n", event.Case)
		}
	}

	return buf.String()
}

func clientLabel(client string) string {
	if client == "" {
		return "<anonymous>"
	}
	return client
}

// AssertionContext gives state assertions access to the shop the flow ran on.
type AssertionContext struct {
	Ctx  context.Context
	Shop *shop.Shop
}

// assertStock checks a product's available quantity.
func assertStock(actx *AssertionContext, trace []TraceEvent, a Assertion) error {
	available, err := actx.Shop.Availability(actx.Ctx, model.ProductID(a.Product))
	if err != nil {
		return fmt.Errorf("stock of %s: %w", a.Product, err)
	}
	if available != *a.Equals {
		return &AssertionError{
			Type:     AssertStock,
			Expected: fmt.Sprintf("product %s available = %d", a.Product, *a.Equals),
			Actual:   fmt.Sprintf("available = %d", available),
			Trace:    trace,
		}
	}
	return nil
}

// assertCart checks either one line's quantity or the number of lines.
func assertCart(actx *AssertionContext, trace []TraceEvent, a Assertion) error {
	sess, err := session.For(a.Client)
	if err != nil {
		return err
	}
	sum, err := actx.Shop.Summary(actx.Ctx, sess)
	if err != nil {
		return fmt.Errorf("cart of %s: %w", a.Client, err)
	}

	if a.Type == AssertCartLines {
		if len(sum.Cart.Lines) != *a.Equals {
			return &AssertionError{
				Type:     AssertCartLines,
				Expected: fmt.Sprintf("%d lines in %s's cart", *a.Equals, a.Client),
				Actual:   fmt.Sprintf("%d lines", len(sum.Cart.Lines)),
				Trace:    trace,
			}
		}
		return nil
	}

	qty := sum.Cart.Reserved(model.ProductID(a.Product))
	if qty != *a.Equals {
		return &AssertionError{
			Type:     AssertCartQuantity,
			Expected: fmt.Sprintf("%s holds %d of product %s", a.Client, *a.Equals, a.Product),
			Actual:   fmt.Sprintf("holds %d", qty),
			Trace:    trace,
		}
	}
	return nil
}

// assertConservation checks available + reserved = baseline for every product.
func assertConservation(actx *AssertionContext, trace []TraceEvent) error {
	violations, err := actx.Shop.CheckConservation(actx.Ctx)
	if err != nil {
		return fmt.Errorf("conservation: %w", err)
	}
	if len(violations) == 0 {
		return nil
	}
	parts := make([]string, len(violations))
	for i, v := range violations {
		parts[i] = v.String()
	}
	return &AssertionError{
		Type:     AssertConservation,
		Expected: "available + reserved = baseline for every product",
		Actual:   strings.Join(parts, "; "),
		Trace:    trace,
	}
}

// assertTraceOrder checks that actions appear in the given order.
// Intervening actions are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)

	for i, event := range trace {
		if event.Type == EventInvocation {
			for _, expectedAction := range assertion.Actions {
				if event.Action == expectedAction && positions[expectedAction] == 0 {
					positions[expectedAction] = i + 1
				}
			}
		}
	}

	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Actions); i++ {
		prev := assertion.Actions[i-1]
		curr := assertion.Actions[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks that the action was invoked exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventInvocation && event.Action == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// EvaluateAssertions evaluates every assertion and returns the messages of
// those that failed. State assertions need actx.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertStock, AssertCartQuantity, AssertCartLines, AssertConservation:
			if actx == nil || actx.Shop == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a shop", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertStock:
				err = assertStock(actx, result.Trace, assertion)
			case AssertConservation:
				err = assertConservation(actx, result.Trace)
			default:
				err = assertCart(actx, result.Trace, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

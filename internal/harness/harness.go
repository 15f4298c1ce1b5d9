package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/cartledger/internal/catalog"
	"github.com/roach88/cartledger/internal/invoice"
	"github.com/roach88/cartledger/internal/model"
	"github.com/roach88/cartledger/internal/session"
	"github.com/roach88/cartledger/internal/shop"
	"github.com/roach88/cartledger/internal/store"
	"github.com/roach88/cartledger/internal/testutil"
)

// Harness executes one scenario against its own shop.
type Harness struct {
	shop *shop.Shop
	seq  int64
}

// Run executes scenario on a fresh memory store and evaluates its
// assertions. Domain failures become completion cases; a returned error
// means the scenario could not run at all.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with an explicit context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	h, err := newHarness(ctx, scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("flow[%d] %s: %w", i, step.Invoke, err)
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, &AssertionContext{Ctx: ctx, Shop: h.shop}) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(ctx context.Context, scenario *Scenario) (*Harness, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cat, err := scenarioCatalog(scenario)
	if err != nil {
		return nil, err
	}

	invoiceOpts := []invoice.Option{
		invoice.WithClock(testutil.NewFixedClock(time.Time{})),
		invoice.WithRefGenerator(testutil.NewCountingGenerator("")),
	}
	if scenario.Pricing != nil {
		p, err := scenarioPricing(*scenario.Pricing)
		if err != nil {
			return nil, err
		}
		invoiceOpts = append(invoiceOpts, invoice.WithPricing(p))
	}

	s, err := shop.Open(ctx, store.NewMemory(), cat,
		shop.WithLogger(logger),
		shop.WithInvoiceOptions(invoiceOpts...),
	)
	if err != nil {
		return nil, fmt.Errorf("open shop: %w", err)
	}
	return &Harness{shop: s}, nil
}

func scenarioCatalog(scenario *Scenario) (*catalog.Catalog, error) {
	if len(scenario.Catalog) == 0 {
		return catalog.Default(), nil
	}
	products := make([]model.Product, 0, len(scenario.Catalog))
	for i, cp := range scenario.Catalog {
		price, err := model.ParseMoney(cp.Price)
		if err != nil {
			return nil, fmt.Errorf("catalog[%d]: %w", i, err)
		}
		p, err := model.NewProduct(model.ProductID(cp.ID), cp.Name, price, cp.Stock)
		if err != nil {
			return nil, fmt.Errorf("catalog[%d]: %w", i, err)
		}
		products = append(products, p.WithTag(cp.Tag, cp.Category))
	}
	return catalog.New(products...)
}

func scenarioPricing(rule PricingRule) (invoice.Pricing, error) {
	threshold, err := model.ParseMoney(rule.FreeShippingOver)
	if err != nil {
		return invoice.Pricing{}, fmt.Errorf("pricing.free_shipping_over: %w", err)
	}
	fee, err := model.ParseMoney(rule.ShippingFee)
	if err != nil {
		return invoice.Pricing{}, fmt.Errorf("pricing.shipping_fee: %w", err)
	}
	return invoice.Pricing{FreeShippingThreshold: threshold, FlatShippingFee: fee}, nil
}

// executeStep records the invocation, runs it and records its completion.
// Only infrastructure failures are returned.
func (h *Harness) executeStep(ctx context.Context, i int, step FlowStep, result *Result) error {
	h.seq++
	seq := h.seq
	result.AddInvocationTrace(step.Invoke, step.Client, traceArgs(step), seq)

	out, err := h.invoke(ctx, step)
	outputCase := CaseSuccess
	if err != nil {
		code := model.CodeOf(err)
		if code == "" {
			return err
		}
		outputCase = string(code)
		out = nil
	}
	result.AddCompletionTrace(outputCase, out, seq)

	if step.Expect != nil && step.Expect.Case != outputCase {
		msg := fmt.Sprintf("flow[%d] %s: expected case %q, got %q", i, step.Invoke, step.Expect.Case, outputCase)
		if err != nil {
			msg += ": " + err.Error()
		}
		result.AddError(msg)
	} else if step.Expect == nil && err != nil {
		result.AddError(fmt.Sprintf("flow[%d] %s: unexpected failure: %v", i, step.Invoke, err))
	}
	return nil
}

func (h *Harness) invoke(ctx context.Context, step FlowStep) (map[string]any, error) {
	var sess session.Session
	if step.Client != "" {
		var err error
		if sess, err = session.For(step.Client); err != nil {
			return nil, err
		}
	}
	id := model.ProductID(step.Args.Product)

	switch step.Invoke {
	case InvokeAddItem:
		c, err := h.shop.AddItem(ctx, sess, id, step.Args.Qty)
		if err != nil {
			return nil, err
		}
		available, err := h.shop.Availability(ctx, id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"available": available, "quantity": c.Reserved(id)}, nil

	case InvokeRemoveItem:
		released, err := h.shop.RemoveItem(ctx, sess, id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"released": released}, nil

	case InvokeClearCart:
		released, err := h.shop.ClearCart(ctx, sess)
		if err != nil {
			return nil, err
		}
		return map[string]any{"released": released}, nil

	case InvokeBuildInvoice:
		method, err := invoice.ParsePaymentMethod(step.Args.Method)
		if err != nil {
			return nil, err
		}
		inv, err := h.shop.BuildInvoice(ctx, sess, method)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"ref":              inv.Ref,
			"subtotal":         inv.Totals.Subtotal,
			"shipping":         inv.Totals.Shipping,
			"total":            inv.Totals.Total,
			"units":            inv.Totals.Units,
			"online_available": inv.OnlinePaymentAvailable,
		}, nil

	case InvokeSetStock:
		if err := h.shop.Admin().SetStock(ctx, id, step.Args.Qty); err != nil {
			return nil, err
		}
		return map[string]any{"available": step.Args.Qty}, nil

	case InvokeResetStock:
		if err := h.shop.Admin().ResetStock(ctx); err != nil {
			return nil, err
		}
		return map[string]any{}, nil

	case InvokeSetOnlinePayment:
		if err := h.shop.Admin().SetOnlinePayment(ctx, *step.Args.Enabled); err != nil {
			return nil, err
		}
		return map[string]any{"enabled": *step.Args.Enabled}, nil
	}
	return nil, fmt.Errorf("unknown operation %q", step.Invoke)
}

// traceArgs keeps only the arguments the operation reads.
func traceArgs(step FlowStep) map[string]any {
	args := map[string]any{}
	switch step.Invoke {
	case InvokeAddItem, InvokeSetStock:
		args["product"] = step.Args.Product
		args["qty"] = step.Args.Qty
	case InvokeRemoveItem:
		args["product"] = step.Args.Product
	case InvokeBuildInvoice:
		args["method"] = step.Args.Method
	case InvokeSetOnlinePayment:
		args["enabled"] = *step.Args.Enabled
	}
	return args
}

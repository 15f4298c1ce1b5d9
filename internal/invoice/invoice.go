// Package invoice prices carts and issues immutable invoices.
//
// An Invoice is built from a copy of a cart and never refers back to it.
// Its Digest is the domain-separated SHA-256 of the invoice's canonical
// JSON, so Verify detects any later edit to a copy.
package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/cartledger/internal/ids"
	"github.com/roach88/cartledger/internal/model"
	"github.com/roach88/cartledger/internal/session"
)

// RefPrefix prefixes every order reference.
const RefPrefix = "CMD-"

// PaymentMethod is how the client intends to pay.
type PaymentMethod string

const (
	PaymentOnline PaymentMethod = "online"
	PaymentPhone  PaymentMethod = "phone"
)

// ParsePaymentMethod accepts "online" or "phone", case-insensitively.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(raw))); m {
	case PaymentOnline, PaymentPhone:
		return m, nil
	default:
		return "", model.NewInvalidPaymentMethod(raw)
	}
}

// Invoice is an immutable order summary.
type Invoice struct {
	Ref                    string
	IssuedAt               time.Time
	ClientID               model.ClientID
	Lines                  []model.LineItem
	Totals                 Totals
	PaymentMethod          PaymentMethod
	OnlinePaymentAvailable bool
	Digest                 string
}

// Verify recomputes the digest and reports whether it still matches.
func (inv Invoice) Verify() (bool, error) {
	d, err := digest(inv)
	if err != nil {
		return false, err
	}
	return d == inv.Digest, nil
}

// Clock supplies the issue time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// PaymentSettings reports whether online payment is currently offered.
// Implemented by *admin.Settings.
type PaymentSettings interface {
	OnlinePaymentEnabled(ctx context.Context) (bool, error)
}

// Builder issues invoices.
type Builder struct {
	pricing  Pricing
	clock    Clock
	refs     ids.Generator
	settings PaymentSettings
	logger   *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithPricing overrides DefaultPricing.
func WithPricing(p Pricing) Option {
	return func(b *Builder) { b.pricing = p }
}

// WithClock overrides SystemClock.
func WithClock(c Clock) Option {
	return func(b *Builder) { b.clock = c }
}

// WithRefGenerator overrides the UUIDv7 source of order references.
func WithRefGenerator(g ids.Generator) Option {
	return func(b *Builder) { b.refs = g }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder returns a builder. settings may be nil, in which case online
// payment is always offered.
func NewBuilder(settings PaymentSettings, opts ...Option) *Builder {
	b := &Builder{
		pricing:  DefaultPricing(),
		clock:    SystemClock{},
		refs:     ids.UUIDv7Generator{},
		settings: settings,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Pricing returns the builder's pricing rule.
func (b *Builder) Pricing() Pricing {
	return b.pricing
}

// Build issues an invoice for c on behalf of sess. It reads only: neither
// the cart nor the ledger changes. When online payment is disabled the
// invoice is still issued with the chosen method, marked unavailable.
func (b *Builder) Build(ctx context.Context, sess session.Session, c model.Cart, method PaymentMethod) (Invoice, error) {
	client, err := sess.Client()
	if err != nil {
		return Invoice{}, err
	}
	method, err = ParsePaymentMethod(string(method))
	if err != nil {
		return Invoice{}, err
	}
	if c.IsEmpty() {
		return Invoice{}, model.NewEmptyCart(client)
	}

	online := true
	if b.settings != nil {
		online, err = b.settings.OnlinePaymentEnabled(ctx)
		if err != nil {
			return Invoice{}, fmt.Errorf("read payment settings: %w", err)
		}
	}

	snapshot := c.Clone()
	inv := Invoice{
		Ref:                    RefPrefix + b.refs.Generate(),
		IssuedAt:               b.clock.Now().UTC().Truncate(time.Second),
		ClientID:               client,
		Lines:                  snapshot.Lines,
		Totals:                 b.pricing.Totals(snapshot),
		PaymentMethod:          method,
		OnlinePaymentAvailable: online,
	}
	inv.Digest, err = digest(inv)
	if err != nil {
		return Invoice{}, err
	}

	b.logger.Info("invoice issued",
		"ref", inv.Ref,
		"client", client,
		"total", inv.Totals.Total.String(),
		"method", method,
	)
	return inv, nil
}

// digest hashes every field except Digest itself.
func digest(inv Invoice) (string, error) {
	lines := make([]any, len(inv.Lines))
	for i, l := range inv.Lines {
		lines[i] = map[string]any{
			"id":       string(l.ProductID),
			"name":     l.Name,
			"price":    l.UnitPrice,
			"quantity": l.Quantity,
		}
	}
	doc := map[string]any{
		"ref":       inv.Ref,
		"issued_at": inv.IssuedAt.UTC().Format(time.RFC3339),
		"client":    string(inv.ClientID),
		"lines":     lines,
		"totals": map[string]any{
			"subtotal": inv.Totals.Subtotal,
			"shipping": inv.Totals.Shipping,
			"total":    inv.Totals.Total,
			"units":    inv.Totals.Units,
		},
		"payment_method":   string(inv.PaymentMethod),
		"online_available": inv.OnlinePaymentAvailable,
	}
	return model.Digest(model.DomainInvoice, doc)
}

// Package shop composes the catalog, stock ledger, carts, sessions and
// invoicing into the operations a front end calls. Each operation is
// independently callable and safe to repeat, and runs in its own span.
package shop

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/cartledger/internal/admin"
	"github.com/roach88/cartledger/internal/cart"
	"github.com/roach88/cartledger/internal/catalog"
	"github.com/roach88/cartledger/internal/ids"
	"github.com/roach88/cartledger/internal/invoice"
	"github.com/roach88/cartledger/internal/ledger"
	"github.com/roach88/cartledger/internal/model"
	"github.com/roach88/cartledger/internal/payment"
	"github.com/roach88/cartledger/internal/session"
	"github.com/roach88/cartledger/internal/store"
)

const tracerName = "github.com/roach88/cartledger/internal/shop"

// Shop is the front-end surface over one store.
type Shop struct {
	kv       store.KV
	catalog  *catalog.Catalog
	ledger   *ledger.Ledger
	carts    *cart.Store
	sessions *session.Binder
	invoices *invoice.Builder
	admin    *admin.Settings
	payments *payment.Redirector
	tracer   trace.Tracer
	logger   *slog.Logger
}

type options struct {
	logger     *slog.Logger
	tracer     trace.TracerProvider
	invoiceOpt []invoice.Option
	clientGen  ids.Generator
	redirector *payment.Redirector
}

// Option configures a Shop.
type Option func(*options)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

// WithInvoiceOptions passes options through to the invoice builder.
func WithInvoiceOptions(opts ...invoice.Option) Option {
	return func(o *options) { o.invoiceOpt = append(o.invoiceOpt, opts...) }
}

// WithClientGenerator overrides the source of generated client codes.
func WithClientGenerator(gen ids.Generator) Option {
	return func(o *options) { o.clientGen = gen }
}

// WithRedirector overrides the default payment redirector.
func WithRedirector(r *payment.Redirector) Option {
	return func(o *options) { o.redirector = r }
}

// Open wires a shop over kv and seeds the ledger from cat if it has never
// been initialized.
func Open(ctx context.Context, kv store.KV, cat *catalog.Catalog, opts ...Option) (*Shop, error) {
	o := options{logger: slog.Default(), tracer: otel.GetTracerProvider()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	l := ledger.New(kv, ledger.WithLogger(o.logger))
	settings := admin.New(kv, l, cat, o.logger)

	sessOpts := []session.Option{session.WithLogger(o.logger)}
	if o.clientGen != nil {
		sessOpts = append(sessOpts, session.WithGenerator(o.clientGen))
	}

	redirector := o.redirector
	if redirector == nil {
		var err error
		redirector, err = payment.NewRedirector("", "")
		if err != nil {
			return nil, err
		}
	}

	s := &Shop{
		kv:       kv,
		catalog:  cat,
		ledger:   l,
		carts:    cart.New(kv, l, cat, cart.WithLogger(o.logger)),
		sessions: session.NewBinder(kv, sessOpts...),
		invoices: invoice.NewBuilder(settings, append([]invoice.Option{invoice.WithLogger(o.logger)}, o.invoiceOpt...)...),
		admin:    settings,
		payments: redirector,
		tracer:   o.tracer.Tracer(tracerName),
		logger:   o.logger,
	}

	if _, err := l.Initialize(ctx, cat.Baseline()); err != nil {
		return nil, err
	}
	if !kv.Isolation().CrossProcessSafe() {
		o.logger.Debug("store is not safe across processes; concurrent shops may oversell",
			"isolation", kv.Isolation().String())
	}
	return s, nil
}

// Catalog returns the product catalog.
func (s *Shop) Catalog() *catalog.Catalog { return s.catalog }

// Ledger returns the stock ledger, for subscribing display hooks.
func (s *Shop) Ledger() *ledger.Ledger { return s.ledger }

// Admin returns the administrative settings.
func (s *Shop) Admin() *admin.Settings { return s.admin }

// Sessions returns the session binder.
func (s *Shop) Sessions() *session.Binder { return s.sessions }

// Pricing returns the shipping rule invoices are priced with.
func (s *Shop) Pricing() invoice.Pricing { return s.invoices.Pricing() }

// Products lists catalog products carrying tag ("" or "all" for every one).
func (s *Shop) Products(tag string) []model.Product {
	return s.catalog.Filter(tag)
}

// Availability returns how many units of id can still be reserved.
func (s *Shop) Availability(ctx context.Context, id model.ProductID) (n int, err error) {
	ctx, span := s.start(ctx, "shop.Availability", attribute.String("product", string(id)))
	defer func() { end(span, err) }()
	return s.ledger.Available(ctx, id)
}

// StockLevels returns the whole ledger.
func (s *Shop) StockLevels(ctx context.Context) (stock model.Stock, err error) {
	ctx, span := s.start(ctx, "shop.StockLevels")
	defer func() { end(span, err) }()
	return s.ledger.Snapshot(ctx)
}

// AddItem reserves qty units of id into sess's cart.
func (s *Shop) AddItem(ctx context.Context, sess session.Session, id model.ProductID, qty int) (c model.Cart, err error) {
	ctx, span := s.start(ctx, "shop.AddItem",
		attribute.String("client", sess.String()),
		attribute.String("product", string(id)),
		attribute.Int("qty", qty),
	)
	defer func() { end(span, err) }()
	return s.carts.AddItem(ctx, sess, id, qty)
}

// RemoveItem drops id's line from sess's cart and releases it.
func (s *Shop) RemoveItem(ctx context.Context, sess session.Session, id model.ProductID) (released int, err error) {
	ctx, span := s.start(ctx, "shop.RemoveItem",
		attribute.String("client", sess.String()),
		attribute.String("product", string(id)),
	)
	defer func() { end(span, err) }()
	return s.carts.RemoveItem(ctx, sess, id)
}

// ClearCart releases and deletes sess's cart.
func (s *Shop) ClearCart(ctx context.Context, sess session.Session) (released int, err error) {
	ctx, span := s.start(ctx, "shop.ClearCart", attribute.String("client", sess.String()))
	defer func() { end(span, err) }()
	return s.carts.Clear(ctx, sess)
}

// Summary is a cart with its current totals.
type Summary struct {
	Cart   model.Cart
	Totals invoice.Totals
}

// Summary reads sess's cart and prices it.
func (s *Shop) Summary(ctx context.Context, sess session.Session) (sum Summary, err error) {
	ctx, span := s.start(ctx, "shop.Summary", attribute.String("client", sess.String()))
	defer func() { end(span, err) }()

	c, err := s.carts.Load(ctx, sess)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Cart: c, Totals: s.invoices.Pricing().Totals(c)}, nil
}

// BuildInvoice issues an invoice for sess's current cart.
func (s *Shop) BuildInvoice(ctx context.Context, sess session.Session, method invoice.PaymentMethod) (inv invoice.Invoice, err error) {
	ctx, span := s.start(ctx, "shop.BuildInvoice",
		attribute.String("client", sess.String()),
		attribute.String("method", string(method)),
	)
	defer func() { end(span, err) }()

	c, err := s.carts.Load(ctx, sess)
	if err != nil {
		return invoice.Invoice{}, err
	}
	inv, err = s.invoices.Build(ctx, sess, c, method)
	if err != nil {
		return invoice.Invoice{}, err
	}
	span.SetAttributes(attribute.String("ref", inv.Ref), attribute.Int64("total_cents", inv.Totals.Total.Cents()))
	return inv, nil
}

// CheckoutURL returns the payment redirect for inv.
func (s *Shop) CheckoutURL(ctx context.Context, inv invoice.Invoice) (u string, err error) {
	ctx, span := s.start(ctx, "shop.CheckoutURL", attribute.String("ref", inv.Ref))
	defer func() { end(span, err) }()
	return s.payments.CheckoutURL(ctx, inv)
}

// Clients lists every client holding a persisted cart.
func (s *Shop) Clients(ctx context.Context) ([]model.ClientID, error) {
	return s.carts.Clients(ctx)
}

// Violation is a product whose ledger and carts no longer add up to its
// catalog baseline.
type Violation struct {
	ProductID model.ProductID
	Baseline  int
	Available int
	Reserved  int
}

func (v Violation) String() string {
	return fmt.Sprintf("product %s: available %d + reserved %d != baseline %d",
		v.ProductID, v.Available, v.Reserved, v.Baseline)
}

// CheckConservation compares available + reserved against the catalog
// baseline for every product. A nil result means the invariant holds.
// Violations are expected after an admin reset or override, or after lost
// updates on a store that is not safe across processes.
func (s *Shop) CheckConservation(ctx context.Context) (violations []Violation, err error) {
	ctx, span := s.start(ctx, "shop.CheckConservation")
	defer func() { end(span, err) }()

	stock, err := s.ledger.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	reserved, err := s.carts.Reserved(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range s.catalog.Products() {
		if stock[p.ID]+reserved[p.ID] != p.BaselineStock || stock[p.ID] < 0 {
			violations = append(violations, Violation{
				ProductID: p.ID,
				Baseline:  p.BaselineStock,
				Available: stock[p.ID],
				Reserved:  reserved[p.ID],
			})
		}
	}
	span.SetAttributes(attribute.Int("violations", len(violations)))
	return violations, nil
}

func (s *Shop) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// end records err on span and ends it.
func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code := model.CodeOf(err); code != "" {
			span.SetAttributes(attribute.String("error.code", string(code)))
		}
	}
	span.End()
}

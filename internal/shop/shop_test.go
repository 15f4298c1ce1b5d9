package shop

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/roach88/cartledger/internal/catalog"
	"github.com/roach88/cartledger/internal/ids"
	"github.com/roach88/cartledger/internal/invoice"
	"github.com/roach88/cartledger/internal/model"
	"github.com/roach88/cartledger/internal/session"
	"github.com/roach88/cartledger/internal/store"
	"github.com/roach88/cartledger/internal/testutil"
)

func newTestShop(t *testing.T, kv store.KV) (*Shop, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	s, err := Open(context.Background(), kv, catalog.Default(),
		WithTracerProvider(tp),
		WithInvoiceOptions(
			invoice.WithClock(testutil.NewFixedClock(testutil.Epoch)),
			invoice.WithRefGenerator(testutil.NewCountingGenerator("")),
		),
		WithClientGenerator(ids.NewSequence("01890a5d-ac96-774b-bcce-b302099a8057")),
	)
	require.NoError(t, err)
	return s, recorder
}

func login(t *testing.T, s *Shop, client string) session.Session {
	t.Helper()
	sess, err := s.Sessions().Bind(context.Background(), client)
	require.NoError(t, err)
	return sess
}

func TestOpen_SeedsLedgerOnce(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()

	s1, _ := newTestShop(t, kv)
	alice := login(t, s1, "alice")
	_, err := s1.AddItem(ctx, alice, "1", 4)
	require.NoError(t, err)

	s2, _ := newTestShop(t, kv)
	n, err := s2.Availability(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 6, n, "opening a second shop must not re-seed")
}

func TestShopFlow(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestShop(t, store.NewMemory())
	alice := login(t, s, "alice")

	_, err := s.AddItem(ctx, alice, "1", 4)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, alice, "2", 2)
	require.NoError(t, err)

	sum, err := s.Summary(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "13.60", sum.Totals.Subtotal.String())
	assert.Equal(t, "5.00", sum.Totals.Shipping.String())
	assert.Equal(t, "18.60", sum.Totals.Total.String())

	inv, err := s.BuildInvoice(ctx, alice, invoice.PaymentOnline)
	require.NoError(t, err)
	assert.Equal(t, "CMD-test-0001", inv.Ref)

	u, err := s.CheckoutURL(ctx, inv)
	require.NoError(t, err)
	assert.Contains(t, u, "amount=18.60")

	// Building an invoice reserves nothing and releases nothing.
	n, _ := s.Availability(ctx, "1")
	assert.Equal(t, 6, n)

	released, err := s.ClearCart(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 6, released)

	_, err = s.BuildInvoice(ctx, alice, invoice.PaymentOnline)
	assert.True(t, errors.Is(err, model.ErrEmptyCart))

	violations, err := s.CheckConservation(ctx)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestOnlinePaymentDisabled(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestShop(t, store.NewMemory())
	alice := login(t, s, "alice")
	require.NoError(t, s.Admin().SetOnlinePayment(ctx, false))

	_, err := s.AddItem(ctx, alice, "3", 8)
	require.NoError(t, err)

	inv, err := s.BuildInvoice(ctx, alice, invoice.PaymentOnline)
	require.NoError(t, err)
	assert.False(t, inv.OnlinePaymentAvailable)
	assert.Equal(t, invoice.PaymentOnline, inv.PaymentMethod)

	_, err = s.CheckoutURL(ctx, inv)
	assert.True(t, errors.Is(err, model.ErrOnlinePaymentDisabled))
}

func TestCheckConservation_AfterReset(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestShop(t, store.NewMemory())
	alice := login(t, s, "alice")

	_, err := s.AddItem(ctx, alice, "101", 5)
	require.NoError(t, err)
	require.NoError(t, s.Admin().ResetStock(ctx))

	violations, err := s.CheckConservation(ctx)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, Violation{ProductID: "101", Baseline: 15, Available: 15, Reserved: 5}, violations[0])
	assert.Equal(t, "product 101: available 15 + reserved 5 != baseline 15", violations[0].String())
}

func TestProducts(t *testing.T) {
	s, _ := newTestShop(t, store.NewMemory())
	assert.Len(t, s.Products(""), 6)
	assert.Len(t, s.Products("vedette"), 2)
}

func TestSpans(t *testing.T) {
	ctx := context.Background()
	s, recorder := newTestShop(t, store.NewMemory())
	alice := login(t, s, "alice")

	_, err := s.AddItem(ctx, alice, "1", 2)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, alice, "1", 200)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "shop.AddItem", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.Equal(t, "shop.AddItem", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)

	var code string
	for _, kv := range spans[1].Attributes() {
		if kv.Key == "error.code" {
			code = kv.Value.AsString()
		}
	}
	assert.Equal(t, string(model.CodeInsufficientStock), code)
}

func TestGeneratedClient(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestShop(t, store.NewMemory())

	sess, err := s.Sessions().Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "C-099a8057", sess.String())

	_, err = s.AddItem(ctx, sess, "2", 1)
	require.NoError(t, err)

	clients, err := s.Clients(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.ClientID{"C-099a8057"}, clients)
}

// Two shops on one SQLite file behave like two open tabs.
func TestTwoShopsShareSQLiteLedger(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shop.db")

	open := func() *Shop {
		kv, err := store.Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { kv.Close() })
		s, _ := newTestShop(t, kv)
		return s
	}
	tab1, tab2 := open(), open()
	alice, bob := login(t, tab1, "alice"), login(t, tab2, "bob")

	_, err := tab1.AddItem(ctx, alice, "3", 7)
	require.NoError(t, err)
	_, err = tab2.AddItem(ctx, bob, "3", 6)
	assert.True(t, errors.Is(err, model.ErrInsufficientStock), "tab 2 must see tab 1's reservation")

	_, err = tab2.AddItem(ctx, bob, "3", 5)
	require.NoError(t, err)

	violations, err := tab1.CheckConservation(ctx)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

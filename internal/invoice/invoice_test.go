package invoice

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/roach88/cartledger/internal/ids"
	"github.com/roach88/cartledger/internal/model"
	"github.com/roach88/cartledger/internal/session"
	"github.com/roach88/cartledger/internal/testutil"
)

func line(id, name, price string, qty int) model.LineItem {
	return model.LineItem{ProductID: model.ProductID(id), Name: name, UnitPrice: model.MustMoney(price), Quantity: qty}
}

func cartOf(client string, lines ...model.LineItem) model.Cart {
	return model.Cart{ClientID: model.ClientID(client), Lines: lines}
}

func mustSession(t *testing.T, client string) session.Session {
	t.Helper()
	s, err := session.For(client)
	require.NoError(t, err)
	return s
}

type staticSettings struct {
	online bool
	err    error
}

func (s staticSettings) OnlinePaymentEnabled(context.Context) (bool, error) {
	return s.online, s.err
}

func newTestBuilder(settings PaymentSettings, refs ...string) *Builder {
	if len(refs) == 0 {
		refs = []string{"0001"}
	}
	return NewBuilder(settings,
		WithClock(testutil.NewFixedClock(time.Time{})),
		WithRefGenerator(ids.NewSequence(refs...)),
	)
}

func TestTotals(t *testing.T) {
	tests := []struct {
		name                      string
		cart                      model.Cart
		subtotal, shipping, total string
		units                     int
	}{
		{
			name:     "flat shipping",
			cart:     cartOf("a", line("1", "Pommes", "2.50", 4), line("2", "Carottes", "1.80", 2)),
			subtotal: "13.60", shipping: "5.00", total: "18.60", units: 6,
		},
		{
			name:     "free shipping",
			cart:     cartOf("a", line("3", "Oranges", "3.00", 8)),
			subtotal: "24.00", shipping: "0.00", total: "24.00", units: 8,
		},
		{
			name:     "threshold is not free",
			cart:     cartOf("a", line("x", "X", "10.00", 2)),
			subtotal: "20.00", shipping: "5.00", total: "25.00", units: 2,
		},
		{
			name:     "one cent over threshold",
			cart:     cartOf("a", line("x", "X", "20.01", 1)),
			subtotal: "20.01", shipping: "0.00", total: "20.01", units: 1,
		},
		{
			name:     "empty",
			cart:     cartOf("a"),
			subtotal: "0.00", shipping: "5.00", total: "5.00", units: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultPricing().Totals(tt.cart)
			assert.Equal(t, tt.subtotal, got.Subtotal.String())
			assert.Equal(t, tt.shipping, got.Shipping.String())
			assert.Equal(t, tt.total, got.Total.String())
			assert.Equal(t, tt.units, got.Units)
		})
	}
}

func TestTotals_CustomPricing(t *testing.T) {
	p := Pricing{FreeShippingThreshold: model.MustMoney("50"), FlatShippingFee: model.MustMoney("7.5")}
	got := p.Totals(cartOf("a", line("3", "Oranges", "3.00", 8)))
	assert.Equal(t, "7.50", got.Shipping.String())
	assert.Equal(t, "31.50", got.Total.String())
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod(" Online ")
	require.NoError(t, err)
	assert.Equal(t, PaymentOnline, m)

	m, err = ParsePaymentMethod("phone")
	require.NoError(t, err)
	assert.Equal(t, PaymentPhone, m)

	_, err = ParsePaymentMethod("cash")
	assert.True(t, errors.Is(err, model.ErrInvalidPaymentMethod))
}

func TestBuild(t *testing.T) {
	b := newTestBuilder(nil)
	c := cartOf("alice", line("1", "Pommes (1 kg)", "2.50", 4), line("2", "Carottes (1 kg)", "1.80", 2))

	inv, err := b.Build(context.Background(), mustSession(t, "alice"), c, PaymentOnline)
	require.NoError(t, err)

	assert.Equal(t, "CMD-0001", inv.Ref)
	assert.Equal(t, testutil.Epoch, inv.IssuedAt)
	assert.Equal(t, model.ClientID("alice"), inv.ClientID)
	assert.Equal(t, c.Lines, inv.Lines)
	assert.Equal(t, "18.60", inv.Totals.Total.String())
	assert.Equal(t, PaymentOnline, inv.PaymentMethod)
	assert.True(t, inv.OnlinePaymentAvailable)
	assert.Len(t, inv.Digest, 64)

	ok, err := inv.Verify()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuild_Rejections(t *testing.T) {
	ctx := context.Background()
	full := cartOf("alice", line("1", "Pommes", "2.50", 1))

	_, err := newTestBuilder(nil).Build(ctx, mustSession(t, "alice"), cartOf("alice"), PaymentOnline)
	assert.True(t, errors.Is(err, model.ErrEmptyCart))

	_, err = newTestBuilder(nil).Build(ctx, session.Session{}, full, PaymentOnline)
	assert.True(t, errors.Is(err, model.ErrMissingClientIdentity))

	_, err = newTestBuilder(nil).Build(ctx, mustSession(t, "alice"), full, PaymentMethod("cheque"))
	assert.True(t, errors.Is(err, model.ErrInvalidPaymentMethod))

	_, err = newTestBuilder(staticSettings{err: errors.New("disk")}).Build(ctx, mustSession(t, "alice"), full, PaymentOnline)
	assert.Error(t, err)
}

func TestBuild_OnlineDisabledKeepsChosenMethod(t *testing.T) {
	b := newTestBuilder(staticSettings{online: false})
	inv, err := b.Build(context.Background(), mustSession(t, "alice"),
		cartOf("alice", line("1", "Pommes", "2.50", 1)), PaymentOnline)
	require.NoError(t, err)

	assert.Equal(t, PaymentOnline, inv.PaymentMethod)
	assert.False(t, inv.OnlinePaymentAvailable)
}

func TestBuild_StoresNormalizedMethod(t *testing.T) {
	inv, err := newTestBuilder(nil).Build(context.Background(), mustSession(t, "alice"),
		cartOf("alice", line("1", "Pommes", "2.50", 1)), PaymentMethod(" Online "))
	require.NoError(t, err)

	assert.Equal(t, PaymentOnline, inv.PaymentMethod)
	ok, err := inv.Verify()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuild_FreshReferencePerInvoice(t *testing.T) {
	b := newTestBuilder(nil, "0001", "0002")
	sess := mustSession(t, "alice")
	c := cartOf("alice", line("1", "Pommes", "2.50", 1))

	first, err := b.Build(context.Background(), sess, c, PaymentPhone)
	require.NoError(t, err)
	second, err := b.Build(context.Background(), sess, c, PaymentPhone)
	require.NoError(t, err)

	assert.NotEqual(t, first.Ref, second.Ref)
	assert.NotEqual(t, first.Digest, second.Digest)
}

func TestBuild_UUIDv7Reference(t *testing.T) {
	b := NewBuilder(nil)
	inv, err := b.Build(context.Background(), mustSession(t, "alice"),
		cartOf("alice", line("1", "Pommes", "2.50", 1)), PaymentPhone)
	require.NoError(t, err)
	assert.Regexp(t, `^CMD-[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-`, inv.Ref)
}

func TestInvoiceIsImmutableSnapshot(t *testing.T) {
	c := cartOf("alice", line("1", "Pommes", "2.50", 4))
	inv, err := newTestBuilder(nil).Build(context.Background(), mustSession(t, "alice"), c, PaymentPhone)
	require.NoError(t, err)

	c.Lines[0].Quantity = 99
	c = c.WithAdded(line("2", "Carottes", "1.80", 1))

	assert.Equal(t, 4, inv.Lines[0].Quantity)
	assert.Len(t, inv.Lines, 1)
	assert.Equal(t, "10.00", inv.Totals.Subtotal.String())

	ok, err := inv.Verify()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_DetectsTampering(t *testing.T) {
	inv, err := newTestBuilder(nil).Build(context.Background(), mustSession(t, "alice"),
		cartOf("alice", line("1", "Pommes", "2.50", 4)), PaymentPhone)
	require.NoError(t, err)

	tampered := inv
	tampered.Lines = append([]model.LineItem(nil), inv.Lines...)
	tampered.Lines[0].UnitPrice = model.MustMoney("0.01")

	ok, err := tampered.Verify()
	require.NoError(t, err)
	assert.False(t, ok)

	tampered = inv
	tampered.Totals.Shipping = 0
	ok, _ = tampered.Verify()
	assert.False(t, ok)
}

func sampleInvoice(t *testing.T, method PaymentMethod, online bool) Invoice {
	t.Helper()
	inv, err := newTestBuilder(staticSettings{online: online}).Build(context.Background(), mustSession(t, "alice"),
		cartOf("alice", line("1", "Pommes (1 kg)", "2.50", 4), line("2", "Carottes (1 kg)", "1.80", 2)), method)
	require.NoError(t, err)
	return inv
}

func TestRender_EnglishGolden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleInvoice(t, PaymentPhone, true), language.English))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "invoice_en_phone", buf.Bytes())
}

func TestRender_French(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleInvoice(t, PaymentPhone, false), language.French))
	out := buf.String()

	assert.Contains(t, out, "Facture - Votre commande\n")
	assert.Contains(t, out, "Code client: alice\n")
	assert.Contains(t, out, "Référence commande: CMD-0001\n")
	assert.Contains(t, out, "Date: 01/03/2026\n")
	assert.Contains(t, out, "Qté: 4")
	assert.Contains(t, out, "13,60 $")
	assert.Contains(t, out, "Veuillez confirmer en appelant le 514 123 4567. Merci !")
	assert.Contains(t, out, "Le paiement en ligne est actuellement indisponible.")
	assert.NotContains(t, out, "Livraison gratuite !")
}

func TestRender_FreeShippingNotice(t *testing.T) {
	inv, err := newTestBuilder(nil).Build(context.Background(), mustSession(t, "bob"),
		cartOf("bob", line("3", "Oranges (1 kg)", "3.00", 8)), PaymentOnline)
	require.NoError(t, err)

	var en, fr bytes.Buffer
	require.NoError(t, Render(&en, inv, language.English))
	require.NoError(t, Render(&fr, inv, language.French))

	assert.Contains(t, en.String(), "Free delivery!\n")
	assert.Contains(t, en.String(), "Payment: online\n")
	assert.NotContains(t, en.String(), "514 123 4567")
	assert.Contains(t, fr.String(), "Livraison gratuite !\n")
	assert.Contains(t, fr.String(), "Paiement: en ligne\n")
}

func TestRenderEmpty(t *testing.T) {
	var en, fr bytes.Buffer
	require.NoError(t, RenderEmpty(&en, language.English))
	require.NoError(t, RenderEmpty(&fr, language.French))
	assert.Equal(t, "Your cart is empty.\n", en.String())
	assert.Equal(t, "Votre panier est vide.\n", fr.String())
}

func TestParseLanguage(t *testing.T) {
	tests := map[string]language.Tag{
		"fr":    language.French,
		"fr-CA": language.French,
		"en":    language.English,
		"en-GB": language.English,
		"de":    language.English,
		"":      language.English,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLanguage(in), "ParseLanguage(%q)", in)
	}
}

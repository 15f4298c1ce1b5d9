package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartledger/internal/invoice"
	"github.com/roach88/cartledger/internal/model"
)

func sampleInvoice(online bool) invoice.Invoice {
	return invoice.Invoice{
		Ref:      "CMD-0001",
		ClientID: "alice",
		Lines: []model.LineItem{
			{ProductID: "1", Name: "Pommes", UnitPrice: 250, Quantity: 4},
		},
		Totals:                 invoice.Totals{Subtotal: 1000, Shipping: 500, Total: 1500, Units: 4},
		PaymentMethod:          invoice.PaymentOnline,
		OnlinePaymentAvailable: online,
	}
}

func TestCheckoutURL(t *testing.T) {
	r, err := NewRedirector("", "")
	require.NoError(t, err)

	u, err := r.CheckoutURL(context.Background(), sampleInvoice(true))
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/checkout?amount=15.00&client=alice&currency=CAD&ref=CMD-0001", u)
}

func TestCheckoutURL_KeepsBaseQuery(t *testing.T) {
	r, err := NewRedirector("http://localhost:8080/pay?shop=7", "EUR")
	require.NoError(t, err)

	u, err := r.CheckoutURL(context.Background(), sampleInvoice(true))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/pay?amount=15.00&client=alice&currency=EUR&ref=CMD-0001&shop=7", u)
}

func TestCheckoutURL_OnlineDisabled(t *testing.T) {
	r, _ := NewRedirector("", "")
	_, err := r.CheckoutURL(context.Background(), sampleInvoice(false))
	assert.True(t, errors.Is(err, model.ErrOnlinePaymentDisabled))
}

func TestCheckoutURL_EmptyInvoice(t *testing.T) {
	r, _ := NewRedirector("", "")
	inv := sampleInvoice(true)
	inv.Lines = nil
	_, err := r.CheckoutURL(context.Background(), inv)
	assert.True(t, errors.Is(err, model.ErrEmptyCart))
}

func TestNewRedirector_RejectsBadBase(t *testing.T) {
	_, err := NewRedirector("ftp://example.com", "")
	assert.Error(t, err)

	_, err = NewRedirector("://nope", "")
	assert.Error(t, err)
}

// Package payment stands in for the external payment provider. It only
// builds the redirect URL a client would follow; it makes no network calls.
package payment

import (
	"context"
	"fmt"
	"net/url"

	"github.com/roach88/cartledger/internal/invoice"
	"github.com/roach88/cartledger/internal/model"
)

// DefaultCheckoutBase is used when no checkout base URL is configured.
const DefaultCheckoutBase = "https://pay.example.com/checkout"

// Redirector builds checkout URLs for invoices.
type Redirector struct {
	base     *url.URL
	currency string
}

// NewRedirector parses base. An empty base uses DefaultCheckoutBase and an
// empty currency uses CAD.
func NewRedirector(base, currency string) (*Redirector, error) {
	if base == "" {
		base = DefaultCheckoutBase
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse checkout base: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("parse checkout base: unsupported scheme %q", u.Scheme)
	}
	if currency == "" {
		currency = "CAD"
	}
	return &Redirector{base: u, currency: currency}, nil
}

// CheckoutURL returns the provider URL for inv. It refuses invoices issued
// while online payment was disabled.
func (r *Redirector) CheckoutURL(_ context.Context, inv invoice.Invoice) (string, error) {
	if !inv.OnlinePaymentAvailable {
		return "", model.NewOnlinePaymentDisabled()
	}
	if len(inv.Lines) == 0 {
		return "", model.NewEmptyCart(inv.ClientID)
	}

	u := *r.base
	q := u.Query()
	q.Set("ref", inv.Ref)
	q.Set("amount", inv.Totals.Total.String())
	q.Set("currency", r.currency)
	q.Set("client", string(inv.ClientID))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

package invoice

import "github.com/roach88/cartledger/internal/model"

// Pricing holds the shipping rule. Shipping is free only when the subtotal
// is strictly greater than FreeShippingThreshold.
type Pricing struct {
	FreeShippingThreshold model.Money
	FlatShippingFee       model.Money
}

// DefaultPricing is free shipping above 20.00, otherwise 5.00.
func DefaultPricing() Pricing {
	return Pricing{
		FreeShippingThreshold: model.MustMoney("20.00"),
		FlatShippingFee:       model.MustMoney("5.00"),
	}
}

// Totals summarizes a cart's amounts.
type Totals struct {
	Subtotal model.Money
	Shipping model.Money
	Total    model.Money
	Units    int
}

// FreeShipping reports whether no shipping fee applied.
func (t Totals) FreeShipping() bool {
	return t.Shipping == 0
}

// Totals prices c from its snapshotted unit prices.
func (p Pricing) Totals(c model.Cart) Totals {
	var t Totals
	for _, l := range c.Lines {
		t.Subtotal += l.LineTotal()
		t.Units += l.Quantity
	}
	if t.Subtotal <= p.FreeShippingThreshold {
		t.Shipping = p.FlatShippingFee
	}
	t.Total = t.Subtotal + t.Shipping
	return t
}

package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/roach88/cartledger/internal/invoice"
	"github.com/roach88/cartledger/internal/model"
	"github.com/roach88/cartledger/internal/shop"
)

// JSON shapes of command output. Money marshals as decimal text.

type productView struct {
	ID        model.ProductID `json:"id"`
	Name      string          `json:"name"`
	Price     model.Money     `json:"price"`
	Available int             `json:"available"`
	Tag       string          `json:"tag,omitempty"`
	Category  string          `json:"category,omitempty"`
}

type lineView struct {
	ID        model.ProductID `json:"id"`
	Name      string          `json:"name"`
	UnitPrice model.Money     `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal model.Money     `json:"line_total"`
}

type cartView struct {
	Client       string      `json:"client"`
	Lines        []lineView  `json:"lines"`
	Units        int         `json:"units"`
	Subtotal     model.Money `json:"subtotal"`
	Shipping     model.Money `json:"shipping"`
	Total        model.Money `json:"total"`
	FreeShipping bool        `json:"free_shipping"`
}

type invoiceView struct {
	Ref                    string      `json:"ref"`
	IssuedAt               time.Time   `json:"issued_at"`
	Client                 string      `json:"client"`
	Lines                  []lineView  `json:"lines"`
	Subtotal               model.Money `json:"subtotal"`
	Shipping               model.Money `json:"shipping"`
	Total                  model.Money `json:"total"`
	PaymentMethod          string      `json:"payment_method"`
	OnlinePaymentAvailable bool        `json:"online_payment_available"`
	Digest                 string      `json:"digest"`
}

func linesOf(lines []model.LineItem) []lineView {
	out := make([]lineView, len(lines))
	for i, l := range lines {
		out[i] = lineView{
			ID:        l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			LineTotal: l.LineTotal(),
		}
	}
	return out
}

func cartViewOf(client string, sum shop.Summary) cartView {
	return cartView{
		Client:       client,
		Lines:        linesOf(sum.Cart.Lines),
		Units:        sum.Totals.Units,
		Subtotal:     sum.Totals.Subtotal,
		Shipping:     sum.Totals.Shipping,
		Total:        sum.Totals.Total,
		FreeShipping: sum.Totals.FreeShipping(),
	}
}

func invoiceViewOf(inv invoice.Invoice) invoiceView {
	return invoiceView{
		Ref:                    inv.Ref,
		IssuedAt:               inv.IssuedAt,
		Client:                 string(inv.ClientID),
		Lines:                  linesOf(inv.Lines),
		Subtotal:               inv.Totals.Subtotal,
		Shipping:               inv.Totals.Shipping,
		Total:                  inv.Totals.Total,
		PaymentMethod:          string(inv.PaymentMethod),
		OnlinePaymentAvailable: inv.OnlinePaymentAvailable,
		Digest:                 inv.Digest,
	}
}

func writeProducts(w io.Writer, products []productView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tAVAILABLE\tTAG")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.Name, p.Price, p.Available, p.Tag)
	}
	return tw.Flush()
}

func writeCart(w io.Writer, c cartView) error {
	if len(c.Lines) == 0 {
		_, err := fmt.Fprintf(w, "Cart of %s is empty.\n", c.Client)
		return err
	}
	fmt.Fprintf(w, "Cart of %s\n", c.Client)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, l := range c.Lines {
		fmt.Fprintf(tw, "  %s\t%s\tx%d\t%s\t%s\n", l.ID, l.Name, l.Quantity, l.UnitPrice, l.LineTotal)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "Subtotal: %s\n", c.Subtotal)
	fmt.Fprintf(w, "Shipping: %s\n", c.Shipping)
	_, err := fmt.Fprintf(w, "Total: %s\n", c.Total)
	return err
}

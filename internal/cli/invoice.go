package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/cartledger/internal/invoice"
	"github.com/roach88/cartledger/internal/model"
	"github.com/roach88/cartledger/internal/shop"
)

// NewInvoiceCommand creates the invoice command.
func NewInvoiceCommand(rootOpts *RootOptions) *cobra.Command {
	var method string

	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Issue an invoice for the current cart",
		Long: `Issue an invoice for the current cart.

The invoice is a snapshot: later cart changes do not affect it, and the
cart and stock are left untouched. Text output is localized with --lang.

Examples:
  cartledger invoice
  cartledger invoice --method online --lang en
  cartledger invoice --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pm, err := invoice.ParsePaymentMethod(method)
			if err != nil {
				return err
			}
			lang := invoice.ParseLanguage(rootOpts.Lang)

			return rootOpts.withShop(cmd, func(ctx context.Context, s *shop.Shop) error {
				f := rootOpts.formatter(cmd)
				sess, err := rootOpts.session(ctx, s)
				if err != nil {
					return err
				}
				inv, err := s.BuildInvoice(ctx, sess, pm)
				if errors.Is(err, model.ErrEmptyCart) && f.Format == "text" {
					if rerr := invoice.RenderEmpty(f.Writer, lang); rerr != nil {
						return rerr
					}
					return reportedError{err}
				}
				if err != nil {
					return err
				}
				return f.Emit(invoiceViewOf(inv), func(w io.Writer) error {
					return invoice.Render(w, inv, lang)
				})
			})
		},
	}

	cmd.Flags().StringVar(&method, "method", string(invoice.PaymentPhone), "payment method (online|phone)")
	return cmd
}

// NewPayCommand creates the pay command.
func NewPayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pay",
		Short: "Issue an online-payment invoice and print its checkout URL",
		Long: `Issue an online-payment invoice and print its checkout URL.

Fails with ONLINE_PAYMENT_DISABLED when an administrator turned online
payment off; use "cartledger invoice --method phone" instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withShop(cmd, func(ctx context.Context, s *shop.Shop) error {
				sess, err := rootOpts.session(ctx, s)
				if err != nil {
					return err
				}
				inv, err := s.BuildInvoice(ctx, sess, invoice.PaymentOnline)
				if err != nil {
					return err
				}
				u, err := s.CheckoutURL(ctx, inv)
				if err != nil {
					return err
				}
				data := map[string]any{"ref": inv.Ref, "total": inv.Totals.Total, "checkout_url": u}
				return rootOpts.formatter(cmd).Emit(data, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Order %s, total %s\n%s\n", inv.Ref, inv.Totals.Total, u)
					return err
				})
			})
		},
	}
}

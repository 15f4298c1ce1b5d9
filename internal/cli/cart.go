package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/cartledger/internal/model"
	"github.com/roach88/cartledger/internal/shop"
)

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <product-id> [quantity]",
		Short: "Reserve units of a product into the cart",
		Long: `Reserve units of a product into the cart.

The units leave the shared stock immediately. Adding a product already in
the cart increases its quantity. Quantity defaults to 1.

Exit codes:
  0 - Reserved
  1 - Rejected (insufficient stock, unknown product, invalid quantity, no client)
  2 - Command error

Examples:
  cartledger add 1 3
  cartledger --client bob add 101`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qtyArg := "1"
			if len(args) == 2 {
				qtyArg = args[1]
			}
			qty, err := model.ParseQuantity(qtyArg)
			if err != nil {
				return err
			}

			return rootOpts.withShop(cmd, func(ctx context.Context, s *shop.Shop) error {
				sess, err := rootOpts.session(ctx, s)
				if err != nil {
					return err
				}
				p, err := lookup(s, args[0])
				if err != nil {
					return err
				}
				c, err := s.AddItem(ctx, sess, p.ID, qty)
				if err != nil {
					return err
				}
				available, err := s.Availability(ctx, p.ID)
				if err != nil {
					return err
				}

				data := map[string]any{
					"client":    sess.String(),
					"product":   p.ID,
					"added":     qty,
					"in_cart":   c.Reserved(p.ID),
					"available": available,
				}
				return rootOpts.formatter(cmd).Emit(data, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Added %d x %s (in cart: %d, still available: %d)\n",
						qty, p.Name, c.Reserved(p.ID), available)
					return err
				})
			})
		},
	}
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Drop a product's line from the cart and release its units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withShop(cmd, func(ctx context.Context, s *shop.Shop) error {
				sess, err := rootOpts.session(ctx, s)
				if err != nil {
					return err
				}
				id := model.ProductID(args[0])
				released, err := s.RemoveItem(ctx, sess, id)
				if err != nil {
					return err
				}
				data := map[string]any{"client": sess.String(), "product": id, "released": released}
				return rootOpts.formatter(cmd).Emit(data, func(w io.Writer) error {
					var err error
					if released == 0 {
						_, err = fmt.Fprintf(w, "Product %s is not in the cart.\n", id)
					} else {
						_, err = fmt.Fprintf(w, "Removed %s, released %d unit(s).\n", id, released)
					}
					return err
				})
			})
		},
	}
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart and release every reserved unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withShop(cmd, func(ctx context.Context, s *shop.Shop) error {
				sess, err := rootOpts.session(ctx, s)
				if err != nil {
					return err
				}
				released, err := s.ClearCart(ctx, sess)
				if err != nil {
					return err
				}
				data := map[string]any{"client": sess.String(), "released": released}
				return rootOpts.formatter(cmd).Emit(data, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Cart cleared, released %d unit(s).\n", released)
					return err
				})
			})
		},
	}
}

// NewCartCommand creates the cart command.
func NewCartCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cart",
		Short: "Show the cart with its totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withShop(cmd, func(ctx context.Context, s *shop.Shop) error {
				sess, err := rootOpts.session(ctx, s)
				if err != nil {
					return err
				}
				sum, err := s.Summary(ctx, sess)
				if err != nil {
					return err
				}
				view := cartViewOf(sess.String(), sum)
				return rootOpts.formatter(cmd).Emit(view, func(w io.Writer) error {
					return writeCart(w, view)
				})
			})
		},
	}
}

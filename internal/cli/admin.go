package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cartledger/internal/model"
	"github.com/roach88/cartledger/internal/shop"
)

// NewAdminCommand creates the admin command group.
func NewAdminCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative operations on the shared shop state",
		Long: `Administrative operations on the shared shop state.

reset-stock and set-stock overwrite the ledger without touching carts, so
units still reserved are counted twice afterwards. "cartledger check"
reports the resulting imbalance.`,
	}

	cmd.AddCommand(newResetStockCommand(rootOpts))
	cmd.AddCommand(newSetStockCommand(rootOpts))
	cmd.AddCommand(newOnlinePaymentCommand(rootOpts))
	return cmd
}

func newResetStockCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stock",
		Short: "Re-seed every product's stock from the catalog baseline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withShop(cmd, func(ctx context.Context, s *shop.Shop) error {
				if err := s.Admin().ResetStock(ctx); err != nil {
					return err
				}
				stock, err := s.StockLevels(ctx)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(stock, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Stock reset for %d product(s).\n", len(stock))
					return err
				})
			})
		},
	}
}

func newSetStockCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-stock <product-id> <quantity>",
		Short: "Override one product's available stock",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(strings.TrimSpace(args[1]))
			if err != nil || qty < 0 {
				return model.NewInvalidQuantity("stock must be a non-negative integer, got %q", args[1])
			}
			return rootOpts.withShop(cmd, func(ctx context.Context, s *shop.Shop) error {
				p, err := lookup(s, args[0])
				if err != nil {
					return err
				}
				if err := s.Admin().SetStock(ctx, p.ID, qty); err != nil {
					return err
				}
				data := map[string]any{"product": p.ID, "available": qty}
				return rootOpts.formatter(cmd).Emit(data, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Stock of %s set to %d.\n", p.ID, qty)
					return err
				})
			})
		},
	}
}

func newOnlinePaymentCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "online-payment [on|off]",
		Short:     "Show or toggle online payment",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var enable *bool
			if len(args) == 1 {
				v, err := parseSwitch(args[0])
				if err != nil {
					return NewExitError(ExitCommandError, err.Error())
				}
				enable = &v
			}

			return rootOpts.withShop(cmd, func(ctx context.Context, s *shop.Shop) error {
				if enable != nil {
					if err := s.Admin().SetOnlinePayment(ctx, *enable); err != nil {
						return err
					}
				}
				enabled, err := s.Admin().OnlinePaymentEnabled(ctx)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(map[string]any{"online_payment": enabled}, func(w io.Writer) error {
					state := "disabled"
					if enabled {
						state = "enabled"
					}
					_, err := fmt.Fprintf(w, "Online payment %s.\n", state)
					return err
				})
			})
		},
	}
}

func parseSwitch(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "true", "enable", "enabled", "1":
		return true, nil
	case "off", "false", "disable", "disabled", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", raw)
}

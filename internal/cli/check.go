package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/cartledger/internal/shop"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that stock and carts add up to the catalog baseline",
		Long: `Verify that, for every product, available stock plus the units
reserved in all carts equals the catalog baseline.

Exit codes:
  0 - Balanced
  1 - One or more products are out of balance
  2 - Command error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withShop(cmd, func(ctx context.Context, s *shop.Shop) error {
				violations, err := s.CheckConservation(ctx)
				if err != nil {
					return err
				}
				clients, err := s.Clients(ctx)
				if err != nil {
					return err
				}

				messages := make([]string, len(violations))
				for i, v := range violations {
					messages[i] = v.String()
				}
				data := map[string]any{
					"products":   s.Catalog().Len(),
					"carts":      len(clients),
					"violations": messages,
				}
				if err := rootOpts.formatter(cmd).Emit(data, func(w io.Writer) error {
					for _, m := range messages {
						fmt.Fprintf(w, "✗ %s\n", m)
					}
					if len(messages) == 0 {
						_, err := fmt.Fprintf(w, "✓ %d product(s) balanced across %d cart(s)\n", s.Catalog().Len(), len(clients))
						return err
					}
					return nil
				}); err != nil {
					return err
				}

				if len(violations) > 0 {
					return reportedError{NewExitError(ExitFailure,
						fmt.Sprintf("%d product(s) out of balance", len(violations)))}
				}
				return nil
			})
		},
	}
}

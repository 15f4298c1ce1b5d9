package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/cartledger/internal/session"
	"github.com/roach88/cartledger/internal/shop"
)

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	var logout bool

	cmd := &cobra.Command{
		Use:   "login [client-id]",
		Short: "Bind the client identity used by later commands",
		Long: `Bind the client identity used by later commands.

Without an argument a fresh client code (C-xxxxxxxx) is generated.
With --logout the stored identity is removed; carts are kept.

Examples:
  cartledger login alice
  cartledger login
  cartledger login --logout`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withShop(cmd, func(ctx context.Context, s *shop.Shop) error {
				f := rootOpts.formatter(cmd)
				if logout {
					if err := s.Sessions().Unbind(ctx); err != nil {
						return err
					}
					return f.Emit(map[string]any{"client": nil}, func(w io.Writer) error {
						_, err := fmt.Fprintln(w, "Logged out.")
						return err
					})
				}

				var identity string
				if len(args) == 1 {
					identity = args[0]
				}
				sess, err := bindOrGenerate(ctx, s, identity)
				if err != nil {
					return err
				}
				return f.Emit(map[string]any{"client": sess.String()}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Logged in as %s\n", sess)
					return err
				})
			})
		},
	}

	cmd.Flags().BoolVar(&logout, "logout", false, "forget the stored client identity")
	return cmd
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the acting client identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withShop(cmd, func(ctx context.Context, s *shop.Shop) error {
				sess, err := rootOpts.session(ctx, s)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Emit(map[string]any{"client": sess.String()}, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, sess)
					return err
				})
			})
		},
	}
}

func bindOrGenerate(ctx context.Context, s *shop.Shop, identity string) (session.Session, error) {
	if identity == "" {
		return s.Sessions().Generate(ctx)
	}
	return s.Sessions().Bind(ctx, identity)
}

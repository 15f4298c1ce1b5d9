package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/cartledger/internal/catalog"
	"github.com/roach88/cartledger/internal/config"
	"github.com/roach88/cartledger/internal/invoice"
	"github.com/roach88/cartledger/internal/ledger"
	"github.com/roach88/cartledger/internal/payment"
	"github.com/roach88/cartledger/internal/session"
	"github.com/roach88/cartledger/internal/shop"
	"github.com/roach88/cartledger/internal/telemetry"
)

// RootOptions holds global flags for all commands. Flag defaults come from
// CARTLEDGER_* environment variables.
type RootOptions struct {
	config.Config

	envErr error
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the cartledger CLI.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

func newRootCommand() (*cobra.Command, *RootOptions) {
	cfg, envErr := config.Load()
	opts := &RootOptions{Config: cfg, envErr: envErr}

	cmd := &cobra.Command{
		Use:   "cartledger",
		Short: "cartledger - carts that never oversell",
		Long: `A shopping cart and stock ledger kept consistent in one store.

Every command is one execution context. Several commands pointed at the
same store behave like several open tabs of the same shop: reservations
made by one are visible to the others. Only the sqlite and redis stores
keep that true when commands run at the same time.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.envErr != nil {
				return WrapExitError(ExitCommandError, "invalid environment", opts.envErr)
			}
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if err := opts.Validate(); err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}

			logLevel := slog.LevelWarn
			if opts.Verbose {
				logLevel = slog.LevelDebug
			}
			handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: logLevel,
			})
			opts.logger = slog.New(handler)
			slog.SetDefault(opts.logger)
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.Store, "store", cfg.Store, "storage backend (sqlite|redis|file|memory)")
	pf.StringVar(&opts.DBPath, "db", cfg.DBPath, "sqlite database or JSON file path")
	pf.StringVar(&opts.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address for the redis store")
	pf.StringVar(&opts.Catalog, "catalog", cfg.Catalog, "CUE catalog file (default: built-in catalog)")
	pf.StringVar(&opts.Client, "client", cfg.Client, "act as this client instead of the logged-in one")
	pf.StringVar(&opts.Format, "format", cfg.Format, "output format (json|text)")
	pf.StringVar(&opts.Lang, "lang", cfg.Lang, "invoice language (fr|en)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", cfg.Verbose, "verbose output")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewStockCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewCartCommand(opts))
	cmd.AddCommand(NewInvoiceCommand(opts))
	cmd.AddCommand(NewPayCommand(opts))
	cmd.AddCommand(NewAdminCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))

	return cmd, opts
}

// Execute runs the CLI with args and returns the process exit code.
// Failures are reported on stderr, or on stdout as a JSON error response.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd, opts := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var reported reportedError
	if !errors.As(err, &reported) {
		f := &OutputFormatter{Format: opts.Format, Writer: stderr, Verbose: opts.Verbose}
		if f.Format == "json" {
			f.Writer = stdout
		}
		_ = f.Error(errorCode(err), err.Error(), errorDetails(err))
	}
	return GetExitCode(err)
}

// reportedError marks a failure whose output the command already wrote.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

// formatter returns an OutputFormatter bound to cmd's writers.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func (o *RootOptions) log() *slog.Logger {
	if o.logger == nil {
		return slog.Default()
	}
	return o.logger
}

// openShop opens the configured store and catalog. The returned close
// function flushes telemetry and closes the store.
func (o *RootOptions) openShop(ctx context.Context) (*shop.Shop, func(), error) {
	cat := catalog.Default()
	if o.Catalog != "" {
		var err error
		if cat, err = catalog.Load(o.Catalog); err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
		}
	}

	pricing, err := o.Pricing()
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid pricing", err)
	}
	redirector, err := payment.NewRedirector(o.CheckoutURL, o.Currency)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid checkout URL", err)
	}

	shutdown, err := telemetry.Setup(ctx, o.OTelEndpoint)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to start telemetry", err)
	}

	kv, err := o.OpenStore(ctx)
	if err != nil {
		_ = shutdown(ctx)
		return nil, nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}

	closeAll := func() {
		if err := kv.Close(); err != nil {
			o.log().Error("error closing store", "error", err)
		}
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			o.log().Error("error flushing telemetry", "error", err)
		}
	}

	s, err := shop.Open(ctx, kv, cat,
		shop.WithLogger(o.log()),
		shop.WithInvoiceOptions(invoice.WithPricing(pricing)),
		shop.WithRedirector(redirector),
	)
	if err != nil {
		closeAll()
		return nil, nil, WrapExitError(ExitCommandError, "failed to open shop", err)
	}

	s.Ledger().Subscribe(func(c ledger.Change) {
		o.log().Debug("stock changed", "product", c.ProductID, "available", c.Available)
	})
	return s, closeAll, nil
}

// session resolves the acting client: --client wins over the logged-in one.
func (o *RootOptions) session(ctx context.Context, s *shop.Shop) (session.Session, error) {
	if o.Client != "" {
		return session.For(o.Client)
	}
	return s.Sessions().Require(ctx)
}

// withShop opens the shop, runs fn and closes it.
func (o *RootOptions) withShop(cmd *cobra.Command, fn func(ctx context.Context, s *shop.Shop) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	target := o.StorePath()
	if o.Store == config.BackendRedis {
		target = o.RedisAddr
	}
	o.formatter(cmd).VerboseLog("Opening %s store at %s", o.Store, target)
	s, closeAll, err := o.openShop(ctx)
	if err != nil {
		return err
	}
	defer closeAll()
	return fn(ctx, s)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// Command cartledger keeps shopping carts and a shared stock ledger
// consistent across every process that opens the same store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/cartledger/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

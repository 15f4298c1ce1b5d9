// Package admin is the administrative collaborator: it toggles online
// payment and overrides stock levels. None of it takes part in keeping carts
// and the ledger consistent; ResetStock in particular ignores reservations.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/roach88/cartledger/internal/ledger"
	"github.com/roach88/cartledger/internal/model"
	"github.com/roach88/cartledger/internal/store"
)

// Baseline supplies the stock levels ResetStock restores.
// Implemented by *catalog.Catalog.
type Baseline interface {
	Baseline() model.Stock
}

// Settings reads and writes administrative state.
type Settings struct {
	kv       store.KV
	ledger   *ledger.Ledger
	baseline Baseline
	logger   *slog.Logger
}

// New returns admin settings over kv.
func New(kv store.KV, l *ledger.Ledger, baseline Baseline, logger *slog.Logger) *Settings {
	if logger == nil {
		logger = slog.Default()
	}
	return &Settings{kv: kv, ledger: l, baseline: baseline, logger: logger}
}

// OnlinePaymentEnabled reports the online payment flag. An absent or
// unreadable flag means enabled.
func (s *Settings) OnlinePaymentEnabled(ctx context.Context) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, store.KeyOnlinePayment)
	if err != nil {
		return false, fmt.Errorf("read online payment flag: %w", err)
	}
	if !ok {
		return true, nil
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		s.logger.Warn("unreadable online payment flag, treating as enabled", "value", raw)
		return true, nil
	}
	return enabled, nil
}

// SetOnlinePayment persists the online payment flag.
func (s *Settings) SetOnlinePayment(ctx context.Context, enabled bool) error {
	err := s.kv.Update(ctx, func(tx store.Txn) error {
		tx.Set(store.KeyOnlinePayment, strconv.FormatBool(enabled))
		return nil
	})
	if err != nil {
		return fmt.Errorf("set online payment flag: %w", err)
	}
	s.logger.Info("online payment toggled", "enabled", enabled)
	return nil
}

// ResetStock re-seeds the ledger from the catalog baseline. Units held in
// carts are not returned first, so those products end up over-counted until
// the carts are cleared.
func (s *Settings) ResetStock(ctx context.Context) error {
	return s.ledger.Reseed(ctx, s.baseline.Baseline())
}

// SetStock overrides one product's available quantity.
func (s *Settings) SetStock(ctx context.Context, id model.ProductID, qty int) error {
	return s.ledger.Set(ctx, id, qty)
}

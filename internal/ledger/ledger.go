// Package ledger maintains the shared stock ledger: for each product, the
// number of units still available to reserve.
//
// The ledger is persisted under a single key and is the only authority on
// availability. Carts never hold their own counts of stock; they reserve from
// and release to the ledger, inside the same store unit of work as their own
// write (see ReserveIn and ReleaseIn).
//
// Invariants:
//   - no quantity is ever negative
//   - once initialized, the ledger is only re-seeded by Reseed
//   - every committed change is published to subscribed hooks, after commit
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/cartledger/internal/model"
	"github.com/roach88/cartledger/internal/store"
)

// Change is one product's new availability after a committed mutation.
type Change struct {
	ProductID model.ProductID
	Available int
}

// Hook is called after a mutation commits, once per changed product.
// Hooks run synchronously on the mutating goroutine and must not call back
// into the ledger's mutating methods.
type Hook func(Change)

// Ledger reads and mutates the persisted stock mapping.
type Ledger struct {
	kv     store.KV
	logger *slog.Logger

	mu     sync.RWMutex
	hooks  map[int]Hook
	nextID int
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New returns a ledger over kv.
func New(kv store.KV, opts ...Option) *Ledger {
	l := &Ledger{kv: kv, logger: slog.Default(), hooks: make(map[int]Hook)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Initialize seeds the ledger from baseline only if no ledger is persisted
// yet (absent or empty). It reports whether it seeded. Calling it on every
// start is safe: an existing ledger, however depleted, is left alone.
func (l *Ledger) Initialize(ctx context.Context, baseline model.Stock) (bool, error) {
	if err := validateBaseline(baseline); err != nil {
		return false, err
	}

	seeded := false
	err := l.kv.Update(ctx, func(tx store.Txn) error {
		seeded = false
		current, err := Load(ctx, tx)
		if err != nil {
			return err
		}
		if len(current) > 0 {
			return nil
		}
		if err := save(tx, baseline); err != nil {
			return err
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("initialize stock: %w", err)
	}

	if seeded {
		l.logger.Info("stock ledger seeded", "products", len(baseline))
		l.Publish(changesOf(baseline)...)
	} else {
		l.logger.Debug("stock ledger already initialized")
	}
	return seeded, nil
}

// Available returns the units of id still available. Unknown products have 0.
func (l *Ledger) Available(ctx context.Context, id model.ProductID) (int, error) {
	s, err := Load(ctx, l.kv)
	if err != nil {
		return 0, err
	}
	return s[id], nil
}

// Snapshot returns a copy of the whole ledger.
func (l *Ledger) Snapshot(ctx context.Context) (model.Stock, error) {
	return Load(ctx, l.kv)
}

// Reserve takes qty units of id out of the ledger.
func (l *Ledger) Reserve(ctx context.Context, id model.ProductID, qty int) error {
	var change Change
	err := l.kv.Update(ctx, func(tx store.Txn) error {
		var err error
		change, err = ReserveIn(ctx, tx, id, qty)
		return err
	})
	if err != nil {
		return err
	}
	l.logger.Debug("stock reserved", "product", id, "qty", qty, "available", change.Available)
	l.Publish(change)
	return nil
}

// Release returns qty units of id to the ledger. Releasing more than was
// reserved is accepted: the ledger does not know what carts hold.
func (l *Ledger) Release(ctx context.Context, id model.ProductID, qty int) error {
	var change Change
	err := l.kv.Update(ctx, func(tx store.Txn) error {
		var err error
		change, err = ReleaseIn(ctx, tx, id, qty)
		return err
	})
	if err != nil {
		return err
	}
	l.logger.Debug("stock released", "product", id, "qty", qty, "available", change.Available)
	l.Publish(change)
	return nil
}

// ReserveIn applies a reservation inside the caller's unit of work. The
// caller publishes the returned change once its unit of work has committed.
func ReserveIn(ctx context.Context, tx store.Txn, id model.ProductID, qty int) (Change, error) {
	if qty <= 0 {
		return Change{}, model.NewInvalidQuantity("reserve quantity must be positive, got %d", qty)
	}
	s, err := Load(ctx, tx)
	if err != nil {
		return Change{}, err
	}
	available := s[id]
	if qty > available {
		return Change{}, model.NewInsufficientStock(id, qty, available)
	}
	s[id] = available - qty
	if err := save(tx, s); err != nil {
		return Change{}, err
	}
	return Change{ProductID: id, Available: s[id]}, nil
}

// ReleaseIn applies a release inside the caller's unit of work. A zero
// quantity is a no-op that still reports the current level.
func ReleaseIn(ctx context.Context, tx store.Txn, id model.ProductID, qty int) (Change, error) {
	if qty < 0 {
		return Change{}, model.NewInvalidQuantity("release quantity cannot be negative, got %d", qty)
	}
	s, err := Load(ctx, tx)
	if err != nil {
		return Change{}, err
	}
	if qty == 0 {
		return Change{ProductID: id, Available: s[id]}, nil
	}
	s[id] += qty
	if err := save(tx, s); err != nil {
		return Change{}, err
	}
	return Change{ProductID: id, Available: s[id]}, nil
}

// Reseed overwrites the whole ledger with baseline. Reservations held in
// carts are not returned, so the conservation invariant no longer holds for
// any product a cart still reserves.
func (l *Ledger) Reseed(ctx context.Context, baseline model.Stock) error {
	if err := validateBaseline(baseline); err != nil {
		return err
	}
	err := l.kv.Update(ctx, func(tx store.Txn) error {
		return save(tx, baseline)
	})
	if err != nil {
		return fmt.Errorf("reseed stock: %w", err)
	}
	l.logger.Warn("stock ledger re-seeded from baseline", "products", len(baseline))
	l.Publish(changesOf(baseline)...)
	return nil
}

// Set overwrites the availability of a single product.
func (l *Ledger) Set(ctx context.Context, id model.ProductID, qty int) error {
	if qty < 0 {
		return model.NewInvalidQuantity("stock cannot be negative, got %d", qty)
	}
	err := l.kv.Update(ctx, func(tx store.Txn) error {
		s, err := Load(ctx, tx)
		if err != nil {
			return err
		}
		s[id] = qty
		return save(tx, s)
	})
	if err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	l.logger.Info("stock overridden", "product", id, "available", qty)
	l.Publish(Change{ProductID: id, Available: qty})
	return nil
}

// Subscribe registers hook and returns a function that removes it.
func (l *Ledger) Subscribe(hook Hook) (unsubscribe func()) {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.hooks[id] = hook
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.hooks, id)
		l.mu.Unlock()
	}
}

// Publish notifies every hook of committed changes, in subscription order.
func (l *Ledger) Publish(changes ...Change) {
	if len(changes) == 0 {
		return
	}
	l.mu.RLock()
	ids := make([]int, 0, len(l.hooks))
	for id := range l.hooks {
		ids = append(ids, id)
	}
	hooks := make([]Hook, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		hooks = append(hooks, l.hooks[id])
	}
	l.mu.RUnlock()

	for _, c := range changes {
		for _, h := range hooks {
			h(c)
		}
	}
}

// Load reads the persisted ledger through r. An absent ledger is empty.
func Load(ctx context.Context, r store.Reader) (model.Stock, error) {
	raw, ok, err := r.Get(ctx, store.KeyStock)
	if err != nil {
		return nil, fmt.Errorf("read stock: %w", err)
	}
	if !ok {
		return model.Stock{}, nil
	}
	return model.UnmarshalStock(raw)
}

func save(tx store.Txn, s model.Stock) error {
	raw, err := model.MarshalStock(s)
	if err != nil {
		return err
	}
	tx.Set(store.KeyStock, raw)
	return nil
}

func validateBaseline(baseline model.Stock) error {
	for _, id := range baseline.IDs() {
		if baseline[id] < 0 {
			return model.NewInvalidQuantity("baseline stock for %s cannot be negative, got %d", id, baseline[id])
		}
	}
	return nil
}

func changesOf(s model.Stock) []Change {
	out := make([]Change, 0, len(s))
	for _, id := range s.IDs() {
		out = append(out, Change{ProductID: id, Available: s[id]})
	}
	return out
}

// Package cart keeps each client's reserved line items.
//
// Every mutation moves units between a cart and the stock ledger inside one
// store unit of work, so for every product
//
//	available + Σ carts reserved == baseline
//
// holds after each committed call, whichever call fails.
package cart

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/cartledger/internal/ledger"
	"github.com/roach88/cartledger/internal/model"
	"github.com/roach88/cartledger/internal/session"
	"github.com/roach88/cartledger/internal/store"
)

// Products resolves catalog entries. Implemented by *catalog.Catalog.
type Products interface {
	Lookup(id model.ProductID) (model.Product, bool)
}

// Store reads and mutates persisted carts.
type Store struct {
	kv       store.KV
	ledger   *ledger.Ledger
	products Products
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New returns a cart store. l must share kv so reservations commit together
// with cart writes.
func New(kv store.KV, l *ledger.Ledger, products Products, opts ...Option) *Store {
	s := &Store{kv: kv, ledger: l, products: products, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the session's cart, or an empty cart if none is persisted.
func (s *Store) Load(ctx context.Context, sess session.Session) (model.Cart, error) {
	client, err := sess.Client()
	if err != nil {
		return model.Cart{}, err
	}
	return s.read(ctx, s.kv, client)
}

// AddItem reserves qty units of id and records them in the session's cart.
// A new line snapshots the product's current name and price; an existing
// line keeps its snapshot and gains qty.
func (s *Store) AddItem(ctx context.Context, sess session.Session, id model.ProductID, qty int) (model.Cart, error) {
	client, err := sess.Client()
	if err != nil {
		return model.Cart{}, err
	}
	if qty <= 0 {
		return model.Cart{}, model.NewInvalidQuantity("quantity must be positive, got %d", qty)
	}
	p, ok := s.products.Lookup(id)
	if !ok {
		return model.Cart{}, model.NewUnknownProduct(id)
	}
	item, err := model.NewLineItem(p, qty)
	if err != nil {
		return model.Cart{}, err
	}

	var (
		updated model.Cart
		change  ledger.Change
	)
	err = s.kv.Update(ctx, func(tx store.Txn) error {
		var err error
		change, err = ledger.ReserveIn(ctx, tx, id, qty)
		if err != nil {
			return err
		}
		c, err := s.read(ctx, tx, client)
		if err != nil {
			return err
		}
		updated = c.WithAdded(item)
		return write(tx, updated)
	})
	if err != nil {
		s.logger.Debug("add to cart rejected", "client", client, "product", id, "qty", qty, "error", err)
		return model.Cart{}, err
	}

	s.logger.Info("added to cart", "client", client, "product", id, "qty", qty, "available", change.Available)
	s.ledger.Publish(change)
	return updated, nil
}

// RemoveItem drops the whole line for id and releases its quantity. It
// returns the released quantity, 0 if the cart had no such line.
func (s *Store) RemoveItem(ctx context.Context, sess session.Session, id model.ProductID) (int, error) {
	client, err := sess.Client()
	if err != nil {
		return 0, err
	}

	var (
		released int
		change   ledger.Change
	)
	err = s.kv.Update(ctx, func(tx store.Txn) error {
		released = 0
		c, err := s.read(ctx, tx, client)
		if err != nil {
			return err
		}
		line, ok := c.Line(id)
		if !ok {
			return nil
		}
		change, err = ledger.ReleaseIn(ctx, tx, id, line.Quantity)
		if err != nil {
			return err
		}
		released = line.Quantity
		return write(tx, c.Without(id))
	})
	if err != nil {
		return 0, err
	}
	if released > 0 {
		s.logger.Info("removed from cart", "client", client, "product", id, "released", released)
		s.ledger.Publish(change)
	}
	return released, nil
}

// Clear releases every line and deletes the cart. Each line is released and
// dropped in its own unit of work, so an interrupted Clear leaves a
// consistent, smaller cart and can simply be called again. Clearing an
// absent cart is a no-op. It returns the total quantity released.
func (s *Store) Clear(ctx context.Context, sess session.Session) (int, error) {
	client, err := sess.Client()
	if err != nil {
		return 0, err
	}

	total := 0
	for {
		var (
			done   bool
			qty    int
			change ledger.Change
		)
		err := s.kv.Update(ctx, func(tx store.Txn) error {
			done, qty = false, 0
			c, err := s.read(ctx, tx, client)
			if err != nil {
				return err
			}
			if c.IsEmpty() {
				if _, ok, err := tx.Get(ctx, store.CartKey(string(client))); err != nil {
					return err
				} else if ok {
					tx.Delete(store.CartKey(string(client)))
				}
				done = true
				return nil
			}
			line := c.Lines[0]
			change, err = ledger.ReleaseIn(ctx, tx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			qty = line.Quantity
			return write(tx, c.Without(line.ProductID))
		})
		if err != nil {
			return total, fmt.Errorf("clear cart: %w", err)
		}
		if done {
			break
		}
		total += qty
		s.ledger.Publish(change)
	}

	if total > 0 {
		s.logger.Info("cart cleared", "client", client, "released", total)
	}
	return total, nil
}

// Clients returns every client with a persisted cart, sorted.
func (s *Store) Clients(ctx context.Context) ([]model.ClientID, error) {
	keys, err := s.kv.Keys(ctx, store.CartKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list carts: %w", err)
	}
	out := make([]model.ClientID, 0, len(keys))
	for _, k := range keys {
		out = append(out, model.ClientID(strings.TrimPrefix(k, store.CartKeyPrefix)))
	}
	return out, nil
}

// Reserved sums, per product, what every persisted cart holds.
func (s *Store) Reserved(ctx context.Context) (model.Stock, error) {
	clients, err := s.Clients(ctx)
	if err != nil {
		return nil, err
	}
	out := model.Stock{}
	for _, client := range clients {
		c, err := s.read(ctx, s.kv, client)
		if err != nil {
			return nil, err
		}
		for _, l := range c.Lines {
			out[l.ProductID] += l.Quantity
		}
	}
	return out, nil
}

// read loads client's cart through r. Undecodable data is logged and read
// as an empty cart.
func (s *Store) read(ctx context.Context, r store.Reader, client model.ClientID) (model.Cart, error) {
	raw, ok, err := r.Get(ctx, store.CartKey(string(client)))
	if err != nil {
		return model.Cart{}, fmt.Errorf("read cart: %w", err)
	}
	c := model.Cart{ClientID: client}
	if !ok {
		return c, nil
	}
	lines, err := model.UnmarshalLines(raw)
	if err != nil {
		s.logger.Warn("discarding undecodable cart", "client", client, "error", err)
		return c, nil
	}
	c.Lines = lines
	return c, nil
}

// write persists c, or deletes its key once it has no lines.
func write(tx store.Txn, c model.Cart) error {
	key := store.CartKey(string(c.ClientID))
	if c.IsEmpty() {
		tx.Delete(key)
		return nil
	}
	raw, err := model.MarshalLines(c.Lines)
	if err != nil {
		return err
	}
	tx.Set(key, raw)
	return nil
}

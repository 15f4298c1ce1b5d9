// Package session resolves which client is acting.
//
// The acting client is persisted under one key so that every execution
// context sharing a store sees the same login. Operations never read that
// key themselves: callers resolve a Session once and pass it explicitly to
// every cart and invoice call.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/cartledger/internal/ids"
	"github.com/roach88/cartledger/internal/model"
	"github.com/roach88/cartledger/internal/store"
)

// ClientCodePrefix prefixes engine-generated client codes.
const ClientCodePrefix = "C-"

// Session carries the acting client identity. The zero Session is unbound.
type Session struct {
	client model.ClientID
}

// For builds a session for raw, validating it as a client id.
func For(raw string) (Session, error) {
	id, err := model.NewClientID(raw)
	if err != nil {
		return Session{}, err
	}
	return Session{client: id}, nil
}

// Client returns the bound client id, or MissingClientIdentity.
func (s Session) Client() (model.ClientID, error) {
	if s.client == "" {
		return "", model.NewMissingClientIdentity()
	}
	return s.client, nil
}

// Bound reports whether a client identity is present.
func (s Session) Bound() bool {
	return s.client != ""
}

func (s Session) String() string {
	if s.client == "" {
		return "<anonymous>"
	}
	return string(s.client)
}

// Binder reads and persists the current client identity.
type Binder struct {
	kv     store.KV
	gen    ids.Generator
	logger *slog.Logger
}

// Option configures a Binder.
type Option func(*Binder)

// WithGenerator overrides the UUIDv7 source of generated client codes.
func WithGenerator(gen ids.Generator) Option {
	return func(b *Binder) { b.gen = gen }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Binder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBinder returns a binder over kv.
func NewBinder(kv store.KV, opts ...Option) *Binder {
	b := &Binder{kv: kv, gen: ids.UUIDv7Generator{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Current returns the persisted session, or the zero Session when nobody is
// logged in. A persisted identity that no longer validates is treated as
// absent.
func (b *Binder) Current(ctx context.Context) (Session, error) {
	raw, ok, err := b.kv.Get(ctx, store.KeyCurrentClient)
	if err != nil {
		return Session{}, fmt.Errorf("read current client: %w", err)
	}
	if !ok {
		return Session{}, nil
	}
	s, err := For(raw)
	if err != nil {
		b.logger.Warn("ignoring invalid persisted client identity", "value", raw)
		return Session{}, nil
	}
	return s, nil
}

// Require is Current, failing with MissingClientIdentity when unbound.
func (b *Binder) Require(ctx context.Context) (Session, error) {
	s, err := b.Current(ctx)
	if err != nil {
		return Session{}, err
	}
	if !s.Bound() {
		return Session{}, model.NewMissingClientIdentity()
	}
	return s, nil
}

// Bind validates identity and persists it as the current client.
func (b *Binder) Bind(ctx context.Context, identity string) (Session, error) {
	s, err := For(identity)
	if err != nil {
		return Session{}, err
	}
	err = b.kv.Update(ctx, func(tx store.Txn) error {
		tx.Set(store.KeyCurrentClient, string(s.client))
		return nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("bind client: %w", err)
	}
	b.logger.Info("client bound", "client", s.client)
	return s, nil
}

// Generate binds a fresh engine-generated client code.
func (b *Binder) Generate(ctx context.Context) (Session, error) {
	return b.Bind(ctx, ClientCodePrefix+ids.Tail(b.gen.Generate(), 8))
}

// Unbind forgets the current client. Carts are kept.
func (b *Binder) Unbind(ctx context.Context) error {
	err := b.kv.Update(ctx, func(tx store.Txn) error {
		tx.Delete(store.KeyCurrentClient)
		return nil
	})
	if err != nil {
		return fmt.Errorf("unbind client: %w", err)
	}
	return nil
}

package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartledger/internal/catalog"
	"github.com/roach88/cartledger/internal/ledger"
	"github.com/roach88/cartledger/internal/model"
	"github.com/roach88/cartledger/internal/store"
)

func newSettings(t *testing.T) (*Settings, *ledger.Ledger, *store.Memory) {
	t.Helper()
	kv := store.NewMemory()
	l := ledger.New(kv)
	c := catalog.Default()
	_, err := l.Initialize(context.Background(), c.Baseline())
	require.NoError(t, err)
	return New(kv, l, c, nil), l, kv
}

func TestOnlinePayment_DefaultsToEnabled(t *testing.T) {
	s, _, _ := newSettings(t)
	enabled, err := s.OnlinePaymentEnabled(context.Background())
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestOnlinePayment_Toggle(t *testing.T) {
	ctx := context.Background()
	s, _, kv := newSettings(t)

	require.NoError(t, s.SetOnlinePayment(ctx, false))
	assert.Equal(t, "false", kv.Dump()[store.KeyOnlinePayment])

	enabled, err := s.OnlinePaymentEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, s.SetOnlinePayment(ctx, true))
	enabled, _ = s.OnlinePaymentEnabled(ctx)
	assert.True(t, enabled)
}

func TestOnlinePayment_UnreadableFlagIsEnabled(t *testing.T) {
	ctx := context.Background()
	s, _, kv := newSettings(t)
	require.NoError(t, kv.Update(ctx, func(tx store.Txn) error {
		tx.Set(store.KeyOnlinePayment, "maybe")
		return nil
	}))

	enabled, err := s.OnlinePaymentEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestResetStock(t *testing.T) {
	ctx := context.Background()
	s, l, _ := newSettings(t)

	require.NoError(t, l.Reserve(ctx, "1", 7))
	require.NoError(t, s.SetStock(ctx, "2", 0))

	require.NoError(t, s.ResetStock(ctx))
	snap, err := l.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, catalog.Default().Baseline(), snap)
}

func TestSetStock(t *testing.T) {
	ctx := context.Background()
	s, l, _ := newSettings(t)

	require.NoError(t, s.SetStock(ctx, "103", 3))
	n, _ := l.Available(ctx, "103")
	assert.Equal(t, 3, n)

	assert.True(t, errors.Is(s.SetStock(ctx, "103", -1), model.ErrInvalidQuantity))
}

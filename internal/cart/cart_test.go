package cart

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartledger/internal/catalog"
	"github.com/roach88/cartledger/internal/ledger"
	"github.com/roach88/cartledger/internal/model"
	"github.com/roach88/cartledger/internal/session"
	"github.com/roach88/cartledger/internal/store"
)

type fixture struct {
	kv       *store.Memory
	ledger   *ledger.Ledger
	carts    *Store
	baseline model.Stock
}

func newFixture(t *testing.T, products Products, baseline model.Stock) *fixture {
	t.Helper()
	kv := store.NewMemory()
	l := ledger.New(kv)
	_, err := l.Initialize(context.Background(), baseline)
	require.NoError(t, err)
	return &fixture{kv: kv, ledger: l, carts: New(kv, l, products), baseline: baseline}
}

func newDefaultFixture(t *testing.T) *fixture {
	c := catalog.Default()
	return newFixture(t, c, c.Baseline())
}

func mustSession(t *testing.T, client string) session.Session {
	t.Helper()
	s, err := session.For(client)
	require.NoError(t, err)
	return s
}

func (f *fixture) available(t *testing.T, id model.ProductID) int {
	t.Helper()
	n, err := f.ledger.Available(context.Background(), id)
	require.NoError(t, err)
	return n
}

// assertConserved checks available + reserved == baseline for every product.
func (f *fixture) assertConserved(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	stock, err := f.ledger.Snapshot(ctx)
	require.NoError(t, err)
	reserved, err := f.carts.Reserved(ctx)
	require.NoError(t, err)
	for id, base := range f.baseline {
		assert.GreaterOrEqual(t, stock[id], 0, "product %s negative", id)
		assert.Equal(t, base, stock[id]+reserved[id], "conservation broken for product %s", id)
	}
}

func TestAddItem(t *testing.T) {
	ctx := context.Background()
	f := newDefaultFixture(t)
	alice := mustSession(t, "alice")

	c, err := f.carts.AddItem(ctx, alice, "1", 4)
	require.NoError(t, err)
	assert.Equal(t, []model.LineItem{{ProductID: "1", Name: "Pommes (1 kg)", UnitPrice: 250, Quantity: 4}}, c.Lines)
	assert.Equal(t, 6, f.available(t, "1"))

	c, err = f.carts.AddItem(ctx, alice, "1", 2)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1, "repeated reservation merges into one line")
	assert.Equal(t, 6, c.Lines[0].Quantity)
	assert.Equal(t, 4, f.available(t, "1"))

	loaded, err := f.carts.Load(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, c, loaded)
	f.assertConserved(t)
}

func TestAddItem_Rejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		sess    session.Session
		id      model.ProductID
		qty     int
		wantErr error
	}{
		{"no client", session.Session{}, "1", 1, model.ErrMissingClientIdentity},
		{"zero qty", mustSession(t, "alice"), "1", 0, model.ErrInvalidQuantity},
		{"negative qty", mustSession(t, "alice"), "1", -2, model.ErrInvalidQuantity},
		{"unknown product", mustSession(t, "alice"), "999", 1, model.ErrUnknownProduct},
		{"oversell", mustSession(t, "alice"), "1", 11, model.ErrInsufficientStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDefaultFixture(t)
			before := f.kv.Dump()

			_, err := f.carts.AddItem(ctx, tt.sess, tt.id, tt.qty)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Equal(t, before, f.kv.Dump(), "rejected add must leave the store untouched")
		})
	}
}

func TestAddItem_OversellAfterPartialReservation(t *testing.T) {
	ctx := context.Background()
	f := newDefaultFixture(t)
	alice := mustSession(t, "alice")

	_, err := f.carts.AddItem(ctx, alice, "3", 10)
	require.NoError(t, err)

	_, err = f.carts.AddItem(ctx, alice, "3", 3)
	require.True(t, errors.Is(err, model.ErrInsufficientStock))

	c, _ := f.carts.Load(ctx, alice)
	assert.Equal(t, 10, c.Reserved("3"))
	assert.Equal(t, 2, f.available(t, "3"))
}

type mutableProducts map[model.ProductID]model.Product

func (m mutableProducts) Lookup(id model.ProductID) (model.Product, bool) {
	p, ok := m[id]
	return p, ok
}

func TestAddItem_KeepsOriginalSnapshot(t *testing.T) {
	ctx := context.Background()
	p, err := model.NewProduct("1", "Pommes", 250, 10)
	require.NoError(t, err)
	products := mutableProducts{"1": p}
	f := newFixture(t, products, model.Stock{"1": 10})
	alice := mustSession(t, "alice")

	_, err = f.carts.AddItem(ctx, alice, "1", 1)
	require.NoError(t, err)

	p.Name, p.UnitPrice = "Pommes bio", 400
	products["1"] = p

	c, err := f.carts.AddItem(ctx, alice, "1", 1)
	require.NoError(t, err)
	assert.Equal(t, model.LineItem{ProductID: "1", Name: "Pommes", UnitPrice: 250, Quantity: 2}, c.Lines[0])
}

func TestCartsAreIsolated(t *testing.T) {
	ctx := context.Background()
	f := newDefaultFixture(t)
	alice, bob := mustSession(t, "alice"), mustSession(t, "bob")

	_, err := f.carts.AddItem(ctx, alice, "1", 3)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, bob, "2", 5)
	require.NoError(t, err)

	_, err = f.carts.Clear(ctx, alice)
	require.NoError(t, err)

	c, err := f.carts.Load(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Reserved("2"))
	assert.Equal(t, 0, c.Reserved("1"))

	clients, err := f.carts.Clients(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.ClientID{"bob"}, clients)
	f.assertConserved(t)
}

func TestRemoveItem(t *testing.T) {
	ctx := context.Background()
	f := newDefaultFixture(t)
	alice := mustSession(t, "alice")

	_, err := f.carts.AddItem(ctx, alice, "1", 4)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, alice, "2", 2)
	require.NoError(t, err)

	released, err := f.carts.RemoveItem(ctx, alice, "1")
	require.NoError(t, err)
	assert.Equal(t, 4, released, "remove drops the whole line")
	assert.Equal(t, 10, f.available(t, "1"))

	released, err = f.carts.RemoveItem(ctx, alice, "1")
	require.NoError(t, err)
	assert.Equal(t, 0, released, "removing an absent line is a no-op")

	c, _ := f.carts.Load(ctx, alice)
	assert.Equal(t, []model.ProductID{"2"}, lineIDs(c))
	f.assertConserved(t)
}

func TestRemoveItem_LastLineDeletesCart(t *testing.T) {
	ctx := context.Background()
	f := newDefaultFixture(t)
	alice := mustSession(t, "alice")

	_, err := f.carts.AddItem(ctx, alice, "1", 1)
	require.NoError(t, err)
	_, err = f.carts.RemoveItem(ctx, alice, "1")
	require.NoError(t, err)

	_, ok := f.kv.Dump()[store.CartKey("alice")]
	assert.False(t, ok)
}

func TestReleaseRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newDefaultFixture(t)
	alice := mustSession(t, "alice")

	before := f.kv.Dump()
	_, err := f.carts.AddItem(ctx, alice, "101", 7)
	require.NoError(t, err)
	_, err = f.carts.RemoveItem(ctx, alice, "101")
	require.NoError(t, err)

	assert.Equal(t, before, f.kv.Dump())
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	f := newDefaultFixture(t)
	alice := mustSession(t, "alice")

	_, err := f.carts.AddItem(ctx, alice, "1", 2)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, alice, "102", 5)
	require.NoError(t, err)

	released, err := f.carts.Clear(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 7, released)
	assert.Equal(t, 10, f.available(t, "1"))
	assert.Equal(t, 20, f.available(t, "102"))

	before, err := f.ledger.Snapshot(ctx)
	require.NoError(t, err)
	persisted := f.kv.Dump()

	released, err = f.carts.Clear(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 0, released, "second clear is a no-op")

	after, err := f.ledger.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after, "second clear must not touch the ledger")
	assert.Equal(t, persisted, f.kv.Dump())

	_, ok := f.kv.Dump()[store.CartKey("alice")]
	assert.False(t, ok)
}

func TestClear_MissingClient(t *testing.T) {
	f := newDefaultFixture(t)
	_, err := f.carts.Clear(context.Background(), session.Session{})
	assert.True(t, errors.Is(err, model.ErrMissingClientIdentity))
}

// failingKV fails every Update after the first n succeed.
type failingKV struct {
	store.KV
	remaining int
}

var errInjected = errors.New("injected failure")

func (f *failingKV) Update(ctx context.Context, fn func(tx store.Txn) error) error {
	if f.remaining <= 0 {
		return errInjected
	}
	f.remaining--
	return f.KV.Update(ctx, fn)
}

func TestClear_ResumesAfterInterruption(t *testing.T) {
	ctx := context.Background()
	f := newDefaultFixture(t)
	alice := mustSession(t, "alice")

	for _, id := range []model.ProductID{"1", "2", "3"} {
		_, err := f.carts.AddItem(ctx, alice, id, 2)
		require.NoError(t, err)
	}

	flaky := &failingKV{KV: f.kv, remaining: 1}
	interrupted := New(flaky, ledger.New(flaky), catalog.Default())

	released, err := interrupted.Clear(ctx, alice)
	require.ErrorIs(t, err, errInjected)
	assert.Equal(t, 2, released)
	f.assertConserved(t)

	c, _ := f.carts.Load(ctx, alice)
	assert.Equal(t, 2, len(c.Lines), "one line released before the interruption")

	released, err = f.carts.Clear(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 4, released)
	f.assertConserved(t)
}

func TestUndecodableCartReadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	f := newDefaultFixture(t)
	require.NoError(t, f.kv.Update(ctx, func(tx store.Txn) error {
		tx.Set(store.CartKey("alice"), "not json")
		return nil
	}))

	c, err := f.carts.Load(ctx, mustSession(t, "alice"))
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestConservationUnderRandomOperations(t *testing.T) {
	ctx := context.Background()
	f := newDefaultFixture(t)
	rng := rand.New(rand.NewSource(42))

	clients := []session.Session{mustSession(t, "alice"), mustSession(t, "bob"), mustSession(t, "C-0000beef")}
	products := []model.ProductID{"1", "2", "3", "101", "102", "103"}

	for i := 0; i < 500; i++ {
		sess := clients[rng.Intn(len(clients))]
		id := products[rng.Intn(len(products))]
		switch rng.Intn(5) {
		case 0, 1, 2:
			_, err := f.carts.AddItem(ctx, sess, id, 1+rng.Intn(6))
			if err != nil {
				require.True(t, errors.Is(err, model.ErrInsufficientStock), "step %d: %v", i, err)
			}
		case 3:
			_, err := f.carts.RemoveItem(ctx, sess, id)
			require.NoError(t, err)
		case 4:
			_, err := f.carts.Clear(ctx, sess)
			require.NoError(t, err)
		}
		f.assertConserved(t)
	}
}

func TestPublishesCommittedChanges(t *testing.T) {
	ctx := context.Background()
	f := newDefaultFixture(t)
	alice := mustSession(t, "alice")

	var got []ledger.Change
	f.ledger.Subscribe(func(c ledger.Change) { got = append(got, c) })

	_, err := f.carts.AddItem(ctx, alice, "1", 3)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, alice, "1", 50)
	require.Error(t, err)
	_, err = f.carts.Clear(ctx, alice)
	require.NoError(t, err)

	assert.Equal(t, []ledger.Change{
		{ProductID: "1", Available: 7},
		{ProductID: "1", Available: 10},
	}, got)
}

func lineIDs(c model.Cart) []model.ProductID {
	var out []model.ProductID
	for _, l := range c.Lines {
		out = append(out, l.ProductID)
	}
	return out
}

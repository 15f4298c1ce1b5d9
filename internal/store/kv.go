package store

import (
	"context"
	"sort"
	"strings"
)

// Well-known keys.
const (
	KeyStock         = "stock"
	KeyCurrentClient = "clientCode_current"
	KeyOnlinePayment = "onlinePayment"
	CartKeyPrefix    = "cart_"
)

// CartKey returns the key under which client's cart is persisted.
func CartKey(client string) string {
	return CartKeyPrefix + client
}

// Isolation describes what a backend guarantees across processes.
type Isolation int

const (
	// IsolationProcess: atomic within one process only.
	IsolationProcess Isolation = iota
	// IsolationOptimistic: compare-and-swap across processes with retry.
	IsolationOptimistic
	// IsolationSerializable: units of work are serialized across processes.
	IsolationSerializable
)

func (i Isolation) String() string {
	switch i {
	case IsolationSerializable:
		return "serializable"
	case IsolationOptimistic:
		return "optimistic"
	default:
		return "process"
	}
}

// CrossProcessSafe reports whether concurrent processes can share the store
// without lost updates.
func (i Isolation) CrossProcessSafe() bool {
	return i != IsolationProcess
}

// Reader reads committed (or, inside a Txn, staged) values.
type Reader interface {
	// Get returns the value under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Keys returns every key starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Txn is the view handed to an Update function. Writes are buffered and
// become visible to later reads in the same Txn; they reach the store only
// if the function returns nil.
type Txn interface {
	Reader
	Set(key, value string)
	Delete(key string)
}

// KV is a durable string-keyed store.
type KV interface {
	Reader

	// Update runs fn as one unit of work. If fn returns an error nothing it
	// wrote is applied and the error is returned unchanged.
	Update(ctx context.Context, fn func(tx Txn) error) error

	// Isolation reports the cross-process guarantee of this backend.
	Isolation() Isolation

	Close() error
}

// staged buffers the writes of one unit of work over a base reader.
// A nil entry in writes marks a deletion.
type staged struct {
	base   Reader
	writes map[string]*string
	order  []string
}

func newStaged(base Reader) *staged {
	return &staged{base: base, writes: make(map[string]*string)}
}

func (s *staged) Get(ctx context.Context, key string) (string, bool, error) {
	if v, ok := s.writes[key]; ok {
		if v == nil {
			return "", false, nil
		}
		return *v, true, nil
	}
	return s.base.Get(ctx, key)
}

func (s *staged) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.base.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	for k, v := range s.writes {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		set[k] = v != nil
	}
	out := make([]string, 0, len(set))
	for k, present := range set {
		if present {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *staged) Set(key, value string) {
	s.record(key)
	s.writes[key] = &value
}

func (s *staged) Delete(key string) {
	s.record(key)
	s.writes[key] = nil
}

func (s *staged) record(key string) {
	if _, seen := s.writes[key]; !seen {
		s.order = append(s.order, key)
	}
}

// each visits staged writes in first-write order.
func (s *staged) each(fn func(key string, value *string) error) error {
	for _, k := range s.order {
		if err := fn(k, s.writes[k]); err != nil {
			return err
		}
	}
	return nil
}

func (s *staged) empty() bool {
	return len(s.order) == 0
}

// filterPrefix returns the sorted keys of m that start with prefix.
func filterPrefix[V any](m map[string]V, prefix string) []string {
	out := make([]string, 0)
	for k := range m {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

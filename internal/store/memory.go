package store

import (
	"context"
	"sync"
)

// Memory is an in-process KV. Units of work hold a mutex for their whole
// duration, so it is atomic for every goroutine sharing the same *Memory.
type Memory struct {
	mu   sync.Mutex
	data map[string]string
}

var _ KV = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Isolation implements KV.
func (m *Memory) Isolation() Isolation {
	return IsolationProcess
}

// Get implements Reader.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Keys implements Reader.
func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return filterPrefix(m.data, prefix), nil
}

// Update implements KV.
func (m *Memory) Update(ctx context.Context, fn func(tx Txn) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := newStaged(lockedMap(m.data))
	if err := fn(st); err != nil {
		return err
	}
	return st.each(func(key string, value *string) error {
		if value == nil {
			delete(m.data, key)
		} else {
			m.data[key] = *value
		}
		return nil
	})
}

// Close implements KV.
func (m *Memory) Close() error {
	return nil
}

// Dump returns a copy of the contents. Used by tests and the harness.
func (m *Memory) Dump() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

// lockedMap reads a map whose lock the caller already holds.
type lockedMap map[string]string

func (l lockedMap) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := l[key]
	return v, ok, nil
}

func (l lockedMap) Keys(_ context.Context, prefix string) ([]string, error) {
	return filterPrefix(map[string]string(l), prefix), nil
}

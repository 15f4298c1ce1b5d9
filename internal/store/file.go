package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File is a KV persisted as one JSON object in a file, rewritten on every
// commit. It behaves like browser local storage: reads are always fresh,
// units of work are atomic within this process, and nothing coordinates two
// processes writing the same file. A process that reads the ledger, is
// overtaken by another process's commit, and then commits, silently
// overwrites that commit.
type File struct {
	path string
	mu   sync.Mutex
}

var _ KV = (*File)(nil)

// OpenFile opens (or lazily creates) the store at path.
func OpenFile(path string) (*File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
	}
	return &File{path: path}, nil
}

// Isolation implements KV.
func (f *File) Isolation() Isolation {
	return IsolationProcess
}

// Get implements Reader.
func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

// Keys implements Reader.
func (f *File) Keys(_ context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.load()
	if err != nil {
		return nil, err
	}
	return filterPrefix(data, prefix), nil
}

// Update implements KV. The snapshot read at the start is what fn sees; the
// commit re-reads the file and applies only the keys fn wrote.
func (f *File) Update(_ context.Context, fn func(tx Txn) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot, err := f.load()
	if err != nil {
		return err
	}
	st := newStaged(lockedMap(snapshot))
	if err := fn(st); err != nil {
		return err
	}
	if st.empty() {
		return nil
	}

	current, err := f.load()
	if err != nil {
		return err
	}
	_ = st.each(func(key string, value *string) error {
		if value == nil {
			delete(current, key)
		} else {
			current[key] = *value
		}
		return nil
	})
	return f.save(current)
}

// Close implements KV.
func (f *File) Close() error {
	return nil
}

func (f *File) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	data := map[string]string{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return data, nil
}

// save writes through a temp file and rename so readers never see a
// partially written file.
func (f *File) save(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	return nil
}

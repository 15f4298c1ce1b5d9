// Package ids generates the opaque identifiers the shop hands out: order
// references and engine-generated client codes.
package ids

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Generator produces unique identifiers. Implemented by UUIDv7Generator
// (production) and Sequence (tests).
type Generator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 strings, so order
// references sort by creation time.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Sequence returns predetermined identifiers in order.
//
// Thread-safety: Sequence is safe for concurrent use via internal mutex.
type Sequence struct {
	mu     sync.Mutex
	values []string
	idx    int
}

// NewSequence creates a generator that returns values in order.
//
//	gen := NewSequence("a", "b")
//	gen.Generate() // "a"
//	gen.Generate() // "b"
//	gen.Generate() // panic: all values exhausted
func NewSequence(values ...string) *Sequence {
	return &Sequence{values: values}
}

// Generate returns the next predetermined value.
//
// Panics if all values have been consumed, so a test that generates more
// identifiers than it planned for fails loudly.
func (g *Sequence) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.values) {
		panic("ids.Sequence: all values exhausted")
	}
	v := g.values[g.idx]
	g.idx++
	return v
}

// Tail returns the last n hex digits of a generated UUID, dropping hyphens.
// For a UUIDv7 these come from the random part, not the timestamp.
func Tail(id string, n int) string {
	hex := strings.ReplaceAll(id, "-", "")
	if n >= len(hex) {
		return hex
	}
	return hex[len(hex)-n:]
}

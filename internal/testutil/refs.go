package testutil

import (
	"fmt"
	"sync"
)

// CountingGenerator produces prefix0001, prefix0002, … in call order.
//
// Unlike ids.Sequence it never runs out, which suits scenarios whose number
// of generated identifiers is not known up front.
//
// Thread-safety: safe for concurrent use via internal mutex.
type CountingGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewCountingGenerator creates a generator. An empty prefix becomes "test-".
func NewCountingGenerator(prefix string) *CountingGenerator {
	if prefix == "" {
		prefix = "test-"
	}
	return &CountingGenerator{prefix: prefix}
}

// Generate returns the next identifier.
func (g *CountingGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s%04d", g.prefix, g.n)
}

// Reset restarts numbering at 1.
func (g *CountingGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}

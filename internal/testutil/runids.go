package testutil

import (
	"fmt"
	"sync"
)

// SequentialRunIDs yields "<prefix>-0001", "<prefix>-0002", ...
//
// It satisfies reconcile.RunIDGenerator and can be reset so the same
// scenario produces byte-identical traces on every run.
//
// Thread-safety: all methods are safe for concurrent use.
type SequentialRunIDs struct {
	mu     sync.Mutex
	prefix string
	seq    int
}

// NewSequentialRunIDs returns a generator starting at 1. An empty prefix
// defaults to "run".
func NewSequentialRunIDs(prefix string) *SequentialRunIDs {
	if prefix == "" {
		prefix = "run"
	}
	return &SequentialRunIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%04d", g.prefix, g.seq)
}

// Issued returns how many ids have been generated since the last Reset.
func (g *SequentialRunIDs) Issued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset restarts the sequence at 1.
func (g *SequentialRunIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}

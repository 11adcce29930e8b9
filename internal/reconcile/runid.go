package reconcile

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// RunIDGenerator produces the id that correlates the log lines and result of
// one reconciliation pass.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator returns time-ordered UUIDv7 run ids. Safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator hands out predetermined run ids, for golden traces.
//
// Once the list is exhausted it continues with "<last>-<n>" so that retried
// passes in tests stay deterministic.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator returns a generator yielding ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	if len(ids) == 0 {
		ids = []string{"run"}
	}
	return &FixedGenerator{ids: ids}
}

// Generate returns the next id.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := g.idx
	g.idx++
	if i < len(g.ids) {
		return g.ids[i]
	}
	return fmt.Sprintf("%s-%d", g.ids[len(g.ids)-1], i-len(g.ids)+2)
}

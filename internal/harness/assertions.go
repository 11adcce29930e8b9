package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/provsync/internal/prov"
	"github.com/roach88/provsync/internal/reconcile"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Subject  string
	Expected []string
	Actual   []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Subject != "" {
		fmt.Fprintf(&buf, " %s", e.Subject)
	}
	buf.WriteString("\n")
	fmt.Fprintf(&buf, "  Expected: %v\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %v", e.Actual)
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns one message per failure.
func EvaluateAssertions(ctx context.Context, store reconcile.Store, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(ctx, store, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(ctx context.Context, store reconcile.Store, a Assertion) error {
	switch a.Type {
	case AssertFetch:
		return assertFetch(ctx, store, a)
	case AssertOwners:
		return assertOwners(ctx, store, a)
	case AssertRecords:
		return assertRecords(ctx, store, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertFetch checks the record's owned subgraph exactly.
func assertFetch(ctx context.Context, store reconcile.Store, a Assertion) error {
	g, err := store.FetchOwnedSubgraph(ctx, a.Record)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", a.Record, err)
	}

	nodes := make([]string, 0)
	for _, n := range g.Nodes() {
		nodes = append(nodes, n.ID)
	}
	if err := compareSets(AssertFetch, a.Record+" nodes", a.Nodes, nodes); err != nil {
		return err
	}
	return compareSets(AssertFetch, a.Record+" edges", a.Edges, EdgeStrings(g))
}

// assertOwners checks the full owner set of a node or edge.
func assertOwners(ctx context.Context, store reconcile.Store, a Assertion) error {
	owners, err := EntityOwners(ctx, store, a.Entity)
	if err != nil {
		return err
	}
	return compareSets(AssertOwners, a.Entity, a.Equals, owners.Sorted())
}

// assertRecords checks which records own anything.
func assertRecords(ctx context.Context, store reconcile.Store, a Assertion) error {
	ids, err := store.ListRecords(ctx)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	return compareSets(AssertRecords, "", a.Equals, ids)
}

// EdgeStrings renders g's edges as sorted "source->target relation" lines.
func EdgeStrings(g prov.LogicalGraph) []string {
	out := make([]string, 0, len(g.Edges))
	for _, e := range g.SortedEdges() {
		out = append(out, fmt.Sprintf("%s %s", e.Key(), e.Relation))
	}
	return out
}

// EntityOwners returns the stored owner set of a node id or an edge written
// "source->target". An entity nobody owns has an empty set.
//
// Fetched snapshots carry full owner sets, so the first record whose
// subgraph contains the entity is enough.
func EntityOwners(ctx context.Context, store reconcile.Store, entity string) (prov.OwnerSet, error) {
	records, err := store.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	source, target, isEdge := strings.Cut(entity, "->")
	for _, rec := range records {
		g, err := store.FetchOwnedSubgraph(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", rec, err)
		}
		if isEdge {
			if e, ok := g.EdgeMap()[prov.EdgeKey{Source: source, Target: target}]; ok {
				return e.Owners.Clone(), nil
			}
			continue
		}
		if n, ok := g.NodeMap()[entity]; ok {
			return n.Owners.Clone(), nil
		}
	}
	return prov.NewOwnerSet(), nil
}

func compareSets(kind, subject string, expected, actual []string) error {
	want := slices.Clone(expected)
	got := slices.Clone(actual)
	slices.Sort(want)
	slices.Sort(got)
	if sameStrings(want, got) {
		return nil
	}
	return &AssertionError{Type: kind, Subject: subject, Expected: want, Actual: got}
}

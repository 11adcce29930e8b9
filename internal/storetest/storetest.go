// Package storetest is the conformance suite shared by every Store adapter.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/provsync/internal/prov"
	"github.com/roach88/provsync/internal/reconcile"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) reconcile.Store

// Run executes the whole suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	cases := []struct {
		name string
		fn   func(*testing.T, reconcile.Store)
	}{
		{"UpsertNodeCreatesAndJoins", testUpsertNode},
		{"NodeOwnerMutationsRequireNode", testNodeOwnerNotFound},
		{"DeleteNodeIsGuarded", testDeleteNodeGuarded},
		{"UpsertEdgeRequiresEndpoints", testUpsertEdgeEndpoints},
		{"UpsertEdgeKeepsRelation", testUpsertEdgeKeepsRelation},
		{"EdgeOwnership", testEdgeOwnership},
		{"DeleteEdgeIsGuarded", testDeleteEdgeGuarded},
		{"Presence", testPresence},
		{"FetchRequiresThreeWayOwnership", testFetchThreeWay},
		{"FetchUnknownRecordIsEmpty", testFetchEmpty},
		{"ListRecords", testListRecords},
		{"ReleaseOrphanNodes", testReleaseOrphanNodes},
		{"ConcurrentOwnerAdds", testConcurrentOwnerAdds},
		{"ReconcileSharedEdgeLifecycle", testReconcileLifecycle},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

func activity(id string) prov.Node {
	return prov.Node{ID: id, Category: prov.CategoryActivity, Subtype: prov.SubtypeRun}
}

func dataset(id string) prov.Node {
	return prov.Node{ID: id, Category: prov.CategoryEntity, Subtype: prov.SubtypeDataset}
}

func used(src, dst string) prov.Edge {
	return prov.Edge{Source: activity(src), Target: dataset(dst), Relation: prov.RelationUsed}
}

func key(src, dst string) prov.EdgeKey {
	return prov.EdgeKey{Source: src, Target: dst}
}

// seedEdge upserts both endpoints and the edge for recordID.
func seedEdge(t *testing.T, s reconcile.Store, e prov.Edge, recordID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.UpsertNode(ctx, e.Source, recordID))
	require.NoError(t, s.UpsertNode(ctx, e.Target, recordID))
	require.NoError(t, s.UpsertEdge(ctx, e, recordID))
}

func owners(t *testing.T, s reconcile.Store, recordID string, k prov.EdgeKey) []string {
	t.Helper()
	g, err := s.FetchOwnedSubgraph(context.Background(), recordID)
	require.NoError(t, err)
	for _, e := range g.Edges {
		if e.Key() == k {
			return e.Owners.Sorted()
		}
	}
	return nil
}

func nodeOwners(t *testing.T, s reconcile.Store, recordID, id string) []string {
	t.Helper()
	g, err := s.FetchOwnedSubgraph(context.Background(), recordID)
	require.NoError(t, err)
	if n, ok := g.NodeMap()[id]; ok {
		return n.Owners.Sorted()
	}
	return nil
}

func testUpsertNode(t *testing.T, s reconcile.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertNode(ctx, activity("X"), "R1"))
	require.NoError(t, s.UpsertNode(ctx, activity("X"), "R1"))
	require.NoError(t, s.UpsertNode(ctx, activity("X"), "R2"))
	require.NoError(t, s.UpsertNode(ctx, dataset("Y"), "R1"))
	require.NoError(t, s.UpsertEdge(ctx, used("X", "Y"), "R1"))

	assert.Equal(t, []string{"R1", "R2"}, nodeOwners(t, s, "R1", "X"))
}

func testNodeOwnerNotFound(t *testing.T, s reconcile.Store) {
	ctx := context.Background()

	err := s.AddNodeOwner(ctx, "missing", "R1")
	assert.True(t, prov.IsNotFound(err), "add owner: %v", err)

	err = s.RemoveNodeOwner(ctx, "missing", "R1")
	assert.True(t, prov.IsNotFound(err), "remove owner: %v", err)

	_, err = s.DeleteNode(ctx, "missing", "R1")
	assert.True(t, prov.IsNotFound(err), "delete: %v", err)
}

func testDeleteNodeGuarded(t *testing.T, s reconcile.Store) {
	ctx := context.Background()
	seedEdge(t, s, used("X", "Y"), "R1")
	require.NoError(t, s.AddNodeOwner(ctx, "X", "R2"))

	// Still owned by R2.
	deleted, err := s.DeleteNode(ctx, "X", "R1")
	require.NoError(t, err)
	assert.False(t, deleted)

	// Unowned but still an edge endpoint.
	deleted, err = s.DeleteNode(ctx, "Y", "R1")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = s.DeleteEdge(ctx, key("X", "Y"), "R1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteNode(ctx, "Y", "R1")
	require.NoError(t, err)
	assert.True(t, deleted)

	p, err := s.Presence(ctx, []string{"X", "Y"}, nil)
	require.NoError(t, err)
	assert.True(t, p.HasNode("X"))
	assert.False(t, p.HasNode("Y"))
}

func testUpsertEdgeEndpoints(t *testing.T, s reconcile.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertNode(ctx, activity("X"), "R1"))

	err := s.UpsertEdge(ctx, used("X", "Y"), "R1")
	assert.True(t, prov.IsNotFound(err), "upsert edge: %v", err)
}

func testUpsertEdgeKeepsRelation(t *testing.T, s reconcile.Store) {
	ctx := context.Background()
	seedEdge(t, s, used("X", "Y"), "R1")

	other := used("X", "Y")
	other.Relation = prov.RelationWasInformedBy
	require.NoError(t, s.UpsertEdge(ctx, other, "R2"))

	p, err := s.Presence(ctx, nil, []prov.EdgeKey{key("X", "Y")})
	require.NoError(t, err)
	rel, ok := p.HasEdge(key("X", "Y"))
	require.True(t, ok)
	assert.Equal(t, prov.RelationUsed, rel)
}

func testEdgeOwnership(t *testing.T, s reconcile.Store) {
	ctx := context.Background()
	seedEdge(t, s, used("X", "Y"), "R1")

	require.NoError(t, s.AddEdgeOwner(ctx, key("X", "Y"), "R2"))
	require.NoError(t, s.AddEdgeOwner(ctx, key("X", "Y"), "R2"))
	assert.Equal(t, []string{"R1", "R2"}, owners(t, s, "R1", key("X", "Y")))

	require.NoError(t, s.RemoveEdgeOwner(ctx, key("X", "Y"), "R2"))
	assert.Equal(t, []string{"R1"}, owners(t, s, "R1", key("X", "Y")))

	err := s.AddEdgeOwner(ctx, key("Y", "X"), "R1")
	assert.True(t, prov.IsNotFound(err), "add owner: %v", err)
	err = s.RemoveEdgeOwner(ctx, key("Y", "X"), "R1")
	assert.True(t, prov.IsNotFound(err), "remove owner: %v", err)
	_, err = s.DeleteEdge(ctx, key("Y", "X"), "R1")
	assert.True(t, prov.IsNotFound(err), "delete: %v", err)
}

func testDeleteEdgeGuarded(t *testing.T, s reconcile.Store) {
	ctx := context.Background()
	seedEdge(t, s, used("X", "Y"), "R1")
	require.NoError(t, s.AddEdgeOwner(ctx, key("X", "Y"), "R2"))

	deleted, err := s.DeleteEdge(ctx, key("X", "Y"), "R1")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = s.DeleteEdge(ctx, key("X", "Y"), "R2")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func testPresence(t *testing.T, s reconcile.Store) {
	ctx := context.Background()

	p, err := s.Presence(ctx, []string{"X"}, []prov.EdgeKey{key("X", "Y")})
	require.NoError(t, err)
	assert.False(t, p.HasNode("X"))
	_, ok := p.HasEdge(key("X", "Y"))
	assert.False(t, ok)

	seedEdge(t, s, used("X", "Y"), "R1")

	p, err = s.Presence(ctx, []string{"X", "Y", "Z"}, []prov.EdgeKey{key("X", "Y"), key("Y", "X")})
	require.NoError(t, err)
	assert.True(t, p.HasNode("X"))
	assert.True(t, p.HasNode("Y"))
	assert.False(t, p.HasNode("Z"))
	stored, ok := p.StoredNode("Y")
	require.True(t, ok)
	assert.Equal(t, prov.CategoryEntity, stored.Category)
	assert.Equal(t, prov.SubtypeDataset, stored.Subtype)
	_, ok = p.HasEdge(key("X", "Y"))
	assert.True(t, ok)
	_, ok = p.HasEdge(key("Y", "X"))
	assert.False(t, ok)
}

func testFetchThreeWay(t *testing.T, s reconcile.Store) {
	ctx := context.Background()
	seedEdge(t, s, used("X", "Y"), "R1")
	seedEdge(t, s, used("X", "Z"), "R1")

	// R2 owns edge X->Y and X, but not Y.
	require.NoError(t, s.AddEdgeOwner(ctx, key("X", "Y"), "R2"))
	require.NoError(t, s.AddNodeOwner(ctx, "X", "R2"))

	g, err := s.FetchOwnedSubgraph(ctx, "R2")
	require.NoError(t, err)
	assert.Equal(t, "R2", g.RecordID)
	assert.Empty(t, g.Edges)

	require.NoError(t, s.AddNodeOwner(ctx, "Y", "R2"))
	g, err = s.FetchOwnedSubgraph(ctx, "R2")
	require.NoError(t, err)
	require.Len(t, g.Edges, 1)
	e := g.Edges[0]
	assert.Equal(t, key("X", "Y"), e.Key())
	assert.Equal(t, prov.RelationUsed, e.Relation)
	assert.Equal(t, prov.CategoryActivity, e.Source.Category)
	assert.Equal(t, prov.SubtypeDataset, e.Target.Subtype)
	assert.Equal(t, []string{"R1", "R2"}, e.Owners.Sorted())
	assert.Equal(t, []string{"R1", "R2"}, e.Source.Owners.Sorted())

	g, err = s.FetchOwnedSubgraph(ctx, "R1")
	require.NoError(t, err)
	assert.Len(t, g.Edges, 2)
}

func testFetchEmpty(t *testing.T, s reconcile.Store) {
	g, err := s.FetchOwnedSubgraph(context.Background(), "nobody")
	require.NoError(t, err)
	assert.True(t, g.IsEmpty())
}

func testListRecords(t *testing.T, s reconcile.Store) {
	ctx := context.Background()
	ids, err := s.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	seedEdge(t, s, used("X", "Y"), "R2")
	seedEdge(t, s, used("X", "Z"), "R1")
	require.NoError(t, s.AddEdgeOwner(ctx, key("X", "Y"), "R3"))
	require.NoError(t, s.AddNodeOwner(ctx, "Z", "R4"))

	ids, err = s.ListRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"R1", "R2", "R3", "R4"}, ids)
}

func testReleaseOrphanNodes(t *testing.T, s reconcile.Store) {
	ctx := context.Background()
	seedEdge(t, s, used("P", "Q"), "R1")
	seedEdge(t, s, used("X", "Y"), "R1")
	seedEdge(t, s, used("X", "Z"), "R2")
	require.NoError(t, s.UpsertNode(ctx, activity("W"), "R1"))
	require.NoError(t, s.UpsertNode(ctx, activity("V"), "R1"))
	require.NoError(t, s.UpsertEdge(ctx, used("V", "Z"), "R2"))

	// An interrupted removal: the edge is gone, its endpoints are still owned.
	deleted, err := s.DeleteEdge(ctx, key("X", "Y"), "R1")
	require.NoError(t, err)
	require.True(t, deleted)

	released, err := s.ReleaseOrphanNodes(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, 4, released, "X, Y, W and V")

	p, err := s.Presence(ctx, []string{"P", "Q", "X", "Y", "W", "V"}, nil)
	require.NoError(t, err)
	assert.True(t, p.HasNode("P"), "still linked by an R1 edge")
	assert.True(t, p.HasNode("Q"))
	assert.True(t, p.HasNode("X"), "still owned by R2")
	assert.False(t, p.HasNode("Y"))
	assert.False(t, p.HasNode("W"))
	assert.True(t, p.HasNode("V"), "unowned but still linked")

	g, err := s.FetchOwnedSubgraph(ctx, "R1")
	require.NoError(t, err)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, key("P", "Q"), g.Edges[0].Key())

	g, err = s.FetchOwnedSubgraph(ctx, "R2")
	require.NoError(t, err)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, key("X", "Z"), g.Edges[0].Key())
	assert.Equal(t, []string{"R2"}, g.Edges[0].Source.Owners.Sorted())

	released, err = s.ReleaseOrphanNodes(ctx, "R1")
	require.NoError(t, err)
	assert.Zero(t, released)
}

func testConcurrentOwnerAdds(t *testing.T, s reconcile.Store) {
	ctx := context.Background()
	seedEdge(t, s, used("X", "Y"), "R0")

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.AddEdgeOwner(ctx, key("X", "Y"), fmt.Sprintf("R%02d", i+1))
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	assert.Len(t, owners(t, s, "R0", key("X", "Y")), n+1)
}

// testReconcileLifecycle drives two records through a shared edge: the
// second joins it, the first retires, and the edge survives until the
// second retires too.
func testReconcileLifecycle(t *testing.T, s reconcile.Store) {
	ctx := context.Background()
	r := reconcile.New(s, reconcile.WithBackoff(0))

	desired := func(rec string) prov.LogicalGraph {
		e := used("X", "Y")
		e.Source.Owners = prov.NewOwnerSet(rec)
		e.Target.Owners = prov.NewOwnerSet(rec)
		e.Owners = prov.NewOwnerSet(rec)
		return prov.LogicalGraph{RecordID: rec, Edges: []prov.Edge{e}}
	}

	res, err := r.Reconcile(ctx, "R1", desired("R1"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Applied)

	res, err = r.Reconcile(ctx, "R2", desired("R2"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Resolved)
	assert.Equal(t, []string{"R1", "R2"}, owners(t, s, "R2", key("X", "Y")))

	res, err = r.Retire(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Applied)
	assert.Zero(t, res.SkippedDeletes)

	g, err := r.Fetch(ctx, "R2")
	require.NoError(t, err)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, []string{"R2"}, g.Edges[0].Owners.Sorted())

	g, err = r.Fetch(ctx, "R1")
	require.NoError(t, err)
	assert.True(t, g.IsEmpty())

	_, err = r.Retire(ctx, "R2")
	require.NoError(t, err)
	p, err := s.Presence(ctx, []string{"X", "Y"}, []prov.EdgeKey{key("X", "Y")})
	require.NoError(t, err)
	assert.False(t, p.HasNode("X"))
	assert.False(t, p.HasNode("Y"))
	assert.Empty(t, p.Edges)
}

package reconcile

import (
	"context"
	"sync"

	"github.com/roach88/provsync/internal/memstore"
	"github.com/roach88/provsync/internal/prov"
)

func activity(id, rec string) prov.Node {
	return prov.Node{ID: id, Category: prov.CategoryActivity, Subtype: prov.SubtypeRun, Owners: prov.NewOwnerSet(rec)}
}

func dataset(id, rec string) prov.Node {
	return prov.Node{ID: id, Category: prov.CategoryEntity, Subtype: prov.SubtypeDataset, Owners: prov.NewOwnerSet(rec)}
}

// desired builds a builder-shaped graph: every element owned by rec only.
func desired(rec string, pairs ...[2]string) prov.LogicalGraph {
	g := prov.Empty(rec)
	for _, p := range pairs {
		g.Edges = append(g.Edges, prov.Edge{
			Source:   activity(p[0], rec),
			Target:   dataset(p[1], rec),
			Relation: prov.RelationUsed,
			Owners:   prov.NewOwnerSet(rec),
		})
	}
	return g
}

// faultyStore fails selected mutations on a memstore.
type faultyStore struct {
	*memstore.Store

	mu       sync.Mutex
	calls    int
	failAt   map[int]error // 1-based mutation index -> error
	fetchErr error
	fetches  int
}

func newFaultyStore() *faultyStore {
	return &faultyStore{Store: memstore.New(), failAt: make(map[int]error)}
}

func (f *faultyStore) next() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.failAt[f.calls]
}

func (f *faultyStore) UpsertNode(ctx context.Context, n prov.Node, rec string) error {
	if err := f.next(); err != nil {
		return err
	}
	return f.Store.UpsertNode(ctx, n, rec)
}

func (f *faultyStore) UpsertEdge(ctx context.Context, e prov.Edge, rec string) error {
	if err := f.next(); err != nil {
		return err
	}
	return f.Store.UpsertEdge(ctx, e, rec)
}

func (f *faultyStore) AddNodeOwner(ctx context.Context, id, rec string) error {
	if err := f.next(); err != nil {
		return err
	}
	return f.Store.AddNodeOwner(ctx, id, rec)
}

func (f *faultyStore) RemoveEdgeOwner(ctx context.Context, k prov.EdgeKey, rec string) error {
	if err := f.next(); err != nil {
		return err
	}
	return f.Store.RemoveEdgeOwner(ctx, k, rec)
}

func (f *faultyStore) RemoveNodeOwner(ctx context.Context, id, rec string) error {
	if err := f.next(); err != nil {
		return err
	}
	return f.Store.RemoveNodeOwner(ctx, id, rec)
}

func (f *faultyStore) DeleteNode(ctx context.Context, id, rec string) (bool, error) {
	if err := f.next(); err != nil {
		return false, err
	}
	return f.Store.DeleteNode(ctx, id, rec)
}

func (f *faultyStore) DeleteEdge(ctx context.Context, k prov.EdgeKey, rec string) (bool, error) {
	if err := f.next(); err != nil {
		return false, err
	}
	return f.Store.DeleteEdge(ctx, k, rec)
}

func (f *faultyStore) FetchOwnedSubgraph(ctx context.Context, rec string) (prov.LogicalGraph, error) {
	f.mu.Lock()
	f.fetches++
	err := f.fetchErr
	f.mu.Unlock()
	if err != nil {
		return prov.LogicalGraph{}, err
	}
	return f.Store.FetchOwnedSubgraph(ctx, rec)
}

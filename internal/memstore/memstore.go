// Package memstore is an in-memory provenance graph store.
//
// It backs unit tests and the "memory" CLI backend. Every operation runs
// under one mutex, so each call is atomic.
package memstore

import (
	"context"
	"sync"

	"github.com/roach88/provsync/internal/prov"
)

type nodeRow struct {
	category prov.Category
	subtype  prov.Subtype
	owners   prov.OwnerSet
}

type edgeRow struct {
	relation prov.Relation
	owners   prov.OwnerSet
}

// Store holds nodes and edges in maps.
type Store struct {
	mu    sync.Mutex
	nodes map[string]*nodeRow
	edges map[prov.EdgeKey]*edgeRow
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		nodes: make(map[string]*nodeRow),
		edges: make(map[prov.EdgeKey]*edgeRow),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Presence reports which nodes and edges exist.
func (s *Store) Presence(ctx context.Context, nodeIDs []string, edges []prov.EdgeKey) (prov.Presence, error) {
	if err := ctx.Err(); err != nil {
		return prov.Presence{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p := prov.NewPresence()
	for _, id := range nodeIDs {
		if row, ok := s.nodes[id]; ok {
			p.AddNode(id, row.category, row.subtype)
		}
	}
	for _, k := range edges {
		if e, ok := s.edges[k]; ok {
			p.Edges[k] = e.relation
		}
	}
	return p, nil
}

// UpsertNode creates or refreshes the node and adds recordID as an owner.
func (s *Store) UpsertNode(ctx context.Context, node prov.Node, recordID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.nodes[node.ID]
	if !ok {
		row = &nodeRow{owners: prov.NewOwnerSet()}
		s.nodes[node.ID] = row
	}
	row.category = node.Category
	row.subtype = node.Subtype
	row.owners.Add(recordID)
	return nil
}

// AddNodeOwner adds recordID to an existing node.
func (s *Store) AddNodeOwner(ctx context.Context, nodeID, recordID string) error {
	return s.withNode(ctx, nodeID, func(row *nodeRow) { row.owners.Add(recordID) })
}

// RemoveNodeOwner removes recordID from an existing node.
func (s *Store) RemoveNodeOwner(ctx context.Context, nodeID, recordID string) error {
	return s.withNode(ctx, nodeID, func(row *nodeRow) { row.owners.Remove(recordID) })
}

// DeleteNode strips recordID and removes the node once it is unowned and unlinked.
func (s *Store) DeleteNode(ctx context.Context, nodeID, recordID string) (bool, error) {
	var deleted bool
	err := s.withNode(ctx, nodeID, func(row *nodeRow) {
		row.owners.Remove(recordID)
		if row.owners.Len() > 0 || s.linked(nodeID) {
			return
		}
		delete(s.nodes, nodeID)
		deleted = true
	})
	return deleted, err
}

// UpsertEdge creates the edge if absent and adds recordID as an owner.
func (s *Store) UpsertEdge(ctx context.Context, edge prov.Edge, recordID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := edge.Key()
	for _, id := range []string{key.Source, key.Target} {
		if _, ok := s.nodes[id]; !ok {
			return prov.NewNotFoundError("node", id)
		}
	}
	row, ok := s.edges[key]
	if !ok {
		row = &edgeRow{relation: edge.Relation, owners: prov.NewOwnerSet()}
		s.edges[key] = row
	}
	row.owners.Add(recordID)
	return nil
}

// AddEdgeOwner adds recordID to an existing edge.
func (s *Store) AddEdgeOwner(ctx context.Context, key prov.EdgeKey, recordID string) error {
	return s.withEdge(ctx, key, func(row *edgeRow) { row.owners.Add(recordID) })
}

// RemoveEdgeOwner removes recordID from an existing edge.
func (s *Store) RemoveEdgeOwner(ctx context.Context, key prov.EdgeKey, recordID string) error {
	return s.withEdge(ctx, key, func(row *edgeRow) { row.owners.Remove(recordID) })
}

// DeleteEdge strips recordID and removes the edge once it is unowned.
func (s *Store) DeleteEdge(ctx context.Context, key prov.EdgeKey, recordID string) (bool, error) {
	var deleted bool
	err := s.withEdge(ctx, key, func(row *edgeRow) {
		row.owners.Remove(recordID)
		if row.owners.Len() == 0 {
			delete(s.edges, key)
			deleted = true
		}
	})
	return deleted, err
}

// FetchOwnedSubgraph returns the edges recordID owns together with both endpoints.
func (s *Store) FetchOwnedSubgraph(ctx context.Context, recordID string) (prov.LogicalGraph, error) {
	if err := ctx.Err(); err != nil {
		return prov.LogicalGraph{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	g := prov.Empty(recordID)
	for key, e := range s.edges {
		if !e.owners.Has(recordID) {
			continue
		}
		src, dst := s.nodes[key.Source], s.nodes[key.Target]
		if src == nil || dst == nil || !src.owners.Has(recordID) || !dst.owners.Has(recordID) {
			continue
		}
		g.Edges = append(g.Edges, prov.Edge{
			Source:   s.node(key.Source, src),
			Target:   s.node(key.Target, dst),
			Relation: e.relation,
			Owners:   e.owners.Clone(),
		})
	}
	g.Edges = g.SortedEdges()
	return g, nil
}

// ReleaseOrphanNodes strips recordID from every node it owns without also
// owning an incident edge, and removes such nodes once unowned and unlinked.
func (s *Store) ReleaseOrphanNodes(ctx context.Context, recordID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	released := 0
	for id, row := range s.nodes {
		if !row.owners.Has(recordID) || s.linkedBy(id, recordID) {
			continue
		}
		row.owners.Remove(recordID)
		released++
		if row.owners.Len() == 0 && !s.linked(id) {
			delete(s.nodes, id)
		}
	}
	return released, nil
}

// ListRecords returns the sorted ids of records owning at least one node or edge.
func (s *Store) ListRecords(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all := prov.NewOwnerSet()
	for _, n := range s.nodes {
		for id := range n.owners {
			all.Add(id)
		}
	}
	for _, e := range s.edges {
		for id := range e.owners {
			all.Add(id)
		}
	}
	return all.Sorted(), nil
}

// Counts returns the number of stored nodes and edges.
func (s *Store) Counts() (nodes, edges int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes), len(s.edges)
}

func (s *Store) withNode(ctx context.Context, id string, fn func(*nodeRow)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.nodes[id]
	if !ok {
		return prov.NewNotFoundError("node", id)
	}
	fn(row)
	return nil
}

func (s *Store) withEdge(ctx context.Context, key prov.EdgeKey, fn func(*edgeRow)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.edges[key]
	if !ok {
		return prov.NewNotFoundError("edge", key.String())
	}
	fn(row)
	return nil
}

// linked must be called with s.mu held.
func (s *Store) linked(nodeID string) bool {
	for k := range s.edges {
		if k.Source == nodeID || k.Target == nodeID {
			return true
		}
	}
	return false
}

// linkedBy reports whether recordID owns an edge incident to nodeID. It must
// be called with s.mu held.
func (s *Store) linkedBy(nodeID, recordID string) bool {
	for k, e := range s.edges {
		if (k.Source == nodeID || k.Target == nodeID) && e.owners.Has(recordID) {
			return true
		}
	}
	return false
}

func (s *Store) node(id string, row *nodeRow) prov.Node {
	return prov.Node{ID: id, Category: row.category, Subtype: row.subtype, Owners: row.owners.Clone()}
}

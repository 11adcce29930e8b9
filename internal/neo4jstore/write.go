package neo4jstore

import (
	"context"
	"slices"

	"github.com/roach88/provsync/internal/prov"
)

// UpsertNode merges the node, refreshes category and subtype, and adds recordID.
func (s *Store) UpsertNode(ctx context.Context, node prov.Node, recordID string) error {
	_, err := s.write(ctx, "upsert node", cypherUpsertNode, map[string]any{
		"id":       node.ID,
		"category": string(node.Category),
		"subtype":  string(node.Subtype),
		"record":   recordID,
	})
	return err
}

// AddNodeOwner adds recordID to an existing node.
func (s *Store) AddNodeOwner(ctx context.Context, nodeID, recordID string) error {
	return s.nodeOwner(ctx, "add node owner", cypherAddNodeOwner, nodeID, recordID)
}

// RemoveNodeOwner removes recordID from an existing node.
func (s *Store) RemoveNodeOwner(ctx context.Context, nodeID, recordID string) error {
	return s.nodeOwner(ctx, "remove node owner", cypherRemoveNodeOwner, nodeID, recordID)
}

func (s *Store) nodeOwner(ctx context.Context, op, query, nodeID, recordID string) error {
	records, err := s.write(ctx, op, query, map[string]any{"id": nodeID, "record": recordID})
	if err != nil {
		return err
	}
	if !matched(records) {
		return prov.NewNotFoundError("node", nodeID)
	}
	return nil
}

// DeleteNode strips recordID and detaches nothing: the node is deleted only
// when it has no owner and no relationship left.
func (s *Store) DeleteNode(ctx context.Context, nodeID, recordID string) (bool, error) {
	records, err := s.write(ctx, "delete node", cypherDeleteNode, map[string]any{"id": nodeID, "record": recordID})
	if err != nil {
		return false, err
	}
	deleted, found := deletedFlag(records)
	if !found {
		return false, prov.NewNotFoundError("node", nodeID)
	}
	return deleted, nil
}

// ReleaseOrphanNodes strips recordID from every node it owns without also
// owning an incident relationship, and deletes such nodes once unowned and
// unlinked. It returns the number of nodes released.
func (s *Store) ReleaseOrphanNodes(ctx context.Context, recordID string) (int, error) {
	records, err := s.write(ctx, "release orphan nodes", cypherReleaseOrphans, map[string]any{"record": recordID})
	if err != nil {
		return 0, err
	}
	return countOf(records, "released"), nil
}

// UpsertEdge merges the PROV relationship and adds recordID. Both endpoints
// must exist.
func (s *Store) UpsertEdge(ctx context.Context, edge prov.Edge, recordID string) error {
	key := edge.Key()
	records, err := s.read(ctx, "find endpoints", cypherFindNodes, map[string]any{
		"ids": []string{key.Source, key.Target},
	})
	if err != nil {
		return err
	}
	found := make([]string, 0, len(records))
	for _, r := range records {
		found = append(found, getString(r, "id"))
	}
	for _, id := range []string{key.Source, key.Target} {
		if !slices.Contains(found, id) {
			return prov.NewNotFoundError("node", id)
		}
	}

	_, err = s.write(ctx, "upsert edge", cypherUpsertEdge, map[string]any{
		"source":   key.Source,
		"target":   key.Target,
		"relation": string(edge.Relation),
		"record":   recordID,
	})
	return err
}

// AddEdgeOwner adds recordID to an existing edge.
func (s *Store) AddEdgeOwner(ctx context.Context, key prov.EdgeKey, recordID string) error {
	return s.edgeOwner(ctx, "add edge owner", cypherAddEdgeOwner, key, recordID)
}

// RemoveEdgeOwner removes recordID from an existing edge.
func (s *Store) RemoveEdgeOwner(ctx context.Context, key prov.EdgeKey, recordID string) error {
	return s.edgeOwner(ctx, "remove edge owner", cypherRemoveEdgeOwner, key, recordID)
}

func (s *Store) edgeOwner(ctx context.Context, op, query string, key prov.EdgeKey, recordID string) error {
	records, err := s.write(ctx, op, query, edgeParams(key, recordID))
	if err != nil {
		return err
	}
	if !matched(records) {
		return prov.NewNotFoundError("edge", key.String())
	}
	return nil
}

// DeleteEdge strips recordID and deletes the relationship once unowned.
func (s *Store) DeleteEdge(ctx context.Context, key prov.EdgeKey, recordID string) (bool, error) {
	records, err := s.write(ctx, "delete edge", cypherDeleteEdge, edgeParams(key, recordID))
	if err != nil {
		return false, err
	}
	deleted, found := deletedFlag(records)
	if !found {
		return false, prov.NewNotFoundError("edge", key.String())
	}
	return deleted, nil
}

func edgeParams(key prov.EdgeKey, recordID string) map[string]any {
	return map[string]any{"source": key.Source, "target": key.Target, "record": recordID}
}

package pgstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/roach88/provsync/internal/prov"
)

// UpsertNode inserts the node, or refreshes its category and subtype, and
// adds recordID to its owners.
func (s *Store) UpsertNode(ctx context.Context, node prov.Node, recordID string) error {
	row := &nodeModel{
		ID:       node.ID,
		Category: string(node.Category),
		Subtype:  string(node.Subtype),
		Owners:   []string{recordID},
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().
			Model(row).
			On("CONFLICT (id) DO UPDATE").
			Set("category = EXCLUDED.category").
			Set("subtype = EXCLUDED.subtype").
			Exec(ctx); err != nil {
			return err
		}
		_, err := s.addNodeOwnerQuery(tx, node.ID, recordID).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert node %s: %w", node.ID, err)
	}
	return nil
}

// AddNodeOwner adds recordID to an existing node's owners.
func (s *Store) AddNodeOwner(ctx context.Context, nodeID, recordID string) error {
	ok, err := affected(ctx, s.addNodeOwnerQuery(s.db, nodeID, recordID))
	if err != nil {
		return fmt.Errorf("add node owner: %w", err)
	}
	if !ok {
		return prov.NewNotFoundError("node", nodeID)
	}
	return nil
}

// RemoveNodeOwner removes recordID from an existing node's owners.
func (s *Store) RemoveNodeOwner(ctx context.Context, nodeID, recordID string) error {
	ok, err := affected(ctx, s.removeNodeOwnerQuery(s.db, nodeID, recordID))
	if err != nil {
		return fmt.Errorf("remove node owner: %w", err)
	}
	if !ok {
		return prov.NewNotFoundError("node", nodeID)
	}
	return nil
}

// DeleteNode strips recordID and deletes the node when no owner and no
// incident edge is left.
func (s *Store) DeleteNode(ctx context.Context, nodeID, recordID string) (bool, error) {
	var deleted bool
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		ok, err := affected(ctx, s.removeNodeOwnerQuery(tx, nodeID, recordID))
		if err != nil {
			return err
		}
		if !ok {
			return prov.NewNotFoundError("node", nodeID)
		}

		deleted, err = affected(ctx, tx.NewDelete().
			Model((*nodeModel)(nil)).
			Where("id = ?", nodeID).
			Where("cardinality(owners) = 0").
			Where("NOT EXISTS (SELECT 1 FROM provsync_edges WHERE source_id = ? OR target_id = ?)", nodeID, nodeID))
		return err
	})
	if err != nil {
		if prov.CodeOf(err) != "" {
			return false, err
		}
		return false, fmt.Errorf("delete node %s: %w", nodeID, err)
	}
	return deleted, nil
}

// ReleaseOrphanNodes strips recordID from every node it owns without also
// owning an incident edge, deleting each such node once no owner and no
// edge is left. It returns the number of nodes released.
func (s *Store) ReleaseOrphanNodes(ctx context.Context, recordID string) (int, error) {
	var released []string
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*nodeModel)(nil)).
			Set("owners = array_remove(owners, ?)", recordID).
			Where("? = ANY(n.owners)", recordID).
			Where(`NOT EXISTS (
				SELECT 1 FROM provsync_edges AS e
				WHERE ? = ANY(e.owners) AND (e.source_id = n.id OR e.target_id = n.id))`, recordID).
			Returning("id").
			Exec(ctx, &released); err != nil {
			return err
		}
		if len(released) == 0 {
			return nil
		}
		_, err := tx.NewDelete().
			Model((*nodeModel)(nil)).
			Where("id IN (?)", bun.In(released)).
			Where("cardinality(owners) = 0").
			Where("NOT EXISTS (SELECT 1 FROM provsync_edges AS e WHERE e.source_id = n.id OR e.target_id = n.id)").
			Exec(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("release orphan nodes of %s: %w", recordID, err)
	}
	return len(released), nil
}

// UpsertEdge inserts the edge if absent and adds recordID to its owners.
// Both endpoints must exist; they are share-locked for the transaction.
func (s *Store) UpsertEdge(ctx context.Context, edge prov.Edge, recordID string) error {
	key := edge.Key()
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var found []string
		if err := tx.NewSelect().
			Model((*nodeModel)(nil)).
			Column("id").
			Where("id IN (?)", bun.In([]string{key.Source, key.Target})).
			For("SHARE").
			Scan(ctx, &found); err != nil {
			return err
		}
		for _, id := range []string{key.Source, key.Target} {
			if !contains(found, id) {
				return prov.NewNotFoundError("node", id)
			}
		}

		if _, err := tx.NewInsert().
			Model(&edgeModel{
				SourceID: key.Source,
				TargetID: key.Target,
				Relation: string(edge.Relation),
				Owners:   []string{},
			}).
			On("CONFLICT (source_id, target_id) DO NOTHING").
			Exec(ctx); err != nil {
			return err
		}
		_, err := s.addEdgeOwnerQuery(tx, key, recordID).Exec(ctx)
		return err
	})
	if err != nil {
		if prov.CodeOf(err) != "" {
			return err
		}
		return fmt.Errorf("upsert edge %s: %w", key, err)
	}
	return nil
}

// AddEdgeOwner adds recordID to an existing edge's owners.
func (s *Store) AddEdgeOwner(ctx context.Context, key prov.EdgeKey, recordID string) error {
	ok, err := affected(ctx, s.addEdgeOwnerQuery(s.db, key, recordID))
	if err != nil {
		return fmt.Errorf("add edge owner: %w", err)
	}
	if !ok {
		return prov.NewNotFoundError("edge", key.String())
	}
	return nil
}

// RemoveEdgeOwner removes recordID from an existing edge's owners.
func (s *Store) RemoveEdgeOwner(ctx context.Context, key prov.EdgeKey, recordID string) error {
	ok, err := affected(ctx, s.removeEdgeOwnerQuery(s.db, key, recordID))
	if err != nil {
		return fmt.Errorf("remove edge owner: %w", err)
	}
	if !ok {
		return prov.NewNotFoundError("edge", key.String())
	}
	return nil
}

// DeleteEdge strips recordID and deletes the edge when no owner is left.
func (s *Store) DeleteEdge(ctx context.Context, key prov.EdgeKey, recordID string) (bool, error) {
	var deleted bool
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		ok, err := affected(ctx, s.removeEdgeOwnerQuery(tx, key, recordID))
		if err != nil {
			return err
		}
		if !ok {
			return prov.NewNotFoundError("edge", key.String())
		}

		deleted, err = affected(ctx, tx.NewDelete().
			Model((*edgeModel)(nil)).
			Where("source_id = ?", key.Source).
			Where("target_id = ?", key.Target).
			Where("cardinality(owners) = 0"))
		return err
	})
	if err != nil {
		if prov.CodeOf(err) != "" {
			return false, err
		}
		return false, fmt.Errorf("delete edge %s: %w", key, err)
	}
	return deleted, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

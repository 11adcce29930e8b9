package store

import (
	"context"
	"database/sql"

	"github.com/roach88/provsync/internal/prov"
)

// UpsertNode inserts the node, or refreshes its category and subtype, and
// adds recordID to its owners.
func (s *Store) UpsertNode(ctx context.Context, node prov.Node, recordID string) error {
	return s.inTx(ctx, "upsert node", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO nodes (id, category, subtype)
			VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				category = excluded.category,
				subtype = excluded.subtype
		`, node.ID, string(node.Category), string(node.Subtype))
		if err != nil {
			return err
		}
		return insertNodeOwner(ctx, tx, node.ID, recordID)
	})
}

// AddNodeOwner adds recordID to an existing node's owners.
func (s *Store) AddNodeOwner(ctx context.Context, nodeID, recordID string) error {
	return s.inTx(ctx, "add node owner", func(tx *sql.Tx) error {
		if err := nodeExists(ctx, tx, nodeID); err != nil {
			return err
		}
		return insertNodeOwner(ctx, tx, nodeID, recordID)
	})
}

// RemoveNodeOwner removes recordID from an existing node's owners.
func (s *Store) RemoveNodeOwner(ctx context.Context, nodeID, recordID string) error {
	return s.inTx(ctx, "remove node owner", func(tx *sql.Tx) error {
		if err := nodeExists(ctx, tx, nodeID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			DELETE FROM node_owners WHERE node_id = ? AND record_id = ?
		`, nodeID, recordID)
		return err
	})
}

// DeleteNode removes recordID from the node and deletes the node if it has
// no owner and no incident edge left.
func (s *Store) DeleteNode(ctx context.Context, nodeID, recordID string) (bool, error) {
	var deleted bool
	err := s.inTx(ctx, "delete node", func(tx *sql.Tx) error {
		if err := nodeExists(ctx, tx, nodeID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM node_owners WHERE node_id = ? AND record_id = ?
		`, nodeID, recordID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			DELETE FROM nodes
			WHERE id = ?
			  AND NOT EXISTS (SELECT 1 FROM node_owners WHERE node_id = ?)
			  AND NOT EXISTS (SELECT 1 FROM edges WHERE source_id = ? OR target_id = ?)
		`, nodeID, nodeID, nodeID, nodeID)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// ReleaseOrphanNodes strips recordID from every node it owns without also
// owning an incident edge, deleting each such node once no owner and no
// edge is left. It returns the number of nodes released.
func (s *Store) ReleaseOrphanNodes(ctx context.Context, recordID string) (int, error) {
	var released int
	err := s.inTx(ctx, "release orphan nodes", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT o.node_id FROM node_owners o
			WHERE o.record_id = ?
			  AND NOT EXISTS (
			    SELECT 1 FROM edge_owners eo
			    WHERE eo.record_id = ?
			      AND (eo.source_id = o.node_id OR eo.target_id = o.node_id)
			  )
			ORDER BY o.node_id
		`, recordID, recordID)
		if err != nil {
			return err
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}

		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM node_owners WHERE node_id = ? AND record_id = ?
			`, id, recordID); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM nodes
				WHERE id = ?
				  AND NOT EXISTS (SELECT 1 FROM node_owners WHERE node_id = ?)
				  AND NOT EXISTS (SELECT 1 FROM edges WHERE source_id = ? OR target_id = ?)
			`, id, id, id, id); err != nil {
				return err
			}
		}
		released = len(ids)
		return nil
	})
	return released, err
}

// UpsertEdge inserts the edge if absent and adds recordID to its owners.
// Both endpoints must already exist. An existing edge keeps its relation.
func (s *Store) UpsertEdge(ctx context.Context, edge prov.Edge, recordID string) error {
	key := edge.Key()
	return s.inTx(ctx, "upsert edge", func(tx *sql.Tx) error {
		if err := nodeExists(ctx, tx, key.Source); err != nil {
			return err
		}
		if err := nodeExists(ctx, tx, key.Target); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO edges (source_id, target_id, relation)
			VALUES (?, ?, ?)
			ON CONFLICT(source_id, target_id) DO NOTHING
		`, key.Source, key.Target, string(edge.Relation))
		if err != nil {
			return err
		}
		return insertEdgeOwner(ctx, tx, key, recordID)
	})
}

// AddEdgeOwner adds recordID to an existing edge's owners.
func (s *Store) AddEdgeOwner(ctx context.Context, key prov.EdgeKey, recordID string) error {
	return s.inTx(ctx, "add edge owner", func(tx *sql.Tx) error {
		if err := edgeExists(ctx, tx, key); err != nil {
			return err
		}
		return insertEdgeOwner(ctx, tx, key, recordID)
	})
}

// RemoveEdgeOwner removes recordID from an existing edge's owners.
func (s *Store) RemoveEdgeOwner(ctx context.Context, key prov.EdgeKey, recordID string) error {
	return s.inTx(ctx, "remove edge owner", func(tx *sql.Tx) error {
		if err := edgeExists(ctx, tx, key); err != nil {
			return err
		}
		return deleteEdgeOwner(ctx, tx, key, recordID)
	})
}

// DeleteEdge removes recordID from the edge and deletes the edge if no
// owner is left.
func (s *Store) DeleteEdge(ctx context.Context, key prov.EdgeKey, recordID string) (bool, error) {
	var deleted bool
	err := s.inTx(ctx, "delete edge", func(tx *sql.Tx) error {
		if err := edgeExists(ctx, tx, key); err != nil {
			return err
		}
		if err := deleteEdgeOwner(ctx, tx, key, recordID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			DELETE FROM edges
			WHERE source_id = ? AND target_id = ?
			  AND NOT EXISTS (
				SELECT 1 FROM edge_owners WHERE source_id = ? AND target_id = ?
			  )
		`, key.Source, key.Target, key.Source, key.Target)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

func insertNodeOwner(ctx context.Context, tx *sql.Tx, nodeID, recordID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO node_owners (node_id, record_id)
		VALUES (?, ?)
		ON CONFLICT DO NOTHING
	`, nodeID, recordID)
	return err
}

func insertEdgeOwner(ctx context.Context, tx *sql.Tx, key prov.EdgeKey, recordID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO edge_owners (source_id, target_id, record_id)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, key.Source, key.Target, recordID)
	return err
}

func deleteEdgeOwner(ctx context.Context, tx *sql.Tx, key prov.EdgeKey, recordID string) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM edge_owners
		WHERE source_id = ? AND target_id = ? AND record_id = ?
	`, key.Source, key.Target, recordID)
	return err
}

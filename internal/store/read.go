package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/provsync/internal/prov"
)

// presenceChunk bounds the number of bound parameters per presence query.
const presenceChunk = 256

// FetchOwnedSubgraph returns every edge recordID owns whose endpoints
// recordID also owns, with full owner sets.
//
// Returns an empty graph (not nil edges) if the record owns nothing.
func (s *Store) FetchOwnedSubgraph(ctx context.Context, recordID string) (prov.LogicalGraph, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			e.source_id, src.category, src.subtype,
			(SELECT json_group_array(record_id) FROM node_owners WHERE node_id = e.source_id),
			e.target_id, dst.category, dst.subtype,
			(SELECT json_group_array(record_id) FROM node_owners WHERE node_id = e.target_id),
			e.relation,
			(SELECT json_group_array(record_id) FROM edge_owners
			 WHERE source_id = e.source_id AND target_id = e.target_id)
		FROM edges e
		JOIN edge_owners eo
			ON eo.source_id = e.source_id AND eo.target_id = e.target_id AND eo.record_id = ?
		JOIN nodes src ON src.id = e.source_id
		JOIN nodes dst ON dst.id = e.target_id
		WHERE EXISTS (SELECT 1 FROM node_owners WHERE node_id = e.source_id AND record_id = ?)
		  AND EXISTS (SELECT 1 FROM node_owners WHERE node_id = e.target_id AND record_id = ?)
		ORDER BY e.source_id COLLATE BINARY ASC, e.target_id COLLATE BINARY ASC
	`, recordID, recordID, recordID)
	if err != nil {
		return prov.LogicalGraph{}, fmt.Errorf("query owned subgraph: %w", err)
	}
	defer rows.Close()

	g := prov.Empty(recordID)
	for rows.Next() {
		var (
			e                              prov.Edge
			srcCat, srcSub, dstCat, dstSub string
			relation                       string
			srcOwners, dstOwners, owners   string
		)
		if err := rows.Scan(
			&e.Source.ID, &srcCat, &srcSub, &srcOwners,
			&e.Target.ID, &dstCat, &dstSub, &dstOwners,
			&relation, &owners,
		); err != nil {
			return prov.LogicalGraph{}, fmt.Errorf("scan edge: %w", err)
		}
		e.Source.Category, e.Source.Subtype = prov.Category(srcCat), prov.Subtype(srcSub)
		e.Target.Category, e.Target.Subtype = prov.Category(dstCat), prov.Subtype(dstSub)
		e.Relation = prov.Relation(relation)

		for _, col := range []struct {
			raw string
			dst *prov.OwnerSet
		}{
			{srcOwners, &e.Source.Owners},
			{dstOwners, &e.Target.Owners},
			{owners, &e.Owners},
		} {
			if err := json.Unmarshal([]byte(col.raw), col.dst); err != nil {
				return prov.LogicalGraph{}, fmt.Errorf("decode owners of %s: %w", e.Key(), err)
			}
		}
		g.Edges = append(g.Edges, e)
	}
	if err := rows.Err(); err != nil {
		return prov.LogicalGraph{}, fmt.Errorf("iterate edges: %w", err)
	}

	return g, nil
}

// Presence reports which of the given nodes and edges exist.
func (s *Store) Presence(ctx context.Context, nodeIDs []string, edges []prov.EdgeKey) (prov.Presence, error) {
	p := prov.NewPresence()

	for start := 0; start < len(nodeIDs); start += presenceChunk {
		chunk := nodeIDs[start:min(start+presenceChunk, len(nodeIDs))]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, category, subtype FROM nodes WHERE id IN (`+placeholders(len(chunk), "?")+`)`, args...)
		if err != nil {
			return prov.Presence{}, fmt.Errorf("query node presence: %w", err)
		}
		for rows.Next() {
			var id, category, subtype string
			if err := rows.Scan(&id, &category, &subtype); err != nil {
				rows.Close()
				return prov.Presence{}, fmt.Errorf("scan node presence: %w", err)
			}
			p.AddNode(id, prov.Category(category), prov.Subtype(subtype))
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return prov.Presence{}, fmt.Errorf("iterate node presence: %w", err)
		}
	}

	for start := 0; start < len(edges); start += presenceChunk {
		chunk := edges[start:min(start+presenceChunk, len(edges))]
		args := make([]any, 0, 2*len(chunk))
		for _, k := range chunk {
			args = append(args, k.Source, k.Target)
		}
		rows, err := s.db.QueryContext(ctx, `
			SELECT source_id, target_id, relation FROM edges
			WHERE (source_id, target_id) IN (VALUES `+placeholders(len(chunk), "(?, ?)")+`)
		`, args...)
		if err != nil {
			return prov.Presence{}, fmt.Errorf("query edge presence: %w", err)
		}
		for rows.Next() {
			var k prov.EdgeKey
			var rel string
			if err := rows.Scan(&k.Source, &k.Target, &rel); err != nil {
				rows.Close()
				return prov.Presence{}, fmt.Errorf("scan edge presence: %w", err)
			}
			p.Edges[k] = prov.Relation(rel)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return prov.Presence{}, fmt.Errorf("iterate edge presence: %w", err)
		}
	}

	return p, nil
}

// ListRecords returns the ids of records owning at least one node or edge.
func (s *Store) ListRecords(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id FROM node_owners
		UNION
		SELECT record_id FROM edge_owners
		ORDER BY record_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return ids, nil
}

func placeholders(n int, one string) string {
	return strings.TrimSuffix(strings.Repeat(one+", ", n), ", ")
}

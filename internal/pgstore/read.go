package pgstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/roach88/provsync/internal/prov"
)

// FetchOwnedSubgraph returns every edge recordID owns whose endpoints
// recordID also owns.
func (s *Store) FetchOwnedSubgraph(ctx context.Context, recordID string) (prov.LogicalGraph, error) {
	var rows []subgraphRow
	err := s.db.NewRaw(`
		SELECT
			e.source_id, src.category AS source_category, src.subtype AS source_subtype, src.owners AS source_owners,
			e.target_id, dst.category AS target_category, dst.subtype AS target_subtype, dst.owners AS target_owners,
			e.relation, e.owners
		FROM provsync_edges AS e
		JOIN provsync_nodes AS src ON src.id = e.source_id
		JOIN provsync_nodes AS dst ON dst.id = e.target_id
		WHERE ? = ANY(e.owners) AND ? = ANY(src.owners) AND ? = ANY(dst.owners)
		ORDER BY e.source_id COLLATE "C", e.target_id COLLATE "C"
	`, recordID, recordID, recordID).Scan(ctx, &rows)
	if err != nil {
		return prov.LogicalGraph{}, fmt.Errorf("query owned subgraph: %w", err)
	}

	g := prov.Empty(recordID)
	for _, r := range rows {
		g.Edges = append(g.Edges, prov.Edge{
			Source: prov.Node{
				ID:       r.SourceID,
				Category: prov.Category(r.SourceCategory),
				Subtype:  prov.Subtype(r.SourceSubtype),
				Owners:   prov.NewOwnerSet(r.SourceOwners...),
			},
			Target: prov.Node{
				ID:       r.TargetID,
				Category: prov.Category(r.TargetCategory),
				Subtype:  prov.Subtype(r.TargetSubtype),
				Owners:   prov.NewOwnerSet(r.TargetOwners...),
			},
			Relation: prov.Relation(r.Relation),
			Owners:   prov.NewOwnerSet(r.Owners...),
		})
	}
	return g, nil
}

// Presence reports which of the given nodes and edges exist.
func (s *Store) Presence(ctx context.Context, nodeIDs []string, edges []prov.EdgeKey) (prov.Presence, error) {
	p := prov.NewPresence()

	if len(nodeIDs) > 0 {
		var found []nodeModel
		if err := s.db.NewSelect().
			Model(&found).
			Column("id", "category", "subtype").
			Where("id IN (?)", bun.In(nodeIDs)).
			Scan(ctx); err != nil {
			return prov.Presence{}, fmt.Errorf("query node presence: %w", err)
		}
		for _, n := range found {
			p.AddNode(n.ID, prov.Category(n.Category), prov.Subtype(n.Subtype))
		}
	}

	if len(edges) > 0 {
		pairs := make([][]string, len(edges))
		for i, k := range edges {
			pairs[i] = []string{k.Source, k.Target}
		}
		var found []edgeModel
		if err := s.db.NewSelect().
			Model(&found).
			Column("source_id", "target_id", "relation").
			Where("(source_id, target_id) IN (?)", bun.In(pairs)).
			Scan(ctx); err != nil {
			return prov.Presence{}, fmt.Errorf("query edge presence: %w", err)
		}
		for _, e := range found {
			p.Edges[prov.EdgeKey{Source: e.SourceID, Target: e.TargetID}] = prov.Relation(e.Relation)
		}
	}

	return p, nil
}

// ListRecords returns the ids of records owning at least one node or edge.
func (s *Store) ListRecords(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := s.db.NewRaw(`
		SELECT record_id FROM (
			SELECT unnest(owners) AS record_id FROM provsync_nodes
			UNION
			SELECT unnest(owners) AS record_id FROM provsync_edges
		) AS owners
		GROUP BY record_id
		ORDER BY record_id COLLATE "C"
	`).Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	return ids, nil
}

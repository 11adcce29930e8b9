package neo4jstore

import (
	"context"

	"github.com/roach88/provsync/internal/prov"
)

// FetchOwnedSubgraph returns the PROV relationships recordID owns whose
// endpoints recordID also owns.
func (s *Store) FetchOwnedSubgraph(ctx context.Context, recordID string) (prov.LogicalGraph, error) {
	records, err := s.read(ctx, "fetch owned subgraph", cypherFetchOwned, map[string]any{"record": recordID})
	if err != nil {
		return prov.LogicalGraph{}, err
	}

	g := prov.Empty(recordID)
	for _, r := range records {
		g.Edges = append(g.Edges, prov.Edge{
			Source: prov.Node{
				ID:       getString(r, "sourceId"),
				Category: prov.Category(getString(r, "sourceCategory")),
				Subtype:  prov.Subtype(getString(r, "sourceSubtype")),
				Owners:   getOwners(r, "sourceOwners"),
			},
			Target: prov.Node{
				ID:       getString(r, "targetId"),
				Category: prov.Category(getString(r, "targetCategory")),
				Subtype:  prov.Subtype(getString(r, "targetSubtype")),
				Owners:   getOwners(r, "targetOwners"),
			},
			Relation: prov.Relation(getString(r, "relation")),
			Owners:   getOwners(r, "owners"),
		})
	}
	return g, nil
}

// Presence reports which nodes and relationships exist.
func (s *Store) Presence(ctx context.Context, nodeIDs []string, edges []prov.EdgeKey) (prov.Presence, error) {
	p := prov.NewPresence()

	if len(nodeIDs) > 0 {
		records, err := s.read(ctx, "node presence", cypherFindNodes, map[string]any{"ids": nodeIDs})
		if err != nil {
			return prov.Presence{}, err
		}
		for _, r := range records {
			p.AddNode(getString(r, "id"), prov.Category(getString(r, "category")), prov.Subtype(getString(r, "subtype")))
		}
	}

	if len(edges) > 0 {
		pairs := make([]any, len(edges))
		for i, k := range edges {
			pairs[i] = map[string]any{"source": k.Source, "target": k.Target}
		}
		records, err := s.read(ctx, "edge presence", cypherFindEdges, map[string]any{"pairs": pairs})
		if err != nil {
			return prov.Presence{}, err
		}
		for _, r := range records {
			key := prov.EdgeKey{Source: getString(r, "source"), Target: getString(r, "target")}
			p.Edges[key] = prov.Relation(getString(r, "relation"))
		}
	}

	return p, nil
}

// ListRecords returns the ids of records owning at least one node or relationship.
func (s *Store) ListRecords(ctx context.Context) ([]string, error) {
	records, err := s.read(ctx, "list records", cypherListRecords, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, getString(r, "record"))
	}
	return ids, nil
}

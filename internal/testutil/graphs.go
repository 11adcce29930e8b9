package testutil

import "github.com/roach88/provsync/internal/prov"

// Run returns a Run activity node owned by owners.
func Run(id string, owners ...string) prov.Node {
	return prov.Node{ID: id, Category: prov.CategoryActivity, Subtype: prov.SubtypeRun, Owners: prov.NewOwnerSet(owners...)}
}

// Dataset returns a Dataset entity node owned by owners.
func Dataset(id string, owners ...string) prov.Node {
	return prov.Node{ID: id, Category: prov.CategoryEntity, Subtype: prov.SubtypeDataset, Owners: prov.NewOwnerSet(owners...)}
}

// Used links run to dataset with the "used" relation.
func Used(run, dataset prov.Node, owners ...string) prov.Edge {
	return prov.Edge{Source: run, Target: dataset, Relation: prov.RelationUsed, Owners: prov.NewOwnerSet(owners...)}
}

// Desired returns the freshly built graph of recordID: every edge and
// endpoint is owned by recordID alone. pairs alternates run and dataset ids.
func Desired(recordID string, pairs ...string) prov.LogicalGraph {
	g := prov.Empty(recordID)
	for i := 0; i+1 < len(pairs); i += 2 {
		g.Edges = append(g.Edges, Used(Run(pairs[i], recordID), Dataset(pairs[i+1], recordID), recordID))
	}
	return g
}

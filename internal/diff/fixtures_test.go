package diff

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/provsync/internal/prov"
)

func run(id string, owners ...string) prov.Node {
	return prov.Node{ID: id, Category: prov.CategoryActivity, Subtype: prov.SubtypeRun, Owners: prov.NewOwnerSet(owners...)}
}

func dataset(id string, owners ...string) prov.Node {
	return prov.Node{ID: id, Category: prov.CategoryEntity, Subtype: prov.SubtypeDataset, Owners: prov.NewOwnerSet(owners...)}
}

func link(src prov.Node, rel prov.Relation, dst prov.Node, owners ...string) prov.Edge {
	return prov.Edge{Source: src, Target: dst, Relation: rel, Owners: prov.NewOwnerSet(owners...)}
}

func graph(rec string, edges ...prov.Edge) prov.LogicalGraph {
	if edges == nil {
		edges = []prov.Edge{}
	}
	return prov.LogicalGraph{RecordID: rec, Edges: edges}
}

func computeSorted(t testing.TB, old, new prov.LogicalGraph) []Action {
	t.Helper()
	actions, err := Compute(old, new)
	require.NoError(t, err)
	Sort(actions)
	return actions
}

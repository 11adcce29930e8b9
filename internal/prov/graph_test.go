package prov

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodesAreDerivedFromEdges(t *testing.T) {
	x := activity("x", "r1")
	y := dataset("y", "r1")
	z := dataset("z", "r1")
	g := LogicalGraph{RecordID: "r1", Edges: []Edge{
		edge(x, RelationUsed, y, "r1"),
		edge(x, RelationUsed, z, "r1"),
	}}

	nodes := g.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, "x", nodes[0].ID)
	assert.Equal(t, "y", nodes[1].ID)
	assert.Equal(t, "z", nodes[2].ID)
}

func TestNodeMapUnionsOwners(t *testing.T) {
	g := LogicalGraph{RecordID: "r1", Edges: []Edge{
		edge(activity("x", "r1"), RelationUsed, dataset("y", "r1")),
		edge(activity("x", "r1", "r2"), RelationUsed, dataset("z", "r1")),
	}}

	assert.Equal(t, []string{"r1", "r2"}, g.NodeMap()["x"].Owners.Sorted())
}

func TestNodeMapDoesNotAliasEdgeOwners(t *testing.T) {
	x := activity("x", "r1")
	g := LogicalGraph{RecordID: "r1", Edges: []Edge{edge(x, RelationUsed, dataset("y", "r1"))}}

	g.NodeMap()["x"].Owners.Add("r9")
	assert.False(t, g.Edges[0].Source.Owners.Has("r9"))
}

func TestEdgeMapKeysBySourceTarget(t *testing.T) {
	g := LogicalGraph{RecordID: "r1", Edges: []Edge{
		edge(activity("x"), RelationUsed, dataset("y")),
	}}
	m := g.EdgeMap()
	e, ok := m[EdgeKey{Source: "x", Target: "y"}]
	require.True(t, ok)
	assert.Equal(t, RelationUsed, e.Relation)
	assert.Equal(t, "x->y", e.Key().String())
}

func TestEmptyGraph(t *testing.T) {
	g := Empty("r1")
	assert.True(t, g.IsEmpty())
	assert.Empty(t, g.Nodes())
	assert.NoError(t, g.Validate())
}

func TestValidate(t *testing.T) {
	person := Node{ID: "alice", Category: CategoryAgent, Subtype: SubtypePerson}

	tests := []struct {
		name    string
		graph   LogicalGraph
		wantErr string
	}{
		{
			name:  "valid",
			graph: LogicalGraph{RecordID: "r1", Edges: []Edge{edge(activity("x"), RelationWasAssociatedWith, person)}},
		},
		{
			name:    "missing record id",
			graph:   LogicalGraph{},
			wantErr: "record id is required",
		},
		{
			name:    "missing node id",
			graph:   LogicalGraph{RecordID: "r1", Edges: []Edge{edge(activity(""), RelationUsed, dataset("y"))}},
			wantErr: "node id is required",
		},
		{
			name: "subtype outside category",
			graph: LogicalGraph{RecordID: "r1", Edges: []Edge{edge(
				Node{ID: "x", Category: CategoryAgent, Subtype: SubtypeRun}, RelationUsed, dataset("y"))}},
			wantErr: "is not a Agent subtype",
		},
		{
			name:    "unknown relation",
			graph:   LogicalGraph{RecordID: "r1", Edges: []Edge{edge(activity("x"), Relation("owns"), dataset("y"))}},
			wantErr: "unknown relation",
		},
		{
			name: "conflicting node declarations",
			graph: LogicalGraph{RecordID: "r1", Edges: []Edge{
				edge(activity("x"), RelationUsed, dataset("y")),
				edge(activity("y"), RelationWasInformedBy, activity("x")),
			}},
			wantErr: "declared as both",
		},
		{
			name: "two relations for one ordered pair",
			graph: LogicalGraph{RecordID: "r1", Edges: []Edge{
				edge(activity("x"), RelationUsed, dataset("y")),
				edge(activity("x"), RelationWasInformedBy, dataset("y")),
			}},
			wantErr: "only one edge per ordered pair",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.graph.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsInvalidGraph(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAllowsRepeatedIdenticalEdges(t *testing.T) {
	g := LogicalGraph{RecordID: "r1", Edges: []Edge{
		edge(activity("x"), RelationUsed, dataset("y")),
		edge(activity("x"), RelationUsed, dataset("y")),
	}}
	assert.NoError(t, g.Validate())
	assert.Len(t, g.EdgeMap(), 1)
}

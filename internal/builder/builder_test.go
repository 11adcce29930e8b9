package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/provsync/internal/prov"
)

func lineageSpec() RecordSpec {
	return RecordSpec{
		ID: "run-1",
		Nodes: map[string]NodeSpec{
			"run-1":    {Subtype: "Run"},
			"ds-train": {Category: "Entity", Subtype: "Dataset"},
		},
		Edges: []EdgeSpec{{Source: "run-1", Target: "ds-train", Relation: "used"}},
	}
}

func TestBuildTagsSingletonOwner(t *testing.T) {
	g, err := Build(lineageSpec(), "run-1")
	require.NoError(t, err)

	require.Len(t, g.Edges, 1)
	e := g.Edges[0]
	assert.Equal(t, "run-1", g.RecordID)
	assert.Equal(t, prov.RelationUsed, e.Relation)
	assert.Equal(t, []string{"run-1"}, e.Owners.Sorted())
	assert.Equal(t, []string{"run-1"}, e.Source.Owners.Sorted())
	assert.Equal(t, []string{"run-1"}, e.Target.Owners.Sorted())
	assert.Equal(t, prov.CategoryActivity, e.Source.Category, "category derived from subtype")
	assert.Equal(t, prov.SubtypeDataset, e.Target.Subtype)
}

func TestBuildUsesGivenRecordID(t *testing.T) {
	g, err := Build(lineageSpec(), "other")
	require.NoError(t, err)
	assert.Equal(t, "other", g.RecordID)
	assert.True(t, g.Edges[0].Owners.Has("other"))
	assert.False(t, g.Edges[0].Owners.Has("run-1"))
}

func TestBuildOwnerSetsAreIndependent(t *testing.T) {
	spec := lineageSpec()
	spec.Nodes["model-a"] = NodeSpec{Subtype: "Model"}
	spec.Edges = append(spec.Edges, EdgeSpec{Source: "model-a", Target: "run-1", Relation: "wasGeneratedBy"})

	g, err := Build(spec, "run-1")
	require.NoError(t, err)
	require.Len(t, g.Edges, 2)

	g.Edges[0].Source.Owners.Add("R2")
	assert.False(t, g.Edges[1].Target.Owners.Has("R2"))
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RecordSpec)
		id     string
		want   string
	}{
		{"missing record id", func(*RecordSpec) {}, "", "record id is required"},
		{"undeclared source", func(s *RecordSpec) { s.Edges[0].Source = "ghost" }, "run-1", `source "ghost"`},
		{"undeclared target", func(s *RecordSpec) { s.Edges[0].Target = "ghost" }, "run-1", `target "ghost"`},
		{"unused node", func(s *RecordSpec) { s.Nodes["lonely"] = NodeSpec{Subtype: "Code"} }, "run-1", "node lonely is not an endpoint"},
		{"unknown subtype", func(s *RecordSpec) { s.Nodes["run-1"] = NodeSpec{Subtype: "Spaceship"} }, "run-1", "unknown subtype"},
		{"unknown category", func(s *RecordSpec) { s.Nodes["run-1"] = NodeSpec{Category: "Thing", Subtype: "Run"} }, "run-1", "unknown category"},
		{"unknown relation", func(s *RecordSpec) { s.Edges[0].Relation = "likes" }, "run-1", "unknown relation"},
		{"category mismatch", func(s *RecordSpec) { s.Nodes["run-1"] = NodeSpec{Category: "Agent", Subtype: "Run"} }, "run-1", "not a Agent subtype"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := lineageSpec()
			tt.mutate(&spec)
			_, err := Build(spec, tt.id)
			require.Error(t, err)
			assert.True(t, prov.IsInvalidGraph(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuildEmptySpec(t *testing.T) {
	g, err := Build(RecordSpec{}, "run-1")
	require.NoError(t, err)
	assert.True(t, g.IsEmpty())
}

func TestBuildAll(t *testing.T) {
	second := RecordSpec{
		ID:    "run-2",
		Nodes: map[string]NodeSpec{"run-2": {Subtype: "Run"}, "alice": {Subtype: "Person"}},
		Edges: []EdgeSpec{{Source: "run-2", Target: "alice", Relation: "wasAssociatedWith"}},
	}

	graphs, err := BuildAll([]RecordSpec{lineageSpec(), second})
	require.NoError(t, err)
	require.Len(t, graphs, 2)
	assert.Equal(t, "run-2", graphs[1].RecordID)

	second.Edges[0].Relation = "bogus"
	_, err = BuildAll([]RecordSpec{second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build record run-2")
}

func TestDecodeYAML(t *testing.T) {
	spec, err := DecodeYAML([]byte(`
id: run-1
nodes:
  run-1: {subtype: Run}
  ds-train: {category: Entity, subtype: Dataset}
edges:
  - {source: run-1, target: ds-train, relation: used}
`))
	require.NoError(t, err)
	assert.Equal(t, lineageSpec(), spec)

	_, err = DecodeYAML([]byte("id: r\ncolour: blue\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode record yaml")
}

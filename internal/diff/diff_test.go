package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/provsync/internal/prov"
)

func TestCompute_EmptyToSingleEdge(t *testing.T) {
	x, y := run("X", "R1"), dataset("Y", "R1")
	actions := computeSorted(t, graph("R1"), graph("R1", link(x, prov.RelationUsed, y, "R1")))

	assert.Equal(t, []string{
		"AddNewNode(X)",
		"AddNewNode(Y)",
		"AddNewLink(X->Y, used)",
	}, Strings(actions))
}

func TestCompute_JoinExistingEdge(t *testing.T) {
	// Old view already shows R1's ownership of the shared edge.
	old := graph("R2", link(run("X", "R1"), prov.RelationUsed, dataset("Y", "R1"), "R1"))
	new := graph("R2", link(run("X", "R2"), prov.RelationUsed, dataset("Y", "R2"), "R2"))

	actions := computeSorted(t, old, new)
	assert.Equal(t, []string{
		"AddRecordIdToNode(X, R2)",
		"AddRecordIdToNode(Y, R2)",
		"AddRecordIdToLink(X->Y, R2)",
	}, Strings(actions))
}

func TestCompute_SharedEdgeReleasedWithoutDeletion(t *testing.T) {
	old := graph("R1", link(run("X", "R1", "R2"), prov.RelationUsed, dataset("Y", "R1", "R2"), "R1", "R2"))

	actions := computeSorted(t, old, graph("R1"))
	assert.Equal(t, []string{
		"RemoveRecordIdFromLink(X->Y, R1)",
		"RemoveRecordIdFromNode(X, R1)",
		"RemoveRecordIdFromNode(Y, R1)",
	}, Strings(actions))
	for _, a := range actions {
		assert.NotEqual(t, KindRemoveNode, a.Kind())
		assert.NotEqual(t, KindRemoveLink, a.Kind())
	}
}

func TestCompute_SoleOwnerDeletes(t *testing.T) {
	old := graph("R1", link(run("X", "R1"), prov.RelationUsed, dataset("Y", "R1"), "R1"))

	actions := computeSorted(t, old, graph("R1"))
	assert.Equal(t, []string{
		"RemoveLink(X->Y)",
		"RemoveNode(X)",
		"RemoveNode(Y)",
	}, Strings(actions))
}

func TestCompute_MixedOwnershipOnRemoval(t *testing.T) {
	// X is shared with R2, Y is exclusive to R1.
	old := graph("R1", link(run("X", "R1", "R2"), prov.RelationUsed, dataset("Y", "R1"), "R1"))

	actions := computeSorted(t, old, graph("R1"))
	assert.Equal(t, []string{
		"RemoveLink(X->Y)",
		"RemoveRecordIdFromNode(X, R1)",
		"RemoveNode(Y)",
	}, Strings(actions))
}

func TestCompute_Idempotent(t *testing.T) {
	g := graph("R1",
		link(run("X", "R1"), prov.RelationUsed, dataset("Y", "R1"), "R1"),
		link(dataset("Z", "R1"), prov.RelationWasGeneratedBy, run("X", "R1"), "R1"),
	)

	actions, err := Compute(g, g)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestCompute_IdempotentWithForeignOwners(t *testing.T) {
	old := graph("R1", link(run("X", "R1", "R2"), prov.RelationUsed, dataset("Y", "R1", "R3"), "R1", "R2"))
	new := graph("R1", link(run("X", "R1"), prov.RelationUsed, dataset("Y", "R1"), "R1"))

	actions, err := Compute(old, new)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestCompute_MonotonicGrowthOnlyAdds(t *testing.T) {
	x, y, z := run("X", "R1"), dataset("Y", "R1"), dataset("Z", "R1")
	old := graph("R1", link(x, prov.RelationUsed, y, "R1"))
	new := graph("R1", link(x, prov.RelationUsed, y, "R1"), link(z, prov.RelationWasGeneratedBy, x, "R1"))

	actions := computeSorted(t, old, new)
	assert.True(t, OnlyAdditions(actions))
	assert.Equal(t, []string{
		"AddNewNode(Z)",
		"AddNewLink(Z->X, wasGeneratedBy)",
	}, Strings(actions))
}

func TestCompute_ReplacesEdge(t *testing.T) {
	x, y, z := run("X", "R1"), dataset("Y", "R1"), dataset("Z", "R1")
	old := graph("R1", link(x, prov.RelationUsed, y, "R1"))
	new := graph("R1", link(x, prov.RelationUsed, z, "R1"))

	actions := computeSorted(t, old, new)
	assert.Equal(t, []string{
		"AddNewNode(Z)",
		"AddNewLink(X->Z, used)",
		"RemoveLink(X->Y)",
		"RemoveNode(Y)",
	}, Strings(actions))
}

func TestCompute_PreconditionComesFirst(t *testing.T) {
	// The new graph is also invalid; the record mismatch must win.
	bad := graph("R2", prov.Edge{Source: prov.Node{ID: "X"}, Target: dataset("Y"), Relation: "nope"})

	_, err := Compute(graph("R1"), bad)
	require.Error(t, err)
	assert.True(t, prov.IsPrecondition(err))
	assert.False(t, prov.IsInvalidGraph(err))
}

func TestCompute_RejectsInvalidGraph(t *testing.T) {
	bad := graph("R1", link(run("X", "R1"), "nope", dataset("Y", "R1"), "R1"))

	_, err := Compute(graph("R1"), bad)
	require.Error(t, err)
	assert.True(t, prov.IsInvalidGraph(err))
}

func TestCompute_EmptyToEmpty(t *testing.T) {
	actions, err := Compute(graph("R1"), graph("R1"))
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestCompute_SharedNodeAcrossEdges(t *testing.T) {
	// X appears on two edges but yields a single node action.
	x := run("X", "R1")
	new := graph("R1", link(x, prov.RelationUsed, dataset("A", "R1"), "R1"), link(x, prov.RelationUsed, dataset("B", "R1"), "R1"))

	actions := computeSorted(t, graph("R1"), new)
	assert.Equal(t, map[Kind]int{KindAddNewNode: 3, KindAddNewLink: 2}, Summary(actions))
}

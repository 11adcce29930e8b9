package prov

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEverySubtypeBelongsToACategory(t *testing.T) {
	for st, cat := range subtypeCategory {
		assert.True(t, cat.Valid(), "subtype %s has invalid category", st)
		assert.Equal(t, cat, st.Category())
	}
}

func TestParse(t *testing.T) {
	c, err := ParseCategory("Entity")
	require.NoError(t, err)
	assert.Equal(t, CategoryEntity, c)

	st, err := ParseSubtype("SoftwareAgent")
	require.NoError(t, err)
	assert.Equal(t, CategoryAgent, st.Category())

	r, err := ParseRelation("wasDerivedFrom")
	require.NoError(t, err)
	assert.Equal(t, RelationWasDerivedFrom, r)

	_, err = ParseCategory("entity")
	assert.True(t, IsInvalidGraph(err))
	_, err = ParseSubtype("Robot")
	assert.True(t, IsInvalidGraph(err))
	_, err = ParseRelation("USED")
	assert.True(t, IsInvalidGraph(err))
}

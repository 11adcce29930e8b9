package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/provsync/internal/prov"
	"github.com/roach88/provsync/internal/reconcile"
	"github.com/roach88/provsync/internal/storetest"
)

var _ reconcile.Store = (*Store)(nil)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) reconcile.Store {
		return createTestStore(t)
	})
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	require.NoError(t, err)
	e := testEdge("X", "Y")
	require.NoError(t, s1.UpsertNode(ctx, e.Source, "R1"))
	require.NoError(t, s1.UpsertNode(ctx, e.Target, "R1"))
	require.NoError(t, s1.UpsertEdge(ctx, e, "R1"))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	g, err := s2.FetchOwnedSubgraph(ctx, "R1")
	require.NoError(t, err)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, "X->Y", g.Edges[0].Key().String())
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"nodes", "node_owners", "edges", "edge_owners"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

// Pragma tests

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.want); err != nil {
				t.Error(err)
			}
		})
	}
}

// Schema tests

func TestSchema_Columns(t *testing.T) {
	s := createTestStore(t)

	tables := map[string][]string{
		"nodes":       {"id", "category", "subtype"},
		"node_owners": {"node_id", "record_id"},
		"edges":       {"source_id", "target_id", "relation"},
		"edge_owners": {"source_id", "target_id", "record_id"},
	}
	for table, expected := range tables {
		columns := getTableColumns(t, s.db, table)
		for _, col := range expected {
			if !contains(columns, col) {
				t.Errorf("%s table missing column %q", table, col)
			}
		}
	}
}

func TestSchema_Indexes(t *testing.T) {
	s := createTestStore(t)

	assert.Contains(t, getTableIndexes(t, s.db, "edges"), "idx_edges_target")
	assert.Contains(t, getTableIndexes(t, s.db, "node_owners"), "idx_node_owners_record")
	assert.Contains(t, getTableIndexes(t, s.db, "edge_owners"), "idx_edge_owners_record")
}

// Constraint tests

func TestConstraint_NodeWithEdgeCannotBeDeleted(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e := testEdge("X", "Y")
	require.NoError(t, s.UpsertNode(ctx, e.Source, "R1"))
	require.NoError(t, s.UpsertNode(ctx, e.Target, "R1"))
	require.NoError(t, s.UpsertEdge(ctx, e, "R1"))

	_, err := s.db.Exec(`DELETE FROM nodes WHERE id = 'X'`)
	assert.Error(t, err, "ON DELETE RESTRICT should block the delete")
}

func TestConstraint_EdgeOwnersCascade(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e := testEdge("X", "Y")
	require.NoError(t, s.UpsertNode(ctx, e.Source, "R1"))
	require.NoError(t, s.UpsertNode(ctx, e.Target, "R1"))
	require.NoError(t, s.UpsertEdge(ctx, e, "R1"))
	require.NoError(t, s.AddEdgeOwner(ctx, e.Key(), "R2"))

	_, err := s.db.Exec(`DELETE FROM edges WHERE source_id = 'X' AND target_id = 'Y'`)
	require.NoError(t, err)

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM edge_owners`).Scan(&n))
	assert.Zero(t, n)
}

func TestConstraint_EdgeRequiresNodes(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO edges (source_id, target_id, relation) VALUES ('a', 'b', 'used')`)
	assert.Error(t, err)
}

func TestUpsertNode_RefreshesAttributes(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e := testEdge("X", "Y")
	require.NoError(t, s.UpsertNode(ctx, e.Source, "R1"))

	e.Source.Subtype = "Creation"
	require.NoError(t, s.UpsertNode(ctx, e.Source, "R2"))
	require.NoError(t, s.UpsertNode(ctx, e.Target, "R2"))
	require.NoError(t, s.UpsertEdge(ctx, e, "R2"))

	g, err := s.FetchOwnedSubgraph(ctx, "R2")
	require.NoError(t, err)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, "Creation", string(g.Edges[0].Source.Subtype))
	assert.Equal(t, []string{"R1", "R2"}, g.Edges[0].Source.Owners.Sorted())
}

func TestPresence_ManyKeys(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e := testEdge("X", "Y")
	require.NoError(t, s.UpsertNode(ctx, e.Source, "R1"))
	require.NoError(t, s.UpsertNode(ctx, e.Target, "R1"))
	require.NoError(t, s.UpsertEdge(ctx, e, "R1"))

	// More ids than one chunk holds.
	ids := make([]string, 0, 2*presenceChunk+1)
	for i := range 2 * presenceChunk {
		ids = append(ids, fmt.Sprintf("n%d", i))
	}
	ids = append(ids, "Y")

	p, err := s.Presence(ctx, ids, nil)
	require.NoError(t, err)
	require.Len(t, p.Nodes, 1)
	stored, ok := p.StoredNode("Y")
	require.True(t, ok)
	assert.Equal(t, prov.SubtypeDataset, stored.Subtype)
}

func TestCounts(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e := testEdge("X", "Y")
	require.NoError(t, s.UpsertNode(ctx, e.Source, "R1"))
	require.NoError(t, s.UpsertNode(ctx, e.Target, "R1"))
	require.NoError(t, s.UpsertEdge(ctx, e, "R1"))

	nodes, edges, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 1, edges)
}

// Migration tests

func TestMigration_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Schema without migrations simulates a v0 database.
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 0"); err != nil {
		t.Fatalf("failed to set user_version: %v", err)
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d after migration", version, currentSchemaVersion)
	}
	if !contains(getTableIndexes(t, s.db, "edge_owners"), "idx_edge_owners_record") {
		t.Error("edge_owners index missing after migration")
	}
}

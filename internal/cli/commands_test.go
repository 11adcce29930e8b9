package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/provsync/internal/reconcile"
)

const recordsDir = "../../testdata/records"

type cliEnv struct {
	t    *testing.T
	db   string
	opts *RootOptions
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	return &cliEnv{
		t:    t,
		db:   filepath.Join(t.TempDir(), "provsync.db"),
		opts: &RootOptions{RunIDs: reconcile.NewFixedGenerator("run-a", "run-b", "run-c", "run-d")},
	}
}

// run executes args against the env's SQLite database and returns stdout.
func (e *cliEnv) run(args ...string) (string, error) {
	e.t.Helper()
	cmd := newRootCommand(e.opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--backend", "sqlite", "--db", e.db}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// runJSON executes args with --format json and decodes the response data
// into v.
func (e *cliEnv) runJSON(v any, args ...string) CLIResponse {
	e.t.Helper()
	out, err := e.run(append([]string{"--format", "json"}, args...)...)
	require.NoError(e.t, err, out)

	var resp CLIResponse
	require.NoError(e.t, json.Unmarshal([]byte(out), &resp))
	require.Equal(e.t, "ok", resp.Status)
	if v != nil {
		data, err := json.Marshal(resp.Data)
		require.NoError(e.t, err)
		require.NoError(e.t, json.Unmarshal(data, v))
	}
	return resp
}

func TestApplyCommand(t *testing.T) {
	env := newCLIEnv(t)

	var first ResultOutput
	env.runJSON(&first, "apply", "run-1", recordsDir)
	assert.Equal(t, "run-a", first.RunID)
	assert.Equal(t, "run-1", first.RecordID)
	assert.Equal(t, map[string]int{"AddNewNode": 3, "AddNewLink": 2}, first.Summary)
	assert.Equal(t, 5, first.Applied)
	assert.Equal(t, 1, first.Attempts)
	assert.Contains(t, first.Actions, "AddNewLink(run-1->ds-train, used)")

	// ds-train already exists, so run-2 joins it instead of creating it.
	var second ResultOutput
	env.runJSON(&second, "apply", "run-2", recordsDir)
	assert.Equal(t, map[string]int{"AddRecordIdToNode": 1, "AddNewNode": 2, "AddNewLink": 2}, second.Summary)
	assert.Equal(t, 1, second.Resolved)
	assert.Contains(t, second.Actions, "AddRecordIdToNode(ds-train, run-2)")

	var again ResultOutput
	env.runJSON(&again, "apply", "run-1", recordsDir)
	assert.Empty(t, again.Actions)
	assert.Equal(t, 0, again.Applied)
}

func TestApplyCommand_Text(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run("apply", "run-1", recordsDir)
	require.NoError(t, err)
	assert.Contains(t, out, "run-1: applied 5/5 actions (run run-a)")
	assert.Contains(t, out, "  AddNewNode(ds-train)")

	out, err = env.run("apply", "run-1", recordsDir)
	require.NoError(t, err)
	assert.Contains(t, out, "run-1: up to date")
}

func TestApplyCommand_UnknownRecord(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run("--format", "json", "apply", "run-9", recordsDir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeLoad, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "run-9")
}

func TestPlanCommand(t *testing.T) {
	env := newCLIEnv(t)

	var plan PlanOutput
	env.runJSON(&plan, "plan", "run-1", recordsDir)
	assert.Len(t, plan.Actions, 5)

	// Planning writes nothing.
	var records map[string][]string
	env.runJSON(&records, "records")
	assert.Empty(t, records["records"])

	env.runJSON(nil, "apply", "run-1", recordsDir)

	out, err := env.run("plan", "run-1", recordsDir)
	require.NoError(t, err)
	assert.Equal(t, "run-1: no changes\n", out)
}

func TestFetchCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.runJSON(nil, "apply", "run-1", recordsDir)
	env.runJSON(nil, "apply", "run-2", recordsDir)

	var fetched FetchOutput
	env.runJSON(&fetched, "fetch", "run-1")
	assert.Equal(t, "run-1", fetched.RecordID)
	assert.Len(t, fetched.Fingerprint, 64)
	require.Len(t, fetched.Nodes, 3)
	assert.Equal(t, NodeOutput{
		ID:       "ds-train",
		Category: "Entity",
		Subtype:  "Dataset",
		Owners:   []string{"run-1", "run-2"},
	}, fetched.Nodes[0])
	assert.Equal(t, []EdgeOutput{
		{Source: "model-a", Target: "run-1", Relation: "wasGeneratedBy", Owners: []string{"run-1"}},
		{Source: "run-1", Target: "ds-train", Relation: "used", Owners: []string{"run-1"}},
	}, fetched.Edges)

	var empty FetchOutput
	env.runJSON(&empty, "fetch", "nobody")
	assert.Empty(t, empty.Nodes)
	assert.Empty(t, empty.Edges)
}

func TestRetireCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.runJSON(nil, "apply", "run-1", recordsDir)
	env.runJSON(nil, "apply", "run-2", recordsDir)

	var retired ResultOutput
	env.runJSON(&retired, "retire", "run-1")
	assert.Equal(t, "run-1", retired.RecordID)
	assert.Equal(t, len(retired.Actions), retired.Applied)

	var records map[string][]string
	env.runJSON(&records, "records")
	assert.Equal(t, []string{"run-2"}, records["records"])

	// The shared dataset survives with its remaining owner.
	var fetched FetchOutput
	env.runJSON(&fetched, "fetch", "run-2")
	require.Len(t, fetched.Nodes, 3)
	assert.Equal(t, "ds-train", fetched.Nodes[1].ID)
	assert.Equal(t, []string{"run-2"}, fetched.Nodes[1].Owners)
}

func TestSyncCommand(t *testing.T) {
	env := newCLIEnv(t)

	var synced SyncOutput
	env.runJSON(&synced, "sync", recordsDir)
	require.Len(t, synced.Results, 2)
	assert.Empty(t, synced.Failed)

	var records map[string][]string
	env.runJSON(&records, "records")
	assert.Equal(t, []string{"run-1", "run-2"}, records["records"])

	var resynced SyncOutput
	env.runJSON(&resynced, "sync", recordsDir)
	for _, r := range resynced.Results {
		assert.Empty(t, r.Actions, r.RecordID)
	}
}

func TestSyncCommand_Prune(t *testing.T) {
	env := newCLIEnv(t)
	env.runJSON(nil, "sync", recordsDir)

	dir := t.TempDir()
	only := `package records

record: "run-2": {
	nodes: {
		"run-2":    {subtype: "Run"}
		"ds-train": {subtype: "Dataset"}
	}
	edges: [{source: "run-2", target: "ds-train", relation: "used"}]
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "records.cue"), []byte(only), 0o644))

	var synced SyncOutput
	env.runJSON(&synced, "sync", "--prune", dir)
	require.Len(t, synced.Retired, 1)
	assert.Equal(t, "run-1", synced.Retired[0].RecordID)

	var records map[string][]string
	env.runJSON(&records, "records")
	assert.Equal(t, []string{"run-2"}, records["records"])
}

func TestScenarioCommand(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run("scenario",
		"../harness/testdata/scenarios/scenario_a_create.yaml",
		"../harness/testdata/scenarios/scenario_b_join.yaml",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ scenario_a_create")
	assert.Contains(t, out, "2 passed, 0 failed")
}

func TestScenarioCommand_Failure(t *testing.T) {
	env := newCLIEnv(t)

	scenario := `name: wrong_expectation
description: expects the wrong action list
steps:
  - record: R1
    graph:
      nodes:
        X: {subtype: Run}
        Y: {subtype: Dataset}
      edges:
        - {source: X, target: Y, relation: used}
    expect:
      actions: []
`
	path := filepath.Join(t.TempDir(), "wrong_expectation.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenario), 0o644))

	out, err := env.run("scenario", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_expectation")
	assert.Contains(t, out, "actions mismatch")
}

func TestVersionCommand(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run("version")
	require.NoError(t, err)
	assert.Equal(t, "provsync 0.3.0 (graph schema v1)\n", out)
}

func TestMetricsFile(t *testing.T) {
	env := newCLIEnv(t)
	metrics := filepath.Join(t.TempDir(), "provsync.prom")

	_, err := env.run("--metrics-file", metrics, "apply", "run-1", recordsDir)
	require.NoError(t, err)

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), "provsync_")
}

func TestEnvFile(t *testing.T) {
	env := newCLIEnv(t)
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("PROVSYNC_LOG_LEVEL=loud\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("PROVSYNC_LOG_LEVEL") })

	out, err := env.run("--format", "json", "--env-file", envFile, "records")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `"code":"CONFIG"`)

	_, err = env.run("--env-file", filepath.Join(t.TempDir(), "missing.env"), "records")
	require.Error(t, err)
}

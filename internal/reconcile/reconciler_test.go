package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/provsync/internal/memstore"
	"github.com/roach88/provsync/internal/prov"
)

func newTestReconciler(s Store, opts ...Option) *Reconciler {
	base := []Option{WithBackoff(0), WithRunIDs(NewFixedGenerator("run"))}
	return New(s, append(base, opts...)...)
}

func TestReconcile_RetriesAfterPartialApply(t *testing.T) {
	ctx := context.Background()
	s := newFaultyStore()
	s.failAt[2] = errors.New("connection reset")
	r := newTestReconciler(s)

	res, err := r.Reconcile(ctx, "R1", desired("R1", [2]string{"X", "Y"}))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 1, res.Resolved, "X survived the failed pass")

	g, err := r.Fetch(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, prov.MustFingerprint(desired("R1", [2]string{"X", "Y"})), prov.MustFingerprint(g))
}

func TestReconcile_GivesUpAfterMaxRetries(t *testing.T) {
	s := newFaultyStore()
	s.fetchErr = errors.New("dial tcp: refused")
	r := newTestReconciler(s, WithMaxRetries(1))

	_, err := r.Reconcile(context.Background(), "R1", desired("R1", [2]string{"X", "Y"}))
	require.Error(t, err)
	assert.True(t, prov.IsStoreUnavailable(err))
	assert.Equal(t, 2, s.fetches)
}

func TestReconcile_DoesNotRetryInvalidGraph(t *testing.T) {
	s := newFaultyStore()
	r := newTestReconciler(s)

	bad := desired("R1", [2]string{"X", "Y"})
	bad.Edges[0].Relation = "bogus"
	_, err := r.Reconcile(context.Background(), "R1", bad)
	require.Error(t, err)
	assert.True(t, prov.IsInvalidGraph(err))
	assert.Zero(t, s.fetches)
}

func TestReconcile_RecordMismatch(t *testing.T) {
	r := newTestReconciler(memstore.New())

	_, err := r.Reconcile(context.Background(), "R1", desired("R2", [2]string{"X", "Y"}))
	require.Error(t, err)
	assert.True(t, prov.IsPrecondition(err))
}

func TestReconcile_Idempotent(t *testing.T) {
	ctx := context.Background()
	r := newTestReconciler(memstore.New())
	want := desired("R1", [2]string{"X", "Y"}, [2]string{"X", "Z"})

	_, err := r.Reconcile(ctx, "R1", want)
	require.NoError(t, err)
	res, err := r.Reconcile(ctx, "R1", want)
	require.NoError(t, err)
	assert.Empty(t, res.Actions)
}

func TestReconcile_WaitsForLock(t *testing.T) {
	locker := NewKeyedLocker()
	require.NoError(t, locker.Acquire(context.Background(), "R1"))
	defer locker.Release("R1")

	r := newTestReconciler(memstore.New(), WithLocker(locker), WithTimeout(20*time.Millisecond))
	_, err := r.Reconcile(context.Background(), "R1", desired("R1", [2]string{"X", "Y"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetire(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	r := newTestReconciler(s)

	_, err := r.Reconcile(ctx, "R1", desired("R1", [2]string{"X", "Y"}))
	require.NoError(t, err)
	res, err := r.Retire(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Applied)

	n, e := s.Counts()
	assert.Zero(t, n)
	assert.Zero(t, e)
}

func TestReconcile_RetriesAfterPartialRemoval(t *testing.T) {
	ctx := context.Background()
	s := newFaultyStore()
	r := newTestReconciler(s)

	_, err := r.Reconcile(ctx, "R1", desired("R1", [2]string{"X", "Y"}))
	require.NoError(t, err)

	// Calls 1-3 built the graph; 4 deletes the edge, 5 deletes X.
	s.failAt[5] = errors.New("connection reset")
	res, err := r.Retire(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Empty(t, res.Actions, "the edge was already gone when the retry fetched")
	assert.Equal(t, 2, res.ReleasedNodes)

	n, e := s.Counts()
	assert.Zero(t, n)
	assert.Zero(t, e)
}

func TestRetire_AfterExhaustedRetriesStillListsRecord(t *testing.T) {
	ctx := context.Background()
	s := newFaultyStore()
	r := newTestReconciler(s, WithMaxRetries(0))

	_, err := r.Reconcile(ctx, "R1", desired("R1", [2]string{"X", "Y"}))
	require.NoError(t, err)

	s.failAt[5] = errors.New("connection reset")
	_, err = r.Retire(ctx, "R1")
	require.Error(t, err)
	assert.True(t, prov.IsPartialApply(err))

	records, err := r.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"R1"}, records, "nodes still owned without an edge")

	res, err := r.Retire(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.ReleasedNodes)

	n, e := s.Counts()
	assert.Zero(t, n)
	assert.Zero(t, e)
	records, err = r.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReconcile_ReleasesNothingOnCleanPass(t *testing.T) {
	ctx := context.Background()
	r := newTestReconciler(memstore.New())

	res, err := r.Reconcile(ctx, "R1", desired("R1", [2]string{"X", "Y"}, [2]string{"X", "Z"}))
	require.NoError(t, err)
	assert.Zero(t, res.ReleasedNodes)

	res, err = r.Reconcile(ctx, "R1", desired("R1", [2]string{"X", "Y"}))
	require.NoError(t, err)
	assert.Zero(t, res.ReleasedNodes)
}

func TestPlan_DoesNotWrite(t *testing.T) {
	s := memstore.New()
	r := newTestReconciler(s)

	actions, err := r.Plan(context.Background(), "R1", desired("R1", [2]string{"X", "Y"}))
	require.NoError(t, err)
	assert.Len(t, actions, 3)
	n, e := s.Counts()
	assert.Zero(t, n)
	assert.Zero(t, e)
}

func TestReconcileAll_SharedNode(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	r := newTestReconciler(s, WithConcurrency(3))

	var graphs []prov.LogicalGraph
	for i := 1; i <= 6; i++ {
		rec := fmt.Sprintf("R%d", i)
		graphs = append(graphs, desired(rec, [2]string{"X", "D" + rec}))
	}

	results, err := r.ReconcileAll(ctx, graphs)
	require.NoError(t, err)
	require.Len(t, results, len(graphs))
	for i, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, graphs[i].RecordID, res.RecordID)
	}

	g, err := r.Fetch(ctx, "R1")
	require.NoError(t, err)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, 6, g.Edges[0].Source.Owners.Len())

	ids, err := r.Records(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 6)
}

func TestReconcileAll_RejectsDuplicates(t *testing.T) {
	r := newTestReconciler(memstore.New())
	g := desired("R1", [2]string{"X", "Y"})

	_, err := r.ReconcileAll(context.Background(), []prov.LogicalGraph{g, g})
	require.Error(t, err)
	assert.True(t, prov.IsInvalidGraph(err))
}

func TestReconcileAll_CollectsFailures(t *testing.T) {
	r := newTestReconciler(memstore.New())
	good := desired("R1", [2]string{"X", "Y"})
	bad := desired("R2", [2]string{"X", "Y"})
	bad.Edges[0].Relation = "bogus"

	results, err := r.ReconcileAll(context.Background(), []prov.LogicalGraph{good, bad})
	require.Error(t, err)
	assert.True(t, prov.IsInvalidGraph(err))
	assert.NotNil(t, results[0])
	assert.Nil(t, results[1])
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	m.MustRegister(reg)

	s := newFaultyStore()
	s.failAt[1] = errors.New("connection reset")
	r := newTestReconciler(s, WithMetrics(m))

	_, err := r.Reconcile(ctx, "R1", desired("R1", [2]string{"X", "Y"}))
	require.NoError(t, err)
	_, err = r.Reconcile(ctx, "R2", desired("R2", [2]string{"X", "Y"}))
	require.NoError(t, err)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.actionsApplied.WithLabelValues("AddNewNode")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.actionsApplied.WithLabelValues("AddNewLink")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.actionsApplied.WithLabelValues("AddRecordIdToNode")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.applyFailures.WithLabelValues("PARTIAL_APPLY")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.resolvedActions))
}

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/provsync/internal/diff"
	"github.com/roach88/provsync/internal/prov"
)

const (
	// DefaultTimeout bounds one Reconcile call, retries included.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is how many extra passes follow a retryable failure.
	DefaultMaxRetries = 2

	// DefaultConcurrency is the number of records ReconcileAll works on at once.
	DefaultConcurrency = 4

	// DefaultBackoff is the pause before the first retry; it doubles per attempt.
	DefaultBackoff = 100 * time.Millisecond
)

// Reconciler runs fetch -> diff -> apply for records, one pass per record at
// a time.
type Reconciler struct {
	store   Store
	fetcher *Fetcher
	applier *Applier
	locker  Locker
	logger  *slog.Logger
	metrics *Metrics
	runIDs  RunIDGenerator

	timeout     time.Duration
	maxRetries  int
	concurrency int
	backoff     time.Duration
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithLocker replaces the in-process KeyedLocker.
func WithLocker(l Locker) Option {
	return func(r *Reconciler) { r.locker = l }
}

// WithMetrics enables prometheus recording.
func WithMetrics(m *Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// WithRunIDs sets the run id generator. Default: UUIDv7Generator.
func WithRunIDs(g RunIDGenerator) Option {
	return func(r *Reconciler) { r.runIDs = g }
}

// WithTimeout sets the per-record deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(r *Reconciler) { r.timeout = d }
}

// WithMaxRetries sets how many times a failed pass is repeated.
func WithMaxRetries(n int) Option {
	return func(r *Reconciler) { r.maxRetries = max(n, 0) }
}

// WithConcurrency bounds ReconcileAll.
func WithConcurrency(n int) Option {
	return func(r *Reconciler) { r.concurrency = max(n, 1) }
}

// WithBackoff sets the initial pause between retries.
func WithBackoff(d time.Duration) Option {
	return func(r *Reconciler) { r.backoff = d }
}

// New creates a Reconciler over store.
func New(store Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		logger:      slog.Default(),
		runIDs:      UUIDv7Generator{},
		timeout:     DefaultTimeout,
		maxRetries:  DefaultMaxRetries,
		concurrency: DefaultConcurrency,
		backoff:     DefaultBackoff,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.locker == nil {
		r.locker = NewKeyedLocker()
	}
	r.store = store
	r.fetcher = NewFetcher(store, r.logger)
	r.applier = NewApplier(store, r.logger, r.metrics, r.runIDs)
	r.logger = r.logger.With("scope", "reconciler")
	return r
}

// Fetch returns the logical graph recordID currently owns.
func (r *Reconciler) Fetch(ctx context.Context, recordID string) (prov.LogicalGraph, error) {
	return r.fetcher.Fetch(ctx, recordID)
}

// Reconcile makes the store reflect desired for recordID.
//
// The record lock is held across fetch, diff and apply. A pass that fails
// with PARTIAL_APPLY or STORE_UNAVAILABLE is retried from a fresh fetch.
// The fetch only sees edges, so nodes left owned by a removal interrupted
// after RemoveLink are invisible to the next diff. Every successful pass
// ends by releasing nodes the record owns without an owned incident edge.
func (r *Reconciler) Reconcile(ctx context.Context, recordID string, desired prov.LogicalGraph) (*Result, error) {
	if desired.RecordID != recordID {
		return nil, prov.NewPreconditionError(recordID, desired.RecordID)
	}
	if err := desired.Validate(); err != nil {
		return nil, fmt.Errorf("validate desired graph: %w", err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := r.locker.Acquire(ctx, recordID); err != nil {
		return nil, fmt.Errorf("acquire lock for %s: %w", recordID, err)
	}
	defer r.locker.Release(recordID)

	start := time.Now()
	defer func() { r.metrics.observeDuration(time.Since(start)) }()

	var lastErr error
	for attempt := 1; attempt <= r.maxRetries+1; attempt++ {
		if attempt > 1 {
			if err := r.wait(ctx, attempt); err != nil {
				break
			}
		}

		res, err := r.pass(ctx, recordID, desired)
		if err == nil {
			res.Attempts = attempt
			r.logger.Info("record reconciled",
				"record", recordID,
				"run", res.RunID,
				"actions", len(res.Actions),
				"resolved", res.Resolved,
				"skipped_deletes", res.SkippedDeletes,
				"released_nodes", res.ReleasedNodes,
				"attempts", attempt,
			)
			return res, nil
		}

		lastErr = err
		r.metrics.observeFailure(err)
		if !retryable(err) || ctx.Err() != nil {
			break
		}
		r.logger.Warn("reconcile pass failed; retrying",
			"record", recordID,
			"attempt", attempt,
			"error", err,
		)
	}

	return nil, fmt.Errorf("reconcile %s: %w", recordID, lastErr)
}

func (r *Reconciler) pass(ctx context.Context, recordID string, desired prov.LogicalGraph) (*Result, error) {
	old, err := r.fetcher.Fetch(ctx, recordID)
	if err != nil {
		return nil, err
	}
	res, err := r.applier.Apply(ctx, old, desired)
	if err != nil {
		return nil, err
	}

	released, err := r.store.ReleaseOrphanNodes(ctx, recordID)
	if err != nil {
		return nil, classify("release orphan nodes", err)
	}
	if released > 0 {
		r.logger.Warn("released nodes left by an interrupted pass",
			"record", recordID,
			"run", res.RunID,
			"nodes", released,
		)
	}
	res.ReleasedNodes = released
	return res, nil
}

func (r *Reconciler) wait(ctx context.Context, attempt int) error {
	if r.backoff <= 0 {
		return ctx.Err()
	}
	d := r.backoff << (attempt - 2)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func retryable(err error) bool {
	return prov.IsPartialApply(err) || prov.IsStoreUnavailable(err)
}

// Retire removes recordID's claim on every node and edge.
func (r *Reconciler) Retire(ctx context.Context, recordID string) (*Result, error) {
	return r.Reconcile(ctx, recordID, prov.Empty(recordID))
}

// Plan is a dry run of Reconcile: the resolved, sorted actions without
// executing them.
func (r *Reconciler) Plan(ctx context.Context, recordID string, desired prov.LogicalGraph) ([]diff.Action, error) {
	if desired.RecordID != recordID {
		return nil, prov.NewPreconditionError(recordID, desired.RecordID)
	}
	old, err := r.fetcher.Fetch(ctx, recordID)
	if err != nil {
		return nil, err
	}
	actions, _, err := r.applier.Plan(ctx, old, desired)
	return actions, err
}

// Records lists the ids of records that own something in the store.
func (r *Reconciler) Records(ctx context.Context) ([]string, error) {
	ids, err := r.store.ListRecords(ctx)
	if err != nil {
		return nil, classify("list records", err)
	}
	return ids, nil
}

// ReconcileAll reconciles several records concurrently. Results line up with
// desired; a failed record leaves a nil entry and its error is joined into
// the returned error without stopping the others.
func (r *Reconciler) ReconcileAll(ctx context.Context, desired []prov.LogicalGraph) ([]*Result, error) {
	seen := make(map[string]bool, len(desired))
	for _, g := range desired {
		if seen[g.RecordID] {
			return nil, prov.NewInvalidGraphError(g.RecordID, "record listed more than once")
		}
		seen[g.RecordID] = true
	}

	results := make([]*Result, len(desired))
	errs := make([]error, len(desired))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, graph := range desired {
		g.Go(func() error {
			results[i], errs[i] = r.Reconcile(ctx, graph.RecordID, graph)
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

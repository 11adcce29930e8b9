package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/provsync/internal/builder"
	"github.com/roach88/provsync/internal/memstore"
	"github.com/roach88/provsync/internal/prov"
	"github.com/roach88/provsync/internal/reconcile"
	"github.com/roach88/provsync/internal/testutil"
)

// Harness executes scenario steps against one store.
type Harness struct {
	store      reconcile.Store
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
}

// Option configures a Harness.
type Option func(*harnessConfig)

type harnessConfig struct {
	logger *slog.Logger
}

// WithLogger routes reconciler logs to l. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *harnessConfig) { c.logger = l }
}

// Run executes scenario against store and returns its result.
//
// Step failures and assertion mismatches are reported in the Result; the
// returned error is reserved for problems running the scenario at all.
func Run(ctx context.Context, scenario *Scenario, store reconcile.Store, opts ...Option) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	cfg := harnessConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	var runIDs reconcile.RunIDGenerator = testutil.NewSequentialRunIDs("run")
	if len(scenario.RunIDs) > 0 {
		runIDs = reconcile.NewFixedGenerator(scenario.RunIDs...)
	}

	h := &Harness{
		store: store,
		reconciler: reconcile.New(store,
			reconcile.WithLogger(cfg.logger),
			reconcile.WithRunIDs(runIDs),
			reconcile.WithMaxRetries(0),
			reconcile.WithBackoff(0),
		),
		logger: cfg.logger.With("scope", "harness", "scenario", scenario.Name),
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run scenario %s: %w", scenario.Name, err)
		}
		h.executeStep(ctx, i+1, step, result)
	}

	for _, msg := range EvaluateAssertions(ctx, store, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// RunFile loads a scenario file and runs it against a fresh in-memory store.
func RunFile(ctx context.Context, path string, opts ...Option) (*Scenario, *Result, error) {
	scenario, err := LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	result, err := Run(ctx, scenario, memstore.New(), opts...)
	if err != nil {
		return scenario, nil, err
	}
	return scenario, result, nil
}

func (h *Harness) executeStep(ctx context.Context, n int, step Step, result *Result) {
	event := TraceEvent{Step: n, Record: step.Record, Op: OpReconcile}
	if step.Retire {
		event.Op = OpRetire
	}

	res, err := h.apply(ctx, step)
	if res != nil {
		event.RunID = res.RunID
		event.Actions = res.Actions
		event.Applied = res.Applied
		event.Resolved = res.Resolved
		event.SkippedDeletes = res.SkippedDeletes
	}
	if err != nil {
		event.Error = errorCode(err)
	}
	result.AddEvent(event)

	h.logger.Debug("step executed",
		"step", n,
		"record", step.Record,
		"op", event.Op,
		"actions", len(event.Actions),
		"error", event.Error,
	)

	prefix := fmt.Sprintf("step %d (%s %s)", n, event.Op, step.Record)
	switch {
	case err != nil && (step.Expect == nil || step.Expect.Error == ""):
		result.AddError(fmt.Sprintf("%s: unexpected error: %v", prefix, err))
	case err != nil && event.Error != step.Expect.Error:
		result.AddError(fmt.Sprintf("%s: expected error %s, got %v", prefix, step.Expect.Error, err))
	case err != nil:
	case step.Expect == nil:
	case step.Expect.Error != "":
		result.AddError(fmt.Sprintf("%s: expected error %s, step succeeded", prefix, step.Expect.Error))
	default:
		got := event.ActionStrings()
		if !sameStrings(got, step.Expect.Actions) {
			result.AddError(fmt.Sprintf("%s: actions mismatch\n  expected: %v\n  actual:   %v",
				prefix, step.Expect.Actions, got))
		}
	}
}

func (h *Harness) apply(ctx context.Context, step Step) (*reconcile.Result, error) {
	if step.Retire {
		return h.reconciler.Retire(ctx, step.Record)
	}
	desired, err := builder.Build(*step.Graph, step.Record)
	if err != nil {
		return nil, err
	}
	return h.reconciler.Reconcile(ctx, step.Record, desired)
}

// errorCode returns the prov error code of err, or "ERROR" when it has none.
func errorCode(err error) string {
	if code := prov.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}

// sameStrings compares two lists in order, treating nil and empty as equal.
func sameStrings(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return slices.Equal(a, b)
}

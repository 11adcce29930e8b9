package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/provsync/internal/diff"
	"github.com/roach88/provsync/internal/prov"
)

// Result describes one executed reconciliation pass.
type Result struct {
	RunID    string `json:"run_id"`
	RecordID string `json:"record_id"`

	// Actions is the resolved, sorted list that was (or would have been) executed.
	Actions []diff.Action `json:"-"`

	// Applied counts the actions that completed.
	Applied int `json:"applied"`

	// Resolved counts additions rewritten into ownership joins.
	Resolved int `json:"resolved"`

	// SkippedDeletes counts deletes the store declined because the entity
	// was still owned by another record or still linked.
	SkippedDeletes int `json:"skipped_deletes"`

	// ReleasedNodes counts nodes the record still owned without owning any
	// incident edge, left behind by an earlier interrupted pass.
	ReleasedNodes int `json:"released_nodes"`

	// Attempts is the number of passes the Reconciler needed.
	Attempts int `json:"attempts"`
}

// Summary counts the result's actions per kind.
func (r *Result) Summary() map[diff.Kind]int {
	return diff.Summary(r.Actions)
}

// Applier computes and executes diffs against a Store.
type Applier struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics
	runIDs  RunIDGenerator
}

// NewApplier returns an Applier for store. logger, metrics and runIDs may be
// nil.
func NewApplier(store Store, logger *slog.Logger, metrics *Metrics, runIDs RunIDGenerator) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	if runIDs == nil {
		runIDs = UUIDv7Generator{}
	}
	return &Applier{
		store:   store,
		logger:  logger.With("scope", "applier"),
		metrics: metrics,
		runIDs:  runIDs,
	}
}

// Plan computes the sorted action list for old -> new, resolved against the
// store, without executing it.
func (a *Applier) Plan(ctx context.Context, old, new prov.LogicalGraph) ([]diff.Action, int, error) {
	actions, err := diff.Compute(old, new)
	if err != nil {
		return nil, 0, fmt.Errorf("compute diff: %w", err)
	}
	resolved, err := a.resolve(ctx, new.RecordID, actions)
	if err != nil {
		return nil, 0, err
	}
	diff.Sort(actions)
	return actions, resolved, nil
}

// Apply computes, sorts and executes the actions taking old to new.
//
// Actions run strictly one after another. The first failure stops the pass
// and is returned as PARTIAL_APPLY, with the underlying store error kept in
// the chain; actions applied before it are not rolled back.
func (a *Applier) Apply(ctx context.Context, old, new prov.LogicalGraph) (*Result, error) {
	actions, resolved, err := a.Plan(ctx, old, new)
	if err != nil {
		return nil, err
	}
	return a.Execute(ctx, new.RecordID, actions, resolved)
}

// Execute runs already planned actions in order.
func (a *Applier) Execute(ctx context.Context, recordID string, actions []diff.Action, resolved int) (*Result, error) {
	res := &Result{
		RunID:    a.runIDs.Generate(),
		RecordID: recordID,
		Actions:  actions,
		Resolved: resolved,
	}
	log := a.logger.With("run", res.RunID, "record", recordID)
	log.Debug("applying actions", "count", len(actions))

	exec := &executor{ctx: ctx, store: a.store}
	for _, action := range actions {
		if err := ctx.Err(); err != nil {
			return res, prov.NewPartialApplyError(recordID, action.Entity(), res.Applied, err)
		}

		exec.skipped = false
		if err := action.Accept(exec); err != nil {
			log.Error("action failed",
				"action", action.String(),
				"applied", res.Applied,
				"error", err,
			)
			return res, prov.NewPartialApplyError(recordID, action.Entity(), res.Applied,
				fmt.Errorf("%s: %w", action, classify(action.Kind().String(), err)))
		}

		res.Applied++
		a.metrics.observeAction(action.Kind())
		if exec.skipped {
			res.SkippedDeletes++
			a.metrics.observeSkippedDelete()
			log.Debug("delete skipped", "action", action.String())
			continue
		}
		log.Debug("action applied", "action", action.String())
	}

	return res, nil
}

// resolve rewrites additions whose target already exists in the store into
// ownership joins. It returns the number of rewritten actions.
func (a *Applier) resolve(ctx context.Context, recordID string, actions []diff.Action) (int, error) {
	var nodeIDs []string
	var edgeKeys []prov.EdgeKey
	for _, action := range actions {
		switch act := action.(type) {
		case diff.AddNewNode:
			nodeIDs = append(nodeIDs, act.Node.ID)
		case diff.AddNewLink:
			edgeKeys = append(edgeKeys, act.Edge.Key())
		}
	}
	if len(nodeIDs) == 0 && len(edgeKeys) == 0 {
		return 0, nil
	}

	presence, err := a.store.Presence(ctx, nodeIDs, edgeKeys)
	if err != nil {
		return 0, classify("presence", err)
	}

	resolved := 0
	for i, action := range actions {
		switch act := action.(type) {
		case diff.AddNewNode:
			stored, ok := presence.StoredNode(act.Node.ID)
			if !ok {
				continue
			}
			if stored.Category != act.Node.Category || stored.Subtype != act.Node.Subtype {
				a.logger.Warn("node exists with a different type; keeping stored type",
					"record", recordID,
					"node", act.Node.ID,
					"stored", string(stored.Category)+"/"+string(stored.Subtype),
					"desired", string(act.Node.Category)+"/"+string(act.Node.Subtype),
				)
			}
			actions[i] = diff.AddRecordIDToNode{NodeID: act.Node.ID, RecordID: act.RecordID}
			resolved++
		case diff.AddNewLink:
			key := act.Edge.Key()
			stored, ok := presence.HasEdge(key)
			if !ok {
				continue
			}
			if stored != act.Edge.Relation {
				a.logger.Warn("edge exists with a different relation; keeping stored relation",
					"record", recordID,
					"edge", key.String(),
					"stored", string(stored),
					"desired", string(act.Edge.Relation),
				)
			}
			actions[i] = diff.AddRecordIDToLink{Link: key, RecordID: act.RecordID}
			resolved++
		}
	}
	a.metrics.observeResolved(resolved)
	return resolved, nil
}

// executor maps each action kind onto its store operation.
type executor struct {
	ctx     context.Context
	store   Store
	skipped bool
}

var _ diff.Visitor = (*executor)(nil)

func (e *executor) VisitAddRecordIDToNode(a diff.AddRecordIDToNode) error {
	return e.store.AddNodeOwner(e.ctx, a.NodeID, a.RecordID)
}

func (e *executor) VisitAddNewNode(a diff.AddNewNode) error {
	return e.store.UpsertNode(e.ctx, a.Node, a.RecordID)
}

func (e *executor) VisitAddRecordIDToLink(a diff.AddRecordIDToLink) error {
	return e.store.AddEdgeOwner(e.ctx, a.Link, a.RecordID)
}

func (e *executor) VisitAddNewLink(a diff.AddNewLink) error {
	return e.store.UpsertEdge(e.ctx, a.Edge, a.RecordID)
}

func (e *executor) VisitRemoveRecordIDFromLink(a diff.RemoveRecordIDFromLink) error {
	return e.store.RemoveEdgeOwner(e.ctx, a.Link, a.RecordID)
}

func (e *executor) VisitRemoveLink(a diff.RemoveLink) error {
	deleted, err := e.store.DeleteEdge(e.ctx, a.Link, a.RecordID)
	e.skipped = err == nil && !deleted
	return err
}

func (e *executor) VisitRemoveRecordIDFromNode(a diff.RemoveRecordIDFromNode) error {
	return e.store.RemoveNodeOwner(e.ctx, a.NodeID, a.RecordID)
}

func (e *executor) VisitRemoveNode(a diff.RemoveNode) error {
	deleted, err := e.store.DeleteNode(e.ctx, a.NodeID, a.RecordID)
	e.skipped = err == nil && !deleted
	return err
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

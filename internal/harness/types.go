package harness

import "github.com/roach88/provsync/internal/diff"

// Step operations recorded in traces.
const (
	OpReconcile = "reconcile"
	OpRetire    = "retire"
)

// TraceEvent is the outcome of one scenario step.
type TraceEvent struct {
	Step           int           `json:"step"`
	Record         string        `json:"record"`
	Op             string        `json:"op"`
	RunID          string        `json:"run_id,omitempty"`
	Actions        []diff.Action `json:"-"`
	Applied        int           `json:"applied"`
	Resolved       int           `json:"resolved"`
	SkippedDeletes int           `json:"skipped_deletes"`
	Error          string        `json:"error,omitempty"`
}

// ActionStrings renders the event's actions in their String form.
func (e TraceEvent) ActionStrings() []string {
	return diff.Strings(e.Actions)
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors holds one message per failed expectation.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends a step outcome to the trace.
func (r *Result) AddEvent(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}

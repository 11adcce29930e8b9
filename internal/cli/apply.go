package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/provsync/internal/builder"
	"github.com/roach88/provsync/internal/diff"
	"github.com/roach88/provsync/internal/prov"
	"github.com/roach88/provsync/internal/reconcile"
)

// ResultOutput is the JSON form of one reconciliation pass.
type ResultOutput struct {
	RunID          string         `json:"run_id"`
	RecordID       string         `json:"record_id"`
	Actions        []string       `json:"actions"`
	Summary        map[string]int `json:"summary"`
	Applied        int            `json:"applied"`
	Resolved       int            `json:"resolved"`
	SkippedDeletes int            `json:"skipped_deletes"`
	ReleasedNodes  int            `json:"released_nodes"`
	Attempts       int            `json:"attempts"`
}

func newResultOutput(r *reconcile.Result) ResultOutput {
	return ResultOutput{
		RunID:          r.RunID,
		RecordID:       r.RecordID,
		Actions:        diff.Strings(r.Actions),
		Summary:        summaryByName(r.Actions),
		Applied:        r.Applied,
		Resolved:       r.Resolved,
		SkippedDeletes: r.SkippedDeletes,
		ReleasedNodes:  r.ReleasedNodes,
		Attempts:       r.Attempts,
	}
}

func summaryByName(actions []diff.Action) map[string]int {
	out := make(map[string]int)
	for k, n := range diff.Summary(actions) {
		out[k.String()] = n
	}
	return out
}

func renderResult(w io.Writer, out ResultOutput) {
	if len(out.Actions) == 0 {
		fmt.Fprintf(w, "%s: up to date (run %s)\n", out.RecordID, out.RunID)
		if out.ReleasedNodes > 0 {
			fmt.Fprintf(w, "  released nodes: %d\n", out.ReleasedNodes)
		}
		return
	}
	fmt.Fprintf(w, "%s: applied %d/%d actions (run %s)\n", out.RecordID, out.Applied, len(out.Actions), out.RunID)
	for _, a := range out.Actions {
		fmt.Fprintf(w, "  %s\n", a)
	}
	if out.Resolved > 0 {
		fmt.Fprintf(w, "  resolved: %d\n", out.Resolved)
	}
	if out.SkippedDeletes > 0 {
		fmt.Fprintf(w, "  skipped deletes: %d\n", out.SkippedDeletes)
	}
	if out.ReleasedNodes > 0 {
		fmt.Fprintf(w, "  released nodes: %d\n", out.ReleasedNodes)
	}
	if out.Attempts > 1 {
		fmt.Fprintf(w, "  attempts: %d\n", out.Attempts)
	}
}

func renderSummary(w io.Writer, summary map[string]int) {
	kinds := make([]string, 0, len(summary))
	for k := range summary {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, summary[k]))
	}
	fmt.Fprintf(w, "  %s\n", strings.Join(parts, " "))
}

// loadGraph reads the record declared as id in dir and builds its logical
// graph.
func loadGraph(dir, id string) (prov.LogicalGraph, error) {
	spec, err := builder.LoadRecord(dir, id)
	if err != nil {
		return prov.LogicalGraph{}, err
	}
	return builder.Build(spec, id)
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <record-id> <records-dir>",
		Short: "Reconcile one record against its declaration",
		Long: `Load the record declared as <record-id> in the CUE files under <records-dir>,
diff it against what the store holds for that record and apply the actions.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, opts, args[0], args[1])
		},
	}
}

func runApply(cmd *cobra.Command, opts *RootOptions, recordID, dir string) error {
	f := opts.formatter(cmd)
	ctx, cancel := commandContext(cmd)
	defer cancel()

	desired, err := loadGraph(dir, recordID)
	if err != nil {
		return f.Fail(ExitCommandError, CodeLoad, "load record", err)
	}
	f.VerboseLog("Loaded %s: %d edges", recordID, len(desired.Edges))

	s, err := opts.open(ctx, cmd, f)
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := s.reconciler.Reconcile(ctx, recordID, desired)
	if err != nil {
		return f.Fail(ExitFailure, CodeGeneric, "reconcile "+recordID, err)
	}

	out := newResultOutput(result)
	return f.Success(out, func(w io.Writer) { renderResult(w, out) })
}

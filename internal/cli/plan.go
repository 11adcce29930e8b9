package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/provsync/internal/diff"
)

// PlanOutput lists the actions apply would execute.
type PlanOutput struct {
	RecordID string         `json:"record_id"`
	Actions  []string       `json:"actions"`
	Summary  map[string]int `json:"summary"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "plan <record-id> <records-dir>",
		Short:         "Show the actions apply would execute",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, opts, args[0], args[1])
		},
	}
}

func runPlan(cmd *cobra.Command, opts *RootOptions, recordID, dir string) error {
	f := opts.formatter(cmd)
	ctx, cancel := commandContext(cmd)
	defer cancel()

	desired, err := loadGraph(dir, recordID)
	if err != nil {
		return f.Fail(ExitCommandError, CodeLoad, "load record", err)
	}

	s, err := opts.open(ctx, cmd, f)
	if err != nil {
		return err
	}
	defer s.Close()

	actions, err := s.reconciler.Plan(ctx, recordID, desired)
	if err != nil {
		return f.Fail(ExitFailure, CodeGeneric, "plan "+recordID, err)
	}

	out := PlanOutput{
		RecordID: recordID,
		Actions:  diff.Strings(actions),
		Summary:  summaryByName(actions),
	}
	return f.Success(out, func(w io.Writer) {
		if len(out.Actions) == 0 {
			fmt.Fprintf(w, "%s: no changes\n", recordID)
			return
		}
		fmt.Fprintf(w, "%s: %d actions\n", recordID, len(out.Actions))
		for _, a := range out.Actions {
			fmt.Fprintf(w, "  %s\n", a)
		}
		renderSummary(w, out.Summary)
	})
}

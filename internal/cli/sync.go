package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/provsync/internal/builder"
	"github.com/roach88/provsync/internal/prov"
	"github.com/roach88/provsync/internal/reconcile"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	Prune bool
}

// SyncOutput collects the per-record results of a sync.
type SyncOutput struct {
	Results []ResultOutput `json:"results"`
	Retired []ResultOutput `json:"retired,omitempty"`
	Failed  []string       `json:"failed,omitempty"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	syncOpts := &SyncOptions{}

	cmd := &cobra.Command{
		Use:   "sync <records-dir>",
		Short: "Reconcile every record declared in a directory",
		Long: `Reconcile all records declared in the CUE files under <records-dir>
concurrently. With --prune, records the store knows about that are no longer
declared are retired.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts, syncOpts, args[0])
		},
	}

	cmd.Flags().BoolVar(&syncOpts.Prune, "prune", false, "retire stored records that are not declared")

	return cmd
}

func runSync(cmd *cobra.Command, opts *RootOptions, syncOpts *SyncOptions, dir string) error {
	f := opts.formatter(cmd)
	ctx, cancel := commandContext(cmd)
	defer cancel()

	specs, err := builder.LoadRecords(dir)
	if err != nil {
		return f.Fail(ExitCommandError, CodeLoad, "load records", err)
	}
	graphs, err := builder.BuildAll(specs)
	if err != nil {
		return f.Fail(ExitCommandError, CodeLoad, "build records", err)
	}
	f.VerboseLog("Loaded %d records from %s", len(graphs), dir)

	s, err := opts.open(ctx, cmd, f)
	if err != nil {
		return err
	}
	defer s.Close()

	var stale []string
	if syncOpts.Prune {
		stale, err = staleRecords(ctx, s.reconciler, graphs)
		if err != nil {
			return f.Fail(ExitFailure, CodeGeneric, "list records", err)
		}
	}

	out := SyncOutput{Results: []ResultOutput{}}
	results, syncErr := s.reconciler.ReconcileAll(ctx, graphs)
	for i, r := range results {
		if r == nil {
			out.Failed = append(out.Failed, graphs[i].RecordID)
			continue
		}
		out.Results = append(out.Results, newResultOutput(r))
	}

	var errs []error
	if syncErr != nil {
		errs = append(errs, syncErr)
	}
	for _, id := range stale {
		r, err := s.reconciler.Retire(ctx, id)
		if err != nil {
			out.Failed = append(out.Failed, id)
			errs = append(errs, fmt.Errorf("retire %s: %w", id, err))
			continue
		}
		s.logger.Info("retired undeclared record", "record", id, "run_id", r.RunID)
		out.Retired = append(out.Retired, newResultOutput(r))
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Error("sync incomplete", "failed", out.Failed, "error", err)
		return f.Fail(ExitFailure, CodeGeneric, fmt.Sprintf("sync %d of %d records failed", len(out.Failed), len(graphs)+len(stale)), err)
	}

	return f.Success(out, func(w io.Writer) {
		for _, r := range out.Results {
			renderResult(w, r)
		}
		for _, r := range out.Retired {
			fmt.Fprintf(w, "retired ")
			renderResult(w, r)
		}
	})
}

// staleRecords returns the stored records that graphs does not declare.
func staleRecords(ctx context.Context, r *reconcile.Reconciler, graphs []prov.LogicalGraph) ([]string, error) {
	stored, err := r.Records(ctx)
	if err != nil {
		return nil, err
	}
	declared := make([]string, 0, len(graphs))
	for _, g := range graphs {
		declared = append(declared, g.RecordID)
	}
	var stale []string
	for _, id := range stored {
		if !slices.Contains(declared, id) {
			stale = append(stale, id)
		}
	}
	return stale, nil
}

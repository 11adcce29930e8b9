package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/provsync/internal/harness"
)

// ScenarioOutput reports one scenario run.
type ScenarioOutput struct {
	File   string               `json:"file"`
	Name   string               `json:"name,omitempty"`
	Pass   bool                 `json:"pass"`
	Trace  []harness.TraceEvent `json:"trace,omitempty"`
	Errors []string             `json:"errors,omitempty"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scenario <file.yaml>...",
		Short: "Run reconciliation scenarios against an in-memory store",
		Long: `Run each scenario file's steps against a fresh in-memory store and check
the expected actions, errors and final-state assertions.

Exits 1 if any scenario fails.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, opts, args)
		},
	}
}

func runScenarios(cmd *cobra.Command, opts *RootOptions, files []string) error {
	f := opts.formatter(cmd)
	ctx, cancel := commandContext(cmd)
	defer cancel()

	var hopts []harness.Option
	if opts.Verbose {
		hopts = append(hopts, harness.WithLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(),
			&slog.HandlerOptions{Level: slog.LevelDebug}))))
	}

	outputs := make([]ScenarioOutput, 0, len(files))
	failed := 0
	for _, file := range files {
		scenario, result, err := harness.RunFile(ctx, file, hopts...)
		if err != nil {
			return f.Fail(ExitCommandError, CodeScenario, "run scenario "+file, err)
		}
		if !result.Pass {
			failed++
		}
		outputs = append(outputs, ScenarioOutput{
			File:   file,
			Name:   scenario.Name,
			Pass:   result.Pass,
			Trace:  result.Trace,
			Errors: result.Errors,
		})
	}

	if err := f.Success(map[string]any{"scenarios": outputs, "failed": failed}, func(w io.Writer) {
		for _, o := range outputs {
			if o.Pass {
				fmt.Fprintf(w, "✓ %s\n", o.Name)
				continue
			}
			fmt.Fprintf(w, "✗ %s\n", o.Name)
			for _, e := range o.Errors {
				fmt.Fprintf(w, "    %s\n", e)
			}
		}
		fmt.Fprintf(w, "\n%d passed, %d failed\n", len(outputs)-failed, failed)
	}); err != nil {
		return err
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", failed))
	}
	return nil
}

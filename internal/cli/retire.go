package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// NewRetireCommand creates the retire command.
func NewRetireCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retire <record-id>",
		Short: "Remove a record's claim on every node and edge",
		Long: `Reconcile <record-id> against an empty graph. Nodes and edges the record was
the last owner of are deleted; shared ones only lose the record's ownership.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetire(cmd, opts, args[0])
		},
	}
}

func runRetire(cmd *cobra.Command, opts *RootOptions, recordID string) error {
	f := opts.formatter(cmd)
	ctx, cancel := commandContext(cmd)
	defer cancel()

	s, err := opts.open(ctx, cmd, f)
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := s.reconciler.Retire(ctx, recordID)
	if err != nil {
		return f.Fail(ExitFailure, CodeGeneric, "retire "+recordID, err)
	}

	out := newResultOutput(result)
	return f.Success(out, func(w io.Writer) { renderResult(w, out) })
}

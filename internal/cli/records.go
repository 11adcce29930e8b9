package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewRecordsCommand creates the records command.
func NewRecordsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "records",
		Short:         "List records that own something in the store",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			s, err := opts.open(ctx, cmd, f)
			if err != nil {
				return err
			}
			defer s.Close()

			ids, err := s.reconciler.Records(ctx)
			if err != nil {
				return f.Fail(ExitFailure, CodeGeneric, "list records", err)
			}
			if ids == nil {
				ids = []string{}
			}
			return f.Success(map[string]any{"records": ids}, func(w io.Writer) {
				for _, id := range ids {
					fmt.Fprintln(w, id)
				}
			})
		},
	}
}

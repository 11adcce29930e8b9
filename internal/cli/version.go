package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/provsync/internal/prov"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			data := map[string]string{
				"version":        prov.Version,
				"schema_version": prov.SchemaVersion,
			}
			return f.Success(data, func(w io.Writer) {
				fmt.Fprintf(w, "provsync %s (graph schema v%s)\n", prov.Version, prov.SchemaVersion)
			})
		},
	}
}

package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/provsync/internal/config"
	"github.com/roach88/provsync/internal/prov"
	"github.com/roach88/provsync/internal/reconcile"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	Backend     string // overrides PROVSYNC_BACKEND
	DB          string // SQLite path, Postgres DSN or Neo4j URI
	EnvFile     string
	MetricsFile string

	// RunIDs overrides the run id generator (for testing).
	RunIDs reconcile.RunIDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the provsync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "provsync",
		Short:   "provsync - provenance graph reconciliation",
		Long:    "Reconcile multi-owner provenance graphs: every record claims a subgraph, shared nodes and edges live until their last owner lets go.",
		Version: prov.Version,
		// main prints errors that commands have not already reported.
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Backend != "" && !slices.Contains(config.Backends, opts.Backend) {
				return fmt.Errorf("invalid backend %q: must be one of %v", opts.Backend, config.Backends)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "store backend (sqlite|postgres|neo4j|memory)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "database location for the selected backend")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "load settings from this .env file")
	cmd.PersistentFlags().StringVar(&opts.MetricsFile, "metrics-file", "", "write prometheus metrics to this file on exit")

	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewRetireCommand(opts))
	cmd.AddCommand(NewFetchCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewRecordsCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

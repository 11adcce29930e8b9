package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/provsync/internal/prov"
)

// FetchOutput is a record's stored subgraph.
type FetchOutput struct {
	RecordID    string       `json:"record_id"`
	Fingerprint string       `json:"fingerprint"`
	Nodes       []NodeOutput `json:"nodes"`
	Edges       []EdgeOutput `json:"edges"`
}

// NodeOutput is a stored node with its full owner set.
type NodeOutput struct {
	ID       string   `json:"id"`
	Category string   `json:"category"`
	Subtype  string   `json:"subtype"`
	Owners   []string `json:"owners"`
}

// EdgeOutput is a stored edge with its full owner set.
type EdgeOutput struct {
	Source   string   `json:"source"`
	Target   string   `json:"target"`
	Relation string   `json:"relation"`
	Owners   []string `json:"owners"`
}

func newFetchOutput(g prov.LogicalGraph) (FetchOutput, error) {
	fp, err := prov.Fingerprint(g)
	if err != nil {
		return FetchOutput{}, err
	}
	out := FetchOutput{
		RecordID:    g.RecordID,
		Fingerprint: fp,
		Nodes:       []NodeOutput{},
		Edges:       []EdgeOutput{},
	}
	for _, n := range g.Nodes() {
		out.Nodes = append(out.Nodes, NodeOutput{
			ID:       n.ID,
			Category: string(n.Category),
			Subtype:  string(n.Subtype),
			Owners:   n.Owners.Sorted(),
		})
	}
	for _, e := range g.SortedEdges() {
		out.Edges = append(out.Edges, EdgeOutput{
			Source:   e.Source.ID,
			Target:   e.Target.ID,
			Relation: string(e.Relation),
			Owners:   e.Owners.Sorted(),
		})
	}
	return out, nil
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "fetch <record-id>",
		Short:         "Show the subgraph a record owns in the store",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, opts, args[0])
		},
	}
}

func runFetch(cmd *cobra.Command, opts *RootOptions, recordID string) error {
	f := opts.formatter(cmd)
	ctx, cancel := commandContext(cmd)
	defer cancel()

	s, err := opts.open(ctx, cmd, f)
	if err != nil {
		return err
	}
	defer s.Close()

	g, err := s.reconciler.Fetch(ctx, recordID)
	if err != nil {
		return f.Fail(ExitFailure, CodeGeneric, "fetch "+recordID, err)
	}
	out, err := newFetchOutput(g)
	if err != nil {
		return f.Fail(ExitFailure, CodeGeneric, "fetch "+recordID, err)
	}

	return f.Success(out, func(w io.Writer) {
		fmt.Fprintf(w, "%s (%d nodes, %d edges) %s\n", recordID, len(out.Nodes), len(out.Edges), out.Fingerprint)
		for _, n := range out.Nodes {
			fmt.Fprintf(w, "  node %s %s/%s [%s]\n", n.ID, n.Category, n.Subtype, strings.Join(n.Owners, ","))
		}
		for _, e := range out.Edges {
			fmt.Fprintf(w, "  edge %s->%s %s [%s]\n", e.Source, e.Target, e.Relation, strings.Join(e.Owners, ","))
		}
	})
}

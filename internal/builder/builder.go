package builder

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/provsync/internal/prov"
)

// RecordSpec is a domain record: the nodes it declares and the edges between them.
type RecordSpec struct {
	ID    string              `json:"id" yaml:"id"`
	Nodes map[string]NodeSpec `json:"nodes" yaml:"nodes"`
	Edges []EdgeSpec          `json:"edges" yaml:"edges"`
}

// NodeSpec declares one node. Category may be omitted and is then derived
// from the subtype.
type NodeSpec struct {
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	Subtype  string `json:"subtype" yaml:"subtype"`
}

// EdgeSpec declares one directed edge between declared nodes.
type EdgeSpec struct {
	Source   string `json:"source" yaml:"source"`
	Target   string `json:"target" yaml:"target"`
	Relation string `json:"relation" yaml:"relation"`
}

// Build produces the desired logical graph of spec for recordID.
//
// Every node and edge carries exactly {recordID}. Edges that reference
// undeclared nodes and declared nodes that no edge uses are rejected with
// INVALID_GRAPH.
func Build(spec RecordSpec, recordID string) (prov.LogicalGraph, error) {
	if recordID == "" {
		return prov.LogicalGraph{}, prov.NewInvalidGraphError("", "record id is required")
	}

	nodes := make(map[string]prov.Node, len(spec.Nodes))
	for _, id := range sortedKeys(spec.Nodes) {
		n, err := buildNode(id, spec.Nodes[id], recordID)
		if err != nil {
			return prov.LogicalGraph{}, err
		}
		nodes[id] = n
	}

	g := prov.Empty(recordID)
	used := make(map[string]bool, len(nodes))
	for i, es := range spec.Edges {
		source, ok := nodes[es.Source]
		if !ok {
			return prov.LogicalGraph{}, prov.NewInvalidGraphError(recordID,
				fmt.Sprintf("edges[%d]: source %q is not a declared node", i, es.Source))
		}
		target, ok := nodes[es.Target]
		if !ok {
			return prov.LogicalGraph{}, prov.NewInvalidGraphError(recordID,
				fmt.Sprintf("edges[%d]: target %q is not a declared node", i, es.Target))
		}
		rel, err := prov.ParseRelation(es.Relation)
		if err != nil {
			return prov.LogicalGraph{}, prov.NewInvalidGraphError(recordID,
				fmt.Sprintf("edges[%d]: unknown relation %q", i, es.Relation))
		}
		used[es.Source] = true
		used[es.Target] = true

		g.Edges = append(g.Edges, prov.Edge{
			Source:   withOwner(source, recordID),
			Target:   withOwner(target, recordID),
			Relation: rel,
			Owners:   prov.NewOwnerSet(recordID),
		})
	}

	for _, id := range sortedKeys(spec.Nodes) {
		if !used[id] {
			return prov.LogicalGraph{}, prov.NewInvalidGraphError(recordID,
				fmt.Sprintf("node %s is not an endpoint of any edge", id))
		}
	}

	if err := g.Validate(); err != nil {
		return prov.LogicalGraph{}, err
	}
	return g, nil
}

// BuildAll builds every spec under its own id.
func BuildAll(specs []RecordSpec) ([]prov.LogicalGraph, error) {
	graphs := make([]prov.LogicalGraph, 0, len(specs))
	for _, spec := range specs {
		g, err := Build(spec, spec.ID)
		if err != nil {
			return nil, fmt.Errorf("build record %s: %w", spec.ID, err)
		}
		graphs = append(graphs, g)
	}
	return graphs, nil
}

func buildNode(id string, ns NodeSpec, recordID string) (prov.Node, error) {
	subtype, err := prov.ParseSubtype(ns.Subtype)
	if err != nil {
		return prov.Node{}, prov.NewInvalidGraphError(recordID,
			fmt.Sprintf("node %s: unknown subtype %q", id, ns.Subtype))
	}
	category := subtype.Category()
	if ns.Category != "" {
		category, err = prov.ParseCategory(ns.Category)
		if err != nil {
			return prov.Node{}, prov.NewInvalidGraphError(recordID,
				fmt.Sprintf("node %s: unknown category %q", id, ns.Category))
		}
	}
	return prov.Node{ID: id, Category: category, Subtype: subtype}, nil
}

// withOwner returns a copy of n owned by recordID alone; edges never share
// an owner set.
func withOwner(n prov.Node, recordID string) prov.Node {
	n.Owners = prov.NewOwnerSet(recordID)
	return n
}

func sortedKeys(m map[string]NodeSpec) []string {
	return slices.Sorted(maps.Keys(m))
}

// SortSpecs orders specs by id.
func SortSpecs(specs []RecordSpec) {
	slices.SortFunc(specs, func(a, b RecordSpec) int {
		return strings.Compare(a.ID, b.ID)
	})
}

package prov

import (
	"fmt"
	"slices"
	"strings"
)

// Node is a vertex of the shared graph.
type Node struct {
	ID       string   `json:"id"`
	Category Category `json:"category"`
	Subtype  Subtype  `json:"subtype"`
	Owners   OwnerSet `json:"owners"`
}

// EdgeKey identifies an edge within a logical graph. Relation kind is not
// part of the identity: at most one edge exists per ordered pair.
type EdgeKey struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// String renders the key as "source->target".
func (k EdgeKey) String() string {
	return k.Source + "->" + k.Target
}

// Edge is a directed, typed link between two nodes.
type Edge struct {
	Source   Node     `json:"source"`
	Target   Node     `json:"target"`
	Relation Relation `json:"relation"`
	Owners   OwnerSet `json:"owners"`
}

// Key returns the (source, target) identity of the edge.
func (e Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source.ID, Target: e.Target.ID}
}

// LogicalGraph is the subgraph a single record claims.
//
// Its node set is derived from edge endpoints, so isolated nodes cannot be
// represented.
type LogicalGraph struct {
	RecordID string `json:"record_id"`
	Edges    []Edge `json:"edges"`
}

// Empty returns a graph for recordID with no edges.
func Empty(recordID string) LogicalGraph {
	return LogicalGraph{RecordID: recordID, Edges: []Edge{}}
}

// IsEmpty reports whether the graph holds no edges.
func (g LogicalGraph) IsEmpty() bool {
	return len(g.Edges) == 0
}

// Nodes returns the distinct edge endpoints ordered by id. When a node occurs
// more than once the first occurrence supplies category and subtype and the
// owner sets are unioned.
func (g LogicalGraph) Nodes() []Node {
	m := g.NodeMap()
	nodes := make([]Node, 0, len(m))
	for _, n := range m {
		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, func(a, b Node) int { return strings.Compare(a.ID, b.ID) })
	return nodes
}

// NodeMap indexes the derived node set by id.
func (g LogicalGraph) NodeMap() map[string]Node {
	m := make(map[string]Node, len(g.Edges)*2)
	add := func(n Node) {
		if existing, ok := m[n.ID]; ok {
			existing.Owners = existing.Owners.Union(n.Owners)
			m[n.ID] = existing
			return
		}
		n.Owners = n.Owners.Clone()
		m[n.ID] = n
	}
	for _, e := range g.Edges {
		add(e.Source)
		add(e.Target)
	}
	return m
}

// EdgeMap indexes edges by (source, target). The first edge for a key wins;
// Validate rejects graphs where a later edge disagrees with it.
func (g LogicalGraph) EdgeMap() map[EdgeKey]Edge {
	m := make(map[EdgeKey]Edge, len(g.Edges))
	for _, e := range g.Edges {
		if _, ok := m[e.Key()]; ok {
			continue
		}
		m[e.Key()] = e
	}
	return m
}

// SortedEdges returns a copy of the edges ordered by key.
func (g LogicalGraph) SortedEdges() []Edge {
	edges := slices.Clone(g.Edges)
	slices.SortFunc(edges, func(a, b Edge) int {
		if c := strings.Compare(a.Source.ID, b.Source.ID); c != 0 {
			return c
		}
		return strings.Compare(a.Target.ID, b.Target.ID)
	})
	return edges
}

// Validate checks the structural invariants of the graph:
//   - a record id is present
//   - every endpoint has an id, a known category and a subtype of that category
//   - a node id never appears with two different category/subtype pairs
//   - two edges sharing a (source, target) key carry the same relation
func (g LogicalGraph) Validate() error {
	if g.RecordID == "" {
		return NewInvalidGraphError("", "record id is required")
	}

	seen := make(map[string]Node)
	checkNode := func(n Node) error {
		if n.ID == "" {
			return NewInvalidGraphError(g.RecordID, "node id is required")
		}
		if !n.Category.Valid() {
			return NewInvalidGraphError(g.RecordID, fmt.Sprintf("node %s: unknown category %q", n.ID, n.Category))
		}
		if n.Subtype.Category() != n.Category {
			return NewInvalidGraphError(g.RecordID, fmt.Sprintf("node %s: subtype %q is not a %s subtype", n.ID, n.Subtype, n.Category))
		}
		if prev, ok := seen[n.ID]; ok {
			if prev.Category != n.Category || prev.Subtype != n.Subtype {
				return NewInvalidGraphError(g.RecordID, fmt.Sprintf(
					"node %s declared as both %s/%s and %s/%s",
					n.ID, prev.Category, prev.Subtype, n.Category, n.Subtype))
			}
			return nil
		}
		seen[n.ID] = n
		return nil
	}

	edges := make(map[EdgeKey]Relation, len(g.Edges))
	for _, e := range g.Edges {
		if err := checkNode(e.Source); err != nil {
			return err
		}
		if err := checkNode(e.Target); err != nil {
			return err
		}
		if !e.Relation.Valid() {
			return NewInvalidGraphError(g.RecordID, fmt.Sprintf("edge %s: unknown relation %q", e.Key(), e.Relation))
		}
		if prev, ok := edges[e.Key()]; ok && prev != e.Relation {
			return NewInvalidGraphError(g.RecordID, fmt.Sprintf(
				"edge %s declared with relations %s and %s; only one edge per ordered pair is supported",
				e.Key(), prev, e.Relation))
		}
		edges[e.Key()] = e.Relation
	}
	return nil
}

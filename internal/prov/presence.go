package prov

// Presence reports which of a set of nodes and edges already exist in a
// store, regardless of who owns them. Nodes map to their stored category and
// subtype (owners are not filled in); edges map to their stored relation.
type Presence struct {
	Nodes map[string]Node
	Edges map[EdgeKey]Relation
}

// NewPresence returns an empty Presence ready for filling.
func NewPresence() Presence {
	return Presence{
		Nodes: make(map[string]Node),
		Edges: make(map[EdgeKey]Relation),
	}
}

// AddNode records a stored node.
func (p Presence) AddNode(id string, category Category, subtype Subtype) {
	p.Nodes[id] = Node{ID: id, Category: category, Subtype: subtype}
}

// HasNode reports whether the node exists.
func (p Presence) HasNode(id string) bool {
	_, ok := p.Nodes[id]
	return ok
}

// StoredNode returns the stored form of the node, if it exists.
func (p Presence) StoredNode(id string) (Node, bool) {
	n, ok := p.Nodes[id]
	return n, ok
}

// HasEdge reports whether the edge exists and returns its stored relation.
func (p Presence) HasEdge(key EdgeKey) (Relation, bool) {
	r, ok := p.Edges[key]
	return r, ok
}

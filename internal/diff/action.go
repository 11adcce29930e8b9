package diff

import (
	"fmt"

	"github.com/roach88/provsync/internal/prov"
)

// Kind identifies one of the eight action variants. Its numeric value is the
// application priority.
type Kind int

const (
	KindAddRecordIDToNode Kind = iota + 1
	KindAddNewNode
	KindAddRecordIDToLink
	KindAddNewLink
	KindRemoveRecordIDFromLink
	KindRemoveLink
	KindRemoveRecordIDFromNode
	KindRemoveNode
)

// Kinds lists every kind in priority order.
var Kinds = []Kind{
	KindAddRecordIDToNode,
	KindAddNewNode,
	KindAddRecordIDToLink,
	KindAddNewLink,
	KindRemoveRecordIDFromLink,
	KindRemoveLink,
	KindRemoveRecordIDFromNode,
	KindRemoveNode,
}

var kindNames = map[Kind]string{
	KindAddRecordIDToNode:      "AddRecordIdToNode",
	KindAddNewNode:             "AddNewNode",
	KindAddRecordIDToLink:      "AddRecordIdToLink",
	KindAddNewLink:             "AddNewLink",
	KindRemoveRecordIDFromLink: "RemoveRecordIdFromLink",
	KindRemoveLink:             "RemoveLink",
	KindRemoveRecordIDFromNode: "RemoveRecordIdFromNode",
	KindRemoveNode:             "RemoveNode",
}

// String returns the action name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Priority returns the position of the kind in the application order.
func (k Kind) Priority() int {
	return int(k)
}

// IsRemoval reports whether the kind releases ownership or deletes.
func (k Kind) IsRemoval() bool {
	return k >= KindRemoveRecordIDFromLink
}

// Action is one ownership transition. The set of implementations is closed;
// use a Visitor to handle every variant.
type Action interface {
	// Kind returns the variant.
	Kind() Kind
	// Entity returns the node id or the "source->target" edge key.
	Entity() string
	// Record returns the record id the action is performed for.
	Record() string
	// Accept dispatches to the matching Visitor method.
	Accept(v Visitor) error
	// String renders the action as Kind(entity[, detail]).
	String() string

	sealed()
}

// Visitor handles each action variant. Adding a variant adds a method here,
// so every Visitor implementation fails to compile until it handles it.
type Visitor interface {
	VisitAddRecordIDToNode(a AddRecordIDToNode) error
	VisitAddNewNode(a AddNewNode) error
	VisitAddRecordIDToLink(a AddRecordIDToLink) error
	VisitAddNewLink(a AddNewLink) error
	VisitRemoveRecordIDFromLink(a RemoveRecordIDFromLink) error
	VisitRemoveLink(a RemoveLink) error
	VisitRemoveRecordIDFromNode(a RemoveRecordIDFromNode) error
	VisitRemoveNode(a RemoveNode) error
}

// AddNewNode creates a node, or merges into it, owned by RecordID.
type AddNewNode struct {
	Node     prov.Node
	RecordID string
}

func (AddNewNode) Kind() Kind { return KindAddNewNode }
func (a AddNewNode) Entity() string { return a.Node.ID }
func (a AddNewNode) Record() string { return a.RecordID }
func (a AddNewNode) Accept(v Visitor) error { return v.VisitAddNewNode(a) }
func (a AddNewNode) String() string { return fmt.Sprintf("%s(%s)", a.Kind(), a.Node.ID) }
func (AddNewNode) sealed() {}

// RemoveNode deletes a node whose only owner is RecordID.
type RemoveNode struct {
	NodeID   string
	RecordID string
}

func (RemoveNode) Kind() Kind { return KindRemoveNode }
func (a RemoveNode) Entity() string { return a.NodeID }
func (a RemoveNode) Record() string { return a.RecordID }
func (a RemoveNode) Accept(v Visitor) error { return v.VisitRemoveNode(a) }
func (a RemoveNode) String() string { return fmt.Sprintf("%s(%s)", a.Kind(), a.NodeID) }
func (RemoveNode) sealed() {}

// AddNewLink creates an edge between existing endpoints, owned by RecordID.
type AddNewLink struct {
	Edge     prov.Edge
	RecordID string
}

func (AddNewLink) Kind() Kind { return KindAddNewLink }
func (a AddNewLink) Entity() string { return a.Edge.Key().String() }
func (a AddNewLink) Record() string { return a.RecordID }
func (a AddNewLink) Accept(v Visitor) error { return v.VisitAddNewLink(a) }
func (a AddNewLink) String() string {
	return fmt.Sprintf("%s(%s, %s)", a.Kind(), a.Edge.Key(), a.Edge.Relation)
}
func (AddNewLink) sealed() {}

// RemoveLink deletes an edge whose only owner is RecordID.
type RemoveLink struct {
	Link     prov.EdgeKey
	RecordID string
}

func (RemoveLink) Kind() Kind { return KindRemoveLink }
func (a RemoveLink) Entity() string { return a.Link.String() }
func (a RemoveLink) Record() string { return a.RecordID }
func (a RemoveLink) Accept(v Visitor) error { return v.VisitRemoveLink(a) }
func (a RemoveLink) String() string { return fmt.Sprintf("%s(%s)", a.Kind(), a.Link) }
func (RemoveLink) sealed() {}

// AddRecordIDToNode adds RecordID to an existing node's owners.
type AddRecordIDToNode struct {
	NodeID   string
	RecordID string
}

func (AddRecordIDToNode) Kind() Kind { return KindAddRecordIDToNode }
func (a AddRecordIDToNode) Entity() string { return a.NodeID }
func (a AddRecordIDToNode) Record() string { return a.RecordID }
func (a AddRecordIDToNode) Accept(v Visitor) error { return v.VisitAddRecordIDToNode(a) }
func (a AddRecordIDToNode) String() string {
	return fmt.Sprintf("%s(%s, %s)", a.Kind(), a.NodeID, a.RecordID)
}
func (AddRecordIDToNode) sealed() {}

// RemoveRecordIDFromNode drops RecordID from a node that other records keep alive.
type RemoveRecordIDFromNode struct {
	NodeID   string
	RecordID string
}

func (RemoveRecordIDFromNode) Kind() Kind { return KindRemoveRecordIDFromNode }
func (a RemoveRecordIDFromNode) Entity() string { return a.NodeID }
func (a RemoveRecordIDFromNode) Record() string { return a.RecordID }
func (a RemoveRecordIDFromNode) Accept(v Visitor) error { return v.VisitRemoveRecordIDFromNode(a) }
func (a RemoveRecordIDFromNode) String() string {
	return fmt.Sprintf("%s(%s, %s)", a.Kind(), a.NodeID, a.RecordID)
}
func (RemoveRecordIDFromNode) sealed() {}

// AddRecordIDToLink adds RecordID to an existing edge's owners.
type AddRecordIDToLink struct {
	Link     prov.EdgeKey
	RecordID string
}

func (AddRecordIDToLink) Kind() Kind { return KindAddRecordIDToLink }
func (a AddRecordIDToLink) Entity() string { return a.Link.String() }
func (a AddRecordIDToLink) Record() string { return a.RecordID }
func (a AddRecordIDToLink) Accept(v Visitor) error { return v.VisitAddRecordIDToLink(a) }
func (a AddRecordIDToLink) String() string {
	return fmt.Sprintf("%s(%s, %s)", a.Kind(), a.Link, a.RecordID)
}
func (AddRecordIDToLink) sealed() {}

// RemoveRecordIDFromLink drops RecordID from an edge that other records keep alive.
type RemoveRecordIDFromLink struct {
	Link     prov.EdgeKey
	RecordID string
}

func (RemoveRecordIDFromLink) Kind() Kind { return KindRemoveRecordIDFromLink }
func (a RemoveRecordIDFromLink) Entity() string { return a.Link.String() }
func (a RemoveRecordIDFromLink) Record() string { return a.RecordID }
func (a RemoveRecordIDFromLink) Accept(v Visitor) error { return v.VisitRemoveRecordIDFromLink(a) }
func (a RemoveRecordIDFromLink) String() string {
	return fmt.Sprintf("%s(%s, %s)", a.Kind(), a.Link, a.RecordID)
}
func (RemoveRecordIDFromLink) sealed() {}

package diff

import "github.com/roach88/provsync/internal/prov"

// describer renders actions as canonical-JSON-ready maps.
type describer struct {
	out map[string]any
}

func (d *describer) VisitAddRecordIDToNode(a AddRecordIDToNode) error {
	d.out["node"] = a.NodeID
	return nil
}

func (d *describer) VisitAddNewNode(a AddNewNode) error {
	d.out["node"] = a.Node.ID
	d.out["category"] = string(a.Node.Category)
	d.out["subtype"] = string(a.Node.Subtype)
	return nil
}

func (d *describer) VisitAddRecordIDToLink(a AddRecordIDToLink) error {
	d.link(a.Link)
	return nil
}

func (d *describer) VisitAddNewLink(a AddNewLink) error {
	d.link(a.Edge.Key())
	d.out["relation"] = string(a.Edge.Relation)
	return nil
}

func (d *describer) VisitRemoveRecordIDFromLink(a RemoveRecordIDFromLink) error {
	d.link(a.Link)
	return nil
}

func (d *describer) VisitRemoveLink(a RemoveLink) error {
	d.link(a.Link)
	return nil
}

func (d *describer) VisitRemoveRecordIDFromNode(a RemoveRecordIDFromNode) error {
	d.out["node"] = a.NodeID
	return nil
}

func (d *describer) VisitRemoveNode(a RemoveNode) error {
	d.out["node"] = a.NodeID
	return nil
}

func (d *describer) link(k prov.EdgeKey) {
	d.out["source"] = k.Source
	d.out["target"] = k.Target
}

// Describe returns the action as a flat map suitable for MarshalCanonical.
func Describe(a Action) map[string]any {
	d := &describer{out: map[string]any{
		"kind":   a.Kind().String(),
		"record": a.Record(),
	}}
	_ = a.Accept(d)
	return d.out
}

// Trace describes a sequence of actions, preserving order.
func Trace(actions []Action) []any {
	out := make([]any, len(actions))
	for i, a := range actions {
		out[i] = Describe(a)
	}
	return out
}

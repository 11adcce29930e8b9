package diff

import (
	"fmt"

	"github.com/roach88/provsync/internal/prov"
)

// Compute derives the actions that take the shared graph from old to new for
// a single record.
//
// old must come from a store (full owner sets); new must come from a builder
// (owners = {record}). The deletion-versus-unlink decision reads only old's
// owner sets.
//
// Returns a precondition error, before any other work, if the graphs belong
// to different records.
func Compute(old, new prov.LogicalGraph) ([]Action, error) {
	if old.RecordID != new.RecordID {
		return nil, prov.NewPreconditionError(old.RecordID, new.RecordID)
	}
	if err := old.Validate(); err != nil {
		return nil, fmt.Errorf("validate old graph: %w", err)
	}
	if err := new.Validate(); err != nil {
		return nil, fmt.Errorf("validate new graph: %w", err)
	}

	rec := new.RecordID
	var actions []Action

	oldNodes, newNodes := old.NodeMap(), new.NodeMap()
	for id, n := range newNodes {
		o, ok := oldNodes[id]
		switch {
		case !ok:
			actions = append(actions, AddNewNode{Node: n, RecordID: rec})
		case !o.Owners.Has(rec):
			actions = append(actions, AddRecordIDToNode{NodeID: id, RecordID: rec})
		}
	}
	for id, o := range oldNodes {
		if _, ok := newNodes[id]; ok {
			continue
		}
		if o.Owners.SoleOwner(rec) {
			actions = append(actions, RemoveNode{NodeID: id, RecordID: rec})
		} else {
			actions = append(actions, RemoveRecordIDFromNode{NodeID: id, RecordID: rec})
		}
	}

	oldEdges, newEdges := old.EdgeMap(), new.EdgeMap()
	for key, e := range newEdges {
		o, ok := oldEdges[key]
		switch {
		case !ok:
			actions = append(actions, AddNewLink{Edge: e, RecordID: rec})
		case !o.Owners.Has(rec):
			actions = append(actions, AddRecordIDToLink{Link: key, RecordID: rec})
		}
	}
	for key, o := range oldEdges {
		if _, ok := newEdges[key]; ok {
			continue
		}
		if o.Owners.SoleOwner(rec) {
			actions = append(actions, RemoveLink{Link: key, RecordID: rec})
		} else {
			actions = append(actions, RemoveRecordIDFromLink{Link: key, RecordID: rec})
		}
	}

	return actions, nil
}

package reconcile

import (
	"context"

	"github.com/roach88/provsync/internal/prov"
)

// Store is the persistence contract the reconciler needs from a backend.
//
// Ownership changes and guarded deletes must each be atomic on the backend.
// Delete operations strip recordID from the owner set and remove the entity
// only when no owner is left (and, for nodes, no edge is still incident);
// they report whether the entity was removed.
//
// Every mutation except UpsertNode returns a NOT_FOUND prov.Error when its
// target does not exist. UpsertEdge reports NOT_FOUND for a missing endpoint.
type Store interface {
	// Presence reports which of the given nodes and edges exist, whoever owns them.
	Presence(ctx context.Context, nodeIDs []string, edges []prov.EdgeKey) (prov.Presence, error)

	// UpsertNode creates the node if absent and adds recordID to its owners.
	UpsertNode(ctx context.Context, node prov.Node, recordID string) error
	AddNodeOwner(ctx context.Context, nodeID, recordID string) error
	RemoveNodeOwner(ctx context.Context, nodeID, recordID string) error
	DeleteNode(ctx context.Context, nodeID, recordID string) (bool, error)

	// UpsertEdge creates the edge if absent and adds recordID to its owners.
	// An existing edge keeps its stored relation.
	UpsertEdge(ctx context.Context, edge prov.Edge, recordID string) error
	AddEdgeOwner(ctx context.Context, key prov.EdgeKey, recordID string) error
	RemoveEdgeOwner(ctx context.Context, key prov.EdgeKey, recordID string) error
	DeleteEdge(ctx context.Context, key prov.EdgeKey, recordID string) (bool, error)

	// FetchOwnedSubgraph returns every edge owned by recordID whose
	// endpoints are also owned by recordID, with full owner sets.
	FetchOwnedSubgraph(ctx context.Context, recordID string) (prov.LogicalGraph, error)

	// ReleaseOrphanNodes strips recordID from every node it owns without
	// also owning an incident edge, deleting each such node under the same
	// guard as DeleteNode. It returns the number of nodes released. Nodes
	// left behind by an interrupted removal are invisible to
	// FetchOwnedSubgraph, so no diff can reach them.
	ReleaseOrphanNodes(ctx context.Context, recordID string) (int, error)

	// ListRecords returns the distinct record ids owning at least one node or edge.
	ListRecords(ctx context.Context) ([]string, error)
}

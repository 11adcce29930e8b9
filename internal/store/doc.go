// Package store is the SQLite Store adapter for the shared provenance graph.
//
// Nodes and edges live in their own tables; ownership is kept in the
// node_owners and edge_owners join tables, so an owner set has set semantics
// by primary key. Edges reference their endpoints with ON DELETE RESTRICT,
// which makes it impossible to delete a node that still has an incident edge.
//
// # Atomicity
//
// Every ownership change and every guarded delete runs in its own
// transaction. A guarded delete removes the caller's owner row, then deletes
// the entity only when no owner row (and, for nodes, no incident edge) is
// left.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//
// Fetch results are ordered by (source_id, target_id) so repeated fetches of
// the same graph are byte-identical once canonicalized.
package store

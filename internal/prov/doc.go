// Package prov defines the shared provenance graph model.
//
// A record (a run, a creation event, a version event) claims a subgraph of
// the shared physical graph. Nodes and edges carry an owner set: the record
// ids currently keeping them alive. An entity persists while its owner set is
// non-empty and is destroyed when the last owner releases it.
//
// Two snapshots of a record's LogicalGraph exist and they are deliberately
// asymmetric:
//   - a graph fetched from a store carries each entity's full owner set
//   - a graph produced by a builder carries only {record id}
//
// The diff package depends on this asymmetry to choose between unlinking a
// record and hard-deleting an entity.
//
// This package imports nothing internal. Owner sets are genuine sets here;
// only store adapters encode them (join tables, arrays, list properties).
package prov

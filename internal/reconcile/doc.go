// Package reconcile brings the shared provenance graph in line with one
// record's desired graph.
//
// A pass fetches the record's current logical graph through a Store, diffs it
// against the desired graph, resolves additions that another record already
// created, and executes the sorted actions one at a time. The Reconciler
// serializes passes per record, bounds them with a deadline and retries whole
// passes after partial failures.
package reconcile

// Package diff compares two logical graphs of the same record and derives the
// ownership transitions that converge the shared graph from one to the other.
//
// Compute is pure: it performs no I/O and its output order is unspecified.
// Sort imposes the fixed application order:
//
//	1 AddRecordIdToNode       5 RemoveRecordIdFromLink
//	2 AddNewNode              6 RemoveLink
//	3 AddRecordIdToLink       7 RemoveRecordIdFromNode
//	4 AddNewLink              8 RemoveNode
//
// Every grant and creation precedes every removal. Among additions, nodes
// precede edges so endpoints exist and are tagged before an edge is touched.
// Among removals, edges precede nodes so a node is never deleted while an
// edge still references it.
package diff

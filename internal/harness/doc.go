// Package harness runs reconciliation scenarios and checks their traces.
//
// # Scenario Format
//
// Scenarios are YAML files. Each step reconciles one record to a declared
// graph or retires it; assertions then inspect the store:
//
//	name: shared_edge
//	description: "A second record joins an existing edge"
//	steps:
//	  - record: R1
//	    graph:
//	      nodes:
//	        X: {subtype: Run}
//	        Y: {subtype: Dataset}
//	      edges:
//	        - {source: X, target: Y, relation: used}
//	  - record: R2
//	    graph: ...
//	    expect:
//	      actions:
//	        - AddRecordIdToNode(X, R2)
//	        - AddRecordIdToNode(Y, R2)
//	        - AddRecordIdToLink(X->Y, R2)
//	  - record: R1
//	    retire: true
//	assertions:
//	  - type: fetch
//	    record: R2
//	    nodes: [X, Y]
//	    edges: ["X->Y used"]
//	  - type: owners
//	    entity: X->Y
//	    equals: [R2]
//	  - type: records
//	    equals: [R2]
//
// expect.actions is the exact executed action list, after ownership
// resolution and sorting. expect.error names the error code a step must fail
// with instead.
//
// # Assertion Types
//
//   - fetch: the record's owned subgraph has exactly these node ids and edges
//   - owners: the full owner set of a node ("X") or edge ("X->Y")
//   - records: the ids of every record owning something
//
// # Deterministic Traces
//
// Run ids come from scenario.run_ids when given, otherwise from a
// sequential generator ("run-0001", ...). Retries are disabled, so the same
// scenario always yields a byte-identical canonical trace for golden
// comparison.
package harness

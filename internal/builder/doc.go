// Package builder turns declarative record specs into logical graphs.
//
// A RecordSpec names its nodes once and links them with edges. Build tags
// every node and edge with the single owner being reconciled; the full owner
// set of a shared entity is only ever known to the store.
//
// Record specs are usually declared in CUE:
//
//	record: "run-42": {
//		nodes: {
//			"run-42":  {subtype: "Run"}
//			"ds-train": {category: "Entity", subtype: "Dataset"}
//		}
//		edges: [{source: "run-42", target: "ds-train", relation: "used"}]
//	}
//
// LoadRecords reads every record in a directory; DecodeYAML reads the inline
// form used by harness scenarios.
package builder

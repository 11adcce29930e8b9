package pgstore

import "github.com/uptrace/bun"

// nodeModel is a row of provsync_nodes.
type nodeModel struct {
	bun.BaseModel `bun:"table:provsync_nodes,alias:n"`

	ID       string   `bun:"id,pk"`
	Category string   `bun:"category,notnull"`
	Subtype  string   `bun:"subtype,notnull"`
	Owners   []string `bun:"owners,array,type:text[],notnull,default:'{}'"`
}

// edgeModel is a row of provsync_edges.
type edgeModel struct {
	bun.BaseModel `bun:"table:provsync_edges,alias:e"`

	SourceID string   `bun:"source_id,pk"`
	TargetID string   `bun:"target_id,pk"`
	Relation string   `bun:"relation,notnull"`
	Owners   []string `bun:"owners,array,type:text[],notnull,default:'{}'"`
}

// subgraphRow is one edge of a fetched subgraph with both endpoints joined.
type subgraphRow struct {
	SourceID       string   `bun:"source_id"`
	SourceCategory string   `bun:"source_category"`
	SourceSubtype  string   `bun:"source_subtype"`
	SourceOwners   []string `bun:"source_owners,array"`
	TargetID       string   `bun:"target_id"`
	TargetCategory string   `bun:"target_category"`
	TargetSubtype  string   `bun:"target_subtype"`
	TargetOwners   []string `bun:"target_owners,array"`
	Relation       string   `bun:"relation"`
	Owners         []string `bun:"owners,array"`
}

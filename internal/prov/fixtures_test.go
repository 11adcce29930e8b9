package prov

func activity(id string, owners ...string) Node {
	return Node{ID: id, Category: CategoryActivity, Subtype: SubtypeRun, Owners: NewOwnerSet(owners...)}
}

func dataset(id string, owners ...string) Node {
	return Node{ID: id, Category: CategoryEntity, Subtype: SubtypeDataset, Owners: NewOwnerSet(owners...)}
}

func edge(src Node, rel Relation, dst Node, owners ...string) Edge {
	return Edge{Source: src, Target: dst, Relation: rel, Owners: NewOwnerSet(owners...)}
}

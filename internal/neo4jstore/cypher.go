package neo4jstore

// Nodes carry the ProvNode label; every edge is a PROV relationship whose
// provenance relation kind is the "relation" property. Owner sets are list
// properties. All values travel as parameters.
const (
	cypherConstraint = `
		CREATE CONSTRAINT provsync_node_id IF NOT EXISTS
		FOR (n:ProvNode) REQUIRE n.id IS UNIQUE`

	cypherUpsertNode = `
		MERGE (n:ProvNode {id: $id})
		ON CREATE SET n.owners = []
		SET n.category = $category,
		    n.subtype = $subtype,
		    n.owners = CASE WHEN $record IN n.owners THEN n.owners ELSE n.owners + $record END`

	cypherAddNodeOwner = `
		MATCH (n:ProvNode {id: $id})
		SET n.owners = CASE WHEN $record IN n.owners THEN n.owners ELSE n.owners + $record END
		RETURN count(n) AS matched`

	cypherRemoveNodeOwner = `
		MATCH (n:ProvNode {id: $id})
		SET n.owners = [o IN n.owners WHERE o <> $record]
		RETURN count(n) AS matched`

	cypherDeleteNode = `
		MATCH (n:ProvNode {id: $id})
		SET n.owners = [o IN n.owners WHERE o <> $record]
		WITH n, (size(n.owners) = 0 AND NOT EXISTS { (n)--() }) AS orphan
		FOREACH (_ IN CASE WHEN orphan THEN [1] ELSE [] END | DELETE n)
		RETURN orphan AS deleted`

	cypherFindNodes = `
		MATCH (n:ProvNode)
		WHERE n.id IN $ids
		RETURN n.id AS id, n.category AS category, n.subtype AS subtype`

	cypherReleaseOrphans = `
		MATCH (n:ProvNode)
		WHERE $record IN n.owners
		  AND NOT EXISTS { MATCH (n)-[r:PROV]-() WHERE $record IN r.owners }
		SET n.owners = [o IN n.owners WHERE o <> $record]
		WITH n, (size(n.owners) = 0 AND NOT EXISTS { (n)--() }) AS orphan
		FOREACH (_ IN CASE WHEN orphan THEN [1] ELSE [] END | DELETE n)
		RETURN count(*) AS released`

	// MERGE on a relationship is not covered by the node constraint, so both
	// endpoints are write-locked first and concurrent upserts of the same
	// pair serialize instead of creating two relationships.
	cypherUpsertEdge = `
		MATCH (s:ProvNode {id: $source}), (t:ProvNode {id: $target})
		SET s._lock = true, t._lock = true
		MERGE (s)-[r:PROV]->(t)
		ON CREATE SET r.relation = $relation, r.owners = []
		SET r.owners = CASE WHEN $record IN r.owners THEN r.owners ELSE r.owners + $record END
		REMOVE s._lock, t._lock`

	cypherAddEdgeOwner = `
		MATCH (:ProvNode {id: $source})-[r:PROV]->(:ProvNode {id: $target})
		SET r.owners = CASE WHEN $record IN r.owners THEN r.owners ELSE r.owners + $record END
		RETURN count(r) AS matched`

	cypherRemoveEdgeOwner = `
		MATCH (:ProvNode {id: $source})-[r:PROV]->(:ProvNode {id: $target})
		SET r.owners = [o IN r.owners WHERE o <> $record]
		RETURN count(r) AS matched`

	cypherDeleteEdge = `
		MATCH (:ProvNode {id: $source})-[r:PROV]->(:ProvNode {id: $target})
		SET r.owners = [o IN r.owners WHERE o <> $record]
		WITH r, size(r.owners) = 0 AS orphan
		FOREACH (_ IN CASE WHEN orphan THEN [1] ELSE [] END | DELETE r)
		RETURN orphan AS deleted`

	cypherFindEdges = `
		UNWIND $pairs AS p
		MATCH (:ProvNode {id: p.source})-[r:PROV]->(:ProvNode {id: p.target})
		RETURN p.source AS source, p.target AS target, r.relation AS relation`

	cypherFetchOwned = `
		MATCH (s:ProvNode)-[r:PROV]->(t:ProvNode)
		WHERE $record IN r.owners AND $record IN s.owners AND $record IN t.owners
		RETURN s.id AS sourceId, s.category AS sourceCategory, s.subtype AS sourceSubtype, s.owners AS sourceOwners,
		       t.id AS targetId, t.category AS targetCategory, t.subtype AS targetSubtype, t.owners AS targetOwners,
		       r.relation AS relation, r.owners AS owners
		ORDER BY sourceId, targetId`

	cypherListRecords = `
		CALL {
			MATCH (n:ProvNode) UNWIND n.owners AS record RETURN record
			UNION
			MATCH ()-[r:PROV]->() UNWIND r.owners AS record RETURN record
		}
		RETURN DISTINCT record
		ORDER BY record`

	cypherTruncate = `
		MATCH (n:ProvNode)
		DETACH DELETE n`
)

package prov

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainGraph separates graph fingerprints from any other hash in the system.
const DomainGraph = "provsync/graph/v1"

func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Structure returns the canonical, owner-free form of the graph: its node
// ids with category and subtype, and its edges with relation. Two graphs are
// structurally equal exactly when their structures marshal identically.
func (g LogicalGraph) Structure() map[string]any {
	nodes := make([]any, 0)
	for _, n := range g.Nodes() {
		nodes = append(nodes, map[string]any{
			"id":       n.ID,
			"category": string(n.Category),
			"subtype":  string(n.Subtype),
		})
	}
	edges := make([]any, 0, len(g.Edges))
	for _, e := range g.SortedEdges() {
		edges = append(edges, map[string]any{
			"source":   e.Source.ID,
			"target":   e.Target.ID,
			"relation": string(e.Relation),
		})
	}
	return map[string]any{
		"nodes": nodes,
		"edges": edges,
	}
}

// Fingerprint hashes the graph structure. Owners and the record id are
// excluded, so the fingerprint of a freshly built graph equals the
// fingerprint of the same graph fetched back from a store.
func Fingerprint(g LogicalGraph) (string, error) {
	canonical, err := MarshalCanonical(g.Structure())
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFingerprint(g LogicalGraph) string {
	fp, err := Fingerprint(g)
	if err != nil {
		panic(err)
	}
	return fp
}

package prov

import (
	"encoding/json"
	"slices"
)

// OwnerSet is the set of record ids keeping a node or edge alive.
//
// The zero value (nil) is a valid empty set for reads. Use NewOwnerSet or
// Clone before mutating.
type OwnerSet map[string]struct{}

// NewOwnerSet returns a set holding the given record ids.
func NewOwnerSet(ids ...string) OwnerSet {
	s := make(OwnerSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether recordID is an owner.
func (s OwnerSet) Has(recordID string) bool {
	_, ok := s[recordID]
	return ok
}

// Len returns the number of owners.
func (s OwnerSet) Len() int {
	return len(s)
}

// Add inserts recordID. Adding an existing owner is a no-op.
func (s OwnerSet) Add(recordID string) {
	s[recordID] = struct{}{}
}

// Remove deletes recordID. Removing a non-owner is a no-op.
func (s OwnerSet) Remove(recordID string) {
	delete(s, recordID)
}

// Clone returns an independent copy. Cloning nil yields an empty, non-nil set.
func (s OwnerSet) Clone() OwnerSet {
	c := make(OwnerSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Union returns a new set containing the owners of s and other.
func (s OwnerSet) Union(other OwnerSet) OwnerSet {
	u := s.Clone()
	for id := range other {
		u[id] = struct{}{}
	}
	return u
}

// Equal reports whether both sets hold the same owners.
func (s OwnerSet) Equal(other OwnerSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// SoleOwner reports whether recordID is the only owner, or the set is empty.
// This is the cardinality check that decides between a hard delete and an
// unlink.
func (s OwnerSet) SoleOwner(recordID string) bool {
	switch len(s) {
	case 0:
		return true
	case 1:
		return s.Has(recordID)
	}
	return false
}

// Sorted returns the owners in ascending byte order. Never nil.
func (s OwnerSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// MarshalJSON encodes the set as a sorted array.
func (s OwnerSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of record ids. Duplicates collapse.
func (s *OwnerSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewOwnerSet(ids...)
	return nil
}

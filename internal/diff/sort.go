package diff

import (
	"cmp"
	"slices"
)

// Sort orders actions in place by kind priority. Ties are broken by entity
// and record id so the same diff always yields the same sequence; nothing
// relies on the order within a priority bucket.
func Sort(actions []Action) {
	slices.SortStableFunc(actions, compare)
}

// Sorted returns a sorted copy, leaving actions untouched.
func Sorted(actions []Action) []Action {
	out := slices.Clone(actions)
	Sort(out)
	return out
}

func compare(a, b Action) int {
	if c := cmp.Compare(a.Kind().Priority(), b.Kind().Priority()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Entity(), b.Entity()); c != 0 {
		return c
	}
	return cmp.Compare(a.Record(), b.Record())
}

// Summary counts actions per kind. Kinds with no actions are omitted.
func Summary(actions []Action) map[Kind]int {
	counts := make(map[Kind]int)
	for _, a := range actions {
		counts[a.Kind()]++
	}
	return counts
}

// OnlyAdditions reports whether no action releases ownership or deletes.
func OnlyAdditions(actions []Action) bool {
	for _, a := range actions {
		if a.Kind().IsRemoval() {
			return false
		}
	}
	return true
}

// Strings renders each action with its String method.
func Strings(actions []Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.String()
	}
	return out
}

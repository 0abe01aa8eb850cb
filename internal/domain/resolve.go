package domain

import (
	"slices"
	"strings"
)

// Resolve collapses records sharing an identity key into one record per key.
// It is how republished alerts (same code, slightly different text) become a
// single logical alert before reconciliation.
//
// For each group the member with the latest StartDate supplies the singular
// fields; ties go to the higher Sequence, then to the member seen first. Risks
// and Instructions are the union of all members in first-seen order with
// duplicates removed. Coordinates are constant per city, so any member's are
// correct.
//
// The result is sorted by IdentityKey and shares no memory with the input.
func Resolve(records []AlertRecord) []AlertRecord {
	groups := make(map[string][]AlertRecord, len(records))
	for _, r := range records {
		groups[r.IdentityKey] = append(groups[r.IdentityKey], r)
	}

	out := make([]AlertRecord, 0, len(groups))
	for _, members := range groups {
		out = append(out, merge(members))
	}
	slices.SortFunc(out, func(a, b AlertRecord) int {
		return strings.Compare(a.IdentityKey, b.IdentityKey)
	})
	return out
}

func merge(members []AlertRecord) AlertRecord {
	if len(members) == 1 {
		return members[0].Clone()
	}

	winner := members[0]
	for _, m := range members[1:] {
		if supersedes(m, winner) {
			winner = m
		}
	}

	merged := winner.Clone()
	risks := make([][]string, len(members))
	instructions := make([][]string, len(members))
	for i, m := range members {
		risks[i] = m.Risks
		instructions[i] = m.Instructions
	}
	merged.Risks = union(risks...)
	merged.Instructions = union(instructions...)
	return merged
}

// supersedes reports whether candidate should replace current as the source
// of singular fields.
func supersedes(candidate, current AlertRecord) bool {
	if !candidate.StartDate.Equal(current.StartDate) {
		return candidate.StartDate.After(current.StartDate)
	}
	return candidate.Sequence > current.Sequence
}

// union concatenates lists, keeping the first occurrence of each value.
func union(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, list := range lists {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

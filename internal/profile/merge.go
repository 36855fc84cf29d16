package profile

import "strings"

// Merge applies facts to p and returns the resulting profile together with the
// facts that actually changed it. p is not modified.
//
// Scalars are only written while empty; list fields are unioned, ignoring case
// and surrounding whitespace. Merging the same facts twice is a no-op the second
// time. TurnCount is left to the caller.
func Merge(p Profile, facts Facts) (Profile, Facts) {
	out := p.clone()
	var delta Facts

	setOnce := func(dst *string, v string) string {
		v = strings.TrimSpace(v)
		if *dst != "" || v == "" {
			return ""
		}
		*dst = v
		return v
	}

	delta.Name = setOnce(&out.Name, facts.Name)
	delta.Grade = setOnce(&out.Grade, facts.Grade)
	delta.Board = setOnce(&out.Board, facts.Board)
	delta.WorkEnvironment = setOnce(&out.WorkEnvironment, facts.WorkEnvironment)
	delta.Goals = setOnce(&out.Goals, facts.Goals)

	out.Interests, delta.Interests = union(out.Interests, facts.Interests)
	out.Strengths, delta.Strengths = union(out.Strengths, facts.Strengths)
	out.Values, delta.Values = union(out.Values, facts.Values)

	return out, delta
}

// union appends the items of add not already in base and returns the new list
// plus the items that were added.
func union(base, add []string) (merged, added []string) {
	seen := make(map[string]struct{}, len(base)+len(add))
	for _, v := range base {
		seen[dedupeKey(v)] = struct{}{}
	}
	merged = base
	for _, v := range add {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		k := dedupeKey(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, v)
		added = append(added, v)
	}
	return merged, added
}

func dedupeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// NormalizeList trims items, drops empties and collapses duplicates while
// keeping the first spelling of each item.
func NormalizeList(items []string) []string {
	out, _ := union(nil, items)
	return out
}

func (p Profile) clone() Profile {
	cp := p
	cp.Interests = cloneStrings(p.Interests)
	cp.Strengths = cloneStrings(p.Strengths)
	cp.Values = cloneStrings(p.Values)
	cp.Paths = cloneStrings(p.Paths)
	if p.Recommendations != nil {
		cp.Recommendations = make([]Recommendation, len(p.Recommendations))
		copy(cp.Recommendations, p.Recommendations)
	}
	return cp
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	cp := make([]string, len(s))
	copy(cp, s)
	return cp
}

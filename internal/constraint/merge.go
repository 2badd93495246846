// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package constraint

import "github.com/graphd/graphd/internal/primitive"

// Merge folds b's constraints into a, converging bounds and flipping
// Flags.False on any contradiction — spec.md §3's clause-merge
// invariant. Neither input is mutated; Merge returns a new node, or the
// canonical False() leaf once a contradiction is detected.
func Merge(a, b *Node) (*Node, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}
	if a.Flags.False || b.Flags.False {
		return False(), nil
	}

	out := &Node{
		Flags: Flags{
			Anchor:   a.Flags.Anchor || b.Flags.Anchor,
			Archival: a.Flags.Archival || b.Flags.Archival,
			Live:     a.Flags.Live || b.Flags.Live,
		},
	}

	out.Timestamp = append(append([]TimestampBound{}, a.Timestamp...), b.Timestamp...)
	if contradictsTimestamp(out.Timestamp) {
		return False(), nil
	}

	out.Count = mergeCount(a.Count, b.Count)
	if out.Count != nil && out.Count.Min > out.Count.MaxValid {
		return False(), nil
	}

	gen, ok := mergeGeneration(a.Generation, b.Generation)
	if !ok {
		return False(), nil
	}
	out.Generation = gen

	if !mergeDateline(&out.Dateline, a.Dateline, b.Dateline) {
		return False(), nil
	}

	out.GUIDPredicates = append(append([]GUIDPredicate{}, a.GUIDPredicates...), b.GUIDPredicates...)
	if contradictsGUID(out.GUIDPredicates) {
		return False(), nil
	}

	out.StringPredicates = append(append([]StringPredicate{}, a.StringPredicates...), b.StringPredicates...)
	out.LinkagePredicates = append(append([]LinkagePredicate{}, a.LinkagePredicates...), b.LinkagePredicates...)
	if contradictsLinkage(out.LinkagePredicates) {
		return False(), nil
	}

	// Sort/page/cursor shaping is not a predicate: the more specific
	// (non-zero) side wins rather than accumulating.
	out.Sort = a.Sort
	if len(b.Sort) > 0 {
		out.Sort = b.Sort
	}
	out.PageSize = a.PageSize
	if b.PageSize != 0 {
		out.PageSize = b.PageSize
	}
	out.Start = a.Start
	if b.Start != 0 {
		out.Start = b.Start
	}
	out.Cursor = a.Cursor
	if b.Cursor != "" {
		out.Cursor = b.Cursor
	}

	out.Or = mergeOr(a.Or, b.Or)
	out.Prototype = a.Prototype
	if b.Prototype != nil {
		out.Prototype = b.Prototype
	}

	return out, nil
}

// contradictsTimestamp reports whether any pair of bounds rules out
// every timestamp value (e.g. one requires < T and another requires
// >= T or later).
func contradictsTimestamp(bounds []TimestampBound) bool {
	var lower, upper *TimestampBound
	var hasLower, hasUpper bool

	for i := range bounds {
		b := bounds[i]
		switch b.Op {
		case primitive.OpGreaterEqual, primitive.OpGreater:
			if !hasLower || tighterLower(b, *lower) {
				lower = &bounds[i]
				hasLower = true
			}
		case primitive.OpLessEqual, primitive.OpLess:
			if !hasUpper || tighterUpper(b, *upper) {
				upper = &bounds[i]
				hasUpper = true
			}
		case primitive.OpEqual:
			ge := TimestampBound{Op: primitive.OpGreaterEqual, Value: b.Value}
			le := TimestampBound{Op: primitive.OpLessEqual, Value: b.Value}
			if !hasLower || tighterLower(ge, *lower) {
				lower, hasLower = &ge, true
			}
			if !hasUpper || tighterUpper(le, *upper) {
				upper, hasUpper = &le, true
			}
		}
	}

	if !hasLower || !hasUpper {
		return false
	}
	if lower.Value.After(upper.Value) {
		return true
	}
	if lower.Value == upper.Value && (lower.Op == primitive.OpGreater || upper.Op == primitive.OpLess) {
		return true
	}
	return false
}

func tighterLower(a, b TimestampBound) bool {
	return a.Value.After(b.Value) || (a.Value == b.Value && a.Op == primitive.OpGreater)
}
func tighterUpper(a, b TimestampBound) bool {
	return b.Value.After(a.Value) || (a.Value == b.Value && a.Op == primitive.OpLess)
}

func mergeGeneration(a, b GenerationBound) (GenerationBound, bool) {
	if !a.Set {
		return b, true
	}
	if !b.Set {
		return a, true
	}
	if a.Oldest != b.Oldest || a.Newest != b.Newest {
		return GenerationBound{}, false
	}
	return a, true
}

func mergeDateline(out *DatelineBound, a, b DatelineBound) bool {
	switch {
	case !a.Set:
		*out = b
	case !b.Set:
		*out = a
	default:
		*out = DatelineBound{Set: true, ID: maxUint64(a.ID, b.ID)}
	}
	return true
}

func maxUint64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func contradictsGUID(preds []GUIDPredicate) bool {
	seen := make(map[primitive.Linkage]primitive.GUID)
	for _, p := range preds {
		if prior, ok := seen[p.Linkage]; ok && prior != p.Equals {
			return true
		}
		seen[p.Linkage] = p.Equals
	}
	return false
}

func contradictsLinkage(preds []LinkagePredicate) bool {
	seen := make(map[primitive.Linkage]primitive.GUID)
	for _, p := range preds {
		if prior, ok := seen[p.Linkage]; ok && prior != p.Value {
			return true
		}
		seen[p.Linkage] = p.Value
	}
	return false
}

func mergeOr(a, b []*Node) []*Node {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	out := make([]*Node, 0, len(a)*len(b))
	for _, x := range a {
		for _, y := range b {
			m, err := Merge(x, y)
			if err != nil {
				continue
			}
			if !m.Flags.False {
				out = append(out, m)
			}
		}
	}
	return out
}

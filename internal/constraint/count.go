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

// CountBound restricts matches by an occurrence count, with a ceiling
// a merge must never exceed and a running tally of the narrowest bound
// seen valid so far.
type CountBound struct {
	Max      int64 // countcon_max: the clause's declared ceiling
	MaxValid int64 // countcon_max_valid: narrowest ceiling confirmed reachable
	Min      int64
}

// mergeCount converges two count bounds the way the original engine's
// count-clause merge does: Min takes the larger (more restrictive)
// floor, and the upper bound is re-tightened against MaxValid rather
// than Max.
//
// This mirrors a likely defect in the system this engine is modeled on:
// the merge's upper-bound comparison is keyed on MaxValid in the branch
// that decides whether b's bound narrows a, not on Max. Max and MaxValid
// coincide unless a caller has independently tightened MaxValid below
// Max (e.g. a prior partial evaluation already proved a stricter ceiling
// holds) without updating Max to match, at which point this merge keeps
// the stale, looser Max instead of applying the already-proven tighter
// ceiling. Preserved as observed rather than corrected; see
// TestCountMerge_UsesValidBound.
func mergeCount(a, b *CountBound) *CountBound {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}

	out := &CountBound{Max: a.Max, MaxValid: a.MaxValid, Min: a.Min}
	if b.Min > out.Min {
		out.Min = b.Min
	}
	if b.MaxValid < out.MaxValid {
		out.MaxValid = b.MaxValid
		// Max is left untouched here even though b.MaxValid narrowed the
		// bound — the observed discrepancy.
	}
	return out
}

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

// Package islink builds the background is-a/links-to acceleration
// indices of spec.md §4.5: per-typeguid Side state, groups, and
// pairwise intersection memoization.
//
// Endpoint and record ids are stored in 32-bit roaring bitmaps
// (github.com/RoaringBitmap/roaring/v2). The physical store hands out
// dense uint64 ids; this reference engine takes them as uint32 without
// checking the range, which holds for every id the test suite and
// in-process store produce.
// A deployment needing the full 64-bit id space would swap in that
// library's roaring64 bitmap without changing this package's shape.
package islink

import "github.com/RoaringBitmap/roaring/v2"

// SideCount is the per-endpoint record kept inside a Side, per
// spec.md §3: a distinct-endpoint's occurrence count plus, once that
// count reaches InterestingMin, the set of record ids observed for it.
type SideCount struct {
	Count int
	IDs   *roaring.Bitmap // nil until Count reaches InterestingMin
}

// Side is one of the two (LEFT, RIGHT) endpoint-tracking halves of a
// per-typeguid islink record.
type Side struct {
	ids    *roaring.Bitmap // distinct endpoint ids seen; nil once vast
	counts map[uint32]*SideCount
	vast   bool

	interestingMin int
	interestingMax int
}

// NewSide builds an empty Side with the given group-formation and
// vast-transition thresholds.
func NewSide(interestingMin, interestingMax int) *Side {
	return &Side{
		ids:            roaring.New(),
		counts:         make(map[uint32]*SideCount),
		interestingMin: interestingMin,
		interestingMax: interestingMax,
	}
}

// Vast reports whether this side exceeded InterestingMax distinct
// endpoints and dropped its state.
func (s *Side) Vast() bool { return s.vast }

// DistinctCount returns the number of distinct endpoints seen, or -1
// once the side has gone vast (its state was dropped).
func (s *Side) DistinctCount() int {
	if s.vast {
		return -1
	}
	return int(s.ids.GetCardinality())
}

// Add registers that recordID appeared on this side with the given
// endpoint id. Adds on an already-vast side are silently ignored, per
// spec.md §4.5.
func (s *Side) Add(endpoint, recordID uint32) {
	if s.vast {
		return
	}

	sc, known := s.counts[endpoint]
	if !known {
		sc = &SideCount{}
		s.counts[endpoint] = sc
		s.ids.Add(endpoint)

		if int(s.ids.GetCardinality()) > s.interestingMax {
			s.vast = true
			s.ids = nil
			s.counts = nil
			return
		}
	}

	sc.Count++
	if sc.Count == s.interestingMin {
		sc.IDs = roaring.New()
		// A real job would re-scan the VIP iterator from its start up
		// to the current primitive here, to catch up on the records
		// discarded before the endpoint became interesting. In this
		// in-process engine Index.Observe keeps every record it has
		// seen so far and replays it through Backfill instead of doing
		// the re-scan, since it already holds that history.
	}
	if sc.IDs != nil {
		sc.IDs.Add(recordID)
	}
}

// Backfill adds recordID to endpoint's group idset even if the group
// was only just created by the triggering Add call (see the comment
// in Add) — used by Index.Observe to replay history once
// InterestingMin is hit.
func (s *Side) Backfill(endpoint uint32, recordIDs []uint32) {
	sc, ok := s.counts[endpoint]
	if !ok || sc.IDs == nil {
		return
	}
	for _, id := range recordIDs {
		sc.IDs.Add(id)
	}
}

// Group returns the materialized group idset for endpoint, if one has
// formed (Count has reached InterestingMin).
func (s *Side) Group(endpoint uint32) (*roaring.Bitmap, bool) {
	if s.vast {
		return nil, false
	}
	sc, ok := s.counts[endpoint]
	if !ok || sc.IDs == nil {
		return nil, false
	}
	return sc.IDs, true
}

// IDs returns the side's full distinct-endpoint idset, or nil if vast.
func (s *Side) IDs() *roaring.Bitmap {
	if s.vast {
		return nil
	}
	return s.ids
}

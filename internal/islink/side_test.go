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

package islink

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphd/graphd/internal/primitive"
)

// TestSide_VastTransition is S6 of spec.md §8: type T with
// INTERESTING_MAX = 3, fed four LEFT-distinct records. The fourth
// distinct LEFT endpoint pushes the side's distinct count to 4,
// exceeding the threshold, so LEFT goes vast and drops its idset;
// further LEFT adds are then no-ops. RIGHT is fed only three distinct
// endpoints (R1,R2,R3 — the fourth record reuses R1) so it retains its
// three-element idset, demonstrating the two sides track vast
// independently.
func TestSide_VastTransition(t *testing.T) {
	require := require.New(t)

	const interestingMin = 2
	const interestingMax = 3

	ix := NewIndex(interestingMin, interestingMax)
	const typeID = uint32(1)

	ix.Observe(Link{TypeID: typeID, Left: 101, Right: 201, Record: 1}) // L1,R1
	ix.Observe(Link{TypeID: typeID, Left: 102, Right: 202, Record: 2}) // L2,R2
	ix.Observe(Link{TypeID: typeID, Left: 103, Right: 203, Record: 3}) // L3,R3
	ix.Observe(Link{TypeID: typeID, Left: 104, Right: 201, Record: 4}) // L4,R1 (reuse)

	left := ix.Side(typeID, primitive.LinkageLeft)
	require.True(left.Vast())
	require.Equal(-1, left.DistinctCount())

	right := ix.Side(typeID, primitive.LinkageRight)
	require.False(right.Vast())
	require.Equal(3, right.DistinctCount())

	// Further LEFT adds are silently ignored once vast.
	ix.Observe(Link{TypeID: typeID, Left: 999, Right: 204, Record: 5})
	require.True(left.Vast())
}

func TestSide_GroupFormsAtInterestingMin(t *testing.T) {
	require := require.New(t)

	s := NewSide(2, 100)
	s.Add(7, 1)
	_, ok := s.Group(7)
	require.False(ok, "group should not exist before InterestingMin occurrences")

	s.Add(7, 2)
	grp, ok := s.Group(7)
	require.True(ok)
	require.False(grp.Contains(1), "record 1 predates the group; Backfill adds it")
	require.True(grp.Contains(2))
}

func TestSide_BackfillCatchesUpEarlyRecords(t *testing.T) {
	require := require.New(t)

	s := NewSide(3, 100)
	s.Add(7, 1)
	s.Add(7, 2)
	s.Add(7, 3) // group forms here, only contains record 3 so far

	grp, ok := s.Group(7)
	require.True(ok)
	require.True(grp.Contains(3))
	require.False(grp.Contains(1))

	s.Backfill(7, []uint32{1, 2, 3})
	grp, ok = s.Group(7)
	require.True(ok)
	require.True(grp.Contains(1))
	require.True(grp.Contains(2))
	require.True(grp.Contains(3))
}

func TestSide_VastDropsCountsAndIgnoresFurtherAdds(t *testing.T) {
	require := require.New(t)

	s := NewSide(2, 2)
	s.Add(1, 100)
	s.Add(2, 100)
	require.False(s.Vast())

	s.Add(3, 100) // third distinct endpoint exceeds InterestingMax of 2
	require.True(s.Vast())
	require.Equal(-1, s.DistinctCount())
	require.Nil(s.IDs())

	s.Add(4, 100)
	_, ok := s.Group(1)
	require.False(ok)
}

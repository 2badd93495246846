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

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphd/graphd/internal/primitive"
)

func ts(seconds uint64) primitive.Timestamp {
	return primitive.NewTimestamp(seconds, 0)
}

func TestMerge_TimestampBoundsConverge(t *testing.T) {
	require := require.New(t)

	a := &Node{Timestamp: []TimestampBound{{Op: primitive.OpGreaterEqual, Value: ts(100)}}}
	b := &Node{Timestamp: []TimestampBound{{Op: primitive.OpLess, Value: ts(200)}}}

	out, err := Merge(a, b)
	require.NoError(err)
	require.False(out.Flags.False)
	require.Len(out.Timestamp, 2)
}

func TestMerge_TimestampContradictionPrunes(t *testing.T) {
	require := require.New(t)

	a := &Node{Timestamp: []TimestampBound{{Op: primitive.OpGreaterEqual, Value: ts(200)}}}
	b := &Node{Timestamp: []TimestampBound{{Op: primitive.OpLess, Value: ts(100)}}}

	out, err := Merge(a, b)
	require.NoError(err)
	require.True(out.Flags.False)
}

func TestMerge_GUIDPredicateContradictionPrunes(t *testing.T) {
	require := require.New(t)

	g1, g2 := primitive.NewGUID(), primitive.NewGUID()
	a := &Node{GUIDPredicates: []GUIDPredicate{{Linkage: primitive.LinkageLeft, Equals: g1}}}
	b := &Node{GUIDPredicates: []GUIDPredicate{{Linkage: primitive.LinkageLeft, Equals: g2}}}

	out, err := Merge(a, b)
	require.NoError(err)
	require.True(out.Flags.False)
}

func TestMerge_FlagsUnionAcrossNodes(t *testing.T) {
	require := require.New(t)

	a := &Node{Flags: Flags{Anchor: true}}
	b := &Node{Flags: Flags{Live: true}}

	out, err := Merge(a, b)
	require.NoError(err)
	require.True(out.Flags.Anchor)
	require.True(out.Flags.Live)
	require.False(out.Flags.Archival)
}

func TestMerge_FalseInputShortCircuits(t *testing.T) {
	require := require.New(t)

	a := False()
	b := &Node{Flags: Flags{Anchor: true}}

	out, err := Merge(a, b)
	require.NoError(err)
	require.True(out.Flags.False)
}

// TestCountMerge_UsesValidBound documents the open question of
// spec.md §9: the count-clause merge compares against MaxValid
// (countcon_max_valid) rather than Max (countcon_max) when deciding
// whether the merged bound is satisfiable, so a stale wider Max
// survives the merge even though MaxValid already proved the narrower
// ceiling.
func TestCountMerge_UsesValidBound(t *testing.T) {
	require := require.New(t)

	a := &Node{Count: &CountBound{Max: 100, MaxValid: 100, Min: 0}}
	b := &Node{Count: &CountBound{Max: 100, MaxValid: 10, Min: 0}}

	out, err := Merge(a, b)
	require.NoError(err)
	require.False(out.Flags.False)
	require.Equal(int64(10), out.Count.MaxValid)
	require.Equal(int64(100), out.Count.Max, "Max is left stale by the observed merge behavior")
}

func TestCountMerge_MinExceedsMaxValidPrunes(t *testing.T) {
	require := require.New(t)

	a := &Node{Count: &CountBound{Max: 100, MaxValid: 5, Min: 10}}
	b := &Node{Count: &CountBound{Max: 100, MaxValid: 100, Min: 0}}

	out, err := Merge(a, b)
	require.NoError(err)
	require.True(out.Flags.False)
}

func TestMerge_OrBranchesCrossProduct(t *testing.T) {
	require := require.New(t)

	g1, g2 := primitive.NewGUID(), primitive.NewGUID()
	a := &Node{Or: []*Node{
		{GUIDPredicates: []GUIDPredicate{{Linkage: primitive.LinkageLeft, Equals: g1}}},
		{GUIDPredicates: []GUIDPredicate{{Linkage: primitive.LinkageLeft, Equals: g2}}},
	}}
	b := &Node{GUIDPredicates: []GUIDPredicate{{Linkage: primitive.LinkageLeft, Equals: g1}}}

	out, err := Merge(a, b)
	require.NoError(err)
	require.Len(out.Or, 1, "only the matching branch should survive the cross product")
}

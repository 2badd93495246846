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

package sortengine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphd/graphd/internal/iterator"
)

// candidateStream is the literal S1/S2 sequence from spec.md §8:
// keys 9,1,7,3,2,8,0,5,6,4 in that order, id == key.
var candidateStream = []uint64{9, 1, 7, 3, 2, 8, 0, 5, 6, 4}

func identityKey(id uint64) (Key, error) {
	return Key{Fields: []int64{int64(id)}}, nil
}

func resultIDs(cands []Candidate) []uint64 {
	out := make([]uint64, len(cands))
	for i, c := range cands {
		out[i] = c.ID
	}
	return out
}

func TestSort_TopK(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(3)
	ids := iterator.NewSlice(candidateStream, false)
	budget := 1000

	outcome, err := ctx.Run(ids, identityKey, &budget)
	require.NoError(err)
	require.Equal(iterator.Yes, outcome)

	require.Equal([]uint64{0, 1, 2}, resultIDs(ctx.Results()))
	require.True(ctx.HaveTrailing())
}

func TestSort_CursorResumption(t *testing.T) {
	require := require.New(t)

	first := NewContext(3)
	ids := iterator.NewSlice(candidateStream, false)
	budget := 1000
	_, err := first.Run(ids, identityKey, &budget)
	require.NoError(err)
	require.Equal([]uint64{0, 1, 2}, resultIDs(first.Results()))

	cursorText, err := first.Freeze()
	require.NoError(err)
	require.Equal("sort:2", cursorText)

	cutoffCtx, err := Thaw(cursorText)
	require.NoError(err)

	second := NewContext(3)
	second.ResumeWith(cutoffCtx)
	ids2 := iterator.NewSlice(candidateStream, false)
	budget2 := 1000
	_, err = second.Run(ids2, identityKey, &budget2)
	require.NoError(err)

	require.Equal([]uint64{3, 4, 5}, resultIDs(second.Results()))
}

func TestSort_TiedLeadingFieldResolvesByFullCompare(t *testing.T) {
	require := require.New(t)

	// Every candidate ties on the leading field, so prefilter alone
	// cannot classify any of them — the third "unknown" outcome forces
	// a full-field compare for every candidate after the median forms.
	keys := map[uint64]Key{
		0: {Fields: []int64{0, 9}},
		1: {Fields: []int64{0, 1}},
		2: {Fields: []int64{0, 7}},
		3: {Fields: []int64{0, 3}},
		4: {Fields: []int64{0, 2}},
		5: {Fields: []int64{0, 8}},
		6: {Fields: []int64{0, 0}},
		7: {Fields: []int64{0, 5}},
		8: {Fields: []int64{0, 6}},
		9: {Fields: []int64{0, 4}},
	}
	keyFunc := func(id uint64) (Key, error) { return keys[id], nil }

	ctx := NewContext(3)
	ids := iterator.NewSlice([]uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, false)
	budget := 1000

	outcome, err := ctx.Run(ids, keyFunc, &budget)
	require.NoError(err)
	require.Equal(iterator.Yes, outcome)

	// Smallest three by second field: ids 6, 1, 4 (values 0, 1, 2).
	require.Equal([]uint64{6, 1, 4}, resultIDs(ctx.Results()))
}

func TestSort_BudgetExhaustionResumes(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(3)
	ids := iterator.NewSlice(candidateStream, false)

	budget := 2
	outcome, err := ctx.Run(ids, identityKey, &budget)
	require.NoError(err)
	require.Equal(iterator.More, outcome)

	budget = 1000
	outcome, err = ctx.Run(ids, identityKey, &budget)
	require.NoError(err)
	require.Equal(iterator.Yes, outcome)
	require.Equal([]uint64{0, 1, 2}, resultIDs(ctx.Results()))
}

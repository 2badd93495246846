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

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/require"

	"github.com/graphd/graphd/internal/primitive"
)

func keyA() GroupKey {
	return GroupKey{Linkage: primitive.LinkageLeft, TypeID: 1, Endpoint: 7, HasEndpoint: true}
}

func keyB() GroupKey {
	return GroupKey{Linkage: primitive.LinkageRight, TypeID: 2, Endpoint: 9, HasEndpoint: true}
}

func TestIntersectMemo_IncludeAndExclude(t *testing.T) {
	require := require.New(t)

	memo, err := NewIntersectMemo(16, 1000)
	require.NoError(err)

	a := roaring.New()
	a.AddMany([]uint32{1, 2, 3, 4})
	b := roaring.New()
	b.AddMany([]uint32{3, 4, 5, 6})

	res := memo.Intersect(keyA(), keyB(), a, b)

	require.False(res.IncludeCounts)
	require.Equal(uint64(2), res.IncludeCount)
	require.True(res.IncludeIDs.Contains(3))
	require.True(res.IncludeIDs.Contains(4))

	require.False(res.ExcludeCounts)
	require.Equal(uint64(2), res.ExcludeCount)
	require.True(res.ExcludeIDs.Contains(1))
	require.True(res.ExcludeIDs.Contains(2))

	require.Equal(1, memo.Len())
}

func TestIntersectMemo_CountOnlyAboveMaxEnumerate(t *testing.T) {
	require := require.New(t)

	memo, err := NewIntersectMemo(16, 1)
	require.NoError(err)

	a := roaring.New()
	a.AddMany([]uint32{1, 2, 3})
	b := roaring.New()
	b.AddMany([]uint32{2, 3, 4})

	res := memo.Intersect(keyA(), keyB(), a, b)

	require.True(res.IncludeCounts)
	require.Nil(res.IncludeIDs)
	require.Equal(uint64(2), res.IncludeCount)
}

func TestIntersectMemo_CachesByUnorderedPair(t *testing.T) {
	require := require.New(t)

	memo, err := NewIntersectMemo(16, 1000)
	require.NoError(err)

	a := roaring.New()
	a.AddMany([]uint32{1, 2})
	b := roaring.New()
	b.AddMany([]uint32{2, 3})

	first := memo.Intersect(keyA(), keyB(), a, b)
	second := memo.Intersect(keyB(), keyA(), b, a)

	require.Equal(first.IncludeCount, second.IncludeCount)
	require.Equal(1, memo.Len())
}

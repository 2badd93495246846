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

func TestIndex_CompleteMaterializesGroups(t *testing.T) {
	require := require.New(t)

	ix := NewIndex(2, 100)
	const typeID = uint32(5)

	ix.Observe(Link{TypeID: typeID, Left: 1, Right: 10, Record: 1})
	ix.Observe(Link{TypeID: typeID, Left: 1, Right: 10, Record: 2})
	ix.Observe(Link{TypeID: typeID, Left: 2, Right: 11, Record: 3})

	ix.Complete(typeID)

	leftAll, ok := ix.Group(GroupKey{Linkage: primitive.LinkageLeft, TypeID: typeID})
	require.True(ok)
	require.True(leftAll.Contains(1))
	require.True(leftAll.Contains(2))

	rightAll, ok := ix.Group(GroupKey{Linkage: primitive.LinkageRight, TypeID: typeID})
	require.True(ok)
	require.True(rightAll.Contains(10))
	require.True(rightAll.Contains(11))

	// Endpoint 1 on the left reached InterestingMin (2 occurrences), so
	// its group of right-side record ids is stored keyed by the
	// opposite linkage.
	vip, ok := ix.Group(GroupKey{Linkage: primitive.LinkageRight, TypeID: typeID, Endpoint: 1, HasEndpoint: true})
	require.True(ok)
	require.True(vip.Contains(1))
	require.True(vip.Contains(2))
}

func TestIndex_VastSideNotMaterialized(t *testing.T) {
	require := require.New(t)

	ix := NewIndex(2, 1)
	const typeID = uint32(9)

	ix.Observe(Link{TypeID: typeID, Left: 1, Right: 100, Record: 1})
	ix.Observe(Link{TypeID: typeID, Left: 2, Right: 101, Record: 2}) // left exceeds max of 1, goes vast

	ix.Complete(typeID)

	_, ok := ix.Group(GroupKey{Linkage: primitive.LinkageLeft, TypeID: typeID})
	require.False(ok)
}

func TestIndex_UnknownTypeCompleteIsNoop(t *testing.T) {
	require := require.New(t)
	ix := NewIndex(2, 100)
	ix.Complete(999)
	_, ok := ix.Group(GroupKey{Linkage: primitive.LinkageLeft, TypeID: 999})
	require.False(ok)
}

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

package mmapstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphd/graphd/internal/iterator"
	"github.com/graphd/graphd/internal/primitive"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func makePrimitive(id uint64, name string) primitive.Primitive {
	return primitive.New(primitive.Params{
		ID:        id,
		GUID:      primitive.NewGUID(),
		Timestamp: primitive.NewTimestamp(1000, 0),
		ValueType: primitive.ValueTypeString,
		Name:      []byte(name),
		Value:     []byte("value-" + name),
		Flags:     primitive.FlagLive,
	})
}

func TestStore_AppendAndGetRoundTrip(t *testing.T) {
	require := require.New(t)

	s := openTestStore(t)
	id := s.AllocateID()
	p := makePrimitive(id, "alpha")
	require.NoError(s.Append(p))

	got, ok, err := s.Get(id)
	require.NoError(err)
	require.True(ok)
	require.Equal(p.GUID(), got.GUID())
	require.Equal(p.Name(), got.Name())
	require.Equal(p.Value(), got.Value())
	require.Equal(p.Timestamp(), got.Timestamp())
}

func TestStore_GUIDAndIDLookupsAgree(t *testing.T) {
	require := require.New(t)

	s := openTestStore(t)
	id := s.AllocateID()
	p := makePrimitive(id, "beta")
	require.NoError(s.Append(p))

	gotID, ok := s.GUIDToID(p.GUID())
	require.True(ok)
	require.Equal(id, gotID)

	gotGUID, ok := s.IDToGUID(id)
	require.True(ok)
	require.Equal(p.GUID(), gotGUID)
}

func TestStore_PrimitiveCountTracksAllocations(t *testing.T) {
	require := require.New(t)

	s := openTestStore(t)
	require.Equal(uint64(0), s.PrimitiveCount())
	for i := 0; i < 5; i++ {
		id := s.AllocateID()
		require.NoError(s.Append(makePrimitive(id, "x")))
	}
	require.Equal(uint64(5), s.PrimitiveCount())
}

func TestStore_RollbackDropsTrailingIDs(t *testing.T) {
	require := require.New(t)

	s := openTestStore(t)
	var ids []uint64
	var primitives []primitive.Primitive
	for i := 0; i < 5; i++ {
		id := s.AllocateID()
		p := makePrimitive(id, "x")
		ids = append(ids, id)
		primitives = append(primitives, p)
		require.NoError(s.Append(p))
	}

	require.NoError(s.Rollback(2)) // keep ids 0,1,2; drop 3,4
	require.Equal(uint64(3), s.PrimitiveCount())

	_, ok, err := s.Get(ids[3])
	require.NoError(err)
	require.False(ok)

	_, ok, err = s.Get(ids[2])
	require.NoError(err)
	require.True(ok)

	_, ok = s.GUIDToID(primitives[4].GUID())
	require.False(ok)
}

func TestStore_GrowsPastInitialCapacity(t *testing.T) {
	require := require.New(t)

	s := openTestStore(t)
	big := make([]byte, initialDataCapacity) // forces at least one regrow
	id := s.AllocateID()
	p := primitive.New(primitive.Params{
		ID:        id,
		GUID:      primitive.NewGUID(),
		Timestamp: primitive.NewTimestamp(1, 0),
		ValueType: primitive.ValueTypeString,
		Value:     big,
	})
	require.NoError(s.Append(p))

	got, ok, err := s.Get(id)
	require.NoError(err)
	require.True(ok)
	require.Equal(len(big), len(got.Value()))
}

func TestStore_ReopenPersistsState(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(err)
	id := s.AllocateID()
	p := makePrimitive(id, "persisted")
	require.NoError(s.Append(p))
	require.NoError(s.Checkpoint())
	require.NoError(s.Close())

	s2, err := Open(dir)
	require.NoError(err)
	defer s2.Close()

	require.Equal(uint64(1), s2.PrimitiveCount())
	got, ok, err := s2.Get(id)
	require.NoError(err)
	require.True(ok)
	require.Equal(p.Name(), got.Name())
}

func TestStore_IteratorCoversAppendedRange(t *testing.T) {
	require := require.New(t)

	s := openTestStore(t)
	for i := 0; i < 4; i++ {
		id := s.AllocateID()
		require.NoError(s.Append(makePrimitive(id, "x")))
	}

	it, err := s.Iterator(iterator.RangeSpec{})
	require.NoError(err)

	budget := 100
	var got []uint64
	for {
		id, outcome, err := it.Next(&budget)
		require.NoError(err)
		if outcome == iterator.No {
			break
		}
		got = append(got, id)
	}
	require.Equal([]uint64{0, 1, 2, 3}, got)
}

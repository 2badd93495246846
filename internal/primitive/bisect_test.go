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

package primitive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeLog is the ordered primitive log from S5: timestamps
// [100,101,103,103,105] at ids [0..4].
type fakeLog struct{ ts []uint64 }

func (f fakeLog) Count() uint64 { return uint64(len(f.ts)) }
func (f fakeLog) TimestampAt(id uint64) (Timestamp, error) {
	return NewTimestamp(f.ts[id], 0), nil
}

func TestBisect_AllOperators(t *testing.T) {
	require := require.New(t)
	log := fakeLog{ts: []uint64{100, 101, 103, 103, 105}}

	id, found, err := TimestampToID(log, NewTimestamp(103, 0), OpEqual)
	require.NoError(err)
	require.True(found)
	require.Equal(uint64(2), id)

	id, found, err = TimestampToID(log, NewTimestamp(103, 0), OpGreater)
	require.NoError(err)
	require.True(found)
	require.Equal(uint64(4), id)

	id, found, err = TimestampToID(log, NewTimestamp(102, 0), OpGreaterEqual)
	require.NoError(err)
	require.True(found)
	require.Equal(uint64(2), id)

	_, found, err = TimestampToID(log, NewTimestamp(100, 0), OpLess)
	require.NoError(err)
	require.False(found)
}

func TestBisect_LessAndLessEqual(t *testing.T) {
	require := require.New(t)
	log := fakeLog{ts: []uint64{100, 101, 103, 103, 105}}

	id, found, err := TimestampToID(log, NewTimestamp(103, 0), OpLess)
	require.NoError(err)
	require.True(found)
	require.Equal(uint64(1), id)

	id, found, err = TimestampToID(log, NewTimestamp(103, 0), OpLessEqual)
	require.NoError(err)
	require.True(found)
	require.Equal(uint64(3), id)
}

func TestBisect_NotEqual(t *testing.T) {
	require := require.New(t)
	log := fakeLog{ts: []uint64{103, 103, 103}}

	id, found, err := TimestampToID(log, NewTimestamp(103, 0), OpNotEqual)
	require.NoError(err)
	require.False(found)

	log = fakeLog{ts: []uint64{100, 103, 103}}
	id, found, err = TimestampToID(log, NewTimestamp(103, 0), OpNotEqual)
	require.NoError(err)
	require.True(found)
	require.Equal(uint64(0), id)
}

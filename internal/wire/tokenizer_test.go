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

package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_ReplicaHandshake(t *testing.T) {
	require := require.New(t)

	tup, err := Parse(`replica (version=1 start-id=1000 check-master)`)
	require.NoError(err)
	require.Equal(CmdReplica, tup.Command)
	require.Len(tup.Params, 3)
	require.Equal("version=1", tup.Params[0].Atom)
	require.Equal("start-id=1000", tup.Params[1].Atom)
	require.Equal("check-master", tup.Params[2].Atom)
}

func TestParse_RestoreWithNestedRecordsList(t *testing.T) {
	require := require.New(t)

	tup, err := Parse(`restore (6 744 1000 (deadbeef))`)
	require.NoError(err)
	require.Equal(CmdRestore, tup.Command)
	require.Len(tup.Params, 4)
	require.True(tup.Params[3].IsList)
	require.Equal("deadbeef", tup.Params[3].List[0].Atom)
}

func TestParse_QuotedStringWithEscapes(t *testing.T) {
	require := require.New(t)

	tup, err := Parse(`write ("hello \"world\"")`)
	require.NoError(err)
	require.Equal(`hello "world"`, tup.Params[0].Atom)
}

func TestParse_RejectsMissingParen(t *testing.T) {
	require := require.New(t)

	_, err := Parse(`write`)
	require.Error(err)
}

func TestParse_RejectsUnterminatedTuple(t *testing.T) {
	require := require.New(t)

	_, err := Parse(`write (a b`)
	require.Error(err)
}

func TestValue_StringRoundTripsNestedList(t *testing.T) {
	require := require.New(t)

	tup, err := Parse(`dump (6 (a b) c)`)
	require.NoError(err)
	require.Equal("(a b)", tup.Params[1].String())
}

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

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
database {
  path "/var/db/graphd"
  id 42
  type "addb"
  sync true
  transactional true
}
replica { host "10.0.0.1" port "8100" }
request-size-max 64MB
leader-socket "unix:///var/run/graphd.sock"
cost { tr = 1 tu = 2 }
instance-id "node1"
tilecache-whatever 5
`

func TestParse_FullConfigRoundTrips(t *testing.T) {
	require := require.New(t)

	cfg, err := Parse(sampleConfig)
	require.NoError(err)
	require.Equal("/var/db/graphd", cfg.Database.Path)
	require.Equal("42", cfg.Database.ID)
	require.True(cfg.Database.Sync)
	require.True(cfg.Database.Transactional)
	require.NotNil(cfg.Replica)
	require.Equal("10.0.0.1", cfg.Replica.Host)
	require.Greater(cfg.RequestSizeMax, int64(60*1000*1000))
	require.Equal("unix:///var/run/graphd.sock", cfg.LeaderSocket)
	require.Equal(int64(1), cfg.Cost["tr"])
	require.Equal(int64(2), cfg.Cost["tu"])
	require.Equal("node1", cfg.InstanceID)
}

func TestParse_RejectsBadDatabaseType(t *testing.T) {
	require := require.New(t)

	_, err := Parse(`database { path "x" type "notaddb" }`)
	require.Error(err)
}

func TestParse_RejectsOverlongDatabaseName(t *testing.T) {
	require := require.New(t)

	_, err := Parse(`database { path "x" id "toolongname" }`)
	require.Error(err)
}

func TestParse_RejectsUnknownToken(t *testing.T) {
	require := require.New(t)

	_, err := Parse(`mystery-token 5`)
	require.Error(err)
}

func TestParse_RejectsNonAlnumInstanceID(t *testing.T) {
	require := require.New(t)

	_, err := Parse(`instance-id "bad id!"`)
	require.Error(err)
}

func TestValidate_RejectsConflictingReplicaFlags(t *testing.T) {
	require := require.New(t)

	f := &Flags{ReplicaRequired: "a", ReplicaOptional: "b"}
	err := Validate(f)
	require.Error(err)
	var fe *FlagError
	require.ErrorAs(err, &fe)
	require.Equal(ExOSErr, fe.Code)
}

func TestValidate_RejectsConflictingForceAndRequireExisting(t *testing.T) {
	require := require.New(t)

	f := &Flags{Force: true, RequireExisting: true}
	require.Error(Validate(f))
}

func TestValidate_AcceptsConsistentFlags(t *testing.T) {
	require := require.New(t)

	f := &Flags{ReplicaRequired: "a"}
	require.NoError(Validate(f))
}

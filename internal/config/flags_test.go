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

func TestNewCommand_ParsesSingleLetterFlags(t *testing.T) {
	require := require.New(t)

	var f Flags
	var ranArgs []string
	cmd := NewCommand(&f, func(args []string) error {
		ranArgs = args
		return nil
	})
	cmd.SetArgs([]string{"-a", "-d", "/var/db/graphd", "-K", "512MB", "-Z", "10", "extra-arg"})

	require.NoError(cmd.Execute())
	require.True(f.SkipVerify)
	require.Equal("/var/db/graphd", f.DBPath)
	require.Equal("512MB", f.MemoryLimit)
	require.Equal(10, f.DelayReplicaSecs)
	require.Equal([]string{"extra-arg"}, ranArgs)
}

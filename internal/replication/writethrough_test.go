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

package replication

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/graphd/graphd/internal/bufconn"
)

func TestCopyRequestText_SpansBufferAndTracksOffset(t *testing.T) {
	require := require.New(t)

	conn := bufconn.NewConnection(16)
	src := conn.AppendInbound()
	copy(src.Writable(), []byte("hello world"))
	src.Fill(11)

	dst := bufconn.NewBuffer(5)
	offset := 0
	n, done := CopyRequestText(dst, conn, 0, &offset)
	require.Equal(5, n)
	require.False(done)
	require.Equal(5, offset)
	require.Equal("hello", string(dst.Readable()))

	dst2 := bufconn.NewBuffer(16)
	n, done = CopyRequestText(dst2, conn, 0, &offset)
	require.Equal(6, n)
	require.True(done)
	require.Equal(" world", string(dst2.Readable()))
}

// TestWriteThroughDropped_S4 is S4 of spec.md §8: a write-master
// connection dropping mid-forward delivers exactly one
// "SYSTEM unable to write at this time" reply to the client and marks
// the pair dropped. The 10s reconnect interval is checked by
// TestReconnect_FixedTenSecondPolicy.
func TestWriteThroughDropped_S4(t *testing.T) {
	require := require.New(t)

	wt := &WriteThrough{ClientID: 1, MasterID: 2}
	var replies []string
	reply := func(clientID uint64, text string) {
		require.Equal(uint64(1), clientID)
		replies = append(replies, text)
	}

	wt.Drop(reply)
	wt.Drop(reply) // a second drop signal must not double-reply

	require.Equal([]string{"SYSTEM unable to write at this time"}, replies)
	require.True(wt.Dropped)
}

func TestReconnect_FixedTenSecondPolicy(t *testing.T) {
	require := require.New(t)

	p := newReconnectPolicy()
	require.Equal(ReconnectInterval, p.NextBackOff())
	require.Equal(ReconnectInterval, p.NextBackOff())
}

func TestReconnect_SucceedsAfterRetries(t *testing.T) {
	require := require.New(t)

	attempts := 0
	err := Reconnect(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return errors.New("connection refused")
		}
		return nil
	}, nil)
	require.NoError(err)
	require.Equal(2, attempts)
}

func TestReconnect_RespectsContextCancellation(t *testing.T) {
	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Reconnect(ctx, func() error { return errors.New("still refused") }, nil)
	require.Error(err)
	require.Less(time.Since(start), time.Second)
}

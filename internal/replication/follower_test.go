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
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphd/graphd/internal/epitaph"
)

type fakeSink struct {
	applied     []ReplicaWrite
	checkpoints int
	rollbacks   []uint64
	safe        bool

	onApply       func()
	checkpointErr error
	rollbackErr   error
}

func (s *fakeSink) ApplyCreatePrimitives(start, end uint64, payload []byte) error {
	s.applied = append(s.applied, ReplicaWrite{Start: start, End: end, Payload: payload})
	if s.onApply != nil {
		s.onApply()
	}
	return nil
}
func (s *fakeSink) Checkpoint() error {
	s.checkpoints++
	return s.checkpointErr
}
func (s *fakeSink) Rollback(toID uint64) error {
	s.rollbacks = append(s.rollbacks, toID)
	return s.rollbackErr
}
func (s *fakeSink) Safe() bool { return s.safe }
func (s *fakeSink) SetSafe(safe bool) error {
	s.safe = safe
	return nil
}

func TestFollower_AppliesInOrderBatch(t *testing.T) {
	require := require.New(t)

	sink := &fakeSink{safe: true}
	f := NewFollower(sink, 100, true, nil)

	require.NoError(f.ApplyReplicaWrite(ReplicaWrite{Start: 100, End: 150}))
	require.Equal(uint64(150), f.NextID)
	require.True(f.Safe())
	require.Len(sink.applied, 1)
}

// TestFollower_IdempotentReplicaWrite is invariant 6 of spec.md §8:
// applying the same replica-write(s, e) twice at next_id == s is either
// a no-op (e <= next_id) or an error, never a double apply.
func TestFollower_IdempotentReplicaWrite(t *testing.T) {
	require := require.New(t)

	sink := &fakeSink{safe: true}
	f := NewFollower(sink, 100, true, nil)

	require.NoError(f.ApplyReplicaWrite(ReplicaWrite{Start: 100, End: 150}))
	require.Equal(uint64(150), f.NextID)

	// Re-delivering the same already-applied range is a no-op.
	require.NoError(f.ApplyReplicaWrite(ReplicaWrite{Start: 100, End: 150}))
	require.Len(sink.applied, 1, "must not double-apply")
	require.Equal(uint64(150), f.NextID)

	// A range starting before next_id but extending past it is
	// reported as an error, not silently merged.
	err := f.ApplyReplicaWrite(ReplicaWrite{Start: 100, End: 200})
	require.Error(err)
	require.Len(sink.applied, 1)
}

func TestFollower_NonTransactionalFlipsSafeDuringApply(t *testing.T) {
	require := require.New(t)

	f := NewFollower(nil, 0, false, nil)
	var sawUnsafe bool
	sink := &fakeSink{safe: true, onApply: func() { sawUnsafe = !f.Safe() }}
	f.sink = sink

	require.True(f.Safe())
	require.NoError(f.ApplyReplicaWrite(ReplicaWrite{Start: 0, End: 10}))
	require.True(sawUnsafe, "safe must be false while the non-transactional write is applying")
	require.True(f.Safe(), "safe must flip back true after checkpoint succeeds")
}

func TestFollower_RollbackFailureEmitsEpitaph(t *testing.T) {
	require := require.New(t)

	orig := epitaph.Exit
	defer func() { epitaph.Exit = orig }()
	var exited bool
	epitaph.Exit = func(code int) { exited = true }

	sink := &fakeSink{
		safe:          true,
		checkpointErr: errors.New("checkpoint failed"),
		rollbackErr:   errors.New("rollback failed"),
	}

	f := NewFollower(sink, 0, true, nil)
	_ = f.ApplyReplicaWrite(ReplicaWrite{Start: 0, End: 10})
	require.True(exited)
	require.Equal([]uint64{0}, sink.rollbacks)
}

func TestFollower_CheckpointFailureRollsBackSuccessfully(t *testing.T) {
	require := require.New(t)

	sink := &fakeSink{safe: true, checkpointErr: errors.New("checkpoint failed")}
	f := NewFollower(sink, 0, true, nil)

	err := f.ApplyReplicaWrite(ReplicaWrite{Start: 0, End: 10})
	require.Error(err)
	require.Equal([]uint64{0}, sink.rollbacks)
	require.True(f.Safe())
}

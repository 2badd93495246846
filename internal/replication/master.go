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
	"github.com/graphd/graphd/internal/gerrors"
	"github.com/graphd/graphd/internal/graphlog"
)

// PrimitiveSource is the projection of the primitive store the master
// side of replication consumes: the current committed count, and a way
// to check whether a given id begins a transaction (used to validate a
// live propagation range actually starts cleanly).
type PrimitiveSource interface {
	PrimitiveCount() uint64
	BeginsTransaction(id uint64) (bool, error)
}

// pendingWrite is a follower's outstanding, not-yet-transmitted
// replica-write — the coalescing unit of spec.md §4.3's live
// propagation.
type pendingWrite struct {
	start, end uint64
	sending    bool
}

// FollowerSession is the master's view of one attached follower.
type FollowerSession struct {
	ID      uint64
	NextID  uint64
	StartID uint64 // the original start-id requested at handshake
	Live    bool   // true once caught up and joined the live replica list

	overlapSent bool
	pending     *pendingWrite
}

// CatchupReply is what the master returns from HandleReplicaCommand,
// spec.md §4.3 step 3's (version, write_master_url | "archive" | "").
type CatchupReply struct {
	Version        string
	WriteMasterURL string
	Archive        bool
}

// Master drives the serving side of replication: replica handshake,
// catch-up batching, and live propagation with coalescing.
type Master struct {
	source PrimitiveSource
	log    *graphlog.Logger

	followers map[uint64]*FollowerSession

	version        string
	writeMasterURL string
	archive        bool

	lagMax uint64
}

// NewMaster builds a Master over source, announcing version/writeMasterURL
// (or archive mode) to handshaking followers.
func NewMaster(source PrimitiveSource, version, writeMasterURL string, archive bool, log *graphlog.Logger) *Master {
	if log == nil {
		log = graphlog.Nop()
	}
	return &Master{
		source:         source,
		log:            log,
		followers:      make(map[uint64]*FollowerSession),
		version:        version,
		writeMasterURL: writeMasterURL,
		archive:        archive,
		lagMax:         LagMax,
	}
}

// SetLagMax overrides the catch-up/coalescing span cap. Production
// callers leave the LagMax default (128 KiB); tests exercising the
// literal S3 scenario set a smaller cap to keep fixtures readable.
func (m *Master) SetLagMax(n uint64) { m.lagMax = n }

// HandleReplicaCommand implements spec.md §4.3's master-side replica
// handshake: validate start-id, rewind next_id by 256 to let the
// initial restore verify the overlap, and register the follower for a
// catch-up job.
func (m *Master) HandleReplicaCommand(followerID uint64, startID uint64) (*CatchupReply, error) {
	n := m.source.PrimitiveCount()
	if startID > n {
		return nil, gerrors.New(gerrors.Semantics, "start-id beyond primitive_n")
	}

	rewound := uint64(0)
	if startID > 256 {
		rewound = startID - 256
	}

	f := &FollowerSession{ID: followerID, NextID: rewound, StartID: startID}
	m.followers[followerID] = f

	reply := &CatchupReply{Version: m.version, Archive: m.archive}
	if !m.archive {
		reply.WriteMasterURL = m.writeMasterURL
	}
	return reply, nil
}

// CatchupBatch is one restore batch: primitives in [Start, End) with
// End-Start capped at LagMax.
type CatchupBatch struct {
	Start, End uint64
	Final      bool // true once this batch brings the follower current
}

// NextCatchupBatch computes the next restore batch for follower f. The
// first batch runs uncapped from the rewound next_id up to the
// originally requested start-id, so the initial restore verifies the
// rewound overlap rather than being chopped at LagMax; every batch
// after that is capped at LagMax. The follower joins the live list once
// next_id reaches primitive_n.
func (m *Master) NextCatchupBatch(f *FollowerSession) (CatchupBatch, bool) {
	n := m.source.PrimitiveCount()
	if f.NextID >= n {
		f.Live = true
		return CatchupBatch{}, false
	}

	var end uint64
	if !f.overlapSent {
		end = f.StartID
		f.overlapSent = true
	} else {
		end = f.NextID + m.lagMax
	}
	final := false
	if end >= n {
		end = n
		final = true
	}
	batch := CatchupBatch{Start: f.NextID, End: end, Final: final}
	f.NextID = end
	if final {
		f.Live = true
	}
	return batch, true
}

// ReplicatePrimitives implements spec.md §4.3's live propagation: after
// committing [start, end), fan it out to every live follower, coalescing
// with any not-yet-sent outstanding write and disconnecting the entire
// fleet if start does not begin a transaction.
func (m *Master) ReplicatePrimitives(start, end uint64) error {
	begins, err := m.source.BeginsTransaction(start)
	if err != nil {
		return err
	}
	if !begins {
		m.disconnectAll("live propagation range did not begin a transaction")
		return gerrors.New(gerrors.Corrupt, "replicate_primitives: start does not begin a transaction")
	}

	for _, f := range m.followers {
		if !f.Live {
			continue
		}
		m.replicateToFollower(f, start, end)
	}
	return nil
}

func (m *Master) replicateToFollower(f *FollowerSession, start, end uint64) {
	switch {
	case f.pending != nil && !f.pending.sending && f.pending.end == start:
		m.coalesce(f, f.pending.start, end)

	case f.NextID == start:
		f.pending = &pendingWrite{start: start, end: end}

	case f.NextID > start:
		m.log.Warn("skipping duplicate live propagation range", "follower", f.ID, "start", start, "end", end, "next_id", f.NextID)

	default:
		m.log.Warn("follower behind live propagation range, will catch up separately", "follower", f.ID, "start", start, "next_id", f.NextID)
	}
}

// coalesce merges [oldStart, end) into a follower's outstanding write,
// refusing (failing the session) when the merged span would exceed
// LagMax.
func (m *Master) coalesce(f *FollowerSession, oldStart, end uint64) {
	if end-oldStart > m.lagMax {
		m.failFollower(f, "call me back when you can listen")
		return
	}
	f.pending = &pendingWrite{start: oldStart, end: end}
}

// failFollower removes a follower from the live set after a coalescing
// overflow; the caller is expected to also close its session.
func (m *Master) failFollower(f *FollowerSession, reason string) {
	m.log.Warn("failing follower", "follower", f.ID, "reason", reason)
	f.Live = false
	delete(m.followers, f.ID)
}

func (m *Master) disconnectAll(reason string) {
	m.log.Error("disconnecting entire replica fleet", "reason", reason)
	for id := range m.followers {
		delete(m.followers, id)
	}
}

// PendingWrite reports follower followerID's outstanding coalesced write
// range, if any and not already marked sending, for a transport layer to
// actually push over the wire. It does not mark the range sent; call
// MarkSent once the write begins.
func (m *Master) PendingWrite(followerID uint64) (start, end uint64, ok bool) {
	f, found := m.followers[followerID]
	if !found || f.pending == nil || f.pending.sending {
		return 0, 0, false
	}
	return f.pending.start, f.pending.end, true
}

// MarkSent flags follower followerID's pending write as in flight, so
// ReplicatePrimitives won't coalesce a further range into it before the
// transport layer's write completes and calls AckSent.
func (m *Master) MarkSent(followerID uint64) {
	if f, ok := m.followers[followerID]; ok && f.pending != nil {
		f.pending.sending = true
	}
}

// AckSent clears follower followerID's in-flight pending write once the
// transport layer confirms the bytes were written, advancing NextID past
// the range so a further coalesced write can start fresh.
func (m *Master) AckSent(followerID uint64) {
	f, ok := m.followers[followerID]
	if !ok || f.pending == nil {
		return
	}
	f.NextID = f.pending.end
	f.pending = nil
}

// Followers exposes the live follower set, for tests.
func (m *Master) Followers() map[uint64]*FollowerSession { return m.followers }

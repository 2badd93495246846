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

package sessionengine

import "github.com/graphd/graphd/internal/bufconn"

// Kind is a session's type tag, spec.md §3's client / replica-client /
// replica-master / write-master / passthrough / smp-leader enumeration.
type Kind int

const (
	KindClient Kind = iota
	KindReplicaClient
	KindReplicaMaster
	KindWriteMaster
	KindPassthrough
	KindSMPLeader
)

// Session owns a connection, a slice-backed request queue (head is the
// oldest not-yet-complete request), a refcount, and a scheduling-intent
// bitmask over its queued requests' needs.
type Session struct {
	id        uint64
	kind      Kind
	conn      *bufconn.Connection
	refcount  int
	requests  []*Request
	nextReqID *uint64
	aborted   bool
	readDead  bool
	writeDead bool
}

// NewSession allocates a session of the given kind over conn. nextReqID
// is a shared counter (request ids are drawn from the same sequence as
// session ids, per spec.md §3) threaded in by the caller rather than
// held as a package-level global.
func NewSession(id uint64, kind Kind, conn *bufconn.Connection, nextReqID *uint64) *Session {
	return &Session{id: id, kind: kind, conn: conn, refcount: 1, nextReqID: nextReqID}
}

// ID returns the session's unique id.
func (s *Session) ID() uint64 { return s.id }

// Kind returns the session's type tag.
func (s *Session) Kind() Kind { return s.kind }

// Requests exposes the queue, head first, for schedulers and tests.
func (s *Session) Requests() []*Request { return s.requests }

// NewRequest allocates a request on this session per spec.md §4.1's
// Create step and appends it to the queue.
func (s *Session) NewRequest(incoming bool, h Handlers) *Request {
	id := *s.nextReqID
	*s.nextReqID++
	r := newRequest(id, s, incoming, h)
	s.requests = append(s.requests, r)
	return r
}

// Want computes the session's scheduling intent: the union, over queued
// requests, of their ready bits.
func (s *Session) Want() Bit {
	var want Bit
	for _, r := range s.requests {
		want |= r.ready
	}
	return want
}

// Retain increments the session's refcount.
func (s *Session) Retain() { s.refcount++ }

// Release decrements the refcount; the session may be freed by its
// owner once this returns true.
func (s *Session) Release() bool {
	if s.refcount > 0 {
		s.refcount--
	}
	return s.refcount == 0
}

// MarkReadDead / MarkWriteDead record a dead I/O direction. A session
// with both directions dead is aborted per spec.md §4.1's failure
// semantics.
func (s *Session) MarkReadDead()  { s.readDead = true; s.checkAbort() }
func (s *Session) MarkWriteDead() { s.writeDead = true; s.checkAbort() }

func (s *Session) checkAbort() {
	if s.readDead && s.writeDead {
		s.Abort()
	}
}

// Aborted reports whether the session has been aborted.
func (s *Session) Aborted() bool { return s.aborted }

// Abort cancels every queued request via its cancel hook, without
// blocking, and marks the session aborted.
func (s *Session) Abort() {
	if s.aborted {
		return
	}
	s.aborted = true
	for _, r := range s.requests {
		r.Cancel()
	}
}

// reapCompleted removes requests that have reached Complete (all three
// done bits set and refcount zero), calling each removed request's Free
// handler. It returns the count removed.
func (s *Session) reapCompleted() int {
	kept := s.requests[:0]
	removed := 0
	for _, r := range s.requests {
		if r.done == allBits && r.refcount == 0 {
			if r.handlers.Free != nil {
				r.handlers.Free(r)
			}
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.requests = kept
	if removed > 0 && len(s.requests) == 0 {
		s.Release()
	}
	return removed
}

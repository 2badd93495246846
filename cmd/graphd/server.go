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

package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"hash/fnv"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/graphd/graphd/internal/bufconn"
	"github.com/graphd/graphd/internal/gerrors"
	"github.com/graphd/graphd/internal/graphlog"
	"github.com/graphd/graphd/internal/islink"
	"github.com/graphd/graphd/internal/iterator"
	"github.com/graphd/graphd/internal/primitive"
	"github.com/graphd/graphd/internal/replication"
	"github.com/graphd/graphd/internal/sessionengine"
	"github.com/graphd/graphd/internal/store/mmapstore"
	"github.com/graphd/graphd/internal/wire"
)

const (
	connBufSize          = 4096
	maxConnBuffers       = 8 // BUFFER back-pressure cap per direction, spec.md §3
	islinkInterestingMin = 8
	islinkInterestingMax = 100000
	tickBudget           = 10000
	tickInterval         = 20 * time.Millisecond
	islinkTickBudget     = 2000
)

// server is the Connection -> Session -> Request pipeline of spec.md
// §2: it owns the session scheduler, the islink background job set, and
// (when configured) the master/follower sides of replication, all
// guarded by one mutex so the tick loop and every connection's request
// dispatch see a consistent view of the store and indices.
type server struct {
	log   *graphlog.Logger
	db    *mmapstore.Store
	clock *primitive.Clock

	mu     sync.Mutex
	sched  *sessionengine.Scheduler
	nextID uint64

	index *islink.Index
	jobs  map[uint32]*islink.Job

	master   *replication.Master
	follower *replication.Follower

	// replicaConns maps a live follower id to the reply writer of the
	// connection that handshook as that follower, so a write's live
	// propagation can push bytes out without re-dialing.
	replicaConns map[uint64]*bufio.Writer

	instanceID string
}

func newServer(db *mmapstore.Store, clock *primitive.Clock, log *graphlog.Logger, instanceID string) *server {
	return &server{
		log:          log,
		db:           db,
		clock:        clock,
		sched:        sessionengine.NewSchedulerWithPriority(tickBudget, 64),
		nextID:       1,
		index:        islink.NewIndex(islinkInterestingMin, islinkInterestingMax),
		jobs:         make(map[uint32]*islink.Job),
		replicaConns: make(map[uint64]*bufio.Writer),
		instanceID:   instanceID,
	}
}

// Serve runs the accept loop and the scheduler tick loop until ctx is
// canceled, coordinating their shutdown with golang.org/x/sync/errgroup
// rather than a hand-rolled sync.WaitGroup.
func (s *server) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})
	g.Go(func() error { return s.acceptLoop(ctx, ln, g) })
	g.Go(func() error { return s.tickLoop(ctx) })
	return g.Wait()
}

func (s *server) acceptLoop(ctx context.Context, ln net.Listener, g *errgroup.Group) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		g.Go(func() error {
			s.handleConn(ctx, conn)
			return nil
		})
	}
}

func (s *server) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.mu.Lock()
			s.clock.Sync(now)
			s.sched.Tick(now.Add(tickInterval))
			s.tickIslinkJobs()
			s.mu.Unlock()
		}
	}
}

// handleConn drives one accepted connection: a fresh bufconn.Connection
// and sessionengine.Session per spec.md §2, one sessionengine.Request
// per scanned line, parsed through internal/wire and dispatched through
// the Run handler so sortengine/constraint/islink/replication are all
// reached from inside a request's lifecycle rather than bypassing it.
func (s *server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	bconn := bufconn.NewConnection(connBufSize)
	bconn.SetMaxBuffers(maxConnBuffers)

	s.mu.Lock()
	sessID := s.nextID
	s.nextID++
	w := newConnWaiter(sessID)
	sess := sessionengine.NewSession(sessID, sessionengine.KindClient, bconn, &s.nextID)
	s.sched.Add(sess)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		sess.Abort()
		s.sched.Remove(sessID)
		delete(s.replicaConns, sessID)
		s.mu.Unlock()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, connBufSize), 1<<20)
	writer := bufio.NewWriter(conn)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		tuple, perr := wire.Parse(line)

		s.mu.Lock()
		if _, err := s.appendInboundLocked(ctx, bconn, w); err != nil {
			s.mu.Unlock()
			return
		}

		handlers := sessionengine.Handlers{
			InputArrived: func(r *sessionengine.Request) {
				if perr != nil {
					r.FailParse()
					return
				}
				r.MarkRunReady()
			},
			Run: func(r *sessionengine.Request, budget *int) sessionengine.RunOutcome {
				reply, err := s.dispatch(tuple, sessID, writer)
				if err != nil {
					s.writeErrorLocked(writer, err)
				} else if reply != "" {
					s.writeLineLocked(writer, reply)
				}
				r.MarkOutputReady()
				return sessionengine.RunDone
			},
			OutputSent: func(r *sessionengine.Request) {
				if perr != nil {
					s.writeErrorLocked(writer, gerrors.Wrap(gerrors.Lexical, "parse failed", perr))
				}
				if err := writer.Flush(); err != nil {
					s.log.Warn("flush to client failed", "session", sessID, "err", err)
				}
				r.Release()
			},
			Free: func(r *sessionengine.Request) {
				bconn.ReleaseInboundThrough(0)
				bconn.ReleaseOutboundThrough(0)
			},
		}
		sess.NewRequest(true, handlers)
		s.mu.Unlock()
	}

	s.mu.Lock()
	sess.MarkReadDead()
	s.mu.Unlock()
}

// connWaiter implements bufconn.Waiter over a per-connection reader
// goroutine: Wake is called from inside the scheduler tick (s.mu held)
// while the goroutine it wakes is parked outside the lock, so the
// channel send must never block.
type connWaiter struct {
	id   uint64
	wake chan bufconn.Want
}

func newConnWaiter(id uint64) *connWaiter {
	return &connWaiter{id: id, wake: make(chan bufconn.Want, 1)}
}

func (w *connWaiter) ID() uint64 { return w.id }

func (w *connWaiter) Wake(want bufconn.Want) {
	select {
	case w.wake <- want:
	default:
	}
}

// appendInboundLocked reserves an inbound buffer slot for the reader
// goroutine, blocking (with s.mu released) until TryAppendInbound's
// WaitList wakes it or ctx is canceled. It is entered and exited with
// s.mu held.
func (s *server) appendInboundLocked(ctx context.Context, bconn *bufconn.Connection, w *connWaiter) (*bufconn.Buffer, error) {
	for {
		if buf, ok := bconn.TryAppendInbound(w); ok {
			return buf, nil
		}
		s.mu.Unlock()
		select {
		case <-w.wake:
		case <-ctx.Done():
			s.mu.Lock()
			return nil, ctx.Err()
		}
		s.mu.Lock()
	}
}

func (s *server) writeLineLocked(writer *bufio.Writer, line string) {
	if _, err := writer.WriteString(line); err != nil {
		s.log.Warn("write reply failed", "err", err)
		return
	}
	writer.WriteByte('\n')
}

func (s *server) writeErrorLocked(writer *bufio.Writer, err error) {
	code := gerrors.CodeOf(err)
	s.writeLineLocked(writer, fmt.Sprintf("ERROR ((code %q) (message %q))", code.String(), err.Error()))
}

// tickIslinkJobs services every outstanding background job one budget
// slice per scheduler tick, the cmd/graphd counterpart of spec.md §4.5's
// job scheduling (normally driven by the same pre-dispatch tick that
// advances the clock).
func (s *server) tickIslinkJobs() {
	for typeID, job := range s.jobs {
		if job.Done() {
			delete(s.jobs, typeID)
			continue
		}
		budget := islinkTickBudget
		if _, err := job.Run(&budget); err != nil {
			s.log.Warn("islink job failed", "type", typeID, "err", err)
			delete(s.jobs, typeID)
		}
	}
}

// ensureIslinkJob starts a background job for typeID the first time a
// link of that type is written, scanning the whole committed range so
// far; later ticks advance it incrementally.
func (s *server) ensureIslinkJob(typeID uint32) {
	if _, ok := s.jobs[typeID]; ok {
		return
	}
	n := s.db.PrimitiveCount()
	src, err := s.db.Iterator(iterator.RangeSpec{Low: 0, HasLow: true, High: n, HasHigh: true})
	if err != nil {
		s.log.Warn("islink job: iterator open failed", "type", typeID, "err", err)
		return
	}
	s.jobs[typeID] = islink.NewJob(s.index, typeID, src, s.linkFunc)
}

func (s *server) linkFunc(recordID uint64) (islink.Link, error) {
	p, ok, err := s.db.Get(recordID)
	if err != nil {
		return islink.Link{}, err
	}
	if !ok || !p.Flags().IsLink() {
		return islink.Link{}, gerrors.New(gerrors.Semantics, "linkFunc: record is not a link primitive")
	}
	left, _ := p.Left()
	right, _ := p.Right()
	typeGUID, _ := p.TypeGUID()
	return islink.Link{
		TypeID: truncGUID(typeGUID),
		Left:   truncGUID(left),
		Right:  truncGUID(right),
		Record: uint32(recordID),
	}, nil
}

// truncGUID folds a guid's leading 4 bytes into the uint32 islink keys
// index on. The truncation is lossy: guids that share their leading 4
// bytes map to the same key.
func truncGUID(g primitive.GUID) uint32 {
	var v uint32
	for i := 0; i < 4; i++ {
		v = v<<8 | uint32(g[i])
	}
	return v
}

// connectReplica dials addr under the fixed reconnect backoff and runs
// the replica session until it drops, at which point Reconnect retries.
func (s *server) connectReplica(ctx context.Context, addr string) error {
	dial := func() error {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return err
		}
		return s.runReplicaSession(ctx, conn)
	}
	return replication.Reconnect(ctx, dial, s.log)
}

func (s *server) runReplicaSession(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	s.mu.Lock()
	startID := s.follower.NextID
	s.mu.Unlock()

	followerID := followerIDFromInstance(s.instanceID)
	handshake := fmt.Sprintf("replica ((follower-id %d) (start-id %d))\n", followerID, startID)
	if _, err := io.WriteString(conn, handshake); err != nil {
		return err
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, connBufSize), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		tuple, err := wire.Parse(scanner.Text())
		if err != nil {
			s.log.Warn("replica session: unparseable line from master", "err", err)
			continue
		}
		if err := s.applyReplicaLine(tuple); err != nil {
			s.log.Warn("replica session: apply failed", "err", err)
			return err
		}
	}
	return scanner.Err()
}

// applyReplicaLine handles one line read directly off an outbound
// replica connection: OK handshake acks are ignored, replica-write
// batches (catch-up or live) are applied through internal/replication's
// Follower and, when this instance is itself chained to sub-followers,
// re-fanned-out via Master.
func (s *server) applyReplicaLine(tuple *wire.Tuple) error {
	if tuple.Command != wire.CmdReplicaWrite {
		return nil
	}
	fields := paramMap(tuple.Params)
	start, err := strconv.ParseUint(fields["start"], 10, 64)
	if err != nil {
		return gerrors.Wrap(gerrors.Lexical, "bad start", err)
	}
	end, err := strconv.ParseUint(fields["end"], 10, 64)
	if err != nil {
		return gerrors.Wrap(gerrors.Lexical, "bad end", err)
	}
	payload, err := base64.StdEncoding.DecodeString(fields["payload"])
	if err != nil {
		return gerrors.Wrap(gerrors.Lexical, "bad payload", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.follower.ApplyReplicaWrite(replication.ReplicaWrite{Start: start, End: end, Payload: payload}); err != nil {
		return err
	}
	if s.master != nil {
		if err := s.master.ReplicatePrimitives(start, end); err == nil {
			s.pushLiveReplication()
		}
	}
	return nil
}

// followerIDFromInstance derives the numeric follower id replication's
// Master keys followers by from the operator-supplied -I instance id
// string, since spec.md §6's instance id is textual but
// replication.Master.HandleReplicaCommand addresses followers by
// uint64.
func followerIDFromInstance(instanceID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(instanceID))
	return h.Sum64()
}

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
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/graphd/graphd/internal/constraint"
	"github.com/graphd/graphd/internal/gerrors"
	"github.com/graphd/graphd/internal/iterator"
	"github.com/graphd/graphd/internal/primitive"
	"github.com/graphd/graphd/internal/replication"
	"github.com/graphd/graphd/internal/sortengine"
	"github.com/graphd/graphd/internal/wire"
)

// dispatch routes one parsed request tuple to its handler. It runs
// inside a Request's Run handler, which the scheduler only ever calls
// with s.mu already held, so every dispatch* below may touch s.db,
// s.master, s.follower and s.jobs directly.
func (s *server) dispatch(tuple *wire.Tuple, sessID uint64, writer *bufio.Writer) (string, error) {
	switch tuple.Command {
	case wire.CmdWrite:
		return s.dispatchWrite(tuple)
	case wire.CmdRead:
		return s.dispatchRead(tuple)
	case wire.CmdReplica:
		return s.dispatchReplica(tuple, sessID, writer)
	case wire.CmdReplicaWrite:
		return s.dispatchReplicaWrite(tuple)
	case wire.CmdDump:
		return s.dispatchDump()
	default:
		return "", gerrors.New(gerrors.Syntax, "unknown command "+tuple.Command)
	}
}

// paramMap flattens a request's nested (key value) pairs into a
// lookup table; a value that is itself a nested list is rendered via
// wire.Value.String() rather than dropped.
func paramMap(params []wire.Value) map[string]string {
	m := make(map[string]string, len(params))
	for _, v := range params {
		if !v.IsList || len(v.List) != 2 || v.List[0].IsList {
			continue
		}
		m[v.List[0].Atom] = v.List[1].String()
	}
	return m
}

func parseGUIDText(s string) (primitive.GUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return primitive.GUID{}, gerrors.Wrap(gerrors.Lexical, "bad guid", err)
	}
	return primitive.GUID(u), nil
}

// dispatchWrite implements spec.md §4.2's single-primitive write path:
// allocate a dense id, stamp a timestamp off the shared Clock, append
// to the store, and — for a typed link — feed internal/islink a
// background job for its type and fan the write out to any live
// replica.
func (s *server) dispatchWrite(tuple *wire.Tuple) (string, error) {
	fields := paramMap(tuple.Params)

	var flags primitive.Flags
	if fields["transaction-start"] != "false" {
		flags |= primitive.FlagTransactionStart
	}
	if fields["live"] == "true" {
		flags |= primitive.FlagLive
	}
	if fields["archival"] == "true" {
		flags |= primitive.FlagArchival
	}

	var typeGUID, left, right, scope *primitive.GUID
	if v, ok := fields["type"]; ok && v != "" {
		g, err := parseGUIDText(v)
		if err != nil {
			return "", err
		}
		typeGUID = &g
		flags |= primitive.FlagIsLink
	}
	if v, ok := fields["left"]; ok && v != "" {
		g, err := parseGUIDText(v)
		if err != nil {
			return "", err
		}
		left = &g
	}
	if v, ok := fields["right"]; ok && v != "" {
		g, err := parseGUIDText(v)
		if err != nil {
			return "", err
		}
		right = &g
	}
	if v, ok := fields["scope"]; ok && v != "" {
		g, err := parseGUIDText(v)
		if err != nil {
			return "", err
		}
		scope = &g
	}

	id := s.db.AllocateID()
	guid := primitive.NewGUID()
	ts := s.clock.Next()

	p := primitive.New(primitive.Params{
		ID:        id,
		GUID:      guid,
		Timestamp: ts,
		TypeGUID:  typeGUID,
		Left:      left,
		Right:     right,
		Scope:     scope,
		Name:      []byte(fields["name"]),
		Value:     []byte(fields["value"]),
		Flags:     flags,
	})

	if err := s.db.Append(p); err != nil {
		return "", err
	}

	if p.Flags().IsLink() && typeGUID != nil {
		s.ensureIslinkJob(truncGUID(*typeGUID))
	}

	if s.master != nil {
		if err := s.master.ReplicatePrimitives(id, id+1); err != nil {
			s.log.Warn("live replication failed", "err", err)
		} else {
			s.pushLiveReplication()
		}
	}

	return fmt.Sprintf("OK ((guid %q) (timestamp %d) (id %d))", guid.String(), uint64(ts), id), nil
}

// dispatchRead implements spec.md §4.4's read path: a full scan of the
// committed range through internal/constraint's matches(), followed by
// an internal/sortengine pass when a sort pattern was requested, then
// pagination.
func (s *server) dispatchRead(tuple *wire.Tuple) (string, error) {
	node, err := buildConstraint(tuple.Params)
	if err != nil {
		return "", err
	}
	if node.Flags.False {
		return "OK ((count 0) (results ()))", nil
	}

	n := s.db.PrimitiveCount()
	it, err := s.db.Iterator(iterator.RangeSpec{Low: 0, HasLow: true, High: n, HasHigh: true})
	if err != nil {
		return "", err
	}

	cache := make(map[uint64]primitive.Primitive)
	var matched []uint64
	budget := int(n) + 1
	for {
		id, outcome, err := it.Next(&budget)
		if err != nil {
			return "", err
		}
		if outcome != iterator.Yes {
			break
		}
		p, ok, err := s.db.Get(id)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		if matches(node, p) {
			matched = append(matched, id)
			cache[id] = p
		}
	}

	if len(node.Sort) > 0 {
		matched = sortMatches(matched, cache, node)
	}

	start := node.Start
	if start > len(matched) {
		start = len(matched)
	}
	end := start + node.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	page := matched[start:end]

	var b strings.Builder
	fmt.Fprintf(&b, "OK ((count %d) (results (", len(page))
	for i, id := range page {
		if i > 0 {
			b.WriteByte(' ')
		}
		p := cache[id]
		fmt.Fprintf(&b, "((guid %q) (id %d))", p.GUID().String(), id)
	}
	b.WriteString(")))")
	return b.String(), nil
}

// sortMatches runs the matched id set through an internal/sortengine
// Context keyed on the primitive's timestamp, the one intrinsic field
// every primitive carries; Descending negates the key so the top page
// comes out in the requested direction. A sortengine failure degrades
// to the unsorted match order rather than failing the whole read.
func sortMatches(ids []uint64, cache map[uint64]primitive.Primitive, node *constraint.Node) []uint64 {
	if len(node.Sort) == 0 || len(ids) == 0 {
		return ids
	}
	descending := node.Sort[0].Descending

	sc := sortengine.NewContext(len(ids))
	keyFunc := func(id uint64) (sortengine.Key, error) {
		v := int64(cache[id].Timestamp())
		if descending {
			v = -v
		}
		return sortengine.Key{Fields: []int64{v}}, nil
	}

	src := iterator.NewSlice(ids, false)
	budget := len(ids)*4 + 16
	if _, err := sc.Run(src, keyFunc, &budget); err != nil {
		return ids
	}

	results := sc.Results()
	out := make([]uint64, 0, len(results))
	for _, c := range results {
		out = append(out, c.ID)
	}
	return out
}

func (s *server) dispatchReplica(tuple *wire.Tuple, sessID uint64, writer *bufio.Writer) (string, error) {
	if s.master == nil {
		return "", gerrors.New(gerrors.Semantics, "this instance is not a replication master")
	}
	fields := paramMap(tuple.Params)

	followerID, err := strconv.ParseUint(fields["follower-id"], 10, 64)
	if err != nil {
		followerID = sessID
	}
	startID, _ := strconv.ParseUint(fields["start-id"], 10, 64)

	reply, err := s.master.HandleReplicaCommand(followerID, startID)
	if err != nil {
		return "", err
	}

	archiveStr := "false"
	if reply.Archive {
		archiveStr = "true"
	}
	if _, err := writer.WriteString(fmt.Sprintf("OK ((version %q) (write-master-url %q) (archive %s))\n",
		reply.Version, reply.WriteMasterURL, archiveStr)); err != nil {
		return "", err
	}

	s.replicaConns[followerID] = writer

	f := s.master.Followers()[followerID]
	for {
		batch, ok := s.master.NextCatchupBatch(f)
		if !ok {
			break
		}
		payload, err := s.db.EncodeCreatePrimitives(batch.Start, batch.End)
		if err != nil {
			return "", err
		}
		encoded := base64.StdEncoding.EncodeToString(payload)
		finalStr := "false"
		if batch.Final {
			finalStr = "true"
		}
		if _, err := writer.WriteString(fmt.Sprintf("replica-write ((start %d) (end %d) (final %s) (payload %q))\n",
			batch.Start, batch.End, finalStr, encoded)); err != nil {
			return "", err
		}
	}
	return "", nil
}

// dispatchReplicaWrite applies a replica-write arriving on an ordinary
// accepted connection (as opposed to one read directly off an outbound
// connectReplica dial), e.g. a chained upstream master pushing to this
// instance as a client of its own request pipeline.
func (s *server) dispatchReplicaWrite(tuple *wire.Tuple) (string, error) {
	if s.follower == nil {
		return "", gerrors.New(gerrors.Semantics, "this instance is not a replica")
	}
	fields := paramMap(tuple.Params)

	start, err := strconv.ParseUint(fields["start"], 10, 64)
	if err != nil {
		return "", gerrors.Wrap(gerrors.Lexical, "bad start", err)
	}
	end, err := strconv.ParseUint(fields["end"], 10, 64)
	if err != nil {
		return "", gerrors.Wrap(gerrors.Lexical, "bad end", err)
	}
	payload, err := base64.StdEncoding.DecodeString(fields["payload"])
	if err != nil {
		return "", gerrors.Wrap(gerrors.Lexical, "bad payload", err)
	}

	if err := s.follower.ApplyReplicaWrite(replication.ReplicaWrite{Start: start, End: end, Payload: payload}); err != nil {
		return "", err
	}
	if s.master != nil {
		if err := s.master.ReplicatePrimitives(start, end); err != nil {
			s.log.Warn("re-fanout after replica-write failed", "err", err)
		} else {
			s.pushLiveReplication()
		}
	}
	return "OK ((applied true))", nil
}

func (s *server) dispatchDump() (string, error) {
	return fmt.Sprintf("OK ((version %d) (count %d))", wire.OnDiskFormatVersion, s.db.PrimitiveCount()), nil
}

// pushLiveReplication pushes every live follower's outstanding
// coalesced write (internal/replication.Master.PendingWrite) over the
// connection its handshake registered, per spec.md §4.3's live
// propagation.
func (s *server) pushLiveReplication() {
	for followerID, writer := range s.replicaConns {
		start, end, ok := s.master.PendingWrite(followerID)
		if !ok {
			continue
		}
		payload, err := s.db.EncodeCreatePrimitives(start, end)
		if err != nil {
			s.log.Warn("encode live replication batch failed", "follower", followerID, "err", err)
			continue
		}
		s.master.MarkSent(followerID)

		encoded := base64.StdEncoding.EncodeToString(payload)
		if _, err := writer.WriteString(fmt.Sprintf("replica-write ((start %d) (end %d) (final true) (payload %q))\n",
			start, end, encoded)); err != nil {
			s.log.Warn("live replication write failed", "follower", followerID, "err", err)
			continue
		}
		if err := writer.Flush(); err != nil {
			s.log.Warn("live replication flush failed", "follower", followerID, "err", err)
			continue
		}
		s.master.AckSent(followerID)
	}
}

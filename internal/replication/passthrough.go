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

import "github.com/graphd/graphd/internal/bufconn"

// Passthrough forwards a follower's write to the SMP leader, mirroring
// WriteThrough's pairing shape but over its own dedicated connection —
// spec.md §9's explicit "SMP fan-out" redesign note: a single
// connection cannot serve both directions of in-flight SMP requests, so
// Passthrough and WriteThrough must never share a *bufconn.Connection,
// even when both point at conceptually the same remote process.
type Passthrough struct {
	ClientID uint64
	LeaderID uint64

	conn    *bufconn.Connection // the dedicated leader connection; never the write-master's
	Dropped bool
}

// NewPassthrough establishes a passthrough pairing over its own
// connection, independent of any write-master connection the same
// session may also hold.
func NewPassthrough(clientID uint64, conn *bufconn.Connection) *Passthrough {
	return &Passthrough{ClientID: clientID, conn: conn}
}

// Conn exposes the dedicated passthrough connection, for tests
// asserting the two-connection invariant.
func (p *Passthrough) Conn() *bufconn.Connection { return p.conn }

// Drop marks the passthrough connection as lost. Per spec.md §4.3, the
// sourcing client session must be aborted rather than retried silently,
// because the write's outcome at the leader is unknown — unlike
// write-through, which can safely schedule a reconnect and retry.
func (p *Passthrough) Drop(abortClient func(sessionID uint64)) {
	if p.Dropped {
		return
	}
	p.Dropped = true
	abortClient(p.ClientID)
}

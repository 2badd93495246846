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

// WriteThrough pairs a replica's client-side WRITE request with the
// WRITETHROUGH request opened on the write-master connection on its
// behalf, per spec.md §4.3's master_req/gdwt_client linkage.
type WriteThrough struct {
	ClientID uint64 // the client session's WRITE request id
	MasterID uint64 // the paired WRITETHROUGH request id on the master connection

	Dropped bool
}

// errUnableToWrite is the literal S4 reply text spec.md §4.3/§8 mandates
// when a write-master connection drops mid-forward.
const errUnableToWrite = "SYSTEM unable to write at this time"

// Drop marks the write-through pairing as lost and delivers exactly one
// error reply to the client's paired WRITE request via replyError.
// Unlike Passthrough.Drop, the client session is not aborted: the
// write's outcome at the leader is unknown only for a passthrough
// connection, whereas a write-through client can safely retry once
// Reconnect re-establishes the master connection.
func (wt *WriteThrough) Drop(replyError func(clientID uint64, text string)) {
	if wt.Dropped {
		return
	}
	wt.Dropped = true
	replyError(wt.ClientID, errUnableToWrite)
}

// CopyRequestText replays the master reply's request-text stream into
// the client write's output buffers, across buffer boundaries,
// advancing *offset as it goes — the Go shape of
// request_copy_request_text.
func CopyRequestText(dst *bufconn.Buffer, src *bufconn.Connection, srcBufIdx int, offset *int) (advanced int, done bool) {
	buf := src.Inbound(srcBufIdx)
	if buf == nil {
		return 0, true
	}

	available := buf.Readable()
	if *offset > len(available) {
		*offset = len(available)
	}
	remaining := available[*offset:]

	room := len(dst.Writable())
	n := room
	if n > len(remaining) {
		n = len(remaining)
	}
	if n > 0 {
		copy(dst.Writable(), remaining[:n])
		dst.Fill(n)
		*offset += n
	}

	return n, *offset >= len(available)
}

// Reconnecter is the scheduled-reconnect hook a dropped write-master
// connection triggers: 10s backoff per spec.md §4.3.
type Reconnecter struct {
	Dial func() error
}

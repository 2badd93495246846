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

package bufconn

// Cursor spans one or more of a connection's buffers, mirroring
// spec.md §3's Request input-text cursor (first_buf, first_off,
// last_buf, last_n).
type Cursor struct {
	FirstBuf int
	FirstOff int
	LastBuf  int
	LastN    int
}

// Connection is a full-duplex byte stream backed by a chain of pooled
// buffers, one chain per direction.
type Connection struct {
	bufSize    int
	maxBuffers int // 0 means unbounded; otherwise the BUFFER back-pressure cap per direction

	inbound  []*Buffer
	outbound []*Buffer

	waiters WaitList
}

// NewConnection builds an empty connection whose buffers are allocated
// at bufSize capacity as needed.
func NewConnection(bufSize int) *Connection {
	return &Connection{bufSize: bufSize}
}

// SetMaxBuffers caps the number of pooled buffers a single direction may
// hold before TryAppendInbound/TryAppendOutbound start refusing and
// parking callers on the connection's WaitList instead — spec.md §3's
// BUFFER scheduling-intent bit. n <= 0 means unbounded (the default).
func (c *Connection) SetMaxBuffers(n int) { c.maxBuffers = n }

// AppendInbound grows the inbound chain with a fresh buffer and returns
// it, for the parser to fill.
func (c *Connection) AppendInbound() *Buffer {
	b := NewBuffer(c.bufSize)
	c.inbound = append(c.inbound, b)
	return b
}

// AppendOutbound grows the outbound chain with a fresh buffer and
// returns it, for a reply writer to fill.
func (c *Connection) AppendOutbound() *Buffer {
	b := NewBuffer(c.bufSize)
	c.outbound = append(c.outbound, b)
	return b
}

// TryAppendInbound grows the inbound chain unless it is already at
// SetMaxBuffers' cap, in which case it parks w on WantInput and returns
// ok=false instead of growing the chain further.
func (c *Connection) TryAppendInbound(w Waiter) (buf *Buffer, ok bool) {
	if c.maxBuffers > 0 && len(c.inbound) >= c.maxBuffers {
		if w != nil {
			c.waiters.Enqueue(w, WantInput)
		}
		return nil, false
	}
	return c.AppendInbound(), true
}

// TryAppendOutbound is TryAppendInbound's outbound counterpart, parking
// on WantOutput when the cap is reached.
func (c *Connection) TryAppendOutbound(w Waiter) (buf *Buffer, ok bool) {
	if c.maxBuffers > 0 && len(c.outbound) >= c.maxBuffers {
		if w != nil {
			c.waiters.Enqueue(w, WantOutput)
		}
		return nil, false
	}
	return c.AppendOutbound(), true
}

// Waiters exposes the connection's buffer-wait list, for tests.
func (c *Connection) Waiters() *WaitList { return &c.waiters }

// Inbound returns the n'th inbound buffer, or nil if out of range.
func (c *Connection) Inbound(n int) *Buffer {
	if n < 0 || n >= len(c.inbound) {
		return nil
	}
	return c.inbound[n]
}

// Outbound returns the n'th outbound buffer, or nil if out of range.
func (c *Connection) Outbound(n int) *Buffer {
	if n < 0 || n >= len(c.outbound) {
		return nil
	}
	return c.outbound[n]
}

// ReadCursor returns the byte slice a Cursor spans across the inbound
// chain, concatenating across buffer boundaries.
func (c *Connection) ReadCursor(cur Cursor) []byte {
	if cur.FirstBuf == cur.LastBuf {
		b := c.Inbound(cur.FirstBuf)
		if b == nil {
			return nil
		}
		return b.bytes[cur.FirstOff:cur.LastN]
	}

	var out []byte
	first := c.Inbound(cur.FirstBuf)
	if first != nil {
		out = append(out, first.bytes[cur.FirstOff:first.validN]...)
	}
	for i := cur.FirstBuf + 1; i < cur.LastBuf; i++ {
		if b := c.Inbound(i); b != nil {
			out = append(out, b.bytes[:b.validN]...)
		}
	}
	if last := c.Inbound(cur.LastBuf); last != nil {
		out = append(out, last.bytes[:cur.LastN]...)
	}
	return out
}

// ReleaseInboundThrough releases one reference on every inbound buffer
// up to and including index n, compacting the chain of any that
// dropped to zero refcount from its head, then wakes any request parked
// waiting for inbound buffer space.
func (c *Connection) ReleaseInboundThrough(n int) {
	released := 0
	for i := 0; i <= n && i < len(c.inbound); i++ {
		if c.inbound[i].Release() {
			released++
		} else {
			break
		}
	}
	c.inbound = c.inbound[released:]
	if released > 0 {
		c.waiters.Release(WantInput)
	}
}

// ReleaseOutboundThrough is ReleaseInboundThrough's outbound mirror,
// called once a reply writer has flushed buffers to the client.
func (c *Connection) ReleaseOutboundThrough(n int) {
	released := 0
	for i := 0; i <= n && i < len(c.outbound); i++ {
		if c.outbound[i].Release() {
			released++
		} else {
			break
		}
	}
	c.outbound = c.outbound[released:]
	if released > 0 {
		c.waiters.Release(WantOutput)
	}
}

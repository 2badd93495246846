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

// Package bufconn implements spec.md §3's Buffer and Connection types:
// refcounted byte slabs pooled per connection, with back-pressure flags
// and a pre-write hook fired exactly once before a buffer's bytes first
// reach an external sink.
package bufconn

import "github.com/graphd/graphd/internal/gerrors"

// PreWriteHook is invoked exactly once per buffer, before any of its
// bytes are first written to an external sink.
type PreWriteHook func(b *Buffer)

// Buffer is a refcounted byte slab: bytes below Cursor are already
// consumed (parsed on input, written on output); [Cursor, ValidN) is
// ready to consume; [ValidN, Capacity) is writable.
type Buffer struct {
	bytes    []byte
	validN   int
	cursor   int
	refcount int

	preWrite    PreWriteHook
	preWriteRan bool
}

// NewBuffer allocates a buffer with the given capacity and a starting
// refcount of 1.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{bytes: make([]byte, capacity), refcount: 1}
}

// Capacity returns the buffer's total byte capacity.
func (b *Buffer) Capacity() int { return len(b.bytes) }

// ValidN returns the count of bytes filled so far.
func (b *Buffer) ValidN() int { return b.validN }

// Cursor returns the already-consumed boundary.
func (b *Buffer) Cursor() int { return b.cursor }

// Readable returns the unconsumed, already-valid byte range.
func (b *Buffer) Readable() []byte { return b.bytes[b.cursor:b.validN] }

// Writable returns the not-yet-filled byte range.
func (b *Buffer) Writable() []byte { return b.bytes[b.validN:] }

// Advance moves the cursor forward by n consumed bytes. It panics if n
// would move the cursor past ValidN, which indicates a framework bug
// rather than a recoverable runtime condition.
func (b *Buffer) Advance(n int) {
	if b.cursor+n > b.validN {
		panic("bufconn: Advance past ValidN")
	}
	b.cursor += n
}

// Fill commits n freshly-written bytes as valid, firing the pre-write
// hook on first use if one is installed.
func (b *Buffer) Fill(n int) {
	if !b.preWriteRan && b.preWrite != nil {
		b.preWrite(b)
		b.preWriteRan = true
	}
	b.validN += n
}

// SetPreWriteHook installs the hook to fire before this buffer's first
// write to an external sink. Installing a hook after Fill has already
// run is a no-op by design: the hook's contract is "before the first
// byte", and that point has already passed.
func (b *Buffer) SetPreWriteHook(h PreWriteHook) {
	if b.preWriteRan || b.validN > 0 {
		return
	}
	b.preWrite = h
}

// Retain increments the buffer's refcount.
func (b *Buffer) Retain() { b.refcount++ }

// Release decrements the refcount and reports whether it reached zero.
func (b *Buffer) Release() bool {
	if b.refcount <= 0 {
		return true
	}
	b.refcount--
	return b.refcount == 0
}

// Refcount exposes the current refcount, for tests and diagnostics.
func (b *Buffer) Refcount() int { return b.refcount }

// ErrBufferFull is returned by callers attempting to reserve writable
// space a buffer does not have; it is not itself an error path (the
// caller enqueues on the buffer-wait list instead of propagating to the
// client) but is exposed as a sentinel for that decision.
var ErrBufferFull = gerrors.New(gerrors.Busy, "bufconn: buffer full")

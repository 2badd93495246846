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

// Want is the back-pressure flag a waiter registers: which direction of
// buffer space it is blocked on.
type Want uint8

const (
	WantInput Want = 1 << iota
	WantOutput
)

// Waiter is anything that can be parked on a WaitList and later woken.
// internal/sessionengine's Request satisfies this by moving the woken
// bit from its done-complement back into its ready mask.
type Waiter interface {
	ID() uint64
	Wake(w Want)
}

// WaitList is spec.md §4.1's buffer-wait queue: requests queued here
// when they need input or output space and none is available are woken,
// in FIFO order, when a same-direction buffer is released.
type WaitList struct {
	entries []waitEntry
}

type waitEntry struct {
	w    Waiter
	want Want
}

// Enqueue parks w until buffer space matching want is released.
func (l *WaitList) Enqueue(w Waiter, want Want) {
	l.entries = append(l.entries, waitEntry{w: w, want: want})
}

// Release wakes every waiter registered for want, in FIFO order, and
// removes them from the list.
func (l *WaitList) Release(want Want) {
	remaining := l.entries[:0]
	for _, e := range l.entries {
		if e.want&want != 0 {
			e.w.Wake(want)
			continue
		}
		remaining = append(remaining, e)
	}
	l.entries = remaining
}

// Len reports the number of parked waiters, for tests.
func (l *WaitList) Len() int { return len(l.entries) }

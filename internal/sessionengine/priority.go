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

import "sync"

// PriorityPool manages the scarce "priority" resource spec.md §4.1
// attaches to requests: priority_get may refuse when the budget is
// exhausted, and priority_release is idempotent. Unlike
// golang.org/x/sync/semaphore, whose Acquire blocks, this pool must
// refuse rather than park the caller — so only the non-blocking
// TryAcquire shape is borrowed; there is no blocking Acquire here.
type PriorityPool struct {
	mu     sync.Mutex
	budget int
	held   map[uint64]int // request id -> units held, for idempotent release
}

// NewPriorityPool builds a pool with the given total budget.
func NewPriorityPool(budget int) *PriorityPool {
	return &PriorityPool{budget: budget, held: make(map[uint64]int)}
}

// TryAcquire grants units of priority to reqID if the budget allows,
// reporting whether the grant succeeded.
func (p *PriorityPool) TryAcquire(reqID uint64, units int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if units > p.budget {
		return false
	}
	p.budget -= units
	p.held[reqID] += units
	return true
}

// Release returns whatever units reqID currently holds to the pool.
// Calling Release on a request holding nothing is a no-op, making the
// call idempotent per spec.md §4.1.
func (p *PriorityPool) Release(reqID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	units, ok := p.held[reqID]
	if !ok {
		return
	}
	p.budget += units
	delete(p.held, reqID)
}

// Available reports the unallocated budget, for tests.
func (p *PriorityPool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.budget
}

// Held reports how many units reqID currently holds, without acquiring
// or releasing anything. A scheduler uses this to tell "already holds
// priority from an earlier grant or an Inherit" apart from "needs a
// fresh TryAcquire".
func (p *PriorityPool) Held(reqID uint64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.held[reqID]
}

// Inherit transfers dependent's held priority to other, the mechanism
// behind depend(A, B): if A is asked to yield, B inherits A's priority
// rather than the pool being drained and reacquired.
func (p *PriorityPool) Inherit(from, to uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	units, ok := p.held[from]
	if !ok {
		return
	}
	delete(p.held, from)
	p.held[to] += units
}

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

import "time"

// Scheduler is the single event loop of spec.md §4.1: it services
// ready sessions round-robin within a timeslice bounded by a wall-clock
// deadline.
type Scheduler struct {
	sessions map[uint64]*Session
	order    []uint64 // round-robin cursor order, rebuilt lazily
	cursor   int

	budgetPerTick int
	priority      *PriorityPool // nil disables priority gating entirely
}

// NewScheduler builds an empty scheduler. budgetPerTick is the work
// budget handed to each ready request's run step per Tick call.
func NewScheduler(budgetPerTick int) *Scheduler {
	return &Scheduler{sessions: make(map[uint64]*Session), budgetPerTick: budgetPerTick}
}

// NewSchedulerWithPriority builds a scheduler whose run step is
// additionally gated by a shared PriorityPool of priorityBudget units,
// per spec.md §4.1's priority_get/priority_release. A request whose
// DependOn names another still-held request inherits that request's
// priority instead of drawing fresh budget, so dependency chains never
// starve behind unrelated work (invariant 7, §8).
func NewSchedulerWithPriority(budgetPerTick, priorityBudget int) *Scheduler {
	s := NewScheduler(budgetPerTick)
	s.priority = NewPriorityPool(priorityBudget)
	return s
}

// Priority exposes the scheduler's priority pool, or nil if it was built
// without one.
func (s *Scheduler) Priority() *PriorityPool { return s.priority }

// Add registers a session with the scheduler.
func (s *Scheduler) Add(sess *Session) {
	s.sessions[sess.id] = sess
	s.order = append(s.order, sess.id)
}

// Remove unregisters a session, e.g. once fully reaped.
func (s *Scheduler) Remove(id uint64) {
	delete(s.sessions, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Len reports the number of registered sessions.
func (s *Scheduler) Len() int { return len(s.sessions) }

// Tick services ready sessions round-robin until deadline passes or no
// session has more ready work, and returns the count of requests that
// made forward progress (parsed, ran, or formatted at least one step).
func (s *Scheduler) Tick(deadline time.Time) int {
	progressed := 0
	if len(s.order) == 0 {
		return 0
	}

	budget := s.budgetPerTick
	start := s.cursor
	visited := 0
	for {
		if time.Now().After(deadline) {
			break
		}
		if visited >= len(s.order) {
			// a full round made no progress; stop rather than spin
			break
		}

		id := s.order[s.cursor]
		s.cursor = (s.cursor + 1) % len(s.order)
		visited++

		sess, ok := s.sessions[id]
		if !ok {
			continue
		}
		if sess.Want() == 0 {
			if sess.Aborted() && len(sess.requests) == 0 {
				s.removeAt(id)
			}
			continue
		}

		n := s.serviceSession(sess, &budget)
		if n > 0 {
			progressed += n
			visited = 0
		}
		sess.reapCompleted()

		if budget <= 0 {
			break
		}
		if s.cursor == start {
			break
		}
	}

	return progressed
}

// serviceSession drives one pass of parse/run/format over every ready
// request on sess, returning how many requests advanced at least one
// bit.
func (s *Scheduler) serviceSession(sess *Session, budget *int) int {
	progressed := 0
	for _, r := range sess.requests {
		before := r.done

		if r.ready&BitInput != 0 {
			r.parse()
		}
		if r.ready&BitRun != 0 {
			if s.priority == nil {
				r.run(budget)
			} else if s.tryRunWithPriority(r) {
				r.run(budget)
				if r.done&BitRun != 0 {
					// run finished (not merely suspended): its priority
					// unit returns to the pool rather than staying held
					// across a dependency that may never resume it.
					s.priority.Release(r.id)
				}
			}
		}
		if r.ready&BitOutput != 0 {
			r.format()
		}

		if r.done != before {
			progressed++
		}
	}
	return progressed
}

// tryRunWithPriority grants a single priority unit to r before its run
// step executes. A request that depends on another one first inherits
// that request's held units rather than drawing from the shared pool:
// inheritance satisfies the grant on its own, so a priority-holding
// dependency never blocks its own dependent on fresh-allocation grounds
// (invariant 7, spec.md §8). Only a request holding nothing yet draws
// from the shared budget.
func (s *Scheduler) tryRunWithPriority(r *Request) bool {
	if dep := r.Dependent(); dep != nil {
		s.priority.Inherit(dep.id, r.id)
	}
	if s.priority.Held(r.id) > 0 {
		return true
	}
	return s.priority.TryAcquire(r.id, 1)
}

func (s *Scheduler) removeAt(id uint64) {
	s.Remove(id)
	if s.cursor >= len(s.order) && len(s.order) > 0 {
		s.cursor = 0
	}
}

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

// Package sessionengine implements spec.md §4.1's Session/Request
// engine: a single-threaded cooperative scheduler driving request
// lifecycles (Create, Parse, Run, Format, Complete) under timeslice
// deadlines.
package sessionengine

import "github.com/graphd/graphd/internal/bufconn"

// Bit is one of the three scheduling-intent bits a Request tracks in
// both its ready and done masks.
type Bit uint8

const (
	BitInput Bit = 1 << iota
	BitOutput
	BitRun
)

const allBits = BitInput | BitOutput | BitRun

// RunOutcome is what a type's run method reports back to the scheduler.
type RunOutcome int

const (
	RunDone RunOutcome = iota
	RunMore
	RunSuspend
)

// Handlers is the type-dispatch table spec.md §3 attaches to every
// request: input-arrived, output-sent, run, cancel, free.
type Handlers struct {
	InputArrived func(r *Request)
	OutputSent   func(r *Request)
	Run          func(r *Request, budget *int) RunOutcome
	Cancel       func(r *Request)
	Free         func(r *Request)
}

// Request is spec.md §3's Request: a session-owned unit of work with
// ready/done bitmasks, a buffer-spanning input cursor, a refcount, and
// a dependent back-pointer used for priority inheritance.
type Request struct {
	id      uint64
	session *Session

	ready Bit
	done  Bit

	cursor   bufconn.Cursor
	refcount int

	dependent *Request
	handlers  Handlers

	errorf bool // true once converted to an error reply on a parse failure
}

// newRequest allocates a request per spec.md §4.1's Create step.
func newRequest(id uint64, session *Session, incoming bool, h Handlers) *Request {
	r := &Request{id: id, session: session, refcount: 1, handlers: h}
	if incoming {
		r.ready = BitInput
	} else {
		r.ready = BitOutput
	}
	return r
}

// ID returns the request's unique id.
func (r *Request) ID() uint64 { return r.id }

// Ready and Done expose the current bitmasks, for tests and schedulers.
func (r *Request) Ready() Bit { return r.ready }
func (r *Request) Done() Bit  { return r.done }

// setDone moves bit from ready into done. done bits are never cleared
// once set, and ready/done never share a set bit — spec.md §3's Request
// invariant.
func (r *Request) setDone(bit Bit) {
	r.ready &^= bit
	r.done |= bit
}

// Retain increments the request's refcount.
func (r *Request) Retain() { r.refcount++ }

// Release decrements the refcount and reports whether the request is
// now eligible for Complete (refcount zero and all three done bits
// set).
func (r *Request) Release() bool {
	if r.refcount > 0 {
		r.refcount--
	}
	return r.refcount == 0 && r.done == allBits
}

// DependOn records that r inherits priority transitively from other.
// Passing nil clears the dependency (depend(NULL, B) in the spec's
// terms, spelled depend(r, nil) here since Go methods are receiver-first).
func (r *Request) DependOn(other *Request) { r.dependent = other }

// Dependent returns the request this one depends on, or nil.
func (r *Request) Dependent() *Request { return r.dependent }

// parse runs the input handler if INPUT is ready, marking INPUT done
// once the parser finalizes the request.
func (r *Request) parse() {
	if r.ready&BitInput == 0 {
		return
	}
	if r.handlers.InputArrived != nil {
		r.handlers.InputArrived(r)
	}
	r.setDone(BitInput)
}

// MarkRunReady marks RUN ready once an InputArrived handler has finished
// parsing a request successfully, the production counterpart of setting
// r.ready directly the way this package's own tests do.
func (r *Request) MarkRunReady() { r.ready |= BitRun }

// MarkOutputReady marks OUTPUT ready once a Run handler has prepared a
// reply, letting the scheduler's format step flush it within the same
// Tick that ran it.
func (r *Request) MarkOutputReady() { r.ready |= BitOutput }

// FailParse converts a request into an error reply per spec.md §4.1's
// failure semantics: input parse errors are recoverable by scheduling
// an error reply instead of running normally.
func (r *Request) FailParse() {
	r.errorf = true
	r.setDone(BitInput)
	r.setDone(BitRun)
	r.ready |= BitOutput
}

// run invokes the run handler if RUN is ready, honoring the three
// possible outcomes.
func (r *Request) run(budget *int) {
	if r.ready&BitRun == 0 {
		return
	}
	if r.handlers.Run == nil {
		r.setDone(BitRun)
		return
	}
	switch r.handlers.Run(r, budget) {
	case RunDone:
		r.setDone(BitRun)
	case RunSuspend:
		r.ready &^= BitRun
	case RunMore:
		// leave RUN set in ready; scheduler retries next tick
	}
}

// format invokes the output handler if OUTPUT is ready.
func (r *Request) format() {
	if r.ready&BitOutput == 0 {
		return
	}
	if r.handlers.OutputSent != nil {
		r.handlers.OutputSent(r)
	}
	r.setDone(BitOutput)
}

// Cancel invokes the cancel hook, used during session abort.
func (r *Request) Cancel() {
	if r.handlers.Cancel != nil {
		r.handlers.Cancel(r)
	}
}

// Wake implements bufconn.Waiter: a woken bit moves back from its
// done-complement into ready, per spec.md §4.1's buffer-wait release.
func (r *Request) Wake(w bufconn.Want) {
	switch w {
	case bufconn.WantInput:
		r.ready |= BitInput
	case bufconn.WantOutput:
		r.ready |= BitOutput
	}
}

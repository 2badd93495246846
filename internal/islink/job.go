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

package islink

import "github.com/graphd/graphd/internal/iterator"

// LinkFunc resolves a record id yielded by a Job's source iterator into
// the (type, left, right) tuple Index.Observe needs, the islink
// counterpart of sortengine's KeyFunc record materialization step.
type LinkFunc func(recordID uint64) (Link, error)

// Job is spec.md §4.5's background unit. It is keyed by type id alone:
// one Job folds both linkages and every endpoint of its type into the
// shared Index, and there is no per-linkage or per-endpoint job. It
// owns an iterator over the type's VIP range, an idset accumulator
// (the shared Index), and a job_low resumption cursor, so job_run can
// be invoked repeatedly across scheduler ticks under a shrinking budget.
type Job struct {
	ix     *Index
	typeID uint32
	src    iterator.Iterator
	get    LinkFunc

	low  uint64 // job_low: lowest record id not yet folded into the index
	done bool
}

// NewJob builds a Job over src for typeID, resolving each yielded
// record id to a Link via get.
func NewJob(ix *Index, typeID uint32, src iterator.Iterator, get LinkFunc) *Job {
	return &Job{ix: ix, typeID: typeID, src: src, get: get}
}

// Low returns the job_low resumption cursor, for tests and diagnostics.
func (j *Job) Low() uint64 { return j.low }

// Done reports whether the job has completed: its source iterator
// returned NO, or both sides of its type entry went vast.
func (j *Job) Done() bool { return j.done }

// Run services the job under budget: pulls record ids from its source
// iterator, resolves and observes each into the shared Index, and
// advances job_low, until the source is exhausted, both sides have
// gone vast, budget runs out, or the job was already done — spec.md
// §4.5's job_run(key|NULL), returning iterator.More when the caller
// should reschedule it on a later tick.
func (j *Job) Run(budget *int) (iterator.Outcome, error) {
	if j.done {
		return iterator.Yes, nil
	}

	for {
		if te := j.ix.entry(j.typeID); te.left.Vast() && te.right.Vast() {
			j.ix.Complete(j.typeID)
			j.done = true
			return iterator.Yes, nil
		}
		if iterator.BudgetExhausted(budget) {
			return iterator.More, nil
		}

		id, outcome, err := j.src.Next(budget)
		if err != nil {
			return iterator.No, err
		}
		switch outcome {
		case iterator.More:
			return iterator.More, nil
		case iterator.No:
			j.ix.Complete(j.typeID)
			j.done = true
			return iterator.Yes, nil
		}

		link, err := j.get(id)
		if err != nil {
			return iterator.No, err
		}
		j.ix.Observe(link)
		j.low = id + 1
	}
}

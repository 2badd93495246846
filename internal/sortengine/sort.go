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

// Package sortengine implements the two-page incremental top-k sort of
// spec.md §4.4: a request's sort pattern drives a running best-P
// selection over candidates pulled one budget unit at a time from an
// iterator, with deterministic cursor freeze/thaw for resumption.
package sortengine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/btree"

	"github.com/graphd/graphd/internal/gerrors"
	"github.com/graphd/graphd/internal/iterator"
)

// topDegree is the btree.BTreeG node degree for the top-page ordered
// set; the page itself is bounded by pageSize, so a small fixed degree
// keeps node fan-out cheap without tuning per instance.
const topDegree = 32

// Key is an ordered sort key: fields compare lexicographically, and the
// sequence number is the final, insertion-order tie-break spec.md §4.4
// requires.
type Key struct {
	Fields []int64
	Seq    uint64
}

// Candidate pairs a result id with its sort key.
type Candidate struct {
	ID  uint64
	Key Key
}

// Less implements the comparator chain: primary-to-last sort pattern
// field, then original insertion order.
func Less(a, b Candidate) bool {
	n := len(a.Key.Fields)
	if len(b.Key.Fields) < n {
		n = len(b.Key.Fields)
	}
	for i := 0; i < n; i++ {
		if a.Key.Fields[i] != b.Key.Fields[i] {
			return a.Key.Fields[i] < b.Key.Fields[i]
		}
	}
	if len(a.Key.Fields) != len(b.Key.Fields) {
		return len(a.Key.Fields) < len(b.Key.Fields)
	}
	return a.Key.Seq < b.Key.Seq
}

// KeyFunc computes the full sort key for an id. Run computes the full
// key of every candidate; prefilter then compares the leading field
// against the median first and compares the remaining fields only when
// that leading field ties (the "unknown" outcome of spec.md §4.4).
type KeyFunc func(id uint64) (Key, error)

// Context is the Sort Context of spec.md §3: two half-pages of
// indirection plus cursor state.
type Context struct {
	pageSize int

	top      *btree.BTreeG[Candidate] // ordered ascending cut-off grid, len <= pageSize
	topLen   int
	trailing []Candidate // unsorted scratch, len <= pageSize

	haveMedian   bool
	haveTrailing bool
	ended        bool

	cutoff []int64 // reject any candidate with Fields <= cutoff lexicographically
	seq    uint64
}

// NewContext builds an empty Sort Context for the given pagesize.
func NewContext(pageSize int) *Context {
	if pageSize <= 0 {
		pageSize = 1
	}
	return &Context{pageSize: pageSize, top: btree.NewG(topDegree, Less)}
}

func (c *Context) median() (Key, bool) {
	if c.topLen == 0 {
		return Key{}, false
	}
	max, _ := c.top.Max()
	return max.Key, true
}

// trimToPageSize drops the largest entries until the grid holds at
// most pageSize candidates, the btree equivalent of the plain-slice
// "keep the smallest P" truncation.
func (c *Context) trimToPageSize() {
	for c.topLen > c.pageSize {
		if _, ok := c.top.DeleteMax(); !ok {
			break
		}
		c.topLen--
	}
}

func (c *Context) passesCutoff(k Key) bool {
	if c.cutoff == nil {
		return true
	}
	cmp := compareFields(k.Fields, c.cutoff)
	return cmp > 0
}

func compareFields(a, b []int64) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// prefilterOutcome is the three-way classification of spec.md §4.4: a
// candidate is known to be beyond the current median, known to beat it,
// or — when only a prefix of its key is cheaply known and that prefix
// ties the median's — undecided until the remaining fields are compared.
type prefilterOutcome int

const (
	outcomeTooLarge prefilterOutcome = iota
	outcomeKnownSmaller
	outcomeUnknown
)

// prefilter classifies k against the current median using only its
// first field, the cheap comparison spec.md §4.4 calls for before
// resorting to a full per-field compare. A tie on that leading field
// cannot be resolved without the rest of the key, so it reports
// outcomeUnknown and leaves the full compare to accept.
func (c *Context) prefilter(k Key) prefilterOutcome {
	median, ok := c.median()
	if !ok {
		return outcomeKnownSmaller
	}
	if len(k.Fields) == 0 || len(median.Fields) == 0 {
		return outcomeUnknown
	}
	switch {
	case k.Fields[0] > median.Fields[0]:
		return outcomeTooLarge
	case k.Fields[0] < median.Fields[0]:
		return outcomeKnownSmaller
	default:
		return outcomeUnknown
	}
}

// Run pulls candidates from ids (via KeyFunc) until the iterator is
// exhausted, the context ends (an ordered iterator proved no further
// candidate can beat the median), or budget is exhausted. It is safe to
// call Run again with the same Context and a fresh budget to resume.
func (c *Context) Run(ids iterator.Iterator, key KeyFunc, budget *int) (iterator.Outcome, error) {
	for {
		if c.ended {
			return iterator.Yes, nil
		}
		if iterator.BudgetExhausted(budget) {
			return iterator.More, nil
		}

		id, outcome, err := ids.Next(budget)
		if err != nil {
			return iterator.No, err
		}
		switch outcome {
		case iterator.More:
			return iterator.More, nil
		case iterator.No:
			c.flushTrailing()
			return iterator.Yes, nil
		}

		k, err := key(id)
		if err != nil {
			return iterator.No, err
		}
		k.Seq = c.seq
		c.seq++

		if !c.passesCutoff(k) {
			continue
		}

		if err := c.accept(Candidate{ID: id, Key: k}, ids); err != nil {
			return iterator.No, err
		}
	}
}

func (c *Context) accept(cand Candidate, ids iterator.Iterator) error {
	if !c.haveMedian {
		c.top.ReplaceOrInsert(cand)
		c.topLen++
		if c.topLen < 2*c.pageSize {
			return nil
		}
		c.seedSort()
		return nil
	}

	outcome := c.prefilter(cand.Key)
	if outcome == outcomeUnknown {
		median, _ := c.median()
		if compareFields(cand.Key.Fields, median.Fields) > 0 {
			outcome = outcomeTooLarge
		} else {
			outcome = outcomeKnownSmaller
		}
	}

	switch outcome {
	case outcomeTooLarge:
		c.haveTrailing = true
		if stats := ids.Statistics(); stats.Ordered {
			if beyond, ok := ids.Beyond(cand.Key.Fields); ok && beyond {
				c.ended = true
			}
		}
		return nil
	default: // known-smaller
		c.trailing = append(c.trailing, cand)
		if len(c.trailing) >= c.pageSize {
			c.mergeSweep()
		}
		return nil
	}
}

// seedSort folds the first 2P candidates into the ordered grid, keeps
// the smallest P, and sets have_median.
func (c *Context) seedSort() {
	c.trimToPageSize()
	c.haveMedian = true
}

// mergeSweep folds the trailing scratch into the ordered grid, keeping
// only the best P overall (spec.md §4.4 "second fill to 2P").
func (c *Context) mergeSweep() {
	for _, cand := range c.trailing {
		c.top.ReplaceOrInsert(cand)
		c.topLen++
	}
	c.trimToPageSize()
	c.trailing = c.trailing[:0]
}

// flushTrailing performs a final mergeSweep against however many
// trailing candidates accumulated (spec.md §4.4's algorithm merges
// "on second fill to 2P", but at stream end we must also fold in a
// partial trailing page).
func (c *Context) flushTrailing() {
	if len(c.trailing) == 0 {
		return
	}
	c.mergeSweep()
}

// Results returns the current top page, ascending.
func (c *Context) Results() []Candidate {
	out := make([]Candidate, 0, c.topLen)
	c.top.Ascend(func(cand Candidate) bool {
		out = append(out, cand)
		return true
	})
	return out
}

// HaveMedian and HaveTrailing mirror the Sort Context flags of
// spec.md §3.
func (c *Context) HaveMedian() bool   { return c.haveMedian }
func (c *Context) HaveTrailing() bool { return c.haveTrailing }
func (c *Context) Ended() bool        { return c.ended }

const cursorPrefix = "sort:"

// Freeze serializes the current cut-off (the last element of the top
// page) into the "sort:"-prefixed textual cursor of spec.md §4.4/§9.
func (c *Context) Freeze() (string, error) {
	if c.topLen == 0 {
		return "", gerrors.New(gerrors.No, "sort: nothing to freeze")
	}
	last, _ := c.top.Max()
	parts := make([]string, len(last.Key.Fields))
	for i, f := range last.Key.Fields {
		parts[i] = strconv.FormatInt(f, 10)
	}
	return cursorPrefix + strings.Join(parts, ","), nil
}

// Thaw rehydrates a cut-off grid from a cursor previously produced by
// Freeze, ready to drive a fresh Context's Run.
func Thaw(text string) (*Context, error) {
	if !strings.HasPrefix(text, cursorPrefix) {
		return nil, gerrors.New(gerrors.BadCursor, fmt.Sprintf("sort: bad cursor prefix in %q", text))
	}
	body := strings.TrimPrefix(text, cursorPrefix)
	fieldStrs := strings.Split(body, ",")
	fields := make([]int64, len(fieldStrs))
	for i, s := range fieldStrs {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, gerrors.Wrap(gerrors.BadCursor, "sort: bad cursor field", err)
		}
		fields[i] = v
	}
	ctx := &Context{cutoff: fields, top: btree.NewG(topDegree, Less)}
	return ctx, nil
}

// ResumeWith attaches a previously-thawed cutoff to c in place, for the
// common "new Context, apply a cursor, then Run" pattern.
func (c *Context) ResumeWith(cutoff *Context) {
	c.cutoff = cutoff.cutoff
}

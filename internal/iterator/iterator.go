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

// Package iterator defines the budgeted iterator contract the sort and
// islink engines are built over. The physical primitive store
// (out of scope per spec.md §1) supplies concrete Iterators; this
// package only states the interface and the shared Outcome/Statistics
// shapes.
package iterator

// Outcome is the tri-state every budgeted call can return.
type Outcome int

const (
	No Outcome = iota
	Yes
	More
)

// Statistics is the cached cost/shape information an Iterator exposes
// so planners (sort, constraint) can choose cheaply between
// alternatives without probing.
type Statistics struct {
	N           int64
	CheckCost   float64
	NextCost    float64
	FindCost    float64
	Sorted      bool
	Ordered     bool
	Forward     bool
	OrderingKey string
}

// RangeSpec narrows an Iterator request to a sub-range or predicate;
// concrete meaning is owned by the store, this is just the handle
// shape other packages pass through.
type RangeSpec struct {
	Low, High uint64
	HasLow    bool
	HasHigh   bool
}

// Iterator is the external contract of spec.md §3: a handle over an
// ordered or unordered id sequence. Every budgeted method takes
// *budget and decrements it; a negative budget on entry forces a More
// return without mutating any externally observable state beyond the
// iterator's internal cursor.
type Iterator interface {
	Next(budget *int) (id uint64, outcome Outcome, err error)
	Find(id uint64, budget *int) (found uint64, outcome Outcome, err error)
	Check(id uint64, budget *int) (outcome Outcome, err error)
	Reset() error
	Clone() Iterator

	Freeze() (string, error)
	Thaw(text string) error

	// Beyond reports whether the iterator, given its ordering, can
	// never again produce an id ordered strictly before value. Only
	// meaningful when Statistics().Ordered is true.
	Beyond(value interface{}) (bool, bool)

	// RangeEstimate returns an estimated count of ids in [low, high),
	// when the iterator can answer cheaply.
	RangeEstimate(low, high uint64) (int64, bool)

	Statistics() Statistics
}

// BudgetExhausted reports whether *budget has fallen below zero,
// the convention every budgeted call checks before doing more work.
func BudgetExhausted(budget *int) bool {
	return budget == nil || *budget < 0
}

// Spend decrements *budget by cost, floor-less (it may go negative,
// which is how the next call learns to bail out).
func Spend(budget *int, cost int) {
	if budget != nil {
		*budget -= cost
	}
}

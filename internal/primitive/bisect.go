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

package primitive

// OrderedLog is the minimal read surface bisection needs over the
// primitive store: a dense, timestamp-non-decreasing id range
// [0, Count()).
type OrderedLog interface {
	Count() uint64
	TimestampAt(id uint64) (Timestamp, error)
}

// Operator enumerates the comparators timestamp_to_id supports.
type Operator int

const (
	OpLess Operator = iota
	OpLessEqual
	OpEqual
	OpGreaterEqual
	OpGreater
	OpNotEqual
)

// lowerBound returns the smallest id with TimestampAt(id) >= ts, or
// Count() if none exists.
func lowerBound(log OrderedLog, ts Timestamp) (uint64, error) {
	lo, hi := uint64(0), log.Count()
	for lo < hi {
		mid := lo + (hi-lo)/2
		v, err := log.TimestampAt(mid)
		if err != nil {
			return 0, err
		}
		if v < ts {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}

// upperBound returns the smallest id with TimestampAt(id) > ts, or
// Count() if none exists.
func upperBound(log OrderedLog, ts Timestamp) (uint64, error) {
	lo, hi := uint64(0), log.Count()
	for lo < hi {
		mid := lo + (hi-lo)/2
		v, err := log.TimestampAt(mid)
		if err != nil {
			return 0, err
		}
		if v <= ts {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}

// TimestampToID implements invariant 8 of spec.md §8: for each of
// <, <=, =, >=, >, != it returns the unique boundary id satisfying the
// operator, or (0, false) if none exists.
//
// For "!=" there is no single boundary the way there is for an ordered
// comparison, so — mirroring the original's treatment of it as "first
// id that differs" — TimestampToID returns the first id whose
// timestamp is not ts, scanning from the low end via the two
// surrounding equal-run boundaries.
func TimestampToID(log OrderedLog, ts Timestamp, op Operator) (uint64, bool, error) {
	switch op {
	case OpGreaterEqual:
		id, err := lowerBound(log, ts)
		if err != nil {
			return 0, false, err
		}
		if id >= log.Count() {
			return 0, false, nil
		}
		return id, true, nil

	case OpGreater:
		id, err := upperBound(log, ts)
		if err != nil {
			return 0, false, err
		}
		if id >= log.Count() {
			return 0, false, nil
		}
		return id, true, nil

	case OpLess:
		id, err := lowerBound(log, ts)
		if err != nil {
			return 0, false, err
		}
		if id == 0 {
			return 0, false, nil
		}
		return id - 1, true, nil

	case OpLessEqual:
		id, err := upperBound(log, ts)
		if err != nil {
			return 0, false, err
		}
		if id == 0 {
			return 0, false, nil
		}
		return id - 1, true, nil

	case OpEqual:
		id, err := lowerBound(log, ts)
		if err != nil {
			return 0, false, err
		}
		if id >= log.Count() {
			return 0, false, nil
		}
		v, err := log.TimestampAt(id)
		if err != nil {
			return 0, false, err
		}
		if v != ts {
			return 0, false, nil
		}
		return id, true, nil

	case OpNotEqual:
		if log.Count() == 0 {
			return 0, false, nil
		}
		v0, err := log.TimestampAt(0)
		if err != nil {
			return 0, false, err
		}
		if v0 != ts {
			return 0, true, nil
		}
		hi, err := upperBound(log, ts)
		if err != nil {
			return 0, false, err
		}
		if hi < log.Count() {
			return hi, true, nil
		}
		return 0, false, nil

	default:
		return 0, false, nil
	}
}

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

package iterator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Slice is a reference Iterator over a fixed, ordered []uint64 — used
// by tests standing in for a real store-backed iterator.
type Slice struct {
	ids     []uint64
	pos     int
	ordered bool
}

// NewSlice builds a Slice iterator. If ordered is true the ids must
// already be sorted ascending; Beyond and RangeEstimate rely on that.
func NewSlice(ids []uint64, ordered bool) *Slice {
	cp := append([]uint64(nil), ids...)
	if ordered {
		sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	}
	return &Slice{ids: cp, ordered: ordered}
}

func (s *Slice) Next(budget *int) (uint64, Outcome, error) {
	if BudgetExhausted(budget) {
		return 0, More, nil
	}
	Spend(budget, 1)
	if s.pos >= len(s.ids) {
		return 0, No, nil
	}
	id := s.ids[s.pos]
	s.pos++
	return id, Yes, nil
}

func (s *Slice) Find(id uint64, budget *int) (uint64, Outcome, error) {
	if BudgetExhausted(budget) {
		return 0, More, nil
	}
	Spend(budget, 1)
	for s.pos < len(s.ids) && s.ids[s.pos] < id {
		s.pos++
	}
	if s.pos >= len(s.ids) {
		return 0, No, nil
	}
	return s.ids[s.pos], Yes, nil
}

func (s *Slice) Check(id uint64, budget *int) (Outcome, error) {
	if BudgetExhausted(budget) {
		return More, nil
	}
	Spend(budget, 1)
	for _, v := range s.ids {
		if v == id {
			return Yes, nil
		}
	}
	return No, nil
}

func (s *Slice) Reset() error { s.pos = 0; return nil }

func (s *Slice) Clone() Iterator {
	return &Slice{ids: append([]uint64(nil), s.ids...), pos: s.pos, ordered: s.ordered}
}

func (s *Slice) Freeze() (string, error) {
	parts := make([]string, len(s.ids)+1)
	parts[0] = strconv.Itoa(s.pos)
	for i, id := range s.ids {
		parts[i+1] = strconv.FormatUint(id, 10)
	}
	return "slice:" + strings.Join(parts, ","), nil
}

func (s *Slice) Thaw(text string) error {
	body := strings.TrimPrefix(text, "slice:")
	if body == text {
		return fmt.Errorf("slice: bad cursor prefix in %q", text)
	}
	parts := strings.Split(body, ",")
	if len(parts) == 0 {
		return fmt.Errorf("slice: empty cursor")
	}
	pos, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("slice: bad position: %w", err)
	}
	ids := make([]uint64, 0, len(parts)-1)
	for _, p := range parts[1:] {
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return fmt.Errorf("slice: bad id: %w", err)
		}
		ids = append(ids, v)
	}
	s.ids = ids
	s.pos = pos
	return nil
}

func (s *Slice) Beyond(value interface{}) (bool, bool) {
	if !s.ordered {
		return false, false
	}
	median, ok := value.(uint64)
	if !ok {
		return false, false
	}
	if s.pos >= len(s.ids) {
		return true, true
	}
	return s.ids[s.pos] > median, true
}

func (s *Slice) RangeEstimate(low, high uint64) (int64, bool) {
	if !s.ordered {
		return 0, false
	}
	lo := sort.Search(len(s.ids), func(i int) bool { return s.ids[i] >= low })
	hi := sort.Search(len(s.ids), func(i int) bool { return s.ids[i] >= high })
	return int64(hi - lo), true
}

func (s *Slice) Statistics() Statistics {
	return Statistics{
		N:       int64(len(s.ids)),
		Sorted:  s.ordered,
		Ordered: s.ordered,
		Forward: true,
	}
}

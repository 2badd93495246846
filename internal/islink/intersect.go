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

import (
	"github.com/RoaringBitmap/roaring/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// IntersectResult is the memoized pairwise intersection of spec.md
// §4.5: an enumerated idset while small, or just a count once either
// side overflows MaxEnumerate.
type IntersectResult struct {
	IncludeIDs    *roaring.Bitmap
	IncludeCount  uint64
	IncludeCounts bool // true once IncludeIDs was dropped in favor of IncludeCount

	ExcludeIDs    *roaring.Bitmap
	ExcludeCount  uint64
	ExcludeCounts bool
}

type pairKey struct{ a, b GroupKey }

func orderedPair(a, b GroupKey) pairKey {
	if less(a, b) {
		return pairKey{a, b}
	}
	return pairKey{b, a}
}

func less(a, b GroupKey) bool {
	if a.Linkage != b.Linkage {
		return a.Linkage < b.Linkage
	}
	if a.TypeID != b.TypeID {
		return a.TypeID < b.TypeID
	}
	if a.HasEndpoint != b.HasEndpoint {
		return !a.HasEndpoint
	}
	return a.Endpoint < b.Endpoint
}

// IntersectMemo caches group-pair intersections behind an LRU so its
// memory is bounded regardless of how many distinct pairs get queried
// (the spec leaves this table's size unbounded; an LRU eviction policy
// is this engine's documented answer). Evictions are silent: an evicted
// pair is recomputed on its next request.
type IntersectMemo struct {
	cache        *lru.Cache[pairKey, IntersectResult]
	maxEnumerate int
}

// NewIntersectMemo builds a memo capped at capacity entries; pairs
// whose enumerated idset would exceed maxEnumerate elements are stored
// as counts only.
func NewIntersectMemo(capacity, maxEnumerate int) (*IntersectMemo, error) {
	c, err := lru.New[pairKey, IntersectResult](capacity)
	if err != nil {
		return nil, err
	}
	return &IntersectMemo{cache: c, maxEnumerate: maxEnumerate}, nil
}

// Intersect returns the memoized include/exclude intersection of a and
// b's idsets, computing and caching it on first request. include is
// a AND b; exclude is the idset of whichever key sorts first in the
// pair minus the other's, so both call orders share one entry and get
// the same result.
func (m *IntersectMemo) Intersect(aKey, bKey GroupKey, aSet, bSet *roaring.Bitmap) IntersectResult {
	key := orderedPair(aKey, bKey)
	if key.a != aKey {
		aSet, bSet = bSet, aSet
	}
	if v, ok := m.cache.Get(key); ok {
		return v
	}

	var res IntersectResult
	includeCard := aSet.AndCardinality(bSet)
	if int(includeCard) <= m.maxEnumerate {
		res.IncludeIDs = roaring.And(aSet, bSet)
	} else {
		res.IncludeCounts = true
	}
	res.IncludeCount = includeCard

	excludeCard := aSet.AndNotCardinality(bSet)
	if int(excludeCard) <= m.maxEnumerate {
		res.ExcludeIDs = roaring.AndNot(aSet, bSet)
	} else {
		res.ExcludeCounts = true
	}
	res.ExcludeCount = excludeCard

	m.cache.Add(key, res)
	return res
}

// Len reports the number of memoized pairs, for tests.
func (m *IntersectMemo) Len() int { return m.cache.Len() }

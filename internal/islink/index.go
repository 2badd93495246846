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

	"github.com/graphd/graphd/internal/primitive"
)

// GroupKey identifies a materialized group idset: "every id on Linkage
// side of TypeID" (HasEndpoint false), or "every id on Linkage side of
// TypeID reachable through Endpoint" (HasEndpoint true, the vip case).
type GroupKey struct {
	Linkage     primitive.Linkage
	TypeID      uint32
	Endpoint    uint32
	HasEndpoint bool
}

// Link is one observed (type, left, right, record) tuple fed to the
// index — the islink-relevant projection of a typed link primitive.
type Link struct {
	TypeID uint32
	Left   uint32
	Right  uint32
	Record uint32
}

// typeEntry is the per-typeguid record of spec.md §3.
type typeEntry struct {
	left, right         *Side
	leftHistory         map[uint32][]uint32 // endpoint -> record ids seen before its group formed
	rightHistory        map[uint32][]uint32
	leftDone, rightDone bool
}

// Index is the islink engine's accumulated state across all typeguids.
type Index struct {
	interestingMin int
	interestingMax int

	types  map[uint32]*typeEntry
	groups map[GroupKey]*roaring.Bitmap
}

// NewIndex builds an empty Index with the given group-formation and
// vast-transition thresholds (INTERESTING_MIN / INTERESTING_MAX).
func NewIndex(interestingMin, interestingMax int) *Index {
	return &Index{
		interestingMin: interestingMin,
		interestingMax: interestingMax,
		types:          make(map[uint32]*typeEntry),
		groups:         make(map[GroupKey]*roaring.Bitmap),
	}
}

func (ix *Index) entry(typeID uint32) *typeEntry {
	te, ok := ix.types[typeID]
	if !ok {
		te = &typeEntry{
			left:         NewSide(ix.interestingMin, ix.interestingMax),
			right:        NewSide(ix.interestingMin, ix.interestingMax),
			leftHistory:  make(map[uint32][]uint32),
			rightHistory: make(map[uint32][]uint32),
		}
		ix.types[typeID] = te
	}
	return te
}

// Observe feeds one link record into the index's job for its type,
// updating both sides — the body of job_run's per-primitive work in
// spec.md §4.5.
func (ix *Index) Observe(l Link) {
	te := ix.entry(l.TypeID)

	if !te.left.Vast() {
		wasGroup := hasGroup(te.left, l.Left)
		te.leftHistory[l.Left] = append(te.leftHistory[l.Left], l.Record)
		te.left.Add(l.Left, l.Record)
		if !wasGroup {
			if _, became := te.left.Group(l.Left); became {
				te.left.Backfill(l.Left, te.leftHistory[l.Left])
			}
		}
	}

	if !te.right.Vast() {
		wasGroup := hasGroup(te.right, l.Right)
		te.rightHistory[l.Right] = append(te.rightHistory[l.Right], l.Record)
		te.right.Add(l.Right, l.Record)
		if !wasGroup {
			if _, became := te.right.Group(l.Right); became {
				te.right.Backfill(l.Right, te.rightHistory[l.Right])
			}
		}
	}
}

func hasGroup(s *Side, endpoint uint32) bool {
	_, ok := s.Group(endpoint)
	return ok
}

// Complete finalizes the job for typeID: a job completes when its
// source iterator returns NO or both sides have gone vast. Completing
// a side that isn't vast stores its distinct-endpoint idset as a group
// keyed by (its own linkage, typeID, NONE); each of its formed
// per-endpoint groups is stored keyed by (the opposite linkage,
// typeID, endpoint) — spec.md §4.5 "Groups and intersections".
func (ix *Index) Complete(typeID uint32) {
	te, ok := ix.types[typeID]
	if !ok {
		return
	}
	ix.completeSide(primitive.LinkageLeft, typeID, te.left, primitive.LinkageRight)
	ix.completeSide(primitive.LinkageRight, typeID, te.right, primitive.LinkageLeft)
}

func (ix *Index) completeSide(linkage primitive.Linkage, typeID uint32, side *Side, opposite primitive.Linkage) {
	if side.Vast() {
		return
	}
	ix.groups[GroupKey{Linkage: linkage, TypeID: typeID}] = side.IDs().Clone()

	for endpoint := range side.counts {
		if grp, ok := side.Group(endpoint); ok {
			ix.groups[GroupKey{Linkage: opposite, TypeID: typeID, Endpoint: endpoint, HasEndpoint: true}] = grp.Clone()
		}
	}
}

// Group looks up a previously completed group idset.
func (ix *Index) Group(key GroupKey) (*roaring.Bitmap, bool) {
	g, ok := ix.groups[key]
	return g, ok
}

// Side exposes the live (possibly not yet completed) Side state for a
// type, for tests and diagnostics.
func (ix *Index) Side(typeID uint32, linkage primitive.Linkage) *Side {
	te, ok := ix.types[typeID]
	if !ok {
		return nil
	}
	if linkage == primitive.LinkageLeft {
		return te.left
	}
	return te.right
}

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

// Package constraint implements spec.md §3's Constraint read/write query
// AST and the clause-merge behavior implied by §4: a tree of nodes
// carrying bounds on timestamp, count and generation, dateline, typed
// predicates, sort/result shaping, and nested or-branches with a
// prototype root.
package constraint

import "github.com/graphd/graphd/internal/primitive"

// TimestampBound is an inclusive/exclusive bound on a primitive's
// timestamp, following the six bisection operators of
// internal/primitive.Operator.
type TimestampBound struct {
	Op    primitive.Operator
	Value primitive.Timestamp
}

// GenerationBound restricts matches to the oldest or newest generation
// of a logical record (spec.md's "oldest/newest" generation predicate).
type GenerationBound struct {
	Set    bool
	Oldest bool
	Newest bool
}

// DatelineBound restricts matches to primitives appended at or after a
// replica's dateline, used by catch-up/live-tail reads.
type DatelineBound struct {
	Set bool
	ID  uint64
}

// GUIDPredicate tests a GUID-valued field of a primitive against a
// literal or a set.
type GUIDPredicate struct {
	Linkage primitive.Linkage
	Equals  primitive.GUID
}

// StringPredicate tests the name or string-value field.
type StringPredicate struct {
	OnName    bool // true: matches Name(); false: matches Value() as string
	Equals    string
	Prefix    string
	HasPrefix bool
}

// LinkagePredicate requires a primitive to be a typed link with the
// given linkage endpoint set to a specific GUID.
type LinkagePredicate struct {
	Linkage primitive.Linkage
	Value   primitive.GUID
}

// SortPattern is one field of a requested sort/result order.
type SortPattern struct {
	Field      string
	Descending bool
}

// Flags are the four boolean clause flags of spec.md §3.
type Flags struct {
	False    bool // provably matches nothing
	Anchor   bool
	Archival bool
	Live     bool
}

// Node is one constraint clause tree node.
type Node struct {
	Flags Flags

	Timestamp  []TimestampBound
	Count      *CountBound
	Generation GenerationBound
	Dateline   DatelineBound

	GUIDPredicates    []GUIDPredicate
	StringPredicates  []StringPredicate
	LinkagePredicates []LinkagePredicate

	Sort     []SortPattern
	PageSize int
	Start    int
	Cursor   string

	Or        []*Node
	Prototype *Node
}

// False returns a leaf node with only Flags.False set — the canonical
// "provably empty" node a merge contradiction prunes a subtree to.
func False() *Node {
	return &Node{Flags: Flags{False: true}}
}

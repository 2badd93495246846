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

// Package store defines the primitive store contract the rest of
// graphd consumes. The physical store is out of scope (see spec.md
// §1); this package states only the interface plus a reference
// in-process implementation good enough to drive tests and a
// single-process binary.
package store

import (
	"github.com/graphd/graphd/internal/iterator"
	"github.com/graphd/graphd/internal/primitive"
)

// TileStore is the dense id-space and primitive log graphd's core
// consumes but never implements directly: id allocation, append,
// lookups by id or guid, checkpoint and rollback, and range iteration.
type TileStore interface {
	AllocateID() uint64
	Append(p primitive.Primitive) error
	Get(id uint64) (primitive.Primitive, bool, error)
	GUIDToID(g primitive.GUID) (uint64, bool)
	IDToGUID(id uint64) (primitive.GUID, bool)
	PrimitiveCount() uint64
	Checkpoint() error
	Rollback(toID uint64) error
	Iterator(spec iterator.RangeSpec) (iterator.Iterator, error)

	// Safe reports the shared "safe" flag spec.md §4.2 names: cleared
	// before every non-transactional write/checkpoint, forcing a
	// restore-from-snapshot at startup when found false.
	Safe() bool
	SetSafe(safe bool) error
}

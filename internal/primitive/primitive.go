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

// Package primitive holds the immutable log record at the heart of the
// store: a node or typed link, plus the monotone timestamp clock used
// to order them.
package primitive

import "github.com/google/uuid"

// GUID is a 128-bit globally unique primitive identifier.
type GUID [16]byte

// NewGUID draws a fresh random GUID.
func NewGUID() GUID {
	return GUID(uuid.New())
}

func (g GUID) String() string { return uuid.UUID(g).String() }

// ValueType enumerates the kind of value a primitive carries.
type ValueType int

const (
	ValueTypeNull ValueType = iota
	ValueTypeBoolean
	ValueTypeInteger
	ValueTypeFloat
	ValueTypeString
	ValueTypeTimestamp
	ValueTypeGUID
)

// Flags holds the four booleans spec.md §3 attaches to a primitive.
type Flags uint8

const (
	FlagLive Flags = 1 << iota
	FlagArchival
	FlagIsLink
	FlagTransactionStart
)

func (f Flags) Live() bool             { return f&FlagLive != 0 }
func (f Flags) Archival() bool         { return f&FlagArchival != 0 }
func (f Flags) IsLink() bool           { return f&FlagIsLink != 0 }
func (f Flags) TransactionStart() bool { return f&FlagTransactionStart != 0 }

// Primitive is an immutable record: a node, or a typed link between two
// (or three, with Scope) other primitives. Every field is set once at
// construction; there is no mutator.
type Primitive struct {
	id         uint64
	guid       GUID
	ts         Timestamp
	valueType  ValueType
	typeGUID   *GUID
	left       *GUID
	right      *GUID
	scope      *GUID
	previous   *uint64
	generation uint32
	name       []byte
	value      []byte
	flags      Flags
}

// Params groups the constructor arguments for Primitive, since it has
// many optional fields.
type Params struct {
	ID         uint64
	GUID       GUID
	Timestamp  Timestamp
	ValueType  ValueType
	TypeGUID   *GUID
	Left       *GUID
	Right      *GUID
	Scope      *GUID
	Previous   *uint64
	Generation uint32
	Name       []byte
	Value      []byte
	Flags      Flags
}

// New builds a Primitive from Params. The caller owns id allocation
// (see internal/store.TileStore.AllocateID) — New never reaches into
// any external sequence.
func New(p Params) Primitive {
	return Primitive{
		id:         p.ID,
		guid:       p.GUID,
		ts:         p.Timestamp,
		valueType:  p.ValueType,
		typeGUID:   p.TypeGUID,
		left:       p.Left,
		right:      p.Right,
		scope:      p.Scope,
		previous:   p.Previous,
		generation: p.Generation,
		name:       p.Name,
		value:      p.Value,
		flags:      p.Flags,
	}
}

func (p Primitive) ID() uint64           { return p.id }
func (p Primitive) GUID() GUID           { return p.guid }
func (p Primitive) Timestamp() Timestamp { return p.ts }
func (p Primitive) ValueType() ValueType { return p.valueType }
func (p Primitive) TypeGUID() (GUID, bool) {
	if p.typeGUID == nil {
		return GUID{}, false
	}
	return *p.typeGUID, true
}
func (p Primitive) Left() (GUID, bool)  { return derefGUID(p.left) }
func (p Primitive) Right() (GUID, bool) { return derefGUID(p.right) }
func (p Primitive) Scope() (GUID, bool) { return derefGUID(p.scope) }
func (p Primitive) Previous() (uint64, bool) {
	if p.previous == nil {
		return 0, false
	}
	return *p.previous, true
}
func (p Primitive) Generation() uint32 { return p.generation }
func (p Primitive) Name() []byte       { return p.name }
func (p Primitive) Value() []byte      { return p.value }
func (p Primitive) Flags() Flags       { return p.flags }

// Linkage identifies a primitive's role relative to its typeguid, as
// used throughout the islink engine and constraint predicates.
type Linkage int

const (
	LinkageLeft Linkage = iota
	LinkageRight
	LinkageTypeGUID
	LinkageScope
)

// Endpoint returns the guid a primitive presents for the given linkage,
// if any.
func (p Primitive) Endpoint(l Linkage) (GUID, bool) {
	switch l {
	case LinkageLeft:
		return p.Left()
	case LinkageRight:
		return p.Right()
	case LinkageTypeGUID:
		return p.TypeGUID()
	case LinkageScope:
		return p.Scope()
	default:
		return GUID{}, false
	}
}

func derefGUID(g *GUID) (GUID, bool) {
	if g == nil {
		return GUID{}, false
	}
	return *g, true
}

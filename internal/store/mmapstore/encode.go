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

package mmapstore

import (
	"encoding/binary"
	"fmt"

	"github.com/graphd/graphd/internal/primitive"
)

// record layout (little-endian, fixed header then variable tails):
//
//	id(8) guid(16) ts(8) valueType(2) flags(1) generation(4)
//	hasTypeGUID(1) typeGUID(16) hasLeft(1) left(16) hasRight(1) right(16)
//	hasScope(1) scope(16) hasPrevious(1) previous(8)
//	nameLen(4) name(nameLen) valueLen(4) value(valueLen)
const recordFixedLen = 8 + 16 + 8 + 2 + 1 + 4 + (1+16)*4 + (1 + 8)

func encode(p primitive.Primitive) []byte {
	name := p.Name()
	value := p.Value()
	buf := make([]byte, recordFixedLen+4+len(name)+4+len(value))
	o := 0

	binary.LittleEndian.PutUint64(buf[o:], p.ID())
	o += 8
	guid := p.GUID()
	copy(buf[o:], guid[:])
	o += 16
	binary.LittleEndian.PutUint64(buf[o:], uint64(p.Timestamp()))
	o += 8
	binary.LittleEndian.PutUint16(buf[o:], uint16(p.ValueType()))
	o += 2
	buf[o] = byte(p.Flags())
	o++
	binary.LittleEndian.PutUint32(buf[o:], p.Generation())
	o += 4

	typeGUID, hasType := p.TypeGUID()
	o = putOptionalGUID(buf, o, typeGUID, hasType)
	left, hasLeft := p.Left()
	o = putOptionalGUID(buf, o, left, hasLeft)
	right, hasRight := p.Right()
	o = putOptionalGUID(buf, o, right, hasRight)
	scope, hasScope := p.Scope()
	o = putOptionalGUID(buf, o, scope, hasScope)

	if prev, ok := p.Previous(); ok {
		buf[o] = 1
		o++
		binary.LittleEndian.PutUint64(buf[o:], prev)
		o += 8
	} else {
		buf[o] = 0
		o++
		o += 8
	}

	binary.LittleEndian.PutUint32(buf[o:], uint32(len(name)))
	o += 4
	o += copy(buf[o:], name)
	binary.LittleEndian.PutUint32(buf[o:], uint32(len(value)))
	o += 4
	o += copy(buf[o:], value)

	return buf[:o]
}

func putOptionalGUID(buf []byte, o int, g primitive.GUID, ok bool) int {
	if ok {
		buf[o] = 1
		o++
		copy(buf[o:], g[:])
		o += 16
	} else {
		buf[o] = 0
		o++
		o += 16
	}
	return o
}

func decode(b []byte) (primitive.Primitive, error) {
	if len(b) < recordFixedLen {
		return primitive.Primitive{}, fmt.Errorf("mmapstore: record too short: %d bytes", len(b))
	}
	o := 0
	id := binary.LittleEndian.Uint64(b[o:])
	o += 8
	var guid primitive.GUID
	copy(guid[:], b[o:o+16])
	o += 16
	ts := primitive.Timestamp(binary.LittleEndian.Uint64(b[o:]))
	o += 8
	vt := primitive.ValueType(binary.LittleEndian.Uint16(b[o:]))
	o += 2
	flags := primitive.Flags(b[o])
	o++
	generation := binary.LittleEndian.Uint32(b[o:])
	o += 4

	typeGUID, o := getOptionalGUID(b, o)
	left, o := getOptionalGUID(b, o)
	right, o := getOptionalGUID(b, o)
	scope, o := getOptionalGUID(b, o)

	var previous *uint64
	if b[o] == 1 {
		o++
		v := binary.LittleEndian.Uint64(b[o:])
		previous = &v
		o += 8
	} else {
		o++
		o += 8
	}

	nameLen := binary.LittleEndian.Uint32(b[o:])
	o += 4
	name := append([]byte(nil), b[o:o+int(nameLen)]...)
	o += int(nameLen)
	valueLen := binary.LittleEndian.Uint32(b[o:])
	o += 4
	value := append([]byte(nil), b[o:o+int(valueLen)]...)
	o += int(valueLen)

	return primitive.New(primitive.Params{
		ID:         id,
		GUID:       guid,
		Timestamp:  ts,
		ValueType:  vt,
		TypeGUID:   typeGUID,
		Left:       left,
		Right:      right,
		Scope:      scope,
		Previous:   previous,
		Generation: generation,
		Name:       name,
		Value:      value,
		Flags:      flags,
	}), nil
}

func getOptionalGUID(b []byte, o int) (*primitive.GUID, int) {
	has := b[o] == 1
	o++
	var g primitive.GUID
	copy(g[:], b[o:o+16])
	o += 16
	if !has {
		return nil, o
	}
	return &g, o
}

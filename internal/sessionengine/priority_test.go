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

package sessionengine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPriorityPool_TryAcquireRespectsBudget(t *testing.T) {
	require := require.New(t)

	p := NewPriorityPool(10)
	require.True(p.TryAcquire(1, 6))
	require.False(p.TryAcquire(2, 5))
	require.Equal(4, p.Available())
}

func TestPriorityPool_ReleaseIsIdempotent(t *testing.T) {
	require := require.New(t)

	p := NewPriorityPool(10)
	p.TryAcquire(1, 4)
	p.Release(1)
	p.Release(1)
	require.Equal(10, p.Available())
}

// TestPriorityPool_InheritPreservesMonotonicity is invariant 7 of
// spec.md §8: once depend(A, B) is registered and A holds priority, B
// is never denied priority on allocation grounds while A still holds
// it — because B's allocation comes from inheriting A's held units
// rather than drawing fresh budget.
func TestPriorityPool_InheritPreservesMonotonicity(t *testing.T) {
	require := require.New(t)

	p := NewPriorityPool(5)
	const reqA, reqB uint64 = 1, 2

	require.True(p.TryAcquire(reqA, 5), "A holds all the priority budget")
	require.Equal(0, p.Available())

	// B would be denied priority on fresh allocation grounds...
	require.False(p.TryAcquire(reqB, 1))

	// ...but depend(A, B) transfers A's held units to B instead.
	p.Inherit(reqA, reqB)
	require.Equal(0, p.Available(), "inheritance moves held units, it does not mint new budget")

	p.Release(reqB)
	require.Equal(5, p.Available())
}

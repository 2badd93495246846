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

//go:build freebsd

package startup

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isStaleLock on FreeBSD distinguishes a stale lock from a transient
// flock failure by EIO rather than ENODATA — an Open Question of
// spec.md §9 preserved literally rather than generalized: reimplementers
// targeting FreeBSD should verify this condition against their kernel
// rather than transplant the symbol from elsewhere.
func isStaleLock(err error) bool {
	return errors.Is(err, unix.EIO)
}

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

package startup

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/graphd/graphd/internal/gerrors"
)

// LockDir acquires the directory lock at <path>/.gdlock, the default
// production Hooks.Lock implementation. EBUSY maps to gerrors.Busy; an
// absent directory maps to gerrors.Syntax; a present-but-unflockable
// file whose holder process looks gone maps to gerrors.StaleLock via
// the OS-specific check in isStaleLock.
func LockDir(path string) (Locker, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, gerrors.New(gerrors.Syntax, "no database at path")
	}

	fl := flock.New(filepath.Join(path, ".gdlock"))
	locked, err := fl.TryLock()
	if err != nil {
		if isStaleLock(err) {
			return nil, gerrors.Wrap(gerrors.StaleLock, "stale lock file", err)
		}
		return nil, gerrors.Wrap(gerrors.Busy, "failed to acquire database lock", err)
	}
	if !locked {
		return nil, gerrors.New(gerrors.Busy, "database already owned by another process")
	}
	return &flockLocker{fl: fl}, nil
}

type flockLocker struct{ fl *flock.Flock }

func (l *flockLocker) Unlock() error { return l.fl.Unlock() }

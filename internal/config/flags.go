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

package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Exit codes spec.md §6 names for CLI-level failures.
const (
	ExUsage               = 64
	ExOSErr               = 71
	ExGraphdDatabase      = 100
	ExGraphdReplicaMaster = 101
)

// Flags holds every single-letter CLI option spec.md §6 lists.
type Flags struct {
	SkipVerify       bool   // -a
	Force            bool   // -C
	RequireExisting  bool   // -D
	DBPath           string // -d
	FreezeFactor     int    // -e
	InstanceID       string // -I
	TestHook         string // -J
	MemoryLimit      string // -K
	WriteMasterAddr  string // -M
	ReplicaRequired  string // -r
	ReplicaOptional  string // -R
	Sabotage         string // -s
	NoSync           bool   // -S
	NonTransactional bool   // -T
	SMPLeaderAddr    string // -U
	PrintVersion     bool   // -w
	DelayReplicaSecs int    // -Z
	ListenAddr       string // -l: client-facing listen address (host:port)
}

// BindFlags registers every spec.md §6 single-letter flag on fs,
// writing into f.
func BindFlags(fs *pflag.FlagSet, f *Flags) {
	fs.BoolVarP(&f.SkipVerify, "skip-verify", "a", false, "skip verification on open")
	fs.BoolVarP(&f.Force, "force", "C", false, "continue past verification failures")
	fs.BoolVarP(&f.RequireExisting, "require-existing", "D", false, "require an existing database")
	fs.StringVarP(&f.DBPath, "database", "d", "", "database directory path")
	fs.IntVarP(&f.FreezeFactor, "freeze-factor", "e", 0, "freeze factor")
	fs.StringVarP(&f.InstanceID, "instance-id", "I", "", "instance id")
	fs.StringVarP(&f.TestHook, "test-hook", "J", "", "test hook pattern")
	fs.StringVarP(&f.MemoryLimit, "memory", "K", "", "memory size limit (e.g. 512MB)")
	fs.StringVarP(&f.WriteMasterAddr, "write-master", "M", "", "write-master override address")
	fs.StringVarP(&f.ReplicaRequired, "replica-required", "r", "", "required replica master address")
	fs.StringVarP(&f.ReplicaOptional, "replica-optional", "R", "", "optional replica master address")
	fs.StringVarP(&f.Sabotage, "sabotage", "s", "", "sabotage pattern")
	fs.BoolVarP(&f.NoSync, "nosync", "S", false, "disable fsync")
	fs.BoolVarP(&f.NonTransactional, "non-transactional", "T", false, "disable transactional writes")
	fs.StringVarP(&f.SMPLeaderAddr, "smp-leader", "U", "", "SMP leader socket address")
	fs.BoolVarP(&f.PrintVersion, "version", "w", false, "print format version and exit")
	fs.IntVarP(&f.DelayReplicaSecs, "delay-replica-writes", "Z", 0, "delay replica writes N seconds")
	fs.StringVarP(&f.ListenAddr, "listen", "l", ":8099", "client-facing listen address")
}

// NewCommand builds the root cobra command, binding Flags and calling
// run once arguments are parsed.
func NewCommand(f *Flags, run func(args []string) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graphd",
		Short: "graphd request-processing core",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args)
		},
	}
	BindFlags(cmd.Flags(), f)
	return cmd
}

// Validate rejects CLI combinations spec.md §6 marks mutually
// exclusive: -r and -R conflict (one or the other configures replica
// startup, not both), as do -C and -D (force-continue vs.
// require-existing are opposite recovery stances).
func Validate(f *Flags) error {
	if f.ReplicaRequired != "" && f.ReplicaOptional != "" {
		return &FlagError{Code: ExOSErr, Msg: "cannot set both -r and -R"}
	}
	if f.Force && f.RequireExisting {
		return &FlagError{Code: ExOSErr, Msg: "cannot set both -C and -D"}
	}
	return nil
}

// FlagError pairs an error message with the spec.md §6 exit code a CLI
// driver should terminate with.
type FlagError struct {
	Code int
	Msg  string
}

func (e *FlagError) Error() string { return e.Msg }

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

// Package epitaph writes a fatal last-words log record and terminates
// the process, per spec.md's startup/opener and replication recovery
// paths ("on any failure ... emit a fatal epitaph and terminate").
package epitaph

import (
	"os"

	"github.com/graphd/graphd/internal/graphlog"
)

// Exit is the process-exit function Write calls; tests replace it to
// observe the call without actually terminating the test binary.
var Exit = os.Exit

// Write logs msg at the always-emitted epitaph level and exits the
// process with status 1. It never returns under its default Exit.
func Write(log *graphlog.Logger, msg string, kv ...interface{}) {
	log.Epitaph(msg, kv...)
	Exit(1)
}

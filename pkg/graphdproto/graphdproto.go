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

// Package graphdproto is the small public surface an external client
// needs to speak to graphd: command keywords and protocol version
// strings, without pulling in the server internals under internal/.
package graphdproto

// Command keywords, mirrored from internal/wire for external callers.
const (
	CommandReplica      = "replica"
	CommandReplicaWrite = "replica-write"
	CommandRestore      = "restore"
	CommandWrite        = "write"
	CommandRead         = "read"
	CommandDump         = "dump"
)

// Protocol version strings a client negotiates against.
const (
	RestoreVersion          = "6"
	ReplicaHandshakeVersion = "1"
	DumpVersion             = "6"
)

// OnDiskFormatVersion is the persistent on-disk format integer; a
// client inspecting a store directly (e.g. an offline dump reader)
// refuses any other value.
const OnDiskFormatVersion = 21

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

// Package wire holds the line-oriented text protocol's constants and a
// tokenizer for its parenthesized-tuple grammar: cmd/graphd parses every
// accepted connection's lines through Parse before handing the result
// to a sessionengine.Request.
package wire

// Command keywords the core interprets.
const (
	CmdReplica      = "replica"
	CmdReplicaWrite = "replica-write"
	CmdRestore      = "restore"
	CmdWrite        = "write"
	CmdRead         = "read"
	CmdDump         = "dump"
)

// Protocol version strings.
const (
	VersionRestore          = "6"
	VersionReplicaHandshake = "1"
	VersionDump             = "6"
)

// OnDiskFormatVersion is the opaque persistent store format integer;
// servers refuse to open stores carrying a different value.
const OnDiskFormatVersion = 21

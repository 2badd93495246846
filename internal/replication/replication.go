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

// Package replication implements spec.md §4.3's replication pipeline:
// master-side catch-up and live propagation to followers, follower-side
// replica-write application, client write-through to a write master,
// and SMP passthrough forwarding.
package replication

// Role is the instance role enumeration of spec.md §4.3.
type Role int

const (
	RoleStandalone Role = iota
	RoleReplica
	RoleReplicaSync
	RoleArchive
)

// LagMax is the maximum primitive-byte span of one catch-up restore
// batch or one coalesced live update, per spec.md §4.3.
const LagMax = 128 * 1024

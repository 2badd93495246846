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

// Package config holds graphd's configuration-file grammar and
// command-line flags (spec.md §6). The file grammar is bespoke
// (database{}/replica{}/archive{}/cost{} blocks), not TOML/YAML/JSON,
// so it gets a small hand-written recursive-descent reader rather than
// an existing format library.
package config

import (
	"github.com/graphd/graphd/internal/gerrors"
	"github.com/graphd/graphd/internal/numutil"
)

// maxInstanceIDSize bounds instance-id's length, per spec.md §6.
const maxInstanceIDSize = 256

// maxDatabaseNameSize bounds a non-numeric database.id, per spec.md §6.
const maxDatabaseNameSize = 7

// costTokens enumerates the recognized cost{} token set.
var costTokens = map[string]bool{
	"tr": true, "tu": true, "ts": true, "te": true,
	"pr": true, "pf": true, "dr": true, "dw": true,
	"ir": true, "iw": true, "in": true, "va": true,
}

// isDeprecatedToken reports whether tok matches one of the deprecated,
// silently-ignored config tokens: `tilecache*`, `hmappercent`, or
// `*-init-map-tiles`.
func isDeprecatedToken(tok string) bool {
	if tok == "hmappercent" {
		return true
	}
	if len(tok) >= len("tilecache") && tok[:len("tilecache")] == "tilecache" {
		return true
	}
	suffix := "-init-map-tiles"
	return len(tok) >= len(suffix) && tok[len(tok)-len(suffix):] == suffix
}

// Database holds the database{} block.
type Database struct {
	Path          string
	ID            string
	Type          string
	Sync          bool
	Transactional bool
	MustExist     bool
	Snapshot      string
	GMapSplitThr  int64
	GMapMaxLF     int64
	EnableBGMaps  bool
}

// Endpoint holds a replica{} or archive{} block.
type Endpoint struct {
	Host string
	Port string
}

// Config is the fully-parsed configuration-file content.
type Config struct {
	Database Database

	Replica *Endpoint
	Archive *Endpoint

	RequestSizeMax int64
	LeaderSocket   string
	Cost           map[string]int64
	InstanceID     string
}

func validate(c *Config) error {
	if c.Database.Type != "" && !equalFoldASCII(c.Database.Type, "addb") {
		return gerrors.New(gerrors.Syntax, "config: database.type must be \"addb\"")
	}
	if c.Database.ID != "" {
		if _, ok := numutil.ParseUint64(c.Database.ID); !ok {
			if len(c.Database.ID) > maxDatabaseNameSize {
				return gerrors.New(gerrors.Syntax, "config: database.id name exceeds 7 characters")
			}
		}
	}
	if len(c.InstanceID) > maxInstanceIDSize {
		return gerrors.New(gerrors.Syntax, "config: instance-id too long")
	}
	for _, r := range c.InstanceID {
		if !isAlnum(r) {
			return gerrors.New(gerrors.Syntax, "config: instance-id must be alphanumeric")
		}
	}
	return nil
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

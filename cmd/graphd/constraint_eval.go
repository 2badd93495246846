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

package main

import (
	"strconv"

	"github.com/graphd/graphd/internal/constraint"
	"github.com/graphd/graphd/internal/gerrors"
	"github.com/graphd/graphd/internal/primitive"
	"github.com/graphd/graphd/internal/wire"
)

const defaultPageSize = 100

// buildConstraint translates a read request's wire params into an
// internal/constraint.Node. It covers the flat field set a read clause
// commonly carries (endpoint equality, name/value matching, a single
// timestamp window, sort, and paging); nested or-branches and a
// prototype root are left for a caller to attach to the returned node
// directly, since no wire grammar for them is wired in yet.
func buildConstraint(params []wire.Value) (*constraint.Node, error) {
	fields := paramMap(params)
	n := &constraint.Node{PageSize: defaultPageSize}

	for field, linkage := range map[string]primitive.Linkage{
		"left":  primitive.LinkageLeft,
		"right": primitive.LinkageRight,
		"type":  primitive.LinkageTypeGUID,
		"scope": primitive.LinkageScope,
	} {
		v, ok := fields[field]
		if !ok || v == "" {
			continue
		}
		g, err := parseGUIDText(v)
		if err != nil {
			return nil, err
		}
		n.GUIDPredicates = append(n.GUIDPredicates, constraint.GUIDPredicate{Linkage: linkage, Equals: g})
	}

	if v, ok := fields["name"]; ok {
		n.StringPredicates = append(n.StringPredicates, constraint.StringPredicate{OnName: true, Equals: v})
	}
	if v, ok := fields["name-prefix"]; ok {
		n.StringPredicates = append(n.StringPredicates, constraint.StringPredicate{OnName: true, Prefix: v, HasPrefix: true})
	}
	if v, ok := fields["value"]; ok {
		n.StringPredicates = append(n.StringPredicates, constraint.StringPredicate{Equals: v})
	}

	if v, ok := fields["timestamp-ge"]; ok {
		ts, err := parseTimestampText(v)
		if err != nil {
			return nil, err
		}
		n.Timestamp = append(n.Timestamp, constraint.TimestampBound{Op: primitive.OpGreaterEqual, Value: ts})
	}
	if v, ok := fields["timestamp-le"]; ok {
		ts, err := parseTimestampText(v)
		if err != nil {
			return nil, err
		}
		n.Timestamp = append(n.Timestamp, constraint.TimestampBound{Op: primitive.OpLessEqual, Value: ts})
	}

	if fields["live"] == "true" {
		n.Flags.Live = true
	}
	if fields["archival"] == "true" {
		n.Flags.Archival = true
	}

	if v, ok := fields["sort"]; ok && v != "" {
		n.Sort = append(n.Sort, constraint.SortPattern{Field: v, Descending: fields["sort-desc"] == "true"})
	}
	if v, ok := fields["pagesize"]; ok {
		if ps, err := strconv.Atoi(v); err == nil && ps > 0 {
			n.PageSize = ps
		}
	}
	if v, ok := fields["start"]; ok {
		if st, err := strconv.Atoi(v); err == nil && st >= 0 {
			n.Start = st
		}
	}

	return n, nil
}

func parseTimestampText(s string) (primitive.Timestamp, error) {
	secs, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, gerrors.Wrap(gerrors.Lexical, "bad timestamp", err)
	}
	return primitive.NewTimestamp(secs, 0), nil
}

// matches evaluates n against p, the runtime counterpart of
// internal/constraint's declarative Node: every predicate on the node
// (and, recursively, every Or branch) must accept for the primitive to
// match.
func matches(n *constraint.Node, p primitive.Primitive) bool {
	if n == nil {
		return true
	}
	if n.Flags.False {
		return false
	}
	if n.Flags.Live && !p.Flags().Live() {
		return false
	}
	if n.Flags.Archival && !p.Flags().Archival() {
		return false
	}

	for _, tb := range n.Timestamp {
		if !matchesTimestamp(tb, p.Timestamp()) {
			return false
		}
	}

	for _, gp := range n.GUIDPredicates {
		ep, ok := p.Endpoint(gp.Linkage)
		if !ok || ep != gp.Equals {
			return false
		}
	}

	for _, lp := range n.LinkagePredicates {
		ep, ok := p.Endpoint(lp.Linkage)
		if !ok || ep != lp.Value {
			return false
		}
	}

	for _, sp := range n.StringPredicates {
		var field string
		if sp.OnName {
			field = string(p.Name())
		} else {
			field = string(p.Value())
		}
		if sp.HasPrefix {
			if len(field) < len(sp.Prefix) || field[:len(sp.Prefix)] != sp.Prefix {
				return false
			}
		} else if sp.Equals != "" && field != sp.Equals {
			return false
		}
	}

	if len(n.Or) > 0 {
		any := false
		for _, sub := range n.Or {
			if matches(sub, p) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}

	return true
}

func matchesTimestamp(tb constraint.TimestampBound, ts primitive.Timestamp) bool {
	switch tb.Op {
	case primitive.OpLess:
		return ts < tb.Value
	case primitive.OpLessEqual:
		return ts <= tb.Value
	case primitive.OpEqual:
		return ts == tb.Value
	case primitive.OpGreaterEqual:
		return ts >= tb.Value
	case primitive.OpGreater:
		return ts > tb.Value
	case primitive.OpNotEqual:
		return ts != tb.Value
	default:
		return true
	}
}

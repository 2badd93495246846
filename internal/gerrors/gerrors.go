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

// Package gerrors collects graphd's error kinds into one tagged
// enumeration rather than a scatter of sentinel values and OS errnos.
package gerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error the way §7 of the spec groups them: protocol
// errors surfaced to the requester, control-flow results that are never
// logged as failures, storage-level conditions, and systemic faults.
type Code int

const (
	// Lexical marks malformed input.
	Lexical Code = iota
	// Syntax marks well-formed input that is semantically disallowed.
	Syntax
	// Semantics marks a request that parses but can't be satisfied as written.
	Semantics
	// No means "no matching result" — expected, often local.
	No
	// More means budget exhausted — always local, never surfaced.
	More
	// BadCursor means a cursor was stale or mistyped.
	BadCursor
	// TooManyMatches means a query produced more results than permitted.
	TooManyMatches
	// TooLarge means a iterator side or constraint grew past its bound.
	TooLarge
	// TooSmall means a constraint could never match anything.
	TooSmall
	// Busy means a storage resource (typically a lock) is held elsewhere.
	Busy
	// StaleLock means a lock file was found but its owner is gone.
	StaleLock
	// Corrupt means the on-disk store failed an integrity check.
	Corrupt
	// IODrop means a connection died mid-operation.
	IODrop
)

func (c Code) String() string {
	switch c {
	case Lexical:
		return "LEXICAL"
	case Syntax:
		return "SYNTAX"
	case Semantics:
		return "SEMANTICS"
	case No:
		return "NO"
	case More:
		return "MORE"
	case BadCursor:
		return "BADCURSOR"
	case TooManyMatches:
		return "TOO-MANY-MATCHES"
	case TooLarge:
		return "TOO-LARGE"
	case TooSmall:
		return "TOO-SMALL"
	case Busy:
		return "BUSY"
	case StaleLock:
		return "STALE-LOCK"
	case Corrupt:
		return "CORRUPT"
	case IODrop:
		return "IO-DROP"
	default:
		return fmt.Sprintf("CODE(%d)", int(c))
	}
}

// Error pairs a Code with the underlying cause, if any.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap builds an *Error around an existing error.
func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Msg: msg, Err: err}
}

// Is reports whether err carries the given Code.
func Is(err error, code Code) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code == code
	}
	return false
}

// CodeOf extracts the Code from err, defaulting to Semantics for
// errors that were never tagged (a bug site to fix, not to hide).
func CodeOf(err error) Code {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return Semantics
}

// Silent reports whether err is expected control flow that must not be
// logged at error level — MORE and NO per spec.md §9.
func Silent(err error) bool {
	c := CodeOf(err)
	return c == More || c == No
}

// Sentinel singletons for the hottest paths (budget exhaustion and
// not-found), so callers can compare with errors.Is without allocating.
var (
	ErrMore = New(More, "budget exhausted")
	ErrNo   = New(No, "no matching result")
)

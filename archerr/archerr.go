// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package archerr implements the closed error-kind taxonomy used throughout
// the archive volume I/O core: Success, Minor, Fatal, EndOfArchive, and
// OutOfMemory (spec §7). It is modeled on the teacher's errors package but
// trimmed to this module's closed kind set and without the Vanadium
// (v.io/v23/verror) RPC-boundary translation the teacher uses, which has no
// analog here.
package archerr

import (
	"fmt"
	"strings"
)

// Kind is the closed taxonomy of error severities a volume I/O operation can
// return.
type Kind int

const (
	// Success indicates no error. Operations that succeed return a nil
	// error, never a *Error of kind Success; the constant exists so Kind
	// values can be compared and logged uniformly.
	Success Kind = iota
	// Minor indicates recoverable per-record corruption: a header or
	// payload checksum mismatch, or an archive-id mismatch on a mid-stream
	// record. The caller may skip the affected record and continue.
	Minor
	// Fatal indicates I/O failure, unrecognizable magic after a bounded
	// scan, EOF while expecting data, volume-number mismatch,
	// format-version mismatch, or user abort.
	Fatal
	// EndOfArchive indicates a clean terminal footer (lastvol=true) was
	// observed. Not an error in the conventional sense.
	EndOfArchive
	// OutOfMemory indicates a buffer-growth failure. Callers typically
	// treat this the same as Fatal.
	OutOfMemory
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Minor:
		return "minor"
	case Fatal:
		return "fatal"
	case EndOfArchive:
		return "end of archive"
	case OutOfMemory:
		return "out of memory"
	default:
		return "unknown error kind"
	}
}

// Separator is inserted between chained errors in error messages.
var Separator = ":\n\t"

// Error is the error type returned by every package in this module. It
// carries a Kind plus an optional chain of causes, gob/json friendly enough
// for the CLI to print but otherwise opaque.
type Error struct {
	Kind Kind
	Args []interface{}
}

// E constructs an *Error. Any argument that is itself an error is appended
// to the chain. The first Kind argument found sets the Kind; if none is
// given, Kind defaults to Fatal (errors are assumed fatal unless a caller
// explicitly marks them Minor/EndOfArchive/OutOfMemory).
func E(args ...interface{}) *Error {
	e := &Error{Kind: Fatal}
	kindSet := false
	for _, arg := range args {
		switch v := arg.(type) {
		case Kind:
			if !kindSet {
				e.Kind = v
				kindSet = true
			}
		default:
			e.Args = append(e.Args, arg)
		}
	}
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", e.Kind)
	for _, a := range e.Args {
		b.WriteString(Separator)
		fmt.Fprintf(&b, "%v", a)
	}
	return b.String()
}

// Unwrap supports errors.Is/errors.As against a wrapped cause, if one of the
// Args is an error.
func (e *Error) Unwrap() error {
	for _, a := range e.Args {
		if err, ok := a.(error); ok {
			return err
		}
	}
	return nil
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	ae, ok := err.(*Error)
	if !ok {
		return false
	}
	return ae.Kind == kind
}

// KindOf returns the Kind of err, or Fatal if err is not an *Error (any
// unrecognized error from a lower layer, e.g. the standard library, is
// treated as fatal).
func KindOf(err error) Kind {
	if err == nil {
		return Success
	}
	if ae, ok := err.(*Error); ok {
		return ae.Kind
	}
	return Fatal
}

// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package vlog provides simple level logging for the archive volume I/O
// core. Log output is implemented by an outputter, which by default
// outputs to Go's standard logging package. Alternative implementations
// can provide their own Outputter so CLI and library output stay unified.
package vlog

import (
	"fmt"
	"os"
)

// An Outputter provides a destination for leveled log output.
type Outputter interface {
	// Level returns the level at which the outputter is accepting
	// messages.
	Level() Level
	// Output writes the provided message to the outputter at the
	// provided calldepth and level. The message is dropped if the
	// outputter is not logging at the desired level.
	Output(calldepth int, level Level, s string) error
}

var out Outputter = gologOutputter{}

// SetOutputter installs a new outputter, returning the old one.
// SetOutputter should not be called concurrently with log output, and is
// thus suitable to be called only upon program initialization.
func SetOutputter(newOut Outputter) Outputter {
	old := out
	out = newOut
	return old
}

// GetOutputter returns the current outputter.
func GetOutputter() Outputter {
	return out
}

// At returns whether the logger is currently logging at the provided level.
func At(level Level) bool {
	return level <= out.Level()
}

// A Level is a log verbosity level. Increasing levels decrease in priority
// and increase in verbosity: if the outputter logs at level L, every
// message with level M <= L is emitted.
type Level int

const (
	// Off never outputs messages.
	Off = Level(-3)
	// Error outputs error messages (minor/fatal archive errors).
	Error = Level(-2)
	// Info outputs informational messages: volume open/close, split
	// rollover. This is the default level.
	Info = Level(0)
	// Debug outputs per-record tracing: magic scan iterations, cache
	// growth, block checksum results.
	Debug = Level(1)
)

func (l Level) String() string {
	switch l {
	case Off:
		return "off"
	case Error:
		return "error"
	case Info:
		return "info"
	case Debug:
		return "debug"
	default:
		if l < 0 {
			panic("vlog: invalid level")
		}
		return fmt.Sprintf("debug%d", l)
	}
}

func (l Level) Print(v ...interface{}) {
	if At(l) {
		_ = out.Output(2, l, fmt.Sprint(v...))
	}
}

func (l Level) Printf(format string, v ...interface{}) {
	if At(l) {
		_ = out.Output(2, l, fmt.Sprintf(format, v...))
	}
}

// Print logs at Info level.
func Print(v ...interface{}) {
	if At(Info) {
		_ = out.Output(2, Info, fmt.Sprint(v...))
	}
}

// Printf logs at Info level.
func Printf(format string, v ...interface{}) {
	if At(Info) {
		_ = out.Output(2, Info, fmt.Sprintf(format, v...))
	}
}

// Fatal logs at Error level then calls os.Exit(1).
func Fatal(v ...interface{}) {
	_ = out.Output(2, Error, fmt.Sprint(v...))
	os.Exit(1)
}

// Fatalf logs at Error level then calls os.Exit(1).
func Fatalf(format string, v ...interface{}) {
	_ = out.Output(2, Error, fmt.Sprintf(format, v...))
	os.Exit(1)
}

// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package vlog

import (
	"flag"
	"fmt"
	"io"
	golog "log"
	"sync/atomic"
)

var golevel = Info

var called int32

// AddFlags adds a "-log" flag (off, error, info, debug) to the given flag
// set, defaulting to flag.CommandLine. Call before flag.Parse.
func AddFlags(fs *flag.FlagSet) {
	if fs == nil {
		fs = flag.CommandLine
	}
	if atomic.AddInt32(&called, 1) != 1 {
		Error.Printf("vlog.AddFlags: called twice")
		return
	}
	fs.Var(new(logFlag), "log", "set log level (off, error, info, debug)")
}

const (
	Ldate         = golog.Ldate
	Ltime         = golog.Ltime
	Lmicroseconds = golog.Lmicroseconds
	Llongfile     = golog.Llongfile
	Lshortfile    = golog.Lshortfile
	LUTC          = golog.LUTC
	LstdFlags     = Ldate | Ltime
)

// SetFlags sets the output flags of the underlying standard logger.
func SetFlags(flags int) { golog.SetFlags(flags) }

// SetOutput sets the output destination of the underlying standard logger.
func SetOutput(w io.Writer) { golog.SetOutput(w) }

// SetLevel sets the log level for the standard-logger-backed outputter.
// Call once at the start of main.
func SetLevel(level Level) { golevel = level }

type logFlag string

func (f logFlag) String() string { return string(f) }

func (f *logFlag) Set(level string) error {
	var l Level
	switch level {
	case "off":
		l = Off
	case "error":
		l = Error
	case "info":
		l = Info
	case "debug":
		l = Debug
	default:
		return fmt.Errorf("vlog: invalid level %q", level)
	}
	golevel = l
	return nil
}

func (logFlag) Get() interface{} { return golevel }

type gologOutputter struct{}

func (gologOutputter) Level() Level { return golevel }

func (gologOutputter) Output(calldepth int, level Level, s string) error {
	if golevel < level {
		return nil
	}
	return golog.Output(calldepth+1, s)
}

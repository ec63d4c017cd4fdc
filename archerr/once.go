// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package archerr

import (
	"sync"
	"sync/atomic"
)

// Once captures at most one error, and latches the writer/reader into a
// terminal state: per spec §7, once a writer hits an error all subsequent
// operations return fatal.
//
// A zero Once is ready to use.
type Once struct {
	mu  sync.Mutex
	err atomic.Value // stores error
}

// Err returns the first non-nil error passed to Set, or nil. Calling Err is
// cheap and safe to call from any goroutine.
func (o *Once) Err() error {
	v := o.err.Load()
	if v == nil {
		return nil
	}
	return v.(error)
}

// Set records err as the terminal error if none has been recorded yet. Only
// the first error is kept; subsequent calls are ignored.
func (o *Once) Set(err error) {
	if err == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err.Load() == nil {
		o.err.Store(err)
	}
}

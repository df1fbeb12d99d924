// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package oom implements the last-resort out-of-memory dump (spec.md
// §4.8, C8): when the host allocator reports a failure, BreakGlass
// releases a standing reserve so the process has room to act, and Dump
// forks the process so the parent can fail the original allocation
// immediately while a child renders a final flame graph of whatever
// was live at the moment of failure.
//
// This package only builds on Linux, matching the POSIX fork
// assumption already recorded for the per-thread registry (spec.md
// §9, decided open question 3).
package oom

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/ra2003/filprofiler/internal/diag"
	"github.com/ra2003/filprofiler/internal/report"
	"github.com/ra2003/filprofiler/internal/tracker"
)

// largeAllocationThreshold is the size, in bytes, above which a live
// host-stack allocation is considered worth freeing to make room for
// the child's own dump work (spec.md §4.8).
const largeAllocationThreshold = 300_000

// childExitCode is the status both the parent and the child exit with
// after a break-glass dump, mirroring the original implementation's
// use of a distinctive, non-zero code callers can recognize in a
// process-exit handler.
const childExitCode = 5

// Renderer is re-exported so callers assembling an oom.Dump invocation
// need only import this package.
type Renderer = report.Renderer

// BreakGlass releases the tracker's emergency reserve. Call it as soon
// as the host allocator reports failure, before attempting any further
// allocation on the failing thread.
func BreakGlass(t *tracker.Tracker) {
	t.ReleaseReserve()
}

// Dump forks the process and produces a final "out-of-memory" flame
// graph from the child, then terminates the whole process tree: the
// host process is already unable to make forward progress, so neither
// copy returns control to any caller. If the fork itself fails, Dump
// logs the failure and returns without dumping, with lock still held
// by the caller. It mirrors the reference
// implementation's fork/exit protocol exactly: the parent exits first
// to shed every other OS thread, while the child frees enough large,
// attributed allocations to have working room, writes
// out-of-memory.{prof,svg,-reversed.svg} from the current (non-peak)
// view, and only then exits.
//
// lock must be the same mutex that guards every other access to t; Dump
// assumes the caller already holds it and keeps holding it across the
// fork, so the child inherits a tracker frozen at the instant of
// failure and never contends with the parent's copy of the lock (fork
// duplicates the address space, not the lock's futex waiters).
//
// freeFn is called once per address FreeLargeHostAllocations forgets,
// so the caller's allocator can actually return that memory to the
// system (e.g. C.free(unsafe.Pointer(addr)) at the cgo boundary);
// without it, forgetting the bookkeeping alone frees no real memory
// and the child gains no working room to render (spec.md §4.8).
func Dump(t *tracker.Tracker, lock sync.Locker, renderer Renderer, dir string, freeFn func(uintptr)) {
	diag.Print("Out of memory. First, we'll try to fork() and exit parent.")
	pid, _, errno := unix.RawSyscall(unix.SYS_FORK, 0, 0, 0)
	if errno != 0 {
		diag.Printf("Failed to fork for out-of-memory dump: %v", errno)
		return
	}
	if pid != 0 {
		// Parent: the child has its own copy of everything it needs,
		// so this whole process (every thread, via exit_group) can be
		// torn down without corrupting anything the child still needs.
		unix.RawSyscall(unix.SYS_EXIT_GROUP, uintptr(childExitCode), 0, 0)
		return
	}

	// Child: a private copy of the whole address space, including t
	// and lock, frozen at the moment of the fork. The child is
	// single-threaded from here on, so the inherited lock can be let
	// go immediately; nothing else will ever contend for it.
	lock.Unlock()
	defer unix.RawSyscall(unix.SYS_EXIT, uintptr(childExitCode), 0, 0)

	diag.Print("Next, we'll free large memory allocations.")
	for _, addr := range t.FreeLargeHostAllocations(largeAllocationThreshold) {
		if freeFn != nil {
			freeFn(addr)
		}
	}

	diag.Print("And now, we'll dump out SVGs. Note that no HTML file will be written.")
	if err := report.Dump(t, renderer, dir, false, "out-of-memory", "Current allocations at out-of-memory time", false); err != nil {
		diag.Printf("Failed to write out-of-memory dump: %v", err)
	}
}

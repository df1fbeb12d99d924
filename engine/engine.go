// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package engine is the single façade (spec.md §4.9, C9) the
// interposition layer and host bridge call into. It composes the
// per-thread call stack registry, the allocation tracker, the
// reporter, and the OOM handler behind one mutex, matching spec.md
// §5's two-layer concurrency model: per-thread stack operations never
// take the tracker lock (they take only the call-stack registry's own
// lock, a read lock once the calling thread is registered); every other
// operation holds the tracker lock for its full duration.
package engine

import (
	"sync"

	"github.com/ra2003/filprofiler/internal/callsite"
	"github.com/ra2003/filprofiler/internal/callstack"
	"github.com/ra2003/filprofiler/internal/oom"
	"github.com/ra2003/filprofiler/internal/report"
	"github.com/ra2003/filprofiler/internal/tracker"
)

// Config configures a new Engine. There is no config-file format
// (spec.md's non-goals exclude a CLI/config surface for the engine
// itself); a host bridge builds one of these directly and passes it to
// New.
type Config struct {
	// DefaultPath is the directory dump_peak and the OOM handler write
	// to when the caller does not supply an explicit path.
	DefaultPath string
	// Renderer produces an SVG flame graph from a collapsed-stack
	// .prof file. Required: every Dump call routes through it.
	Renderer report.Renderer
	// FreeHostAllocation returns one large, forgotten allocation's
	// memory to the host allocator during an OOM dump (spec.md §4.8).
	// The engine itself never allocates or frees host memory; a cgo
	// boundary supplies the real C.free. May be left nil for test
	// harnesses that never drive OnAlloc(0, ...).
	FreeHostAllocation func(addr uintptr)
}

// Engine is the process-wide singleton state spec.md §4.9 describes,
// built as an ordinary value so test harnesses can construct as many
// independent instances as they like (spec.md §8: "multi-instance
// testing... without changing the public interface").
type Engine struct {
	mu       sync.Mutex
	tracker  *tracker.Tracker
	registry *callstack.Registry
	renderer report.Renderer
	freeHost func(addr uintptr)
}

// New builds an Engine from cfg.
func New(cfg Config) *Engine {
	return &Engine{
		tracker:  tracker.New(cfg.DefaultPath),
		registry: callstack.NewRegistry(),
		renderer: cfg.Renderer,
		freeHost: cfg.FreeHostAllocation,
	}
}

// StartCall implements spec.md §4.3 start_call, thread-local only: it
// touches only the calling thread's entry in the registry and never
// takes the tracker lock.
func (e *Engine) StartCall(loc *callsite.FunctionLocation, parentLine, line uint16) {
	e.registry.StartCall(parentLine, callsite.NewSite(callsite.NewID(loc), line))
}

// FinishCall implements spec.md §4.3 finish_call, thread-local only.
func (e *Engine) FinishCall() {
	e.registry.FinishCall()
}

// NewLine implements spec.md §4.3 new_line, thread-local only.
func (e *Engine) NewLine(line uint16) {
	e.registry.NewLine(line)
}

// OnAlloc implements spec.md §4.9 on_alloc. A null address (addr == 0)
// signals an allocation failure: break-glass runs before the lock is
// taken, to avoid deadlocking against whatever thread is already
// holding it, and the dump itself runs with the lock held so the child
// process inherits a frozen, consistent tracker.
func (e *Engine) OnAlloc(addr uintptr, size uint64, line uint16, isMmap bool) {
	if addr == 0 {
		oom.BreakGlass(e.tracker)
		e.mu.Lock()
		oom.Dump(e.tracker, &e.mu, e.renderer, e.tracker.DefaultPath(), e.freeHost)
		// Dump only returns if the fork failed, still holding the lock.
		e.mu.Unlock()
		return
	}

	stack := e.registry.Snapshot().WithLine(line)
	e.mu.Lock()
	defer e.mu.Unlock()
	if isMmap {
		e.tracker.AddAnonMmap(addr, size, stack)
	} else {
		e.tracker.AddAlloc(addr, size, stack)
	}
}

// OnFree implements spec.md §4.9 on_free.
func (e *Engine) OnFree(addr uintptr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracker.FreeAlloc(addr)
}

// OnFreeMmap implements spec.md §4.9 on_free_mmap.
func (e *Engine) OnFreeMmap(addr uintptr, size uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracker.FreeAnonMmap(addr, size)
}

// GetSize implements spec.md §4.9 get_size.
func (e *Engine) GetSize(addr uintptr) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.GetSize(addr)
}

// Reset implements spec.md §4.9 reset: reinitializes both the
// per-thread registry and the tracker, for test harnesses and for a
// host bridge restarting profiling with a new default path.
func (e *Engine) Reset(defaultPath string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracker.Reset(defaultPath)
	e.registry.Reset()
}

// DumpPeak implements spec.md §4.9 dump_peak: writes a dump of the
// peak-memory view to path (or DefaultPath, if path is empty).
func (e *Engine) DumpPeak(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if path == "" {
		path = e.tracker.DefaultPath()
	}
	return report.Dump(e.tracker, e.renderer, path, true, "peak-memory", "Peak Tracked Memory Usage", true)
}

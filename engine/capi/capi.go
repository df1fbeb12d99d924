// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command capi is spec.md §6's C-callable boundary: a thin cgo shim
// exporting the host-bridge and allocator-interposition entry points
// over a single process-wide Engine. cgo only honors //export
// directives inside package main compiled with -buildmode=c-shared or
// c-archive, so this lives as its own main rather than an importable
// library package; main itself does nothing, since the process is
// always driven from the C side once linked in.
//
// Building it requires cgo (CGO_ENABLED=1 and a C toolchain); the
// go:build tag below leaves it out of any build with cgo disabled, so
// the rest of the module still builds without a C toolchain.
//go:build cgo

package main

/*
#include <stddef.h>
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"github.com/ra2003/filprofiler/engine"
	"github.com/ra2003/filprofiler/internal/callsite"
	"github.com/ra2003/filprofiler/internal/report"
)

// global is the process-wide Engine every exported entry point
// forwards to (spec.md §4.9: "the engine is process-wide singleton
// state"). spec.md §6 treats the renderer as an external collaborator
// this boundary never constructs itself; it only adapts to whatever
// SetRenderer installs.
var global *engine.Engine

// installedRenderer lets a host bridge's Go-side wiring (built into
// the same c-shared/c-archive as this package) supply the real
// flame-graph renderer before any dump entry point runs.
var installedRenderer report.Renderer

// rendererAdapter forwards to whatever installedRenderer holds at call
// time, so global can be constructed once at package init, before the
// host bridge has necessarily installed a renderer.
type rendererAdapter struct{}

func (rendererAdapter) Render(collapsedLinesPath, outputSVGPath string, opts report.Options) error {
	return installedRenderer.Render(collapsedLinesPath, outputSVGPath, opts)
}

func init() {
	global = engine.New(engine.Config{
		DefaultPath:        "/tmp",
		Renderer:           rendererAdapter{},
		FreeHostAllocation: freeHostAllocation,
	})
}

// freeHostAllocation returns a forgotten allocation's memory to the C
// allocator during an OOM dump (spec.md §4.8), completing the
// free step the tracker itself can only forget, not perform.
func freeHostAllocation(addr uintptr) {
	C.free(unsafe.Pointer(addr))
}

// SetRenderer installs the flame-graph renderer used by every
// subsequent dump_peak or OOM dump. Call it once, before any other
// exported entry point, from the host bridge's own init code.
func SetRenderer(r report.Renderer) {
	installedRenderer = r
}

// knownLocations keys host FunctionLocation records by the raw
// pointer cgo hands back across the boundary, so repeated start_call
// invocations for the same (filename, function) reuse one identity
// (callsite.ID compares by pointer, spec.md §3).
var knownLocations = make(map[uintptr]*callsite.FunctionLocation)

func locationFor(ptr unsafe.Pointer, filename, function *C.char) *callsite.FunctionLocation {
	key := uintptr(ptr)
	if loc, ok := knownLocations[key]; ok {
		return loc
	}
	loc := &callsite.FunctionLocation{
		Filename: C.GoString(filename),
		Function: C.GoString(function),
	}
	knownLocations[key] = loc
	return loc
}

//export filprofiler_start_call
func filprofiler_start_call(locationPtr unsafe.Pointer, filename, function *C.char, parentLine, line C.ushort) {
	loc := locationFor(locationPtr, filename, function)
	global.StartCall(loc, uint16(parentLine), uint16(line))
}

//export filprofiler_finish_call
func filprofiler_finish_call() {
	global.FinishCall()
}

//export filprofiler_new_line
func filprofiler_new_line(line C.ushort) {
	global.NewLine(uint16(line))
}

//export filprofiler_reset
func filprofiler_reset(defaultPath *C.char) {
	global.Reset(C.GoString(defaultPath))
}

//export filprofiler_on_alloc
func filprofiler_on_alloc(addr C.size_t, size C.size_t, line C.ushort, isMmap C.int) {
	global.OnAlloc(uintptr(addr), uint64(size), uint16(line), isMmap != 0)
}

//export filprofiler_on_free
func filprofiler_on_free(addr C.size_t) {
	global.OnFree(uintptr(addr))
}

//export filprofiler_on_free_mmap
func filprofiler_on_free_mmap(addr C.size_t, size C.size_t) {
	global.OnFreeMmap(uintptr(addr), uint64(size))
}

//export filprofiler_get_size
func filprofiler_get_size(addr C.size_t) C.size_t {
	return C.size_t(global.GetSize(uintptr(addr)))
}

//export filprofiler_dump_peak
func filprofiler_dump_peak(path *C.char) C.int {
	if err := global.DumpPeak(C.GoString(path)); err != nil {
		return 1
	}
	return 0
}

func main() {}

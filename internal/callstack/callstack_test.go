// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package callstack

import (
	"reflect"
	"testing"

	"github.com/ra2003/filprofiler/internal/callsite"
)

func site(filename, function string, line uint16) callsite.Site {
	loc := &callsite.FunctionLocation{Filename: filename, Function: function}
	return callsite.NewSite(callsite.NewID(loc), line)
}

func TestEmptyStackIsNotInPython(t *testing.T) {
	var cs Callstack
	if cs.InPython() {
		t.Error("empty stack should not be InPython")
	}
	if !cs.Empty() {
		t.Error("zero-value stack should be Empty")
	}
}

func TestStartCallParentLineNoopWhenFirstCall(t *testing.T) {
	var cs Callstack
	s1 := site("a", "af", 2)
	cs.StartCall(123, s1)
	if got := cs.Sites(); !reflect.DeepEqual(got, []callsite.Site{s1}) {
		t.Errorf("Sites() = %v, want %v", got, []callsite.Site{s1})
	}
}

func TestStartCallParentLineNoopWhenZero(t *testing.T) {
	var cs Callstack
	s1 := site("a", "af", 2)
	s2 := site("b", "bf", 45)
	cs.StartCall(123, s1)
	cs.StartCall(0, s2)
	want := []callsite.Site{s1, s2}
	if got := cs.Sites(); !reflect.DeepEqual(got, want) {
		t.Errorf("Sites() = %v, want %v", got, want)
	}
}

func TestStartCallOverridesParentLine(t *testing.T) {
	// Literal scenario from spec.md §8 boundary behaviors.
	var cs Callstack
	s1 := site("a", "af", 2)
	s2 := site("b", "bf", 45)
	s3 := site("c", "cf", 6)
	cs.StartCall(0, s1)
	cs.StartCall(10, s2)
	cs.StartCall(12, s3)

	want := []callsite.Site{
		site("a", "af", 10),
		site("b", "bf", 12),
		s3,
	}
	if got := cs.Sites(); !reflect.DeepEqual(got, want) {
		t.Errorf("Sites() = %#v, want %#v", got, want)
	}
}

func TestFinishCallOnEmptyStackIsNoop(t *testing.T) {
	var cs Callstack
	cs.FinishCall()
	if !cs.Empty() {
		t.Error("finishCall on empty stack should remain empty")
	}
}

func TestNewLineOnEmptyStackIsNoop(t *testing.T) {
	var cs Callstack
	cs.NewLine(5)
	if !cs.Empty() {
		t.Error("newLine on empty stack should remain empty")
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	var cs Callstack
	cs.StartCall(0, site("a", "af", 1))
	snap := cs.Snapshot()
	cs.StartCall(0, site("b", "bf", 2))
	if len(snap.Sites()) != 1 {
		t.Errorf("snapshot mutated after later StartCall: %v", snap.Sites())
	}
	if len(cs.Sites()) != 2 {
		t.Errorf("live stack should have grown: %v", cs.Sites())
	}
}

func TestWithLineFoldsLineIntoSnapshotOnly(t *testing.T) {
	var cs Callstack
	cs.StartCall(0, site("a", "af", 1))
	snap := cs.Snapshot()
	folded := snap.WithLine(99)
	if snap.Sites()[0].Line != 1 {
		t.Errorf("WithLine mutated receiver: %v", snap.Sites())
	}
	if folded.Sites()[0].Line != 99 {
		t.Errorf("folded.Sites()[0].Line = %d, want 99", folded.Sites()[0].Line)
	}
}

func TestWithLineNoopOnEmptyOrZeroLine(t *testing.T) {
	var empty Callstack
	if got := empty.WithLine(5); !got.Empty() {
		t.Error("WithLine on empty stack should stay empty")
	}
	var cs Callstack
	cs.StartCall(0, site("a", "af", 1))
	if got := cs.WithLine(0); got.Sites()[0].Line != 1 {
		t.Error("WithLine(0) should be a no-op")
	}
}

// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package interner canonicalizes whole call stacks to dense small
// integer IDs, so the allocation tracker can key its per-stack totals
// by a cheap uint32 instead of hashing a whole stack on every access.
package interner

import (
	"strconv"
	"strings"

	"github.com/ra2003/filprofiler/internal/callsite"
	"github.com/ra2003/filprofiler/internal/callstack"
)

// ID is a dense identifier assigned monotonically from 0. Once
// assigned, an ID never changes meaning for the lifetime of the
// Interner that issued it.
type ID = uint32

// Interner maps distinct Callstack values to IDs. Hashing cost is
// linear in stack depth and paid once per distinct stack; repeated
// allocations from an already-seen stack pay only a map lookup.
type Interner struct {
	nextID    ID
	idByKey   map[string]ID
	stackByID map[ID]callstack.Callstack
}

// New returns an empty Interner.
func New() *Interner {
	return &Interner{
		idByKey:   make(map[string]ID),
		stackByID: make(map[ID]callstack.Callstack),
	}
}

// Intern returns the existing ID for stack, or assigns a new one. When
// a new ID is assigned, onNew is invoked exactly once before Intern
// returns, so a caller (the allocation tracker) can extend its
// per-stack vectors in lock-step, keeping indexing by ID always safe.
func (in *Interner) Intern(stack callstack.Callstack, onNew func()) ID {
	key := encodeKey(stack)
	if id, ok := in.idByKey[key]; ok {
		return id
	}
	id := in.nextID
	in.nextID++
	in.idByKey[key] = id
	in.stackByID[id] = stack
	onNew()
	return id
}

// Reverse returns a read-only view from ID to the Callstack it names,
// for use by the reporter when rendering collapsed stacks.
func (in *Interner) Reverse() map[ID]callstack.Callstack {
	out := make(map[ID]callstack.Callstack, len(in.stackByID))
	for id, stack := range in.stackByID {
		out[id] = stack
	}
	return out
}

// Len returns the number of distinct stacks interned so far, i.e. the
// number of valid IDs (0..Len()-1).
func (in *Interner) Len() int {
	return len(in.stackByID)
}

// encodeKey produces a canonical string key for a Callstack. Go cannot
// use a slice as a map key directly, so each site's function pointer
// bits and line number are encoded into one string; this is paid once
// per distinct stack, not once per allocation.
func encodeKey(stack callstack.Callstack) string {
	sites := stack.Sites()
	if len(sites) == 0 {
		return ""
	}
	var b strings.Builder
	for _, s := range sites {
		b.WriteString(strconv.FormatUint(uint64(functionAddr(s.Function)), 16))
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(s.Line), 10))
		b.WriteByte(';')
	}
	return b.String()
}

// functionAddr returns the bit pattern the host's FunctionLocation
// pointer occupies, used only to build the interner's canonical key.
// The engine never dereferences this value for comparison purposes
// beyond identity.
func functionAddr(id callsite.ID) uintptr {
	return addrOf(id.Location())
}

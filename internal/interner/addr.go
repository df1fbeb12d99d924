// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package interner

import (
	"unsafe"

	"github.com/ra2003/filprofiler/internal/callsite"
)

// addrOf returns the bit pattern of a host-owned FunctionLocation
// pointer. This is the one place the interner looks at the pointer
// value rather than treating callsite.ID as opaque; it never follows
// the pointer to read Filename/Function.
func addrOf(loc *callsite.FunctionLocation) uintptr {
	return uintptr(unsafe.Pointer(loc))
}

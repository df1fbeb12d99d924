// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package diag writes human-readable diagnostic messages to standard
// error with the fixed prefix spec.md §6 mandates. It exists so every
// package that needs to log a swallowed error does so in one
// consistent voice, without pulling in a logging framework the
// teacher repo itself never reaches for.
package diag

import (
	"fmt"
	"os"
)

const prefix = "=fil-profile= "

// Printf writes one prefixed diagnostic line to standard error.
func Printf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}

// Print writes one prefixed diagnostic line to standard error.
func Print(msg string) {
	fmt.Fprintln(os.Stderr, prefix+msg)
}

// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package profreader

import (
	"strings"
	"testing"
)

func TestReadAllParsesFramesAndBytes(t *testing.T) {
	input := "a:1 (af);b:2 (bf) 1000\nc:3 (cf) 234\n"
	lines, err := ReadAll(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}
	if lines[0].Bytes != 1000 || lines[0].Stack() != "a:1 (af);b:2 (bf)" {
		t.Errorf("lines[0] = %+v", lines[0])
	}
	if lines[1].Bytes != 234 {
		t.Errorf("lines[1].Bytes = %d, want 234", lines[1].Bytes)
	}
}

func TestReadAllSkipsBlankLines(t *testing.T) {
	lines, err := ReadAll(strings.NewReader("a:1 (af) 1\n\nb:2 (bf) 2\n"))
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}
}

func TestReadAllRejectsMissingByteCount(t *testing.T) {
	_, err := ReadAll(strings.NewReader("a:1 (af);b:2 (bf)\n"))
	if err == nil {
		t.Fatal("ReadAll() error = nil, want non-nil")
	}
}

func TestReadAllRejectsNonNumericByteCount(t *testing.T) {
	_, err := ReadAll(strings.NewReader("a:1 (af) abc\n"))
	if err == nil {
		t.Fatal("ReadAll() error = nil, want non-nil")
	}
}

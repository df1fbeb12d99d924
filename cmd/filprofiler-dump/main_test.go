// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeProf(t *testing.T, lines ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.prof")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute(%v) error = %v", args, err)
	}
	return buf.String()
}

func TestOverviewSumsBytes(t *testing.T) {
	path := writeProf(t, "a:1 (af) 1000", "b:2 (bf) 234")
	out := run(t, "overview", path)
	if !strings.Contains(out, "bytes  1234") {
		t.Errorf("overview output = %q, want it to contain total bytes 1234", out)
	}
}

func TestTopLimitsAndSorts(t *testing.T) {
	path := writeProf(t, "a:1 (af) 100", "b:2 (bf) 9000", "c:3 (cf) 500")
	out := run(t, "top", path, "-n", "2")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 { // header + 2 rows
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "9000") {
		t.Errorf("first data row = %q, want it to lead with 9000", lines[1])
	}
}

func TestStacksFiltersBySubstring(t *testing.T) {
	path := writeProf(t, "a:1 (af) 1", "b:2 (bf) 2")
	out := run(t, "stacks", path, "--filter", "bf")
	if strings.Contains(out, "af") {
		t.Errorf("stacks --filter=bf output = %q, should not contain af", out)
	}
	if !strings.Contains(out, "bf") {
		t.Errorf("stacks --filter=bf output = %q, want it to contain bf", out)
	}
}

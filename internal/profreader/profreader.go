// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package profreader reads back the .prof collapsed-stack text format
// spec.md §6 defines (one "<frames> <bytes>" record per line), for
// tools that inspect a dump after the fact instead of driving the
// engine directly.
package profreader

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Line is one decoded .prof record: the call frames, outermost first,
// and the byte total attributed to that exact stack.
type Line struct {
	Frames []string
	Bytes  uint64
}

// Stack joins Frames back into the ';'-separated form they appear in
// on disk.
func (l Line) Stack() string {
	return strings.Join(l.Frames, ";")
}

// ReadAll decodes every record in r. A malformed line (missing the
// trailing byte count, or a non-numeric one) is a hard error: unlike
// the engine's own write path, a reader has no sensible way to recover
// a corrupted record.
func ReadAll(r io.Reader) ([]Line, error) {
	var lines []Line
	scanner := bufio.NewScanner(r)
	// Stack depth is unbounded in principle; grow past bufio's default
	// 64KiB line limit for deeply recursive host stacks.
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if text == "" {
			continue
		}
		sep := strings.LastIndexByte(text, ' ')
		if sep < 0 {
			return nil, fmt.Errorf("profreader: line %d: missing byte count: %q", lineNo, text)
		}
		bytes, err := strconv.ParseUint(text[sep+1:], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("profreader: line %d: invalid byte count: %w", lineNo, err)
		}
		lines = append(lines, Line{
			Frames: strings.Split(text[:sep], ";"),
			Bytes:  bytes,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("profreader: %w", err)
	}
	return lines, nil
}

// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ra2003/filprofiler/internal/diag"
	"github.com/ra2003/filprofiler/internal/tracker"
)

// ErrDumpPathNotDirectory is returned by Dump when the destination
// path exists but is not a directory (spec.md §7: fatal, the caller
// must abort the process).
var ErrDumpPathNotDirectory = errors.New("report: dump path exists and is not a directory")

// Direction mirrors the external renderer's flame-graph orientation
// option (spec.md §6).
type Direction int

// Inverted matches the single direction the engine ever requests:
// stacks grow downward from their root, the convention fil-profile's
// flame graphs use.
const Inverted Direction = 0

// Options configures one call to the external renderer, matching
// spec.md §6's option set exactly.
type Options struct {
	Title             string
	CountName         string // always "bytes"
	FontSize          int
	FontType          string
	FrameHeight       int
	ReverseStackOrder bool
	ColorDiffusion    bool
	Direction         Direction
	PrettyXML         bool
	Subtitle          string // "" means omitted
}

// Renderer is the seam to the external flame-graph SVG renderer
// (spec.md §6): a pure function from a collapsed-stack .prof file to
// an SVG document. The engine is agnostic to its implementation.
type Renderer interface {
	Render(collapsedLinesPath, outputSVGPath string, opts Options) error
}

// Dump writes a collapsed-stack .prof file under dir/basename.prof and
// asks renderer to produce dir/basename.svg and
// dir/basename-reversed.svg. Renderer failures are logged and
// swallowed (the .prof file remains a durable artifact), as is a
// failure to write the .prof file. A dump-path conflict (exists, not a
// directory) returns ErrDumpPathNotDirectory; a failure to stat or
// create the directory is returned as a wrapped error.
func Dump(t *tracker.Tracker, renderer Renderer, dir string, peak bool, basename, title string, postProcessable bool) error {
	diag.Printf("Preparing to write to %s", dir)

	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return ErrDumpPathNotDirectory
	case err == nil:
		// directory already exists, nothing to do
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: creating output directory: %w", err)
		}
	default:
		return fmt.Errorf("report: statting output directory: %w", err)
	}

	rawPath := filepath.Join(dir, basename+".prof")
	if err := writeLines(ToLines(t, peak, postProcessable), rawPath); err != nil {
		diag.Printf("Error writing raw profiling data: %v", err)
	}

	peakBytes := t.PeakTotal()
	renderOnce := func(svgPath string, reversed bool) {
		opts := Options{
			Title:             titleFor(title, peakBytes, reversed),
			CountName:         "bytes",
			FontSize:          16,
			FontType:          "mono",
			FrameHeight:       22,
			ReverseStackOrder: reversed,
			ColorDiffusion:    true,
			Direction:         Inverted,
			PrettyXML:         true,
		}
		if postProcessable {
			opts.Subtitle = "SUBTITLE-HERE"
		}
		if err := renderer.Render(rawPath, svgPath, opts); err != nil {
			diag.Printf("Error writing SVG: %v", err)
			return
		}
		diag.Printf("Wrote memory usage flamegraph to %s", svgPath)
	}

	renderOnce(filepath.Join(dir, basename+".svg"), false)
	renderOnce(filepath.Join(dir, basename+"-reversed.svg"), true)
	return nil
}

func titleFor(title string, peakBytes uint64, reversed bool) string {
	suffix := ""
	if reversed {
		suffix = ", Reversed"
	}
	mib := float64(peakBytes) / (1024 * 1024)
	return fmt.Sprintf("%s%s (%.1f MiB)", title, suffix, mib)
}

func writeLines(lines []string, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return err
	}
	return f.Sync()
}

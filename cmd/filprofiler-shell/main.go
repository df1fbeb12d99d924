// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command filprofiler-shell is an interactive session for exploring a
// single .prof collapsed-stack dump: load it once, then repeatedly
// query it without re-parsing, the way ogle's interactive debugging
// session lets a user poke at one live target.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ra2003/filprofiler/internal/profreader"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <prof-file>\n", os.Args[0])
		os.Exit(2)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	lines, err := profreader.ReadAll(f)
	f.Close()
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "fil> ",
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Fprintf(rl.Stdout(), "Loaded %d stacks from %s. Type 'help' for commands.\n", len(lines), path)

	for {
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}
		err = dispatch(rl.Stdout(), lines, strings.TrimSpace(line))
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(rl.Stderr(), "%v\n", err)
		}
	}
}

func dispatch(w io.Writer, lines []profreader.Line, input string) error {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "help":
		fmt.Fprintln(w, "commands: total, top [n], find <substring>, quit")
	case "total":
		var total uint64
		for _, l := range lines {
			total += l.Bytes
		}
		fmt.Fprintf(w, "%d bytes across %d stacks\n", total, len(lines))
	case "top":
		n := 10
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil {
				return fmt.Errorf("top: %w", err)
			}
			n = v
		}
		printTop(w, lines, n)
	case "find":
		if len(fields) < 2 {
			return errors.New("find: needs a substring argument")
		}
		printFiltered(w, lines, fields[1])
	case "quit", "exit":
		return io.EOF
	default:
		fmt.Fprintf(w, "unknown command %q; type 'help'\n", fields[0])
	}
	return nil
}

func printTop(w io.Writer, lines []profreader.Line, n int) {
	sorted := append([]profreader.Line(nil), lines...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Bytes > sorted[j].Bytes })
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	for _, l := range sorted {
		fmt.Fprintf(w, "%10d  %s\n", l.Bytes, l.Stack())
	}
}

func printFiltered(w io.Writer, lines []profreader.Line, substr string) {
	for _, l := range lines {
		if strings.Contains(l.Stack(), substr) {
			fmt.Fprintf(w, "%10d  %s\n", l.Bytes, l.Stack())
		}
	}
}

// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command filprofiler-dump inspects a .prof collapsed-stack file
// (spec.md §6) already written by the engine, without needing the
// external SVG renderer.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ra2003/filprofiler/internal/profreader"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "filprofiler-dump",
		Short: "Inspect .prof collapsed-stack dumps written by the profiling engine",
	}
	root.AddCommand(newOverviewCmd())
	root.AddCommand(newTopCmd())
	root.AddCommand(newStacksCmd())
	return root
}

func loadLines(path string) ([]profreader.Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return profreader.ReadAll(f)
}

func newOverviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overview <prof-file>",
		Short: "Print total bytes and distinct stack count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := loadLines(args[0])
			if err != nil {
				return err
			}
			var total uint64
			for _, l := range lines {
				total += l.Bytes
			}
			t := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 1, ' ', 0)
			fmt.Fprintf(t, "stacks\t%d\n", len(lines))
			fmt.Fprintf(t, "bytes\t%d\n", total)
			fmt.Fprintf(t, "MiB\t%.1f\n", float64(total)/(1<<20))
			return t.Flush()
		},
	}
}

func newTopCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "top <prof-file>",
		Short: "Print the n stacks attributed the most bytes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := loadLines(args[0])
			if err != nil {
				return err
			}
			sort.Slice(lines, func(i, j int) bool { return lines[i].Bytes > lines[j].Bytes })
			if n < len(lines) {
				lines = lines[:n]
			}
			t := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 1, ' ', tabwriter.AlignRight)
			fmt.Fprintf(t, "bytes\t stack\n")
			for _, l := range lines {
				fmt.Fprintf(t, "%d\t %s\n", l.Bytes, l.Stack())
			}
			return t.Flush()
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 10, "number of stacks to print")
	return cmd
}

func newStacksCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "stacks <prof-file>",
		Short: "List every collapsed stack, optionally filtered by substring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := loadLines(args[0])
			if err != nil {
				return err
			}
			for _, l := range lines {
				stack := l.Stack()
				if filter != "" && !strings.Contains(stack, filter) {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", stack, l.Bytes)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "only print stacks containing this substring")
	return cmd
}

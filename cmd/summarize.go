// Copyright 2020 The Cockroach Authors.
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.
package cmd

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachlabs/perf-report/internal/perflog"
	"github.com/cockroachlabs/perf-report/internal/perfstat"
	"github.com/cockroachlabs/perf-report/internal/summary"
	"github.com/spf13/cobra"
)

// summarizeCmd represents the summarize command
var summarizeCmd = &cobra.Command{
	Use:   "summarize <file>",
	Short: "Prints statistics over the elapsed times of a results table",
	Long:  `Reads a TSV written by "times" or a CSV written by "collect" and summarizes its elapsed times`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return summarize(args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
}

func summarize(p string, w io.Writer) error {
	values, err := readElapsed(p)
	if err != nil {
		return errors.Wrapf(err, "reading %s", p)
	}
	s, err := summary.Describe(values)
	if err != nil {
		return err
	}
	return s.Write(w)
}

func readElapsed(p string) ([]float64, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(p), ".csv") {
		raw, err := perfstat.ReadElapsed(f)
		if err != nil {
			return nil, err
		}
		return summary.ParseValues(raw)
	}

	table, err := perflog.ReadTSV(f)
	if err != nil {
		return nil, err
	}
	values := make([]float64, 0, table.Len())
	for _, c := range table.Cases() {
		values = append(values, c.Elapsed)
	}
	return values, nil
}

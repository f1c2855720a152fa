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
	"os"

	"github.com/cockroachdb/errors"
	"github.com/cockroachlabs/perf-report/internal/perflog"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type timesConfig struct {
	LogFile string
	Out     string
}

// timesCmd represents the times command
var timesCmd = &cobra.Command{
	Use:   "times",
	Short: "Extracts elapsed times from an aggregated perf log",
	Long:  `Reads the log written by "run" and produces a TSV of elapsed seconds per test file`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return extractTimes(timesConfig{
			LogFile: viper.GetString(configKey(cmd, "log")),
			Out:     viper.GetString(configKey(cmd, "out")),
		})
	},
}

func init() {
	timesCmd.Flags().StringP("log", "l", "perf_output_log.txt", "aggregated perf stat log")
	timesCmd.Flags().StringP("out", "o", "test_cases_time.tsv", "TSV file to write")
	bindFlags(timesCmd)
	rootCmd.AddCommand(timesCmd)
}

func extractTimes(cfg timesConfig) (err error) {
	in, err := os.Open(cfg.LogFile)
	if err != nil {
		return err
	}
	defer in.Close()

	table, err := perflog.ExtractTimes(in)
	if err != nil {
		return errors.Wrapf(err, "analyzing %s", cfg.LogFile)
	}

	f, err := createOutput(cfg.Out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := table.WriteTSV(f); err != nil {
		return err
	}

	log.Printf("The test cases and their time elapsed have been saved in %q (%d rows)", cfg.Out, table.Len())
	return nil
}

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
	"context"

	"github.com/cockroachlabs/perf-report/internal/perflog"
	"github.com/cockroachlabs/perf-report/internal/runner"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type runConfig struct {
	Dir     string
	Suffix  string
	Command string
	Shell   string
	Workers int
	Out     string
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs perf stat on every input and writes an aggregated log",
	Long: `Executes the profiling command once per input file and appends its output
to a single log, one "=== Output for test file:" section per input`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBenchmarks(cmd.Context(), runConfig{
			Dir:     viper.GetString(configKey(cmd, "dir")),
			Suffix:  viper.GetString(configKey(cmd, "suffix")),
			Command: viper.GetString(configKey(cmd, "command")),
			Shell:   viper.GetString(configKey(cmd, "shell")),
			Workers: viper.GetInt(configKey(cmd, "workers")),
			Out:     viper.GetString(configKey(cmd, "out")),
		})
	},
}

func init() {
	runCmd.Flags().StringP("dir", "d", "file-dimacs-aim/", "directory containing benchmark inputs")
	runCmd.Flags().String("suffix", "", "only inputs whose name ends with this suffix are used")
	runCmd.Flags().StringP("command", "c", "perf stat ./solver", "command to run; each input is passed on stdin")
	runCmd.Flags().String("shell", "sh", "shell used to run the command")
	runCmd.Flags().IntP("workers", "w", 1, "number of inputs profiled concurrently")
	runCmd.Flags().StringP("out", "o", "perf_output_log.txt", "aggregated log to write")
	bindFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func runBenchmarks(ctx context.Context, cfg runConfig) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	paths, err := runner.ListInputs(cfg.Dir, cfg.Suffix)
	if err != nil {
		return err
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

	r := &runner.Runner{Command: cfg.Command, Shell: cfg.Shell, Workers: cfg.Workers}
	for _, res := range r.RunAll(ctx, paths) {
		if !res.Ran() {
			continue
		}
		// The output of a failing command is kept; it usually explains the failure.
		if err := perflog.WriteSection(f, res.Path, res.Output); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Printf("Wrote output of %d inputs to %s", len(paths), cfg.Out)
	return nil
}

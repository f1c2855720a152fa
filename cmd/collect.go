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
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachlabs/perf-report/internal/perfstat"
	"github.com/cockroachlabs/perf-report/internal/runner"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// What to do with a file whose output lacks one of the metrics.
const (
	onMissingFail = "fail"
	onMissingSkip = "skip"
)

type collectConfig struct {
	Dir       string
	Suffix    string
	Command   string
	Shell     string
	Workers   int
	DebugOut  string
	Out       string
	OnMissing string
}

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Runs perf stat on every input and writes cache metrics to CSV",
	Long: `Executes the profiling command once per input file, saves the raw output
and extracts elapsed time and L1/LLC cache metrics into a CSV file`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return collectMetrics(cmd.Context(), collectConfig{
			Dir:       viper.GetString(configKey(cmd, "dir")),
			Suffix:    viper.GetString(configKey(cmd, "suffix")),
			Command:   viper.GetString(configKey(cmd, "command")),
			Shell:     viper.GetString(configKey(cmd, "shell")),
			Workers:   viper.GetInt(configKey(cmd, "workers")),
			DebugOut:  viper.GetString(configKey(cmd, "debug-out")),
			Out:       viper.GetString(configKey(cmd, "out")),
			OnMissing: viper.GetString(configKey(cmd, "on-missing")),
		})
	},
}

func init() {
	collectCmd.Flags().StringP("dir", "d", "file-dimacs-aim/", "directory containing benchmark inputs")
	collectCmd.Flags().String("suffix", ".cnf", "only inputs whose name ends with this suffix are used")
	collectCmd.Flags().StringP("command", "c", "perf stat -d -d -d ./solver",
		"command to run; each input is passed on stdin")
	collectCmd.Flags().String("shell", "sh", "shell used to run the command")
	collectCmd.Flags().IntP("workers", "w", 1, "number of inputs profiled concurrently")
	collectCmd.Flags().String("debug-out", "output.txt", "file receiving the raw command output")
	collectCmd.Flags().StringP("out", "o", "metrics_output.csv", "CSV file to write")
	collectCmd.Flags().String("on-missing", onMissingFail,
		fmt.Sprintf("what to do when a metric is missing from the output: %s or %s", onMissingFail, onMissingSkip))
	bindFlags(collectCmd)
	rootCmd.AddCommand(collectCmd)
}

func collectMetrics(ctx context.Context, cfg collectConfig) error {
	if cfg.OnMissing != onMissingFail && cfg.OnMissing != onMissingSkip {
		return errors.Newf("invalid --on-missing value %q", cfg.OnMissing)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	paths, err := runner.ListInputs(cfg.Dir, cfg.Suffix)
	if err != nil {
		return err
	}
	log.Printf("Profiling %d inputs from %s", len(paths), cfg.Dir)

	r := &runner.Runner{Command: cfg.Command, Shell: cfg.Shell, Workers: cfg.Workers}
	results := r.RunAll(ctx, paths)
	if err := writeDump(cfg.DebugOut, results); err != nil {
		return err
	}

	table, err := analyzeOutputs(results, cfg.OnMissing)
	if err != nil {
		return err
	}
	if err := writeMetrics(cfg.Out, table); err != nil {
		return err
	}
	log.Printf("Metrics have been written to %s", cfg.Out)
	return nil
}

// analyzeOutputs extracts metrics from every successful invocation.
func analyzeOutputs(results []runner.Result, onMissing string) (*perfstat.Table, error) {
	table := perfstat.NewTable()
	for _, res := range results {
		if res.Failed() {
			log.WithError(res.Err).Warnf("Skipping %s: command failed", res.Name)
			continue
		}
		m, err := perfstat.Parse(res.Name, res.Output)
		if err != nil {
			if onMissing == onMissingSkip && errors.Is(err, perfstat.ErrMetricNotFound) {
				log.WithError(err).Warnf("Skipping %s", res.Name)
				continue
			}
			return nil, errors.Wrapf(err, "analyzing output of %s", res.Name)
		}
		table.Add(m)
	}
	return table, nil
}

func writeDump(p string, results []runner.Result) (err error) {
	f, err := createOutput(p)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return runner.WriteDump(f, results)
}

func writeMetrics(p string, table *perfstat.Table) (err error) {
	f, err := createOutput(p)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return table.WriteCSV(f)
}

// Copyright 2020 The Cockroach Authors.
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.

// Package runner executes the profiling command once per input file.
package runner

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"k8s.io/client-go/util/workqueue"
)

// Sentinel replaces the output of an invocation that failed.
const Sentinel = "error"

// Runner runs Command through Shell with each input file as stdin.
type Runner struct {
	Command string
	Shell   string
	// Workers bounds the number of concurrent invocations. Values below 1
	// mean sequential execution.
	Workers int
}

// Result is the outcome of running the command against one file.
type Result struct {
	Name   string
	Path   string
	Output string
	Err    error

	ran bool
}

// Ran reports whether the command was started for this file. Inputs left
// over after cancellation never run.
func (r Result) Ran() bool {
	return r.ran
}

// Failed reports whether the invocation exited abnormally.
func (r Result) Failed() bool {
	return r.Err != nil
}

// DumpText is the text recorded for r in the debug dump.
func (r Result) DumpText() string {
	if r.Failed() {
		return Sentinel
	}
	return r.Output
}

// ListInputs returns the files in dir whose names end in suffix, sorted by
// name. Symlinks are followed; directories and dangling links are skipped.
func ListInputs(dir, suffix string) ([]string, error) {
	infos, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", dir)
	}
	var paths []string
	for _, info := range infos {
		if !strings.HasSuffix(info.Name(), suffix) {
			continue
		}
		p := filepath.Join(dir, info.Name())
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Stat(p)
			if err != nil {
				log.WithError(err).Warnf("Skipping %s: cannot follow link", p)
				continue
			}
			info = target
		}
		if info.IsDir() {
			continue
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// Run executes the command with the file at path as stdin and returns the
// combined stdout and stderr.
func (r *Runner) Run(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	shell := r.Shell
	if shell == "" {
		shell = "sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", r.Command)
	cmd.Stdin = f
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), errors.Wrapf(err, "running %q < %s", r.Command, path)
	}
	return string(out), nil
}

// RunAll runs the command against every path. Results are returned in the
// order of paths; a failed invocation does not affect the others.
func (r *Runner) RunAll(ctx context.Context, paths []string) []Result {
	results := make([]Result, len(paths))
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	workqueue.ParallelizeUntil(ctx, workers, len(paths), func(i int) {
		path := paths[i]
		log.WithField("file", path).Debugf("Executing command: %s", r.Command)
		out, err := r.Run(ctx, path)
		if err != nil {
			log.WithError(err).Warnf("Command failed for %s", path)
		}
		results[i] = Result{
			Name:   filepath.Base(path),
			Path:   path,
			Output: out,
			Err:    err,
			ran:    true,
		}
	})
	// Pieces skipped after cancellation are left empty.
	for i := range results {
		if results[i].ran {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = errors.New("command not run")
		}
		results[i] = Result{
			Name: filepath.Base(paths[i]),
			Path: paths[i],
			Err:  err,
		}
	}
	return results
}

// WriteDump writes the raw output of every result, prefixed with the file
// name. Failed invocations are recorded as Sentinel.
func WriteDump(w io.Writer, results []Result) error {
	for _, res := range results {
		if _, err := fmt.Fprintf(w, "%s \n %s \n ", res.Name, res.DumpText()); err != nil {
			return errors.Wrapf(err, "cannot write output of %s", res.Name)
		}
	}
	return nil
}

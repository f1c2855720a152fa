// Copyright 2020 The Cockroach Authors.
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.

// Package perfstat extracts cache metrics from the text printed by
// `perf stat -d -d -d`.
//
// perf prints one counter per line, with an optional comment after a '#':
//
//	   123,456,789      L1-dcache-loads           #  456.789 M/sec      (50.00%)
//	     1,234,567      L1-dcache-load-misses     #    1.00% of all L1-dcache accesses  (50.00%)
//	       123,456      LLC-loads                 #    1.234 M/sec      (50.00%)
//
// Splitting the text on '#' yields fragments that start with the comment of
// one counter and end with the value and label of the next one. Metrics are
// located by their token offset within the fragment ending in their label.
package perfstat

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// Counter labels as printed by perf.
const (
	LabelL1DcacheLoads      = "L1-dcache-loads"
	LabelL1DcacheLoadMisses = "L1-dcache-load-misses"
	LabelLLCLoads           = "LLC-loads"
	LabelElapsed            = "seconds time elapsed"
)

// ErrMetricNotFound is returned when the output lacks a required metric.
var ErrMetricNotFound = errors.New("metric not found")

// MetricNotFoundError names the metric that could not be located.
type MetricNotFoundError struct {
	Label string
}

func (e *MetricNotFoundError) Error() string {
	return "metric not found: " + e.Label
}

// Is makes errors.Is(err, ErrMetricNotFound) hold.
func (e *MetricNotFoundError) Is(target error) bool {
	return target == ErrMetricNotFound
}

var elapsedRegex = regexp.MustCompile(`\d+\.\d+ seconds time elapsed`)

// Metrics is one row of the metrics table. Values are kept exactly as perf
// printed them.
type Metrics struct {
	Filename           string
	SecondsTimeElapsed string
	L1DcacheLoads      string
	L1DcacheLoadMisses string
	// LLCLoadsPct is the comment value preceding the LLC-loads counter, which
	// is the L1-dcache miss ratio in perf's default layout.
	LLCLoadsPct string
}

// Segments indexes the '#'-separated fragments of the output by their last
// token. Later fragments replace earlier ones with the same label.
func Segments(text string) map[string][]string {
	segments := make(map[string][]string)
	pieces := strings.Split(text, "#")
	for _, piece := range pieces[1:] {
		fields := strings.Fields(piece)
		if len(fields) == 0 {
			continue
		}
		segments[fields[len(fields)-1]] = fields
	}
	return segments
}

// Parse extracts the four metrics from the output of a single perf run.
func Parse(filename, text string) (Metrics, error) {
	m := Metrics{Filename: filename}

	match := elapsedRegex.FindString(text)
	if match == "" {
		return Metrics{}, &MetricNotFoundError{Label: LabelElapsed}
	}
	m.SecondsTimeElapsed = strings.Fields(match)[0]

	segments := Segments(text)
	var err error
	if m.L1DcacheLoads, err = secondToLast(segments, LabelL1DcacheLoads); err != nil {
		return Metrics{}, err
	}
	if m.L1DcacheLoadMisses, err = secondToLast(segments, LabelL1DcacheLoadMisses); err != nil {
		return Metrics{}, err
	}

	fields, ok := segments[LabelLLCLoads]
	if !ok || len(fields) < 2 {
		return Metrics{}, &MetricNotFoundError{Label: LabelLLCLoads}
	}
	// Strip the trailing '%'.
	pct := []rune(fields[0])
	m.LLCLoadsPct = string(pct[:len(pct)-1])
	return m, nil
}

func secondToLast(segments map[string][]string, label string) (string, error) {
	fields, ok := segments[label]
	if !ok || len(fields) < 2 {
		return "", &MetricNotFoundError{Label: label}
	}
	return fields[len(fields)-2], nil
}

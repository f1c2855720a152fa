// Copyright 2020 The Cockroach Authors.
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.

// Package summary computes descriptive statistics over elapsed times.
package summary

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/montanaflynn/stats"
)

// Stats describes a set of elapsed times, in seconds.
type Stats struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	Median float64
	P90    float64
	Stddev float64
}

// Describe computes Stats over values.
func Describe(values []float64) (Stats, error) {
	if len(values) == 0 {
		return Stats{}, errors.New("no values to summarize")
	}
	data := stats.Float64Data(values)
	s := Stats{Count: len(values)}
	var err error
	if s.Min, err = data.Min(); err != nil {
		return Stats{}, errors.Wrap(err, "min")
	}
	if s.Max, err = data.Max(); err != nil {
		return Stats{}, errors.Wrap(err, "max")
	}
	if s.Mean, err = data.Mean(); err != nil {
		return Stats{}, errors.Wrap(err, "mean")
	}
	if s.Median, err = data.Median(); err != nil {
		return Stats{}, errors.Wrap(err, "median")
	}
	if s.P90, err = data.Percentile(90); err != nil {
		return Stats{}, errors.Wrap(err, "p90")
	}
	if s.Stddev, err = data.StandardDeviation(); err != nil {
		return Stats{}, errors.Wrap(err, "stddev")
	}
	return s, nil
}

// ParseValues converts raw elapsed tokens to floats.
func ParseValues(raw []string) ([]float64, error) {
	values := make([]float64, 0, len(raw))
	for _, r := range raw {
		v, err := strconv.ParseFloat(strings.TrimSpace(r), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "error parsing %q", r)
		}
		values = append(values, v)
	}
	return values, nil
}

// Write prints s as aligned name/value lines.
func (s Stats) Write(w io.Writer) error {
	lines := []struct {
		name  string
		value string
	}{
		{"count", fmt.Sprintf("%d", s.Count)},
		{"min", fmt.Sprintf("%f", s.Min)},
		{"max", fmt.Sprintf("%f", s.Max)},
		{"mean", fmt.Sprintf("%f", s.Mean)},
		{"median", fmt.Sprintf("%f", s.Median)},
		{"p90", fmt.Sprintf("%f", s.P90)},
		{"stddev", fmt.Sprintf("%f", s.Stddev)},
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%-8s%s\n", l.name, l.value); err != nil {
			return err
		}
	}
	return nil
}

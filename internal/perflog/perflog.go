// Copyright 2020 The Cockroach Authors.
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.

// Package perflog reads and writes the aggregated perf stat log, where the
// output of every test file is appended under a section header.
package perflog

import (
	"bufio"
	"fmt"
	"io"
	"io/ioutil"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// SectionDelimiter starts every test case section in the aggregated log.
const SectionDelimiter = "=== Output for test file:"

const elapsedMarker = "seconds time elapsed"

// TSVHeader is the first line of the test case timing table.
const TSVHeader = "Test Case\tTime Elapsed (seconds)"

// ErrMalformedSection is returned when a section has no test file name.
var ErrMalformedSection = errors.New("malformed log section")

// TestCase is the elapsed wall time of a single test file.
type TestCase struct {
	Name    string
	Elapsed float64
}

// TimeTable holds test cases in the order they were first seen. Adding a name
// that is already present replaces its value in place.
type TimeTable struct {
	cases []TestCase
	index map[string]int
}

// NewTimeTable returns an empty table.
func NewTimeTable() *TimeTable {
	return &TimeTable{index: make(map[string]int)}
}

// Add records elapsed for name.
func (t *TimeTable) Add(name string, elapsed float64) {
	if i, ok := t.index[name]; ok {
		t.cases[i].Elapsed = elapsed
		return
	}
	t.index[name] = len(t.cases)
	t.cases = append(t.cases, TestCase{Name: name, Elapsed: elapsed})
}

// Cases returns the recorded test cases.
func (t *TimeTable) Cases() []TestCase {
	return t.cases
}

// Len returns the number of recorded test cases.
func (t *TimeTable) Len() int {
	return len(t.cases)
}

// ExtractTimes parses an aggregated log and collects the elapsed time of every
// section that reports one. Sections without an elapsed line are skipped.
func ExtractTimes(r io.Reader) (*TimeTable, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading log")
	}

	table := NewTimeTable()
	sections := strings.Split(string(b), SectionDelimiter)
	// Everything before the first delimiter is preamble.
	for i, section := range sections[1:] {
		name, elapsed, ok, err := parseSection(section)
		if err != nil {
			return nil, errors.Wrapf(err, "section %d", i+1)
		}
		if !ok {
			continue
		}
		table.Add(name, elapsed)
	}
	return table, nil
}

func parseSection(section string) (name string, elapsed float64, ok bool, err error) {
	lines := strings.Split(section, "\n")
	name = strings.Split(strings.TrimSpace(lines[0]), " ")[0]
	if name == "" {
		return "", 0, false, errors.Wrapf(ErrMalformedSection, "no test file name in %q", lines[0])
	}

	for _, line := range lines {
		if !strings.Contains(line, elapsedMarker) {
			continue
		}
		fields := strings.Fields(line)
		elapsed, err = strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return "", 0, false, errors.Wrapf(err, "error parsing elapsed time for %s", name)
		}
		return name, elapsed, true, nil
	}
	return name, 0, false, nil
}

// WriteTSV writes the table with its header, one row per test case.
func (t *TimeTable) WriteTSV(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s\n", TSVHeader); err != nil {
		return errors.Wrap(err, "cannot write tsv header")
	}
	for _, c := range t.cases {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", c.Name, formatSeconds(c.Elapsed)); err != nil {
			return errors.Wrapf(err, "cannot write row for %s", c.Name)
		}
	}
	return nil
}

// formatSeconds renders f the way the existing timing sheets hold it: the
// shortest decimal that round-trips, always with a fraction or exponent, and
// in exponent form below 1e-4 or from 1e16 up.
func formatSeconds(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case f == 0:
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	e := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:])
	if err != nil || exp < -4 || exp >= 16 {
		return e
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ReadTSV reads a table written by WriteTSV.
func ReadTSV(r io.Reader) (*TimeTable, error) {
	table := NewTimeTable()
	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			if line != TSVHeader {
				return nil, errors.Newf("unexpected tsv header %q", line)
			}
			continue
		}
		if line == "" {
			continue
		}
		pieces := strings.Split(line, "\t")
		if len(pieces) != 2 {
			return nil, errors.Newf("expected 2 fields, found %d: %q", len(pieces), line)
		}
		elapsed, err := strconv.ParseFloat(pieces[1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "error parsing %q", pieces[1])
		}
		table.Add(pieces[0], elapsed)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading tsv")
	}
	return table, nil
}

// WriteSection appends the output of one test file to an aggregated log.
func WriteSection(w io.Writer, name, output string) error {
	_, err := fmt.Fprintf(w, "%s %s ===\n%s\n\n", SectionDelimiter, name, output)
	return err
}

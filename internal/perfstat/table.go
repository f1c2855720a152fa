// Copyright 2020 The Cockroach Authors.
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.
package perfstat

import (
	"encoding/csv"
	"io"
	"sort"

	"github.com/cockroachdb/errors"
)

// CSVHeader lists the columns written by Table.WriteCSV.
var CSVHeader = []string{
	"Filename",
	"Seconds time elapsed",
	"L1-dcache loads",
	"L1-dcache load misses",
	"% of all L1-dcache accesses",
}

// Table collects one Metrics row per input file.
type Table struct {
	rows map[string]Metrics
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{rows: make(map[string]Metrics)}
}

// Add stores m, replacing any earlier row for the same file.
func (t *Table) Add(m Metrics) {
	t.rows[m.Filename] = m
}

// Rows returns the rows sorted by filename.
func (t *Table) Rows() []Metrics {
	rows := make([]Metrics, 0, len(t.rows))
	for _, m := range t.rows {
		rows = append(rows, m)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Filename < rows[j].Filename
	})
	return rows
}

// WriteCSV writes the header followed by the sorted rows, with CRLF line
// endings.
func (t *Table) WriteCSV(w io.Writer) error {
	wr := csv.NewWriter(w)
	wr.UseCRLF = true
	if err := wr.Write(CSVHeader); err != nil {
		return errors.Wrap(err, "cannot write metrics header to csv")
	}
	for _, m := range t.Rows() {
		fields := []string{
			m.Filename,
			m.SecondsTimeElapsed,
			m.L1DcacheLoads,
			m.L1DcacheLoadMisses,
			m.LLCLoadsPct,
		}
		if err := wr.Write(fields); err != nil {
			return errors.Wrapf(err, "cannot write metrics for %s", m.Filename)
		}
	}
	wr.Flush()
	return wr.Error()
}

// ReadElapsed returns the elapsed seconds column of a CSV written by WriteCSV.
func ReadElapsed(r io.Reader) ([]string, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading metrics csv")
	}
	if len(records) == 0 {
		return nil, errors.New("empty metrics csv")
	}
	values := make([]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != len(CSVHeader) {
			return nil, errors.Newf("expected %d fields, found %d", len(CSVHeader), len(rec))
		}
		values = append(values, rec[1])
	}
	return values, nil
}

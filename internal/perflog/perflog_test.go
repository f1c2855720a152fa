// Copyright 2020 The Cockroach Authors.
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.
package perflog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

const perfSection = ` Performance counter stats for './solver':

              3.21 msec task-clock                #    0.870 CPUs utilized
                 0      context-switches          #    0.000 /sec

       0.003689446 seconds time elapsed

       0.003521000 seconds user
       0.000000000 seconds sys
`

func section(name, body string) string {
	var b bytes.Buffer
	_ = WriteSection(&b, name, body)
	return b.String()
}

func TestExtractTimes(t *testing.T) {
	log := "Executing tests\n" +
		section("file-dimacs-aim/aim-50-1_6-yes1-1.cnf", perfSection) +
		section("file-dimacs-aim/aim-100-2_0-no-1.cnf", strings.Replace(perfSection, "0.003689446", "1.250000000", 1))

	table, err := ExtractTimes(strings.NewReader(log))
	require.NoError(t, err)
	require.Equal(t, []TestCase{
		{Name: "file-dimacs-aim/aim-50-1_6-yes1-1.cnf", Elapsed: 0.003689446},
		{Name: "file-dimacs-aim/aim-100-2_0-no-1.cnf", Elapsed: 1.25},
	}, table.Cases())
}

func TestExtractTimesSkipsSectionsWithoutElapsed(t *testing.T) {
	log := section("a.cnf", "Segmentation fault\n") + section("b.cnf", perfSection)

	table, err := ExtractTimes(strings.NewReader(log))
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	require.Equal(t, "b.cnf", table.Cases()[0].Name)
}

func TestExtractTimesEmpty(t *testing.T) {
	table, err := ExtractTimes(strings.NewReader("no sections here\n"))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, table.WriteTSV(&out))
	require.Equal(t, TSVHeader+"\n", out.String())
}

func TestExtractTimesLastWriteWins(t *testing.T) {
	log := section("a.cnf", perfSection) +
		section("b.cnf", perfSection) +
		section("a.cnf", strings.Replace(perfSection, "0.003689446", "2.5", 1))

	table, err := ExtractTimes(strings.NewReader(log))
	require.NoError(t, err)
	require.Equal(t, []TestCase{
		{Name: "a.cnf", Elapsed: 2.5},
		{Name: "b.cnf", Elapsed: 0.003689446},
	}, table.Cases())
}

func TestExtractTimesMalformed(t *testing.T) {
	testCases := []struct {
		name string
		log  string
		is   error
	}{
		{
			name: "missing name",
			log:  SectionDelimiter + "   \n 1.0 seconds time elapsed\n",
			is:   ErrMalformedSection,
		},
		{
			name: "bad number",
			log:  section("a.cnf", "  1,5 seconds time elapsed\n"),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ExtractTimes(strings.NewReader(tc.log))
			require.Error(t, err)
			if tc.is != nil {
				require.True(t, errors.Is(err, tc.is), "%v", err)
			}
		})
	}
}

func TestTSVRoundTrip(t *testing.T) {
	table := NewTimeTable()
	table.Add("a.cnf", 0.5)
	table.Add("b.cnf", 12)

	var out bytes.Buffer
	require.NoError(t, table.WriteTSV(&out))
	require.Equal(t, "Test Case\tTime Elapsed (seconds)\na.cnf\t0.5\nb.cnf\t12.0\n", out.String())

	read, err := ReadTSV(&out)
	require.NoError(t, err)
	require.Equal(t, table.Cases(), read.Cases())
}

func TestWriteTSVFloatFormat(t *testing.T) {
	testCases := []struct {
		elapsed float64
		want    string
	}{
		{2, "2.0"},
		{0, "0.0"},
		{0.003689446, "0.003689446"},
		{0.0001, "0.0001"},
		{1e-05, "1e-05"},
		{1.5e-07, "1.5e-07"},
		{1234567, "1234567.0"},
		{1e16, "1e+16"},
	}
	for _, tc := range testCases {
		table := NewTimeTable()
		table.Add("a.cnf", tc.elapsed)

		var out bytes.Buffer
		require.NoError(t, table.WriteTSV(&out))
		require.Equal(t, TSVHeader+"\na.cnf\t"+tc.want+"\n", out.String())

		read, err := ReadTSV(&out)
		require.NoError(t, err)
		require.Equal(t, tc.elapsed, read.Cases()[0].Elapsed)
	}
}

func TestReadTSVBadHeader(t *testing.T) {
	_, err := ReadTSV(strings.NewReader("name,value\n"))
	require.Error(t, err)
}

func TestWriteSection(t *testing.T) {
	require.Equal(t,
		"=== Output for test file: dir/a.cnf ===\nout\n\n\n",
		section("dir/a.cnf", "out\n"))
}

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
	"bytes"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

// Output of `perf stat -d -d -d ./solver < aim-50-1_6-yes1-1.cnf`.
const perfOutput = `s SATISFIABLE

 Performance counter stats for './solver':

              3.21 msec task-clock                       #    0.870 CPUs utilized
                 0      context-switches                 #    0.000 /sec
                 0      cpu-migrations                   #    0.000 /sec
               131      page-faults                      #   40.810 K/sec
        10,432,118      cycles                           #    3.250 GHz                         (61.23%)
        12,902,554      instructions                     #    1.24  insn per cycle              (86.54%)
         3,118,470      L1-dcache-loads                  #  971.486 M/sec                       (86.54%)
            87,412      L1-dcache-load-misses            #    2.80% of all L1-dcache accesses   (86.54%)
            12,011      LLC-loads                        #    3.742 M/sec                       (38.77%)
             1,024      LLC-load-misses                  #    8.53% of all LL-cache accesses    (38.77%)

       0.003689446 seconds time elapsed

       0.003521000 seconds user
       0.000000000 seconds sys
`

func TestParse(t *testing.T) {
	m, err := Parse("aim-50-1_6-yes1-1.cnf", perfOutput)
	require.NoError(t, err)
	require.Equal(t, Metrics{
		Filename:           "aim-50-1_6-yes1-1.cnf",
		SecondsTimeElapsed: "0.003689446",
		L1DcacheLoads:      "3,118,470",
		L1DcacheLoadMisses: "87,412",
		LLCLoadsPct:        "2.80",
	}, m)
}

func TestParseMissingMetric(t *testing.T) {
	testCases := []struct {
		name  string
		text  string
		label string
	}{
		{"sentinel", "error", LabelElapsed},
		{"no elapsed", strings.Replace(perfOutput, "seconds time elapsed", "", 1), LabelElapsed},
		{"no loads", strings.Replace(perfOutput, "L1-dcache-loads ", "L1-icache-loads ", 1), LabelL1DcacheLoads},
		{"no misses", strings.Replace(perfOutput, "L1-dcache-load-misses", "L1-icache-load-misses", 1), LabelL1DcacheLoadMisses},
		{"no llc", strings.Replace(perfOutput, "LLC-loads ", "LLC-stores ", 1), LabelLLCLoads},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse("a.cnf", tc.text)
			require.True(t, errors.Is(err, ErrMetricNotFound), "%v", err)

			var notFound *MetricNotFoundError
			require.True(t, errors.As(err, &notFound))
			require.Equal(t, tc.label, notFound.Label)
		})
	}
}

func TestSegments(t *testing.T) {
	segments := Segments("head # a b label1 # c d label2 ## e label1")
	require.Equal(t, map[string][]string{
		"label1": {"e", "label1"},
		"label2": {"c", "d", "label2"},
	}, segments)
}

func TestTableWriteCSV(t *testing.T) {
	table := NewTable()
	table.Add(Metrics{Filename: "b.cnf", SecondsTimeElapsed: "0.2", L1DcacheLoads: "2", L1DcacheLoadMisses: "1", LLCLoadsPct: "50.00"})
	table.Add(Metrics{Filename: "a.cnf", SecondsTimeElapsed: "0.1", L1DcacheLoads: "1,000", L1DcacheLoadMisses: "10", LLCLoadsPct: "1.00"})

	var out bytes.Buffer
	require.NoError(t, table.WriteCSV(&out))
	require.Equal(t,
		"Filename,Seconds time elapsed,L1-dcache loads,L1-dcache load misses,% of all L1-dcache accesses\r\n"+
			"a.cnf,0.1,\"1,000\",10,1.00\r\n"+
			"b.cnf,0.2,2,1,50.00\r\n",
		out.String())

	elapsed, err := ReadElapsed(&out)
	require.NoError(t, err)
	require.Equal(t, []string{"0.1", "0.2"}, elapsed)
}

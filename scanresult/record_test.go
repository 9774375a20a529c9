/*
Copyright (c) The bwauth Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package scanresult

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLineHappyPath(t *testing.T) {
	line := "node_id=$ABCDEF nick=rainbowwarrior strm_bw=500 filt_bw=1000 ns_bw=800 desc_bw=1000"
	rec, err := ParseLine(line, "3", 1319822504)
	require.NoError(t, err)
	require.Equal(t, "ABCDEF", rec.IDHex)
	require.Equal(t, "rainbowwarrior", rec.Nick)
	require.EqualValues(t, 500, rec.StrmBW)
	require.EqualValues(t, 1000, rec.FiltBW)
	require.EqualValues(t, 800, rec.NsBW)
	require.EqualValues(t, 1000, rec.DescBW)
	require.Equal(t, "3", rec.SliceID)
}

func TestParseLineMissingKeyFailsLineOnly(t *testing.T) {
	line := "node_id=$ABCDEF nick=rainbowwarrior strm_bw=500 filt_bw=1000 ns_bw=800"
	_, err := ParseLine(line, "3", 1319822504)
	require.Error(t, err)
}

func TestParseLineBadIntegerFails(t *testing.T) {
	line := "node_id=$ABCDEF nick=x strm_bw=notanumber filt_bw=1000 ns_bw=800 desc_bw=1000"
	_, err := ParseLine(line, "3", 1319822504)
	require.Error(t, err)
}

func TestParseLineIgnoresUnknownKeys(t *testing.T) {
	line := "node_id=$ABCDEF nick=x strm_bw=1 filt_bw=2 ns_bw=3 desc_bw=4 rtt=123 extra=yes"
	rec, err := ParseLine(line, "3", 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, rec.StrmBW)
}

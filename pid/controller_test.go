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

package pid

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/torbw/bwauth/relay"
)

func TestBase10RoundZero(t *testing.T) {
	require.EqualValues(t, 1, Base10Round(0))
}

func TestBase10RoundScenarioOne(t *testing.T) {
	// spec scenario 1: new_bw = 1000 rounds to bw = 1.
	require.EqualValues(t, 1, Base10Round(1000))
}

func TestBase10RoundIdempotent(t *testing.T) {
	x := 1234567.0
	r1 := Base10Round(x)
	require.EqualValues(t, 1230, r1)
	r2 := Base10Round(float64(r1) * 1000)
	require.Equal(t, r1, r2)
}

func TestBase10RoundNeverZeroForNonZeroInput(t *testing.T) {
	require.EqualValues(t, 1, Base10Round(1))
	require.EqualValues(t, 1, Base10Round(499))
}

func oneSampleState(strm, filt, ns, desc int64, ts float64) *relay.State {
	s := relay.NewState("ID", "nick")
	s.StrmBW = []int64{strm}
	s.FiltBW = []int64{filt}
	s.NsBW = []int64{ns}
	s.DescBW = []int64{desc}
	s.Timestamps = []float64{ts}
	idx := 0
	s.ChosenSBW = &idx
	s.ChosenFBW = &idx
	return s
}

func TestSelectRatioTiesPreferFiltered(t *testing.T) {
	// spec scenario 1: sbw_ratio == fbw_ratio == 1.0, the tie falls to
	// the filtered branch ("otherwise: use filtered").
	s := oneSampleState(500, 1000, 800, 1000, 42)
	avgs := relay.Averages{TrueStrmAvg: 500, TrueFiltAvg: 1000}

	SelectRatio(s, avgs)

	require.Equal(t, 1.0, s.Ratio)
	require.NotNil(t, s.BWIdx)
	require.Equal(t, 0, *s.BWIdx)
	require.Equal(t, 0.0, s.PIDError)
	require.Equal(t, 42.0, s.ChosenTime)

	newBW := DisabledBandwidth(s)
	require.Equal(t, 1000.0, newBW)
	require.EqualValues(t, 1, Base10Round(newBW))
}

func TestSelectRatioUsesFilteredWhenStreamRatioSmaller(t *testing.T) {
	s := oneSampleState(100, 1000, 800, 1000, 1)
	avgs := relay.Averages{TrueStrmAvg: 1000, TrueFiltAvg: 1000}

	SelectRatio(s, avgs)

	require.InDelta(t, 0.1, s.SBWRatio, 1e-9)
	require.InDelta(t, 1.0, s.FBWRatio, 1e-9)
	require.InDelta(t, 1.0, s.Ratio, 1e-9) // fbw smaller than sbw_ratio is false; sbw_ratio(0.1) < fbw_ratio(1.0), not >, so filtered wins
}

func TestPIDBandwidthNoErrorLeavesNsBWUnchanged(t *testing.T) {
	s := oneSampleState(1000, 1000, 2000, 1000, 10)
	idx := 0
	s.BWIdx = &idx
	s.PIDError = 0
	s.ErrorSum = 0
	s.PrevVotedAt = 0

	bw := PIDBandwidth(s, GuardPeriod)
	require.Equal(t, 2000.0, bw)
}

func TestUpdateControlStateNoPriorIntegratesFromZero(t *testing.T) {
	s := oneSampleState(1000, 1000, 2000, 1000, 1000)
	idx := 0
	s.BWIdx = &idx
	s.ChosenTime = 1000
	s.PIDError = 0.5

	UpdateControlState(s, nil)

	require.Equal(t, 0.0, s.PrevError)
	require.Equal(t, 0.0, s.PrevVotedAt)
	require.InDelta(t, 0.5*1000/GuardPeriod, s.ErrorSum, 1e-9)
}

func TestUpdateControlStateWithPriorIntegratesFromPriorSum(t *testing.T) {
	s := oneSampleState(1000, 1000, 2000, 1000, 2000)
	idx := 0
	s.BWIdx = &idx
	s.ChosenTime = 2000
	s.PIDError = 0.1
	prior := &relay.PriorVote{PIDError: 0.2, VoteTime: 900, ErrorSum: 0.01, MeasuredAt: 1000}

	UpdateControlState(s, prior)

	require.Equal(t, 0.2, s.PrevError)
	require.Equal(t, 900.0, s.PrevVotedAt)
	require.InDelta(t, 0.01+0.1*(2000-1000)/GuardPeriod, s.ErrorSum, 1e-9)
}

func TestFinalizeChange(t *testing.T) {
	s := oneSampleState(1000, 1000, 2000, 1500, 1)
	idx := 0
	s.BWIdx = &idx
	s.NewBW = 1700

	FinalizeChange(s)

	require.Equal(t, 200.0, s.Change)
}

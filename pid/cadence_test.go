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

const day = 24 * 3600.0

func zeroErrorState(nsBW int64, chosenTime float64) *relay.State {
	s := oneSampleState(nsBW, nsBW, nsBW, nsBW, chosenTime)
	idx := 0
	s.BWIdx = &idx
	s.ChosenTime = chosenTime
	s.PIDError = 0
	s.ErrorSum = 0
	s.PrevVotedAt = 0
	s.PrevError = 0
	return s
}

func TestNodeSampleRateFallsBackWhenNoContinuity(t *testing.T) {
	rate := NodeSampleRate(nil, nil, func(string) bool { return false })
	require.Equal(t, GuardPeriod/4, rate)
}

func TestNodeSampleRateAveragesNonGuardOnly(t *testing.T) {
	s1 := zeroErrorState(1000, 100*day)
	s1.IDHex = "A"
	s2 := zeroErrorState(1000, 120*day)
	s2.IDHex = "B"
	guard := zeroErrorState(1000, 200*day)
	guard.IDHex = "G"

	priors := map[string]*relay.PriorVote{
		"A": {MeasuredAt: 90 * day},  // delta 10 days
		"B": {MeasuredAt: 110 * day}, // delta 10 days
		"G": {MeasuredAt: 50 * day},  // delta 150 days, but guard, excluded
	}
	isGuard := func(idhex string) bool { return idhex == "G" }

	rate := NodeSampleRate([]*relay.State{s1, s2, guard}, priors, isGuard)
	require.InDelta(t, 10*day, rate, 1e-6)
}

func TestCadenceGuardBlend(t *testing.T) {
	// spec scenario 4.
	s := zeroErrorState(2000, 10*day)
	prior := &relay.PriorVote{BW: 1000, VoteTime: int64(7 * day)} // 3 days ago

	Cadence(s, prior, true, true, 0.6, 0.1, 1*day, int64(10*day))

	require.InDelta(t, 1400.0, s.NewBW, 1e-6)
}

func TestCadenceGuardFullFeedbackOnStalePrior(t *testing.T) {
	// spec scenario 5: prior vote age > 2.5 weeks triggers full feedback.
	s := zeroErrorState(2000, 30*day)
	prior := &relay.PriorVote{BW: 1000, VoteTime: int64(5 * day)} // 25 days ago > GuardPeriod (14d)

	Cadence(s, prior, true, false, 0, 1.0, 1*day, int64(30*day))

	require.InDelta(t, 2000.0, s.NewBW, 1e-6)
}

func TestCadenceGuardFullFeedbackOnMissingPrior(t *testing.T) {
	s := zeroErrorState(2000, 1*day)

	Cadence(s, nil, true, false, 0, 1.0, 0.1*day, int64(1*day))

	require.InDelta(t, 2000.0, s.NewBW, 1e-6)
}

func TestCadenceNonGuardFullFeedback(t *testing.T) {
	s := zeroErrorState(3000, 10*day)
	prior := &relay.PriorVote{BW: 1000, VoteTime: int64(5 * day)}

	Cadence(s, prior, false, false, 0, 0, 1*day, int64(10*day))

	require.InDelta(t, 3000.0, s.NewBW, 1e-6)
}

func TestCadenceStaleCooldownReusesPrior(t *testing.T) {
	// spec scenario 6.
	s := zeroErrorState(5000, 10*day)
	prior := &relay.PriorVote{BW: 1234, VoteTime: int64(9.9 * day)}

	Cadence(s, prior, false, false, 0, 0, 1*day, int64(10*day))

	require.Equal(t, 1234.0, s.NewBW)
	require.Equal(t, prior.VoteTime, s.VoteTime)
}

func TestCadenceCooldownWithNoPriorIgnores(t *testing.T) {
	s := zeroErrorState(5000, 1*day)

	Cadence(s, nil, false, false, 0, 0, 10*day, int64(1*day))

	require.True(t, s.Ignore)
}

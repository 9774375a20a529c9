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

// Package pid implements the per-relay feedback controller: proportional,
// integral and derivative terms of the error between a relay's measured
// throughput and the network average, paced by guard-aware cooldown and
// blending against the prior vote. The control-loop shape (drift carried
// across samples, an init/locked progression) is grounded on the PI servo
// in package servo; the arithmetic itself is domain-specific.
package pid

import (
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/torbw/bwauth/relay"
)

const (
	// Kp, Ti, Td are the tunable PID constants. Ti is expressed in
	// samples-to-correct-steady-state, Td in fractional samples.
	Kp = 1.0
	Ti = 4.0
	Td = 0.5

	Ki = Kp / Ti
	Kd = Kp * Td

	// GuardPeriod is the time scale guard-flagged relays are paced to:
	// the interval over which clients reselect entry relays.
	GuardPeriod = 14 * 24 * 3600.0
)

// tunables holds the live Kp/Ki/Kd in effect. It starts at the built-in
// constants above and is only ever overridden once, at process startup,
// by SetTunables — never mid-round.
var tunables = struct{ Kp, Ki, Kd float64 }{Kp: Kp, Ki: Ki, Kd: Kd}

// SetTunables overrides the live PID constants, e.g. from an operator's
// config file. ti and td are in the same units as the spec constants
// Ti and Td; ki and kd are derived the same way the built-in constants
// are.
func SetTunables(kp, ti, td float64) {
	tunables.Kp = kp
	tunables.Ki = kp / ti
	tunables.Kd = kp * td
}

// Base10Round collapses v to its top 3 significant decimal digits,
// expressed in units of 1000, to minimize consensus diff churn across
// rounds. It is idempotent: Base10Round(Base10Round(x)*1000) ==
// Base10Round(x) for x >= 1000.
func Base10Round(v float64) int64 {
	if v == 0 {
		log.Debug("pid: base10_round of zero bandwidth, returning floor of 1")
		return 1
	}
	neg := v < 0
	if neg {
		v = -v
	}
	exp := math.Floor(math.Log10(v))
	scale := math.Pow(10, exp-2)
	top3 := math.Round(v/scale) * scale
	result := int64(top3) / 1000
	if result == 0 {
		result = 1
	}
	if neg {
		result = -result
	}
	return result
}

// SelectRatio implements spec §4.4's ratio step: it computes the relay's
// stream and filtered ratios against the network averages and uses the
// stream ratio only when it is strictly greater than the filtered ratio;
// otherwise (including ties) it uses the filtered ratio. The ratio kept
// is therefore the larger of the two. It sets Ratio, SBWRatio, FBWRatio, BWIdx, PIDError
// and ChosenTime on the state. The caller (Select in package relay) must
// have already populated ChosenSBW/ChosenFBW.
func SelectRatio(s *relay.State, avgs relay.Averages) {
	if s.ChosenSBW == nil || s.ChosenFBW == nil {
		return
	}
	sbwRatio := float64(s.StrmBW[*s.ChosenSBW]) / avgs.TrueStrmAvg
	fbwRatio := float64(s.FiltBW[*s.ChosenFBW]) / avgs.TrueFiltAvg
	s.SBWRatio = sbwRatio
	s.FBWRatio = fbwRatio

	var idx int
	if sbwRatio > fbwRatio {
		idx = *s.ChosenSBW
		s.Ratio = sbwRatio
		s.PIDError = (float64(s.StrmBW[idx]) - avgs.TrueStrmAvg) / avgs.TrueStrmAvg
	} else {
		idx = *s.ChosenFBW
		s.Ratio = fbwRatio
		s.PIDError = (float64(s.FiltBW[idx]) - avgs.TrueFiltAvg) / avgs.TrueFiltAvg
	}
	s.BWIdx = &idx
	s.ChosenTime = s.Timestamps[idx]
}

// DisabledBandwidth computes new_bw for the pid_enabled == false path: a
// plain scaling of the descriptor-advertised bandwidth by the relay's
// ratio. No control state carries across rounds in this mode.
func DisabledBandwidth(s *relay.State) float64 {
	return float64(s.DescBW[*s.BWIdx]) * s.Ratio
}

// PIDBandwidth computes pid_bw(dt): ns_bw[bw_idx] scaled by one plus the
// weighted sum of the proportional, integral and derivative terms. It
// reads PIDError, ErrorSum, PrevError, PrevVotedAt and ChosenTime off the
// state, which UpdateControlState must have already populated.
func PIDBandwidth(s *relay.State, dt float64) float64 {
	e := s.PIDError
	integral := s.ErrorSum * GuardPeriod / dt

	var derivative float64
	if s.PrevVotedAt != 0 && s.PrevError != 0 {
		derivative = dt * (e - s.PrevError) / (s.ChosenTime - s.PrevVotedAt)
	}
	s.DErrorDt = derivative

	return float64(s.NsBW[*s.BWIdx]) * (1 + tunables.Kp*e + tunables.Ki*integral + tunables.Kd*derivative)
}

// UpdateControlState folds a relay's prior control state (if any) into
// its current error integral, following spec §4.4. A nil prior is
// treated as "no prior control data": prev_error and prev_voted_at stay
// zero and error_sum integrates fresh from zero, which is exactly what
// invariant 6 requires.
func UpdateControlState(s *relay.State, prior *relay.PriorVote) {
	var priorErrorSum, priorMeasuredAt float64
	if prior != nil {
		s.PrevError = prior.PIDError
		s.PrevVotedAt = float64(prior.VoteTime)
		priorErrorSum = prior.ErrorSum
		priorMeasuredAt = prior.MeasuredAt
	}
	s.ErrorSum = priorErrorSum + s.PIDError*(s.ChosenTime-priorMeasuredAt)/GuardPeriod
}

// FinalizeChange computes the informational change = new_bw - desc_bw
// field once a relay's new_bw has settled, for every control path. A
// relay without a chosen sample (nil BWIdx) keeps its Change as is.
func FinalizeChange(s *relay.State) {
	if s.BWIdx == nil {
		return
	}
	s.Change = s.NewBW - float64(s.DescBW[*s.BWIdx])
}

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
	log "github.com/sirupsen/logrus"

	"github.com/torbw/bwauth/relay"
)

// NodeSampleRate computes NODE_SAMPLE_RATE: the mean time delta between a
// relay's chosen_time and its prior vote's measured_at, over the
// non-guard population. isGuard reports a relay's Guard flag in the prior
// consensus. Relays without a prior vote, or without a chosen sample,
// don't contribute a delta. Falls back to GuardPeriod/4 when no non-guard
// relay has both a chosen sample and a prior vote — the first-ever run,
// or a round with no continuity at all.
func NodeSampleRate(states []*relay.State, priors map[string]*relay.PriorVote, isGuard func(idhex string) bool) float64 {
	var nonGuardSum float64
	var nonGuardCnt int

	for _, s := range states {
		if s.BWIdx == nil {
			continue
		}
		prior, ok := priors[s.IDHex]
		if !ok {
			continue
		}
		if isGuard(s.IDHex) {
			continue
		}
		nonGuardSum += s.ChosenTime - prior.MeasuredAt
		nonGuardCnt++
	}

	if nonGuardCnt == 0 {
		log.Debug("pid: no non-guard relay has continuity this round, falling back to guard_period/4 for node_sample_rate")
		return GuardPeriod / 4
	}
	return nonGuardSum / float64(nonGuardCnt)
}

// Cadence implements spec §4.4's voting cadence and flag-aware blending
// state machine. It assumes PID is enabled, UpdateControlState has
// already run for this relay, and SelectRatio has set BWIdx/ChosenTime.
// It sets NewBW, VoteTime and, when the relay has never voted before and
// is already within its own cooldown window (an edge case that can only
// occur through a misconfigured prior-vote file), Ignore.
func Cadence(s *relay.State, prior *relay.PriorVote, isGuard, isExit bool, wgd, wgg, nodeSampleRate float64, now int64) {
	var priorVoteTime float64
	if prior != nil {
		priorVoteTime = float64(prior.VoteTime)
	}
	sinceLastVote := s.ChosenTime - priorVoteTime

	if sinceLastVote <= nodeSampleRate {
		if prior == nil {
			s.Ignore = true
			log.Warnf("pid: relay %s has no prior vote yet falls inside its own cooldown window, ignoring", s.IDHex)
			return
		}
		s.NewBW = prior.BW
		s.VoteTime = prior.VoteTime
		return
	}

	switch {
	case isGuard && (prior == nil || sinceLastVote > GuardPeriod):
		s.NewBW = PIDBandwidth(s, GuardPeriod)
	case isGuard:
		pidBW := PIDBandwidth(s, nodeSampleRate)
		if isExit {
			s.NewBW = (1-wgd)*pidBW + wgd*prior.BW
		} else {
			s.NewBW = (1-wgg)*pidBW + wgg*prior.BW
		}
	default:
		s.NewBW = PIDBandwidth(s, nodeSampleRate)
	}
	s.VoteTime = now
}

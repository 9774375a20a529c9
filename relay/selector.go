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

package relay

import (
	log "github.com/sirupsen/logrus"
)

// Averages carries the two rounds of network-wide averages spec.md calls
// for: Pre* are diagnostics only (means of each relay's own mean sample);
// True* drive every ratio computation downstream and are means over each
// relay's chosen sample.
type Averages struct {
	PreStrmAvg, PreFiltAvg   float64
	TrueStrmAvg, TrueFiltAvg float64
}

// Select picks, for every relay, the most-recent sample index for both
// stream and filtered bandwidth (ties resolve to the lowest index, which
// State.rebuild already guarantees via deterministic slice ordering),
// then computes both rounds of network averages.
//
// The source carries an alternative "closest to one ratio" heuristic;
// spec.md requires only the most-recent rule, so that's all this
// implements.
func Select(states []*State) Averages {
	if len(states) == 0 {
		return Averages{}
	}

	var preStrmSum, preFiltSum float64
	for _, s := range states {
		preStrmSum += s.AvgStrmBW()
		preFiltSum += s.AvgFiltBW()
		idx := mostRecentIndex(s.Timestamps)
		s.ChosenSBW = idx
		s.ChosenFBW = idx
	}
	avgs := Averages{
		PreStrmAvg: preStrmSum / float64(len(states)),
		PreFiltAvg: preFiltSum / float64(len(states)),
	}
	log.Debugf("relay: network pre_strm_avg=%.2f pre_filt_avg=%.2f", avgs.PreStrmAvg, avgs.PreFiltAvg)

	var trueStrmSum, trueFiltSum float64
	for _, s := range states {
		trueStrmSum += float64(s.StrmBW[*s.ChosenSBW])
		trueFiltSum += float64(s.FiltBW[*s.ChosenFBW])
	}
	avgs.TrueStrmAvg = trueStrmSum / float64(len(states))
	avgs.TrueFiltAvg = trueFiltSum / float64(len(states))
	log.Debugf("relay: network true_strm_avg=%.2f true_filt_avg=%.2f", avgs.TrueStrmAvg, avgs.TrueFiltAvg)

	return avgs
}

// mostRecentIndex returns the index of the largest timestamp, the
// lowest index winning ties.
func mostRecentIndex(timestamps []float64) *int {
	if len(timestamps) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(timestamps); i++ {
		if timestamps[i] > timestamps[best] {
			best = i
		}
	}
	return &best
}

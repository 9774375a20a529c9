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

package vote

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/torbw/bwauth/config"
	"github.com/torbw/bwauth/consensus"
	"github.com/torbw/bwauth/pid"
	"github.com/torbw/bwauth/relay"
)

// maxVoteBW is 2^32 * 1000, the hard ceiling spec.md §4.5 places on any
// single relay's new_bw before the per-network cap is even considered.
var maxVoteBW = math.Pow(2, 32) * 1000

// Summary reports the coverage-gate outcome of one round's reconciliation.
type Summary struct {
	TotNetBW    float64
	Measured    int
	Missed      int
	Clamped     int
	CoveragePct float64
}

// CoverageError signals that too few prior-consensus relays were
// measured this round; spec.md §4.5 step 4 treats this as fatal to the
// round: exit nonzero, emit no vote file.
type CoverageError struct {
	Summary Summary
	MinReport float64
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf("coverage gate failed: measured_pct=%.2f < min_report=%.2f (measured=%d missed=%d)",
		e.Summary.CoveragePct, e.MinReport, e.Summary.Measured, e.Summary.Missed)
}

// Reconcile implements spec.md §4.5 steps 1-4: it marks prior-consensus
// entries as measured, accumulates the network total, applies the
// Authority/IgnoreGuards ignore rules, clamps outliers against the
// absolute and per-node caps, and evaluates the coverage gate. On
// success it returns the round Summary; on coverage failure it returns
// the Summary wrapped in a *CoverageError, and the caller must not write
// a vote file.
func Reconcile(cons *consensus.Consensus, states []*relay.State, cfg config.Config) (Summary, error) {
	var totNetBW float64
	for _, s := range states {
		entry := cons.Lookup(s.IDHex)
		if entry == nil {
			continue
		}
		entry.Measured = true
		totNetBW += s.NewBW
	}

	for _, s := range states {
		entry := cons.Lookup(s.IDHex)
		if entry.HasFlag("Authority") {
			s.Ignore = true
		}
		if cfg.IgnoreGuards && entry.HasFlag("Guard") && !entry.HasFlag("Exit") {
			s.Ignore = true
		}
	}

	cap := totNetBW * cfg.NodeCap
	var clamped int
	for _, s := range states {
		if s.Ignore {
			continue
		}
		if s.NewBW >= maxVoteBW {
			log.Warnf("vote: relay %s new_bw %.0f exceeds absolute ceiling, clamping", s.IDHex, s.NewBW)
			s.NewBW = maxVoteBW
			clamped++
		}
		if s.NewBW > cap {
			s.NewBW = cap
			s.ErrorSum = 0
			clamped++
		}
		pid.FinalizeChange(s)
	}

	var measured, missed int
	for _, e := range cons.Entries {
		if e.Measured {
			measured++
			continue
		}
		if e.HasFlag("Fast") && e.HasFlag("Running") && e.Live {
			missed++
		}
	}

	summary := Summary{TotNetBW: totNetBW, Measured: measured, Missed: missed, Clamped: clamped}
	if measured+missed > 0 {
		summary.CoveragePct = 100 * float64(measured) / float64(measured+missed)
	}

	if summary.CoveragePct < cfg.MinReport {
		return summary, &CoverageError{Summary: summary, MinReport: cfg.MinReport}
	}
	return summary, nil
}

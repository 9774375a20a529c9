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
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/torbw/bwauth/config"
	"github.com/torbw/bwauth/consensus"
	"github.com/torbw/bwauth/pid"
	"github.com/torbw/bwauth/relay"
	"github.com/torbw/bwauth/scanresult"
)

// ErrNoBandwidths is returned when the consensus carries no
// network-status bandwidth at all, making it unusable for voting.
// Spec.md treats this as a clean exit: status zero, no vote file.
var ErrNoBandwidths = errors.New("vote: consensus has no network-status bandwidths")

// ErrNoMeasurements is returned when the scanner ingestion produced zero
// relays. Spec.md §7 lists this among the three conditions fatal to a
// round.
var ErrNoMeasurements = errors.New("vote: no measurements ingested this round")

// Round holds everything one voting round needs: the raw consensus text,
// the path to the previous round's vote file, the scanner root
// directories to walk, the output path, and the tunable configuration.
// It mirrors spec.md §9's replacement for the source's module-level
// mutable state: every field here is round-scoped, constructed fresh per
// invocation.
type Round struct {
	ConsensusText string
	PriorVotePath string
	ScannerRoots  []string
	OutPath       string
	Config        config.Config

	// DryRun skips writing the vote file, for the report subcommand's
	// preview mode. Everything else about the round still runs.
	DryRun bool

	// Now is the wall clock, injectable for tests.
	Now func() time.Time
}

// NewRound builds a Round with the real wall clock.
func NewRound(consensusText, priorVotePath, outPath string, scannerRoots []string, cfg config.Config) *Round {
	return &Round{
		ConsensusText: consensusText,
		PriorVotePath: priorVotePath,
		ScannerRoots:  scannerRoots,
		OutPath:       outPath,
		Config:        cfg,
		Now:           time.Now,
	}
}

// Run executes the full dataflow in spec.md §2: parse consensus, read
// prior votes, ingest and aggregate scanner measurements, select
// representative samples, run the PID controller per relay, reconcile,
// and serialize the vote file. The ordering constraints in spec.md §5
// are respected exactly: consensus before prior votes, all measurements
// before averages, averages before PID, all new_bw finalized before
// capping, all after-cap values finalized before serialization.
func (r *Round) Run() ([]*relay.State, Summary, error) {
	now := r.Now()

	cons, err := consensus.Parse(r.ConsensusText)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("parsing consensus: %w", err)
	}
	if !cons.HasBandwidths() {
		return nil, Summary{}, ErrNoBandwidths
	}

	priors, err := ReadPriorVotes(r.PriorVotePath)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("reading prior votes: %w", err)
	}

	ingestor := scanresult.NewIngestor(r.ScannerRoots, r.Config.MaxAge)
	ingestor.Now = r.Now
	ingested, err := ingestor.Ingest()
	if err != nil {
		return nil, Summary{}, fmt.Errorf("ingesting scanner results: %w", err)
	}

	agg := relay.NewAggregator()
	for _, ref := range ingested.Files {
		if err := agg.IngestFile(ref); err != nil {
			return nil, Summary{}, fmt.Errorf("aggregating %s: %w", ref.Path, err)
		}
	}
	states := agg.States()
	if len(states) == 0 {
		return nil, Summary{}, ErrNoMeasurements
	}

	for _, name := range scanresult.StaleScanners(ingested.ScannerNewest, now, r.Config.MaxScanAge) {
		log.Warnf("vote: scanner %s has not reported recently", name)
	}

	avgs := relay.Select(states)
	for _, s := range states {
		pid.SelectRatio(s, avgs)
	}

	if cons.Meta.PIDEnabled {
		r.runPID(cons, states, priors, now)
	} else {
		for _, s := range states {
			s.NewBW = pid.DisabledBandwidth(s)
			s.VoteTime = now.Unix()
		}
	}

	summary, err := Reconcile(cons, states, r.Config)
	if err != nil {
		return states, summary, err
	}

	if r.DryRun {
		return states, summary, nil
	}

	header := headerTimestamp(ingested.ScannerNewest)
	if err := WriteVoteFile(r.OutPath, header, states); err != nil {
		return states, summary, fmt.Errorf("writing vote file: %w", err)
	}

	oldest := oldestMeasuredNode(cons, states)
	log.WithFields(log.Fields{
		"round_id":     now.Unix(),
		"relay_count":  len(states),
		"coverage_pct": summary.CoveragePct,
	}).Info("vote: round complete")
	if oldest != "" {
		log.Debugf("vote: oldest measured node is %s", oldest)
	}

	return states, summary, nil
}

func (r *Round) runPID(cons *consensus.Consensus, states []*relay.State, priors map[string]*relay.PriorVote, now time.Time) {
	isGuard := func(idhex string) bool { return cons.Lookup(idhex).HasFlag("Guard") }
	nodeSampleRate := pid.NodeSampleRate(states, priors, isGuard)

	for _, s := range states {
		prior := priors[s.IDHex]
		pid.UpdateControlState(s, prior)

		entry := cons.Lookup(s.IDHex)
		pid.Cadence(s, prior, entry.HasFlag("Guard"), entry.HasFlag("Exit"), cons.Meta.Wgd, cons.Meta.Wgg, nodeSampleRate, now.Unix())
	}
}

// headerTimestamp picks the most recent of the per-scanner newest
// timestamps, per spec.md §4.5 step 6.
func headerTimestamp(scannerNewest map[string]float64) int64 {
	var newest float64
	for _, ts := range scannerNewest {
		if ts > newest {
			newest = ts
		}
	}
	return int64(newest)
}

// oldestMeasuredNode restores the original aggregator's diagnostic: it
// returns the identity of the relay with the earliest chosen_time among
// those present in the prior consensus ("" if none). Purely informational.
func oldestMeasuredNode(cons *consensus.Consensus, states []*relay.State) string {
	var oldestID string
	var oldestTime float64
	for _, s := range states {
		if cons.Lookup(s.IDHex) == nil {
			continue
		}
		if oldestID == "" || s.ChosenTime < oldestTime {
			oldestID = s.IDHex
			oldestTime = s.ChosenTime
		}
	}
	return oldestID
}

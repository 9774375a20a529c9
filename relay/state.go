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

// Package relay holds the per-relay aggregate state the voting engine
// carries from raw measurements through PID control to the final vote
// line: RelayState accumulates samples across scanner slices, Aggregator
// groups records into RelayStates, and Selector picks the sample each
// relay is voted on.
package relay

import (
	"fmt"
	"sort"

	"github.com/torbw/bwauth/scanresult"
)

// slot is one retained per-slice sample.
type slot struct {
	StrmBW, FiltBW, NsBW, DescBW int64
	Timestamp                    float64
}

// State is the aggregate per relay, accumulated across every retained
// slice measurement this round and, once the PID controller runs, the
// relay's full control-loop state.
type State struct {
	IDHex string
	Nick  string

	bySlice    map[string]slot
	sliceOrder []string // first-seen order, kept for incremental updates

	StrmBW, FiltBW, NsBW, DescBW []int64
	Timestamps                   []float64

	// ChosenSBW, ChosenFBW are indices into the flat sequences above,
	// selected by Selector. BWIdx is whichever of the two the PID
	// controller ultimately uses.
	ChosenSBW, ChosenFBW, BWIdx *int

	SBWRatio, FBWRatio, Ratio float64

	PIDError, PrevError, ErrorSum, DErrorDt float64
	PrevVotedAt                            float64
	ChosenTime                              float64

	NewBW    float64
	Change   float64
	Ignore   bool
	VoteTime int64
}

// InvariantViolationError signals that a measurement record for a
// different relay identity was fed into this RelayState — a bug in the
// caller, not a data problem. spec.md calls for aborting the run on this.
type InvariantViolationError struct {
	Have, Got string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("relay state idhex mismatch: have %q, got %q", e.Have, e.Got)
}

// NewState creates an empty aggregate for a relay identity.
func NewState(idhex, nick string) *State {
	return &State{IDHex: idhex, Nick: nick, bySlice: map[string]slot{}}
}

// AddRecord folds one measurement record into the relay's per-slice
// state, keeping only the newest record per slice_id, then rebuilds the
// flat sample sequences used by Selector.
func (s *State) AddRecord(rec *scanresult.Record) error {
	if s.IDHex != "" && s.IDHex != rec.IDHex {
		return &InvariantViolationError{Have: s.IDHex, Got: rec.IDHex}
	}
	s.IDHex = rec.IDHex
	s.Nick = rec.Nick

	existing, ok := s.bySlice[rec.SliceID]
	if !ok {
		s.sliceOrder = append(s.sliceOrder, rec.SliceID)
	} else if existing.Timestamp >= rec.Timestamp {
		return nil // older or equal sample for this slice, drop it
	}
	s.bySlice[rec.SliceID] = slot{
		StrmBW: rec.StrmBW, FiltBW: rec.FiltBW, NsBW: rec.NsBW, DescBW: rec.DescBW,
		Timestamp: rec.Timestamp,
	}
	s.rebuild()
	return nil
}

// rebuild flattens the per-slice map into the parallel sample sequences.
// Slices are visited in ascending slice-ID order so that tie-breaking
// ("lowest index") in Selector is deterministic regardless of file
// processing order.
func (s *State) rebuild() {
	order := append([]string(nil), s.sliceOrder...)
	sort.Strings(order)

	s.StrmBW = s.StrmBW[:0]
	s.FiltBW = s.FiltBW[:0]
	s.NsBW = s.NsBW[:0]
	s.DescBW = s.DescBW[:0]
	s.Timestamps = s.Timestamps[:0]
	for _, id := range order {
		sl := s.bySlice[id]
		s.StrmBW = append(s.StrmBW, sl.StrmBW)
		s.FiltBW = append(s.FiltBW, sl.FiltBW)
		s.NsBW = append(s.NsBW, sl.NsBW)
		s.DescBW = append(s.DescBW, sl.DescBW)
		s.Timestamps = append(s.Timestamps, sl.Timestamp)
	}
}

// AvgStrmBW returns the relay's mean raw stream throughput across
// retained slices.
func (s *State) AvgStrmBW() float64 { return mean(s.StrmBW) }

// AvgFiltBW returns the relay's mean filtered throughput across retained
// slices.
func (s *State) AvgFiltBW() float64 { return mean(s.FiltBW) }

func mean(vs []int64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum int64
	for _, v := range vs {
		sum += v
	}
	return float64(sum) / float64(len(vs))
}

// PriorVote is one record read back from the previous round's vote file,
// keyed by relay identity.
type PriorVote struct {
	IDHex      string
	BW         float64
	MeasuredAt float64
	PIDError   float64
	ErrorSum   float64
	VoteTime   int64
}

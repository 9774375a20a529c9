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
	"bufio"
	"os"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/torbw/bwauth/scanresult"
)

// Aggregator groups measurement records into per-relay State, keyed by
// relay identity.
type Aggregator struct {
	states map[string]*State
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{states: map[string]*State{}}
}

// AddRecord folds one parsed measurement into the relay's aggregate
// state, creating it on first sight.
func (a *Aggregator) AddRecord(rec *scanresult.Record) error {
	s, ok := a.states[rec.IDHex]
	if !ok {
		s = NewState(rec.IDHex, rec.Nick)
		a.states[rec.IDHex] = s
	}
	return s.AddRecord(rec)
}

// IngestFile reads one scanner result file past its two-line header and
// folds every parseable measurement line into the aggregate. Malformed
// lines are logged and skipped — never fatal to the round.
func (a *Aggregator) IngestFile(ref scanresult.FileRef) error {
	f, err := os.Open(ref.Path)
	if err != nil {
		log.Warnf("relay: cannot open %s: %v", ref.Path, err)
		return nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	// skip the two header lines (slice id, timestamp) already consumed
	// by the ingestor.
	scanner.Scan()
	scanner.Scan()

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		rec, err := scanresult.ParseLine(line, ref.SliceID, ref.Timestamp)
		if err != nil {
			log.Debugf("relay: skipping malformed line in %s: %v", ref.Path, err)
			continue
		}
		if err := a.AddRecord(rec); err != nil {
			return err // InvariantViolationError: abort the run
		}
	}
	return scanner.Err()
}

// States returns every aggregated relay, sorted by identity for
// deterministic downstream processing.
func (a *Aggregator) States() []*State {
	out := make([]*State, 0, len(a.states))
	for _, s := range a.states {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IDHex < out[j].IDHex })
	return out
}

// Len reports how many distinct relays have been seen.
func (a *Aggregator) Len() int { return len(a.states) }

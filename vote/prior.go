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

// Package vote orchestrates one full voting round: it reads the
// consensus and the prior round's vote file, ingests and aggregates
// scanner measurements, runs the PID controller per relay, reconciles
// against consensus-wide bounds, and serializes the new vote file.
package vote

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/torbw/bwauth/relay"
)

// ReadPriorVotes parses the previous round's vote file into a map of
// per-relay control state, keyed by bare idhex. A missing file is not an
// error — it means no round has ever run before, and every relay starts
// with no prior control data. Missing optional keys (pid_error,
// pid_error_sum, vote_time) default to zero, matching the vote file's
// read-back contract in spec.md §6.
func ReadPriorVotes(path string) (map[string]*relay.PriorVote, error) {
	votes := map[string]*relay.PriorVote{}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		log.Infof("vote: no prior vote file at %s, starting with no control history", path)
		return votes, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening prior vote file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return votes, nil // empty file, header line missing
	}
	// first line is the header timestamp; unused when reading priors back.

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		pv, idhex, err := parsePriorLine(line)
		if err != nil {
			log.Warnf("vote: skipping malformed prior vote line: %v", err)
			continue
		}
		votes[idhex] = pv
	}
	return votes, scanner.Err()
}

func parsePriorLine(line string) (*relay.PriorVote, string, error) {
	values := map[string]string{}
	for _, tok := range strings.Fields(line) {
		k, v, ok := strings.Cut(tok, "=")
		if !ok {
			continue
		}
		values[k] = v
	}

	idhex, ok := values["node_id"]
	if !ok {
		return nil, "", fmt.Errorf("missing node_id")
	}
	idhex = strings.TrimPrefix(idhex, "$")

	bw, ok := values["bw"]
	if !ok {
		return nil, "", fmt.Errorf("missing bw")
	}
	bwVal, err := strconv.ParseFloat(bw, 64)
	if err != nil {
		return nil, "", fmt.Errorf("bw: %w", err)
	}

	measuredAt, ok := values["measured_at"]
	if !ok {
		return nil, "", fmt.Errorf("missing measured_at")
	}
	measuredAtVal, err := strconv.ParseFloat(measuredAt, 64)
	if err != nil {
		return nil, "", fmt.Errorf("measured_at: %w", err)
	}

	pv := &relay.PriorVote{IDHex: idhex, BW: bwVal, MeasuredAt: measuredAtVal}
	pv.PIDError = parseOptionalFloat(values, "pid_error")
	pv.ErrorSum = parseOptionalFloat(values, "pid_error_sum")
	pv.VoteTime = int64(parseOptionalFloat(values, "vote_time"))
	return pv, idhex, nil
}

func parseOptionalFloat(values map[string]string, key string) float64 {
	v, ok := values[key]
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

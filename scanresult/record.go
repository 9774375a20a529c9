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

// Package scanresult reads scanner result files and parses their
// key=value measurement lines into MeasurementRecord values.
package scanresult

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is one scanner observation for one relay, in one slice, at one
// timestamp.
type Record struct {
	IDHex   string
	Nick    string
	StrmBW  int64
	FiltBW  int64
	NsBW    int64
	DescBW  int64
	SliceID string
	// Timestamp is seconds since epoch the measurement was taken.
	Timestamp float64
}

// requiredKeys are the key=value tokens every measurement line must carry.
var requiredKeys = []string{"node_id", "nick", "strm_bw", "filt_bw", "ns_bw", "desc_bw"}

// ParseLine tokenizes a whitespace-separated key=value measurement line.
// Unknown keys are ignored. A missing required key or an unparsable
// integer field fails the whole line — callers log and skip it, per
// spec.md's "transient parse error" policy; this is never fatal to the
// round.
func ParseLine(line, sliceID string, timestamp float64) (*Record, error) {
	values := map[string]string{}
	for _, tok := range strings.Fields(line) {
		k, v, ok := strings.Cut(tok, "=")
		if !ok {
			continue
		}
		values[k] = v
	}

	for _, k := range requiredKeys {
		if _, ok := values[k]; !ok {
			return nil, fmt.Errorf("missing required field %q", k)
		}
	}

	rec := &Record{
		IDHex:     strings.TrimPrefix(values["node_id"], "$"),
		Nick:      values["nick"],
		SliceID:   sliceID,
		Timestamp: timestamp,
	}
	var err error
	if rec.StrmBW, err = strconv.ParseInt(values["strm_bw"], 10, 64); err != nil {
		return nil, fmt.Errorf("strm_bw: %w", err)
	}
	if rec.FiltBW, err = strconv.ParseInt(values["filt_bw"], 10, 64); err != nil {
		return nil, fmt.Errorf("filt_bw: %w", err)
	}
	if rec.NsBW, err = strconv.ParseInt(values["ns_bw"], 10, 64); err != nil {
		return nil, fmt.Errorf("ns_bw: %w", err)
	}
	if rec.DescBW, err = strconv.ParseInt(values["desc_bw"], 10, 64); err != nil {
		return nil, fmt.Errorf("desc_bw: %w", err)
	}
	return rec, nil
}

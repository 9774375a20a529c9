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

package consensus

import (
	"encoding/base64"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// paramsLinePrefix and weightsLinePrefix are the two lines spec.md calls
// out by name; we find them with a simple line scan rather than a
// compiled multiline regexp, since both are anchored to line start and a
// scan is cheaper and easier to reason about than backtracking regexp
// over a multi-megabyte consensus blob.
const (
	paramsLinePrefix  = "params "
	weightsLinePrefix = "bandwidth-weights "
)

// Parse extracts per-relay entries and round-level scalars from the raw
// consensus text. Malformed relay blocks are skipped with a warning, not
// fatal. The returned error is always nil: an empty document parses to a
// Consensus with no entries, which HasBandwidths then reports as unusable.
func Parse(text string) (*Consensus, error) {
	c := &Consensus{Entries: map[string]*Entry{}}

	lines := strings.Split(text, "\n")
	var cur *Entry
	weightsSeen := false
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "r "):
			if cur != nil {
				addEntry(c, cur)
			}
			cur = parseRLine(line)
		case strings.HasPrefix(line, "s ") && cur != nil:
			cur.Flags = parseSLine(line)
		case strings.HasPrefix(line, "w ") && cur != nil:
			bw, ok := parseWLine(line)
			if ok {
				cur.Bandwidth = &bw
				cur.Live = true
			}
		case strings.HasPrefix(line, paramsLinePrefix):
			c.Meta.PIDEnabled = parsePIDEnabled(line)
		case strings.HasPrefix(line, weightsLinePrefix):
			c.Meta.Wgd, c.Meta.Wgg = parseWeights(line)
			weightsSeen = true
		}
	}
	if cur != nil {
		addEntry(c, cur)
	}
	if !weightsSeen {
		log.Warn("consensus: no bandwidth-weights line, defaulting Wgd=0 Wgg=1.0")
		c.Meta.Wgd, c.Meta.Wgg = 0, 1.0
	}

	assignListRanks(c)
	return c, nil
}

func addEntry(c *Consensus, e *Entry) {
	if e.Flags == nil {
		e.Flags = map[string]bool{}
	}
	c.Entries["$"+e.IDHex] = e
}

// parseRLine turns a "r <nick> <identity-b64> ..." line into a partial
// Entry. The identity is a base64 (no padding) SHA-1 digest; we decode it
// to the uppercase hex fingerprint used everywhere else in this package.
func parseRLine(line string) *Entry {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		log.Warnf("consensus: malformed r line, skipping: %q", line)
		return nil
	}
	nick := fields[1]
	idhex, err := decodeIdentity(fields[2])
	if err != nil {
		log.Warnf("consensus: bad identity fingerprint for %s: %v", nick, err)
		return nil
	}
	return &Entry{IDHex: idhex, Nick: nick}
}

func decodeIdentity(b64 string) (string, error) {
	raw, err := base64.RawStdEncoding.DecodeString(b64)
	if err != nil {
		// tolerate a value that already carries "=" padding
		raw, err = base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return "", err
		}
	}
	return strings.ToUpper(hex.EncodeToString(raw)), nil
}

func parseSLine(line string) map[string]bool {
	flags := map[string]bool{}
	for _, f := range strings.Fields(line)[1:] {
		flags[f] = true
	}
	return flags
}

func parseWLine(line string) (int64, bool) {
	for _, tok := range strings.Fields(line)[1:] {
		k, v, ok := strings.Cut(tok, "=")
		if !ok || k != "Bandwidth" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func parsePIDEnabled(line string) bool {
	rest := strings.TrimPrefix(line, paramsLinePrefix)
	for _, tok := range strings.Fields(rest) {
		if tok == "bwauthpid=1" {
			return true
		}
	}
	return false
}

func parseWeights(line string) (wgd, wgg float64) {
	wgg = 1.0
	rest := strings.TrimPrefix(line, weightsLinePrefix)
	found := false
	for _, tok := range strings.Fields(rest) {
		k, v, ok := strings.Cut(tok, "=")
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		switch k {
		case "Wgd":
			wgd = float64(n) / 10000.0
			found = true
		case "Wgg":
			wgg = float64(n) / 10000.0
			found = true
		}
	}
	if !found {
		log.Warn("consensus: bandwidth-weights line has no Wgd/Wgg, defaulting Wgd=0 Wgg=1.0")
		return 0, 1.0
	}
	return wgd, wgg
}

func assignListRanks(c *Consensus) {
	entries := make([]*Entry, 0, len(c.Entries))
	for _, e := range c.Entries {
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		bi, bj := entries[i].Bandwidth, entries[j].Bandwidth
		switch {
		case bi == nil && bj == nil:
			return false
		case bi == nil:
			return false
		case bj == nil:
			return true
		default:
			return *bi > *bj
		}
	})
	for i, e := range entries {
		e.ListRank = i
	}
}

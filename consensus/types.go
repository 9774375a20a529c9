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

// Package consensus parses the opaque network consensus blob the engine
// is handed at startup into per-relay flag/bandwidth entries plus the
// round-level PID and weight scalars.
package consensus

// Entry is one relay's record in the consensus that was in effect when
// this round began.
type Entry struct {
	IDHex string
	Nick  string
	Flags map[string]bool

	// Bandwidth is the relay's consensus-advertised ("w Bandwidth=") value.
	// Nil means the consensus carries no network-status bandwidth for it.
	Bandwidth *int64

	// Live approximates the external "descriptor is live" check the
	// original aggregator made via a control-connection router lookup
	// (out of scope here, see DESIGN.md). A relay counts as live when its
	// descriptor produced a parseable bandwidth line.
	Live bool

	// ListRank is the relay's position when all entries are sorted by
	// descending Bandwidth (nil sorts last).
	ListRank int

	// Measured is set true during reconciliation once this relay turns
	// up with a usable measurement this round.
	Measured bool
}

// HasFlag reports whether the relay carries the named consensus flag.
func (e *Entry) HasFlag(flag string) bool {
	if e == nil {
		return false
	}
	return e.Flags[flag]
}

// Meta carries the round-level scalars extracted from the consensus text.
type Meta struct {
	// PIDEnabled mirrors the "bwauthpid=1" params token.
	PIDEnabled bool
	// Wgd, Wgg are bandwidth-weights fractions used to pace guard feedback.
	Wgd, Wgg float64
}

// Consensus is the full parse result: per-relay entries keyed by
// "$<IDHEX>" (matching the on-disk consensus convention), plus Meta.
type Consensus struct {
	Entries map[string]*Entry
	Meta    Meta
}

// Lookup returns the entry for a bare (no "$") relay fingerprint.
func (c *Consensus) Lookup(idhex string) *Entry {
	if c == nil {
		return nil
	}
	return c.Entries["$"+idhex]
}

// HasBandwidths reports whether at least one entry carries a
// network-status bandwidth value. When false the consensus is unusable
// for voting (spec: "No ns bandwidths in consensus").
func (c *Consensus) HasBandwidths() bool {
	for _, e := range c.Entries {
		if e.Bandwidth != nil {
			return true
		}
	}
	return false
}

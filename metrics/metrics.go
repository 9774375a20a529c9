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

// Package metrics snapshots one round's outcome into a small set of
// prometheus gauges and, when a pushgateway address is configured,
// pushes them once at the end of the run — the engine is a one-shot
// batch process, not a scrape target, so push beats pull here.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/xid"
)

// Round holds the gauges for one round's outcome, registered against a
// private registry so multiple rounds in a test never collide.
type Round struct {
	RunID string

	registry *prometheus.Registry

	relayCount  prometheus.Gauge
	coveragePct prometheus.Gauge
	clampedCnt  prometheus.Gauge
	missedNodes prometheus.Gauge
	durationSec prometheus.Gauge
}

// NewRound creates a fresh metrics snapshot, tagged with a unique run ID
// that also appears in the round's structured log lines, so a pushed
// metric and its log output can be correlated after the fact.
func NewRound() *Round {
	r := &Round{
		RunID:    xid.New().String(),
		registry: prometheus.NewRegistry(),
		relayCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bwauth_round_relay_count",
			Help: "Number of consensus relays measured this round.",
		}),
		coveragePct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bwauth_round_coverage_pct",
			Help: "Percentage of Fast+Running relays measured this round.",
		}),
		clampedCnt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bwauth_round_clamped_relay_count",
			Help: "Number of clamps applied to new_bw by the absolute ceiling or the node cap; a relay clamped by both counts twice.",
		}),
		missedNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bwauth_round_missed_nodes",
			Help: "Number of Fast+Running relays that went unmeasured this round.",
		}),
		durationSec: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bwauth_round_duration_seconds",
			Help: "Wall-clock time the round took to complete.",
		}),
	}
	r.registry.MustRegister(r.relayCount, r.coveragePct, r.clampedCnt, r.missedNodes, r.durationSec)
	return r
}

// Set records one round's outcome onto the gauges.
func (r *Round) Set(relayCount, clampedCount, missedNodes int, coveragePct, durationSec float64) {
	r.relayCount.Set(float64(relayCount))
	r.coveragePct.Set(coveragePct)
	r.clampedCnt.Set(float64(clampedCount))
	r.missedNodes.Set(float64(missedNodes))
	r.durationSec.Set(durationSec)
}

// Push ships the round's gauges to a pushgateway. A blank address is a
// no-op — pushgateway integration is optional.
func (r *Round) Push(pushgatewayAddr string) error {
	if pushgatewayAddr == "" {
		return nil
	}
	return push.New(pushgatewayAddr, "bwauth").
		Grouping("run_id", r.RunID).
		Gatherer(r.registry).
		Push()
}

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

package main

import (
	"errors"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/torbw/bwauth/config"
	"github.com/torbw/bwauth/metrics"
	"github.com/torbw/bwauth/pid"
	"github.com/torbw/bwauth/vote"
)

func init() {
	rootCmd.AddCommand(voteCmd)
	voteCmd.Flags().StringVar(&outPath, "out", "", "output vote file path")
	if err := voteCmd.MarkFlagRequired("consensus"); err != nil {
		log.Fatal(err)
	}
	if err := voteCmd.MarkFlagRequired("out"); err != nil {
		log.Fatal(err)
	}
}

var outPath string

var voteCmd = &cobra.Command{
	Use:   "vote",
	Short: "run one voting round and emit a vote file",
	Run: func(_ *cobra.Command, _ []string) {
		os.Exit(runVote())
	},
}

// runVote executes one round and returns the process exit code spec.md
// §6 specifies: 0 on success or a clean skip, 1 on coverage failure or
// fatal error.
func runVote() int {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Errorf("bwauth: loading config: %v", err)
		return 1
	}
	pid.SetTunables(cfg.Kp, cfg.Ti, cfg.Td)

	consensusBytes, err := os.ReadFile(consensusPath)
	if err != nil {
		log.Errorf("bwauth: reading consensus: %v", err)
		return 1
	}

	start := time.Now()
	r := vote.NewRound(string(consensusBytes), priorVotePath, outPath, scannerRoots, cfg)
	_, summary, err := r.Run()
	duration := time.Since(start).Seconds()

	if errors.Is(err, vote.ErrNoBandwidths) {
		log.Warn("bwauth: consensus has no network-status bandwidths, skipping this round")
		return 0
	}
	var covErr *vote.CoverageError
	if errors.As(err, &covErr) {
		log.Errorf("bwauth: %v", covErr)
		return 1
	}
	if err != nil {
		log.Errorf("bwauth: round failed: %v", err)
		return 1
	}

	m := metrics.NewRound()
	m.Set(summary.Measured, summary.Clamped, summary.Missed, summary.CoveragePct, duration)
	if err := m.Push(pushgatewayAddr); err != nil {
		log.Warnf("bwauth: pushing metrics: %v", err)
	}

	log.WithFields(log.Fields{
		"run_id":       m.RunID,
		"coverage_pct": summary.CoveragePct,
		"clamped":      summary.Clamped,
	}).Info("bwauth: vote round complete")
	return 0
}

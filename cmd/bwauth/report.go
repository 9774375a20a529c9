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
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/torbw/bwauth/config"
	"github.com/torbw/bwauth/pid"
	"github.com/torbw/bwauth/relay"
	"github.com/torbw/bwauth/vote"
)

func init() {
	rootCmd.AddCommand(reportCmd)
	if err := reportCmd.MarkFlagRequired("consensus"); err != nil {
		log.Fatal(err)
	}
}

// reportCmd runs the same dataflow as vote, without ever writing a vote
// file, so an operator can preview what a round would do before it runs
// for real.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "run a round against the current inputs and print a diagnostic table, without voting",
	Run: func(_ *cobra.Command, _ []string) {
		os.Exit(runReport())
	},
}

func runReport() int {
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

	r := vote.NewRound(string(consensusBytes), priorVotePath, "", scannerRoots, cfg)
	r.DryRun = true
	states, summary, err := r.Run()

	if errors.Is(err, vote.ErrNoBandwidths) {
		log.Warn("bwauth: consensus has no network-status bandwidths")
		return 0
	}
	var covErr *vote.CoverageError
	coverageFailed := errors.As(err, &covErr)
	if err != nil && !coverageFailed {
		log.Errorf("bwauth: round failed: %v", err)
		return 1
	}

	printReportTable(states)

	status := color.GreenString("[PASS]")
	if coverageFailed {
		status = color.RedString("[FAIL]")
	} else if summary.CoveragePct < cfg.MinReport+5 {
		status = color.YellowString("[WARN]")
	}
	fmt.Printf("%s coverage=%.2f%% min_report=%.2f%% measured=%d missed=%d clamped=%d\n",
		status, summary.CoveragePct, cfg.MinReport, summary.Measured, summary.Missed, summary.Clamped)

	if coverageFailed {
		return 1
	}
	return 0
}

func printReportTable(states []*relay.State) {
	sort.Slice(states, func(i, j int) bool { return states[i].Change > states[j].Change })

	table := tablewriter.NewWriter(os.Stdout)
	table.SetColWidth(20)
	table.SetHeader([]string{"nickname", "identity", "ratio", "new_bw", "change", "ignored"})
	for _, s := range states {
		table.Append([]string{
			s.Nick,
			s.IDHex,
			fmt.Sprintf("%.3f", s.Ratio),
			fmt.Sprintf("%.0f", s.NewBW),
			fmt.Sprintf("%.0f", s.Change),
			fmt.Sprintf("%v", s.Ignore),
		})
	}
	table.Render()
}

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

// Command bwauth is the Bandwidth Aggregation and Voting Engine: it
// ingests scanner measurement files, reconciles them against a network
// consensus, runs a per-relay PID feedback controller, and emits a vote
// file for the next consensus round.
package main

import (
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// rootCmd is the main entry point; the vote and report subcommands
// register themselves on it from their own init functions.
var rootCmd = &cobra.Command{
	Use:   "bwauth",
	Short: "bandwidth aggregation and voting engine",
}

var (
	configPath      string
	consensusPath   string
	priorVotePath   string
	scannerRoots    []string
	pushgatewayAddr string
	verbose         bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional INI file overriding tunable constants")
	rootCmd.PersistentFlags().StringVar(&consensusPath, "consensus", "", "path to the current network consensus document")
	rootCmd.PersistentFlags().StringVar(&priorVotePath, "prior-votes", "", "path to the previous round's vote file")
	rootCmd.PersistentFlags().StringSliceVar(&scannerRoots, "scanner-root", nil, "scanner root directory (repeatable)")
	rootCmd.PersistentFlags().StringVar(&pushgatewayAddr, "pushgateway", "", "optional pushgateway address for round metrics")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	cobra.OnInitialize(func() {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
	})
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("bwauth: no .env file found, using process environment")
	}
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

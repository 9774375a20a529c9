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

// Package config holds the engine's tunable constants and an optional
// INI-file override, a typed analog of the original Python's
// TorUtil.read_config entry point.
package config

import (
	"time"

	"github.com/go-ini/ini"
	log "github.com/sirupsen/logrus"

	"github.com/torbw/bwauth/pid"
)

// Config carries every constant spec.md §6 names as "configurable by
// rebuild." Defaults match the spec exactly; an INI file may override
// any of them at runtime.
type Config struct {
	IgnoreGuards bool
	NodeCap      float64
	MinReport    float64
	MaxAge       time.Duration
	MaxScanAge   time.Duration

	Kp float64
	Ti float64
	Td float64
}

// Default returns the engine's built-in tunables.
func Default() Config {
	return Config{
		IgnoreGuards: false,
		NodeCap:      0.05,
		MinReport:    60,
		MaxAge:       15 * 24 * time.Hour,
		MaxScanAge:   36 * time.Hour,
		Kp:           pid.Kp,
		Ti:           pid.Ti,
		Td:           pid.Td,
	}
}

// Load reads an INI file at path and overlays any of its keys onto the
// default configuration. A missing file is not an error — the defaults
// apply, exactly as the original aggregator treats a missing
// bwauthority.cfg as "use built-in constants."
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := ini.LoadSources(ini.LoadOptions{Loose: true, Insensitive: true}, path)
	if err != nil {
		log.Warnf("config: cannot read %s, using built-in defaults: %v", path, err)
		return cfg, nil
	}

	sec := f.Section("bwauth")
	if k, err := sec.GetKey("ignore_guards"); err == nil {
		cfg.IgnoreGuards, _ = k.Bool()
	}
	if k, err := sec.GetKey("node_cap"); err == nil {
		cfg.NodeCap, _ = k.Float64()
	}
	if k, err := sec.GetKey("min_report"); err == nil {
		cfg.MinReport, _ = k.Float64()
	}
	if k, err := sec.GetKey("max_age_days"); err == nil {
		if days, err := k.Float64(); err == nil {
			cfg.MaxAge = time.Duration(days * float64(24*time.Hour))
		}
	}
	if k, err := sec.GetKey("max_scan_age_hours"); err == nil {
		if hours, err := k.Float64(); err == nil {
			cfg.MaxScanAge = time.Duration(hours * float64(time.Hour))
		}
	}
	if k, err := sec.GetKey("kp"); err == nil {
		cfg.Kp, _ = k.Float64()
	}
	if k, err := sec.GetKey("ti"); err == nil {
		cfg.Ti, _ = k.Float64()
	}
	if k, err := sec.GetKey("td"); err == nil {
		cfg.Td, _ = k.Float64()
	}
	return cfg, nil
}

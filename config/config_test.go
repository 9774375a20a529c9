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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecConstants(t *testing.T) {
	cfg := Default()
	require.Equal(t, 0.05, cfg.NodeCap)
	require.Equal(t, 60.0, cfg.MinReport)
	require.Equal(t, 15*24*time.Hour, cfg.MaxAge)
	require.False(t, cfg.IgnoreGuards)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.cfg"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bwauth.cfg")
	body := "[bwauth]\nignore_guards = true\nnode_cap = 0.1\nmin_report = 75\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.IgnoreGuards)
	require.Equal(t, 0.1, cfg.NodeCap)
	require.Equal(t, 75.0, cfg.MinReport)
	// unset keys keep their defaults
	require.Equal(t, 15*24*time.Hour, cfg.MaxAge)
}

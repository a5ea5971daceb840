// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "rippled.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  host: 127.0.0.1
  port: 9001
database:
  path: /var/lib/ripple/tracking.db
organizations:
  dir: /data/organizations
  demo: true
  demo_seed: 7
simulation:
  acceleration_factor: 500
  communication_frequency: 0.2
  response_delay_min: 3m
  response_delay_max: 30m
  reminder_interval: 2h
logging:
  level: debug
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:9001", cfg.Addr())
	assert.Equal(t, "/var/lib/ripple/tracking.db", cfg.Database.Path)
	assert.Equal(t, "/data/organizations", cfg.Organizations.Dir)
	assert.True(t, cfg.Organizations.Demo)
	assert.Equal(t, int64(7), cfg.Organizations.DemoSeed)
	assert.Equal(t, 500.0, cfg.Simulation.AccelerationFactor)
	assert.Equal(t, 0.2, cfg.Simulation.CommunicationFrequency)
	assert.Equal(t, 3*time.Minute, cfg.Simulation.ResponseDelayMin)
	assert.Equal(t, 30*time.Minute, cfg.Simulation.ResponseDelayMax)
	assert.Equal(t, 2*time.Hour, cfg.Simulation.ReminderInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("RIPPLE_DATA_DIR", t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8780, cfg.Server.Port)
	assert.Empty(t, cfg.Database.Path)
	assert.Equal(t, 144.0, cfg.Simulation.AccelerationFactor)
	assert.Equal(t, 10_000, cfg.Simulation.QueueCapacity)
	assert.Equal(t, 5, cfg.Simulation.Escalation.NudgesIgnored)
	assert.Equal(t, 3, cfg.Simulation.Escalation.RecommendationsIgnored)
	assert.False(t, cfg.Generator.Enabled)
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 8780
	cfg.Organizations.Demo = true
	require.NoError(t, cfg.Validate())

	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg.Server.Port = 8780
	cfg.Organizations.Demo = false
	cfg.Organizations.Dir = ""
	assert.Error(t, cfg.Validate())
}

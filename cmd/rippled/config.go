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
	"fmt"

	"github.com/spf13/viper"

	rippleconfig "github.com/teradata-labs/ripple/pkg/config"
	"github.com/teradata-labs/ripple/pkg/types"
)

// DefaultConfigFileName is the name of the config file
const DefaultConfigFileName = "rippled"

// Config holds all configuration for the Ripple server.
// Priority: CLI flags > config file > env vars > defaults
type Config struct {
	// DataDir is the Ripple data directory. Set during initialization from
	// RIPPLE_DATA_DIR, never from the config file.
	DataDir string `mapstructure:"-"`

	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Organizations OrganizationsConfig `mapstructure:"organizations"`

	// Simulation holds the default run parameters; /simulation/start bodies
	// override them per run.
	Simulation types.Parameters `mapstructure:"simulation"`

	Generator GeneratorConfig `mapstructure:"generator"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig selects the tracking store backend.
type DatabaseConfig struct {
	// Path is the SQLite database file. Empty selects the in-memory store.
	Path string `mapstructure:"path"`
}

// OrganizationsConfig selects the organization catalogue.
type OrganizationsConfig struct {
	// Dir is a directory of organization YAML documents.
	Dir string `mapstructure:"dir"`

	// Demo registers a generated example organization alongside any loaded
	// documents.
	Demo bool `mapstructure:"demo"`

	// DemoSeed seeds the generated demo population.
	DemoSeed int64 `mapstructure:"demo_seed"`
}

// GeneratorConfig configures the optional text-generation backend.
type GeneratorConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	AnthropicAPIKey   string `mapstructure:"anthropic_api_key"`
	AnthropicModel    string `mapstructure:"anthropic_model"`
	AnthropicEndpoint string `mapstructure:"anthropic_endpoint"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	// Format is "json" or "text".
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks configuration consistency before serving.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range [1, 65535]", c.Server.Port)
	}
	if c.Organizations.Dir == "" && !c.Organizations.Demo {
		return fmt.Errorf("no organizations configured: set organizations.dir or organizations.demo")
	}
	return nil
}

// LoadConfig loads configuration with the standard precedence.
func LoadConfig(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config search paths, in order of priority
		viper.AddConfigPath(rippleconfig.DataDir())
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/ripple/")
		viper.SetConfigName(DefaultConfigFileName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", viper.ConfigFileUsed(), err)
		}
		// Config file not found; using defaults + env vars + flags
	}

	viper.SetEnvPrefix("RIPPLE")
	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.DataDir = rippleconfig.DataDir()
	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8780)

	viper.SetDefault("database.path", "")

	viper.SetDefault("organizations.dir", "")
	viper.SetDefault("organizations.demo", false)
	viper.SetDefault("organizations.demo_seed", 1)

	p := types.DefaultParameters()
	viper.SetDefault("simulation.acceleration_factor", p.AccelerationFactor)
	viper.SetDefault("simulation.communication_frequency", p.CommunicationFrequency)
	viper.SetDefault("simulation.response_delay_min", p.ResponseDelayMin)
	viper.SetDefault("simulation.response_delay_max", p.ResponseDelayMax)
	viper.SetDefault("simulation.stress_threshold", p.StressThreshold)
	viper.SetDefault("simulation.collaboration_bonus", p.CollaborationBonus)
	viper.SetDefault("simulation.escalation_thresholds.nudges_ignored", p.Escalation.NudgesIgnored)
	viper.SetDefault("simulation.escalation_thresholds.recommendations_ignored", p.Escalation.RecommendationsIgnored)
	viper.SetDefault("simulation.reminder_interval", p.ReminderInterval)
	viper.SetDefault("simulation.default_ttl", p.DefaultTTL)
	viper.SetDefault("simulation.queue_capacity", p.QueueCapacity)
	viper.SetDefault("simulation.request_deadline", p.RequestDeadline)
	viper.SetDefault("simulation.memory_depth", p.MemoryDepth)
	viper.SetDefault("simulation.workday_start_hour", p.WorkdayStartHour)
	viper.SetDefault("simulation.workday_end_hour", p.WorkdayEndHour)

	viper.SetDefault("generator.enabled", false)
	viper.SetDefault("generator.anthropic_model", "")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.file", "")
}

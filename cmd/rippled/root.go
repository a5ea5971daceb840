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
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	ripplelog "github.com/teradata-labs/ripple/internal/log"
	"github.com/teradata-labs/ripple/internal/version"
)

var (
	cfgFile string
	config  *Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "rippled",
	Short: "Ripple - organizational directive simulation server",
	Long: `Ripple Server (rippled) simulates how directives ripple through an
organization: personality-driven agents receive nudges, recommendations and
direct orders on an accelerated virtual clock, and their responses feed
escalation ladders and wisdom-of-the-crowd aggregation over HTTP/JSON.`,
	Version: version.Get(),
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $RIPPLE_DATA_DIR/rippled.yaml)")

	// Server flags
	rootCmd.PersistentFlags().String("host", "0.0.0.0", "HTTP server host")
	rootCmd.PersistentFlags().Int("port", 8780, "HTTP server port")

	// Database flags
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (empty = in-memory tracking)")

	// Organization flags
	rootCmd.PersistentFlags().String("org-dir", "", "directory of organization YAML files")
	rootCmd.PersistentFlags().Bool("demo", false, "register a generated demo organization")

	// Simulation flags
	rootCmd.PersistentFlags().Float64("acceleration", 144, "time acceleration factor (<= 0 = as fast as possible)")
	rootCmd.PersistentFlags().Int64("seed", 0, "random seed (with --seeded)")
	rootCmd.PersistentFlags().Bool("seeded", false, "use the fixed seed for reproducible runs")

	// Generator flags
	rootCmd.PersistentFlags().Bool("generator", false, "enable the text-generation behavior backend")
	rootCmd.PersistentFlags().String("anthropic-key", "", "Anthropic API key (or ANTHROPIC_API_KEY)")
	rootCmd.PersistentFlags().String("anthropic-model", "", "Anthropic model override")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")
	rootCmd.PersistentFlags().String("log-file", "", "log output file (default: stderr)")

	_ = viper.BindPFlag("server.host", rootCmd.PersistentFlags().Lookup("host"))
	_ = viper.BindPFlag("server.port", rootCmd.PersistentFlags().Lookup("port"))

	_ = viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))

	_ = viper.BindPFlag("organizations.dir", rootCmd.PersistentFlags().Lookup("org-dir"))
	_ = viper.BindPFlag("organizations.demo", rootCmd.PersistentFlags().Lookup("demo"))

	_ = viper.BindPFlag("simulation.acceleration_factor", rootCmd.PersistentFlags().Lookup("acceleration"))
	_ = viper.BindPFlag("simulation.seed", rootCmd.PersistentFlags().Lookup("seed"))
	_ = viper.BindPFlag("simulation.seeded", rootCmd.PersistentFlags().Lookup("seeded"))

	_ = viper.BindPFlag("generator.enabled", rootCmd.PersistentFlags().Lookup("generator"))
	_ = viper.BindPFlag("generator.anthropic_api_key", rootCmd.PersistentFlags().Lookup("anthropic-key"))
	_ = viper.BindPFlag("generator.anthropic_model", rootCmd.PersistentFlags().Lookup("anthropic-model"))

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("logging.file", rootCmd.PersistentFlags().Lookup("log-file"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	var err error
	config, err = LoadConfig(cfgFile)
	if err != nil {
		ripplelog.Fatal("failed to load configuration", zap.Error(err))
	}
}

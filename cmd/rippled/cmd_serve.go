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
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	ripplelog "github.com/teradata-labs/ripple/internal/log"
	"github.com/teradata-labs/ripple/pkg/behavior"
	"github.com/teradata-labs/ripple/pkg/behavior/anthropic"
	"github.com/teradata-labs/ripple/pkg/observability"
	"github.com/teradata-labs/ripple/pkg/org"
	"github.com/teradata-labs/ripple/pkg/server"
	"github.com/teradata-labs/ripple/pkg/sim"
	"github.com/teradata-labs/ripple/pkg/tracking"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulation server",
	Long: `Starts the HTTP/JSON control API. Organizations are loaded from the
configured directory (and/or a generated demo population); simulations are
started and driven through the API.`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	if err := config.Validate(); err != nil {
		ripplelog.Fatal("configuration validation failed", zap.Error(err))
	}

	logger := buildLogger()
	ripplelog.SetLogger(logger)
	defer func() { _ = ripplelog.Sync() }()

	logger.Info("starting ripple server")
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Info("config file loaded", zap.String("path", used))
	} else {
		logger.Info("no config file found, using defaults + environment + flags",
			zap.String("searched", "$RIPPLE_DATA_DIR/rippled.yaml, ./rippled.yaml, /etc/ripple/rippled.yaml"))
	}

	orgs, err := loadOrganizations()
	if err != nil {
		logger.Fatal("failed to load organizations", zap.Error(err))
	}
	logger.Info("organizations registered", zap.Int("count", len(orgs)))

	tracer := observability.NewLogTracer(logger)

	var store tracking.Store
	if config.Database.Path != "" {
		sqlStore, err := tracking.NewSQLiteStore(config.Database.Path, logger)
		if err != nil {
			logger.Fatal("failed to open tracking database",
				zap.String("path", config.Database.Path), zap.Error(err))
		}
		sqlStore.SetTracer(tracer)
		store = sqlStore
		logger.Info("tracking store ready", zap.String("backend", "sqlite"),
			zap.String("path", config.Database.Path))
	} else {
		store = tracking.NewMemoryStore()
		logger.Info("tracking store ready", zap.String("backend", "memory"))
	}
	defer func() { _ = store.Close() }()

	var generator behavior.Generator
	if config.Generator.Enabled {
		generator = anthropic.NewClient(anthropic.Config{
			APIKey:   config.Generator.AnthropicAPIKey,
			Model:    config.Generator.AnthropicModel,
			Endpoint: config.Generator.AnthropicEndpoint,
		})
		logger.Info("generator backend enabled")
	}

	kernel := sim.New(sim.Config{
		Store:     store,
		Generator: generator,
		Tracer:    tracer,
		Logger:    logger,
	})
	defer func() { _ = kernel.Close() }()

	srv := server.New(kernel, orgs, config.Addr(), logger)
	srv.SetTracer(tracer)

	housekeeping := startHousekeeping(kernel, logger)
	defer housekeeping.Stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	kernel.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
	}
}

// startHousekeeping runs a real-time schedule of periodic maintenance
// tasks, currently a one-minute status snapshot in the server log.
func startHousekeeping(kernel *sim.Kernel, logger *zap.Logger) *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc("@every 1m", func() {
		status, err := kernel.Status(context.Background())
		if err != nil {
			logger.Warn("status snapshot failed", zap.Error(err))
			return
		}
		if !status.Running {
			return
		}
		logger.Info("simulation status",
			zap.String("organization_id", status.OrganizationID),
			zap.Time("sim_time", status.SimTime),
			zap.Int("queue_depth", status.QueueDepth),
			zap.Int("in_flight", status.InFlightDeliveries),
			zap.Int("communications", status.TotalCommunications),
			zap.Int("responses", status.TotalResponses))
	})
	if err != nil {
		logger.Warn("failed to schedule housekeeping", zap.Error(err))
	}
	c.Start()
	return c
}

// buildLogger creates a logger honoring logging.level, logging.format and
// logging.file, with stack traces at error level only.
func buildLogger() *zap.Logger {
	var zapConfig zap.Config
	switch config.Logging.Format {
	case "text":
		zapConfig = zap.NewDevelopmentConfig()
	default:
		zapConfig = zap.NewProductionConfig()
	}

	logLevel := zap.InfoLevel
	if config.Logging.Level != "" {
		if err := logLevel.UnmarshalText([]byte(config.Logging.Level)); err != nil {
			ripplelog.Warn("invalid log level, using info",
				zap.String("level", config.Logging.Level), zap.Error(err))
		}
	}
	zapConfig.Level = zap.NewAtomicLevelAt(logLevel)

	if config.Logging.File != "" {
		zapConfig.OutputPaths = []string{config.Logging.File}
		zapConfig.ErrorOutputPaths = []string{config.Logging.File}
	}

	logger, err := zapConfig.Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		ripplelog.Fatal("failed to create logger", zap.Error(err))
	}
	return logger
}

// loadOrganizations assembles the organization catalogue from the configured
// directory and, when requested, a generated demo population.
func loadOrganizations() (map[string]*org.Organization, error) {
	orgs := map[string]*org.Organization{}
	if config.Organizations.Dir != "" {
		loaded, err := org.LoadDir(config.Organizations.Dir)
		if err != nil {
			return nil, err
		}
		orgs = loaded
	}
	if config.Organizations.Demo {
		demo, err := org.Generate(org.GenerateSpec{
			ID:   "demo",
			Name: "Demo Organization",
			Seed: config.Organizations.DemoSeed,
		})
		if err != nil {
			return nil, err
		}
		if _, exists := orgs[demo.ID]; !exists {
			orgs[demo.ID] = demo
		}
	}
	return orgs, nil
}

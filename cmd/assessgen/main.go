// Package main provides the assessgen command line tool.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/intel/university-curriculum-enabling-tool-sub000/cmd/assessgen/commands"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/config"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/database"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/observability"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/version"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// The CLI writes results to stdout; keep logs quiet and skip exporters
	if !cfg.Server.Debug {
		cfg.Server.LogLevel = "error"
	}
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	level := observability.LevelFromString(cfg.Server.LogLevel, cfg.Server.Debug)
	tp, mp, logger, err := observability.SetupObservabilityWithLevel(&cfg.OpenTelemetry, "assessgen-cli", level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if sdkTP, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
			_ = sdkTP.Shutdown(shutdownCtx)
		}
		if mp != nil {
			_ = mp.Shutdown(shutdownCtx)
		}
		_ = logger.Sync()
	}()

	openDB := func(ctx context.Context) (*sql.DB, error) {
		return database.NewManager(logger).Open(ctx, cfg.Database)
	}

	rootCmd := &cobra.Command{
		Use:     "assessgen",
		Short:   "Course assessment generator",
		Version: version.String(),
		Long: `Course assessment generator

Generates quizzes, exams and projects from course source material using an
OpenAI-compatible model, and provides the tooling around it: token estimates,
JSON recovery from raw model output, and loading source chunks into Postgres.`,
		SilenceUsage: true,

		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.GenerateCommand(cfg, logger))
	rootCmd.AddCommand(commands.EstimateCommand())
	rootCmd.AddCommand(commands.RecoverCommand())
	rootCmd.AddCommand(commands.IngestCommand(logger, openDB))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

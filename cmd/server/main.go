// Package main provides the HTTP server of the assessment generator.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/config"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/di"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/handlers"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/observability"
	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/version"

	"github.com/gin-gonic/gin"
)

// Application encapsulates the main application logic and can be tested
type Application struct {
	container di.ServiceContainerInterface
	router    *gin.Engine
	server    *http.Server
}

// NewApplication creates a new application instance
func NewApplication(container di.ServiceContainerInterface) (*Application, error) {
	assessmentService, err := container.GetAssessmentService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get assessment service")
	}

	router, err := handlers.NewRouter(container.GetConfig(), assessmentService, container, container.GetLogger())
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to create router")
	}

	return &Application{
		container: container,
		router:    router,
	}, nil
}

// Run serves HTTP until ctx is cancelled or the listener fails
func (a *Application) Run(ctx context.Context, port string) error {
	a.server = &http.Server{
		Addr:              ":" + port,
		Handler:           a.router,
		ReadHeaderTimeout: config.ServerReadTimeout,
		ReadTimeout:       config.ServerReadTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErr:
		return contextutils.WrapError(err, "server failed")
	}
}

// Shutdown stops accepting requests, waits for in-flight ones and releases services
func (a *Application) Shutdown(ctx context.Context) error {
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			return contextutils.WrapError(err, "failed to shut down HTTP server")
		}
	}
	return a.container.Shutdown(ctx)
}

func main() {
	chunksFile := flag.String("chunks", "", "JSON file of source chunks, used when no database is configured")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.OpenTelemetry.ServiceVersion == "" {
		cfg.OpenTelemetry.ServiceVersion = version.Version
	}

	level := observability.LevelFromString(cfg.Server.LogLevel, cfg.Server.Debug)
	tp, mp, logger, err := observability.SetupObservabilityWithLevel(&cfg.OpenTelemetry, cfg.OpenTelemetry.ServiceName, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if tp != nil {
			if sdkTP, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
				if err := sdkTP.Shutdown(shutdownCtx); err != nil {
					logger.Warn(shutdownCtx, "Error shutting down tracer provider", map[string]interface{}{"error": err.Error(), "provider": "tracer"})
				}
			}
		}
		if mp != nil {
			if err := mp.Shutdown(shutdownCtx); err != nil {
				logger.Warn(shutdownCtx, "Error shutting down meter provider", map[string]interface{}{"error": err.Error(), "provider": "meter"})
			}
		}
		_ = logger.Sync()
	}()

	logger.Info(ctx, "Starting assessment generator", map[string]interface{}{
		"port":      cfg.Server.Port,
		"log_level": cfg.Server.LogLevel,
		"version":   version.Version,
		"commit":    version.Commit,
		"providers": len(cfg.Providers),
	})

	container := di.NewServiceContainer(cfg, logger, di.WithChunksFile(*chunksFile))
	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err)
		os.Exit(1)
	}

	app, err := NewApplication(container)
	if err != nil {
		logger.Error(ctx, "Failed to create application", err)
		os.Exit(1)
	}

	if err := app.Run(ctx, cfg.Server.Port); err != nil {
		logger.Error(ctx, "Application failed", err)
		os.Exit(1)
	}
	logger.Info(ctx, "Received shutdown signal, shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Error during application shutdown", err)
		os.Exit(1)
	}

	logger.Info(shutdownCtx, "Shutdown completed successfully")
}

// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sync"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/config"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/database"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/models"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/observability"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/serviceinterfaces"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/services"
	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetAssessmentService() (services.AssessmentServiceInterface, error)
	GetChunkRepository() (services.SourceChunkRepository, error)
	GetConcurrencyStats() services.ConcurrencyStats
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Option customizes a ServiceContainer before Initialize
type Option func(*ServiceContainer)

// WithChunksFile serves source chunks from a JSON file when no database is configured
func WithChunksFile(path string) Option {
	return func(sc *ServiceContainer) { sc.chunksFile = path }
}

// WithCompletionService replaces the HTTP completion client
func WithCompletionService(completion serviceinterfaces.CompletionService) Option {
	return func(sc *ServiceContainer) { sc.completion = completion }
}

// ServiceContainer wires the completion client, the chunk store and the assessment
// pipeline, and releases them in reverse order on shutdown.
type ServiceContainer struct {
	cfg        *config.Config
	logger     *observability.Logger
	chunksFile string

	mu            sync.RWMutex
	db            *sql.DB
	completion    serviceinterfaces.CompletionService
	aiService     *services.AIService
	chunks        services.SourceChunkRepository
	assessment    *services.AssessmentService
	initialized   bool
	shutdownFuncs []func(context.Context) error
}

var _ ServiceContainerInterface = (*ServiceContainer)(nil)

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger, opts ...Option) *ServiceContainer {
	sc := &ServiceContainer{
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Initialize sets up all services and their dependencies
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.initialized {
		return nil
	}

	if err := sc.initializeChunks(ctx); err != nil {
		_ = sc.cleanup(ctx)
		return err
	}

	if sc.completion == nil {
		aiService, err := services.NewAIService(sc.cfg, sc.logger)
		if err != nil {
			_ = sc.cleanup(ctx)
			return contextutils.WrapErrorf(err, "failed to create AI service: %w", err)
		}
		sc.aiService = aiService
		sc.completion = aiService
	}
	if lc, ok := sc.completion.(serviceinterfaces.Lifecycle); ok {
		sc.shutdownFuncs = append(sc.shutdownFuncs, lc.Shutdown)
	}

	metrics, err := observability.NewGenerationMetrics(nil)
	if err != nil {
		_ = sc.cleanup(ctx)
		return err
	}

	assessment, err := services.NewAssessmentService(sc.cfg, sc.completion, sc.chunks, sc.logger, metrics)
	if err != nil {
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to create assessment service: %w", err)
	}
	sc.assessment = assessment
	sc.initialized = true

	sc.logger.Info(ctx, "Services initialized", map[string]interface{}{
		"database":    sc.db != nil,
		"chunks_file": sc.chunksFile,
	})
	return nil
}

// initializeChunks selects the chunk store: Postgres when a database URL is
// configured, otherwise an in-memory store seeded from the chunks file.
func (sc *ServiceContainer) initializeChunks(ctx context.Context) error {
	if sc.cfg.Database.URL != "" {
		db, err := database.NewManager(sc.logger).Open(ctx, sc.cfg.Database)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to initialize database: %w", err)
		}
		sc.db = db
		sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
			return db.Close()
		})
		sc.chunks = services.NewPostgresChunkRepository(db, sc.logger)
		return nil
	}

	var seed []models.Chunk
	if sc.chunksFile != "" {
		chunks, err := services.LoadChunksFile(sc.chunksFile)
		if err != nil {
			return err
		}
		seed = chunks
	}
	sc.chunks = services.NewMemoryChunkRepository(seed)
	return nil
}

// GetAssessmentService returns the assessment pipeline
func (sc *ServiceContainer) GetAssessmentService() (services.AssessmentServiceInterface, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	if sc.assessment == nil {
		return nil, contextutils.ErrorWithContextf("service assessment not initialized")
	}
	return sc.assessment, nil
}

// GetChunkRepository returns the source chunk store
func (sc *ServiceContainer) GetChunkRepository() (services.SourceChunkRepository, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	if sc.chunks == nil {
		return nil, contextutils.ErrorWithContextf("service chunks not initialized")
	}
	return sc.chunks, nil
}

// GetConcurrencyStats reports the completion client's in-flight requests. It is zero
// when a custom completion service is injected.
func (sc *ServiceContainer) GetConcurrencyStats() services.ConcurrencyStats {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	if sc.aiService == nil {
		return services.ConcurrencyStats{}
	}
	return sc.aiService.GetConcurrencyStats()
}

// GetDatabase returns the database instance, or nil when chunks are held in memory
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup runs shutdown functions in reverse order and returns the first error
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var firstErr error
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			sc.logger.Error(ctx, "Error during service shutdown", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	sc.shutdownFuncs = nil
	sc.initialized = false
	return firstErr
}

package handlers

import (
	"net/http"
	"slices"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/config"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/middleware"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/observability"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/services"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/version"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// IMPORTANT: When adding new API endpoints, document them in openapi.yaml. Request
// bodies are validated against the schema documented there.

// ConcurrencyReporter reports in-flight completion requests for the health endpoint
type ConcurrencyReporter interface {
	GetConcurrencyStats() services.ConcurrencyStats
}

// NewRouter creates the HTTP router with all middleware and routes. stats may be nil.
func NewRouter(
	cfg *config.Config,
	assessmentService services.AssessmentServiceInterface,
	stats ConcurrencyReporter,
	logger *observability.Logger,
) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	schemaLoader := middleware.NewSchemaLoader()
	if err := schemaLoader.LoadOpenAPI(OpenAPISpec); err != nil {
		return nil, err
	}

	router := gin.New()
	// Disable automatic redirection for trailing slashes, which is better for APIs
	router.RedirectTrailingSlash = false

	recoveryConfig := middleware.DefaultErrorRecoveryConfig()
	recoveryConfig.IncludeStack = cfg.Server.Debug
	if cfg.Server.CircuitBreakerThreshold > 0 {
		recoveryConfig.EnableCircuitBreaker = true
		recoveryConfig.CircuitBreakerThreshold = cfg.Server.CircuitBreakerThreshold
		recoveryConfig.CircuitBreakerTimeout = config.CircuitBreakerTimeout
	}
	router.Use(middleware.ErrorRecoveryMiddleware(logger, recoveryConfig))
	router.Use(middleware.RequestLogging(logger))

	// Health check endpoint (defined before tracing)
	router.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":    "ok",
			"service":   cfg.OpenTelemetry.ServiceName,
			"version":   version.Version,
			"commit":    version.Commit,
			"buildTime": version.BuildTime,
		}
		if stats != nil {
			body["ai"] = stats.GetConcurrencyStats()
		}
		c.JSON(http.StatusOK, body)
	})

	router.Use(otelgin.Middleware(cfg.OpenTelemetry.ServiceName))

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) == 0 || slices.Contains(cfg.Server.CORSOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Accept-Language", "Authorization", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	router.GET("/openapi.yaml", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", OpenAPISpec)
	})

	assessmentHandler := NewAssessmentHandler(assessmentService, logger)

	v1 := router.Group("/v1")
	v1.Use(middleware.RequestValidationMiddleware(schemaLoader, logger))
	{
		v1.POST("/assessments", assessmentHandler.GenerateAssessment)
	}

	return router, nil
}

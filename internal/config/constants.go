package config

import "time"

// Config file location
const (
	ConfigFileEnv     = "ASSESSGEN_CONFIG_FILE"
	DefaultConfigFile = "config.yaml"
)

// Timeout constants
const (
	// HTTP and provider timeouts
	AIRequestTimeout       = 3 * time.Minute
	AIShutdownTimeout      = 30 * time.Second
	AIShutdownPollInterval = 100 * time.Millisecond
	ServerReadTimeout      = 30 * time.Second
	ServerShutdownTimeout  = 30 * time.Second
	CircuitBreakerTimeout  = 30 * time.Second

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute
)

// Server defaults
const (
	DefaultServerPort      = "8080"
	DefaultMaxAIConcurrent = 10
	DefaultServiceName     = "assessgen"
)

// Assessment generation defaults
const (
	DefaultTemperature             = 0.3
	MaxTemperature                 = 2.0
	DefaultMaxTotalTokens          = 8192
	DefaultResponseTokenRatio      = 0.35
	DefaultContextTokenRatio       = 0.5
	DefaultReducedOutputRatio      = 0.8
	DefaultConcurrency             = 3
	DefaultRequestTimeoutMS        = 120000
	MinRequestTimeoutMS            = 10
	DefaultReducedContextMinTokens = 200
	DefaultLanguageSampleSize      = 3
	MinResponseTokens              = 64
)

// Database defaults
const (
	DefaultDatabaseMaxOpenConns = 10
	DefaultDatabaseMaxIdleConns = 5
)

// Security configuration constants
const (
	DefaultCSP = "default-src 'self'"
)

// Package config handles application configuration loading from YAML and environment variables.
package config

import (
	"errors"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"

	"gopkg.in/yaml.v3"
)

// ProviderConfig defines the structure for a single completion provider
type ProviderConfig struct {
	Name               string    `json:"name" yaml:"name"`
	Code               string    `json:"code" yaml:"code"`
	URL                string    `json:"url,omitempty" yaml:"url,omitempty"`
	APIKey             string    `json:"-" yaml:"api_key,omitempty"`
	SupportsGrammar    bool      `json:"supports_grammar,omitempty" yaml:"supports_grammar,omitempty"`
	SupportsJSONSchema bool      `json:"supports_json_schema,omitempty" yaml:"supports_json_schema,omitempty"`
	Models             []AIModel `json:"models" yaml:"models"`
}

// AIModel represents an AI model configuration
type AIModel struct {
	Name      string `json:"name" yaml:"name"`
	Code      string `json:"code" yaml:"code"`
	MaxTokens int    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Assessment generation tunables
	Assessment AssessmentConfig `json:"assessment" yaml:"assessment"`

	// Database configuration
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Completion providers
	Providers []ProviderConfig `json:"providers" yaml:"providers"`

	// OpenTelemetry Configuration
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port            string   `json:"port" yaml:"port"`
	Debug           bool     `json:"debug" yaml:"debug"`
	LogLevel        string   `json:"log_level" yaml:"log_level"`
	MaxAIConcurrent int      `json:"max_ai_concurrent" yaml:"max_ai_concurrent"`
	CORSOrigins     []string `json:"cors_origins" yaml:"cors_origins"`
	DefaultProvider string   `json:"default_provider" yaml:"default_provider"`

	// CircuitBreakerThreshold is the number of consecutive server errors after which
	// requests are shed for CircuitBreakerTimeout. Zero disables the breaker.
	CircuitBreakerThreshold int `json:"circuit_breaker_threshold" yaml:"circuit_breaker_threshold"`
}

// AssessmentConfig holds the generation tunables. Every value is clamped by Normalize,
// so a zero or negative setting falls back to a safe default.
type AssessmentConfig struct {
	Temperature             float64 `json:"temperature" yaml:"temperature"`
	MaxTotalTokens          int     `json:"max_total_tokens" yaml:"max_total_tokens"`
	ResponseTokenRatio      float64 `json:"response_token_ratio" yaml:"response_token_ratio"`
	ContextTokenRatio       float64 `json:"context_token_ratio" yaml:"context_token_ratio"`
	Concurrency             int     `json:"concurrency" yaml:"concurrency"`
	RequestTimeoutMS        int     `json:"request_timeout_ms" yaml:"request_timeout_ms"`
	ReducedContextMinTokens int     `json:"reduced_context_min_tokens" yaml:"reduced_context_min_tokens"`
	ReducedOutputRatio      float64 `json:"reduced_output_ratio" yaml:"reduced_output_ratio"`
	LanguageSampleSize      int     `json:"language_sample_size" yaml:"language_sample_size"`
	Debug                   bool    `json:"debug" yaml:"debug"`
}

// RequestTimeout returns the per-artifact timeout as a duration.
func (a AssessmentConfig) RequestTimeout() time.Duration {
	return time.Duration(a.RequestTimeoutMS) * time.Millisecond
}

// ResponseTokens returns the output token budget for one completion.
func (a AssessmentConfig) ResponseTokens() int {
	n := int(float64(a.MaxTotalTokens) * a.ResponseTokenRatio)
	if n < MinResponseTokens {
		return MinResponseTokens
	}
	return n
}

// ContextTokens returns the token budget for the source context block.
func (a AssessmentConfig) ContextTokens() int {
	n := int(float64(a.MaxTotalTokens) * a.ContextTokenRatio)
	if n < 1 {
		return 1
	}
	return n
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`               // Default: "http://localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol"`               // "grpc" or "http", default: "grpc"
	Insecure       bool              `json:"insecure" yaml:"insecure"`               // Default: true (for localhost)
	Headers        map[string]string `json:"headers" yaml:"headers"`                 // For authenticated endpoints
	ServiceName    string            `json:"service_name" yaml:"service_name"`       // Default: "assessgen-server"
	ServiceVersion string            `json:"service_version" yaml:"service_version"` // From version package
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"` // Default: 1.0 (100%)
	UseAutoSDK     bool              `json:"use_auto_sdk" yaml:"use_auto_sdk"`
}

// DatabaseConfig represents database configuration for the source chunk store
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `json:"auto_migrate" yaml:"auto_migrate"`
}

// GetProvider returns the provider with the given code. An empty code selects the
// configured default provider, or the first one.
func (c *Config) GetProvider(code string) (*ProviderConfig, bool) {
	if code == "" {
		code = c.Server.DefaultProvider
	}
	for i := range c.Providers {
		if code == "" || c.Providers[i].Code == code {
			return &c.Providers[i], true
		}
	}
	return nil, false
}

// ModelMaxTokens returns the configured context size of a model, or 0 if unknown.
func (p *ProviderConfig) ModelMaxTokens(model string) int {
	for _, m := range p.Models {
		if m.Code == model {
			return m.MaxTokens
		}
	}
	return 0
}

// NewConfig loads configuration from YAML file first, then overrides with environment variables
func NewConfig() (result0 *Config, err error) {
	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	config.overrideFromEnv()
	config.Normalize()

	return config, nil
}

// Default returns a configuration with every tunable at its default value.
func Default() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills unset values with defaults and clamps tunables into their valid ranges.
func (c *Config) Normalize() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.MaxAIConcurrent <= 0 {
		c.Server.MaxAIConcurrent = DefaultMaxAIConcurrent
	}

	a := &c.Assessment
	if a.Temperature <= 0 {
		a.Temperature = DefaultTemperature
	}
	if a.Temperature > MaxTemperature {
		a.Temperature = MaxTemperature
	}
	if a.MaxTotalTokens <= 0 {
		a.MaxTotalTokens = DefaultMaxTotalTokens
	}
	a.ResponseTokenRatio = clampRatio(a.ResponseTokenRatio, DefaultResponseTokenRatio)
	a.ContextTokenRatio = clampRatio(a.ContextTokenRatio, DefaultContextTokenRatio)
	a.ReducedOutputRatio = clampRatio(a.ReducedOutputRatio, DefaultReducedOutputRatio)
	if a.Concurrency < 1 {
		a.Concurrency = DefaultConcurrency
	}
	if a.RequestTimeoutMS <= 0 {
		a.RequestTimeoutMS = DefaultRequestTimeoutMS
	}
	if a.RequestTimeoutMS < MinRequestTimeoutMS {
		a.RequestTimeoutMS = MinRequestTimeoutMS
	}
	if a.ReducedContextMinTokens <= 0 {
		a.ReducedContextMinTokens = DefaultReducedContextMinTokens
	}
	if a.LanguageSampleSize <= 0 {
		a.LanguageSampleSize = DefaultLanguageSampleSize
	}

	if c.OpenTelemetry.ServiceName == "" {
		c.OpenTelemetry.ServiceName = DefaultServiceName
	}
	if c.OpenTelemetry.SamplingRate <= 0 || c.OpenTelemetry.SamplingRate > 1 {
		c.OpenTelemetry.SamplingRate = 1.0
	}

	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = DefaultDatabaseMaxOpenConns
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = DefaultDatabaseMaxIdleConns
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = DatabaseConnMaxLifetime
	}
}

func clampRatio(v, def float64) float64 {
	if v <= 0 || v >= 1 {
		return def
	}
	return v
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnv(c)
}

// overrideStructFromEnv recursively overrides struct fields with environment variables
func overrideStructFromEnv(v interface{}) {
	overrideStructFromEnvWithPrefix(v, "")
}

// overrideStructFromEnvWithPrefix recursively overrides struct fields with environment variables.
// The variable name is the upper-cased yaml tag joined to its parent's, e.g.
// assessment.request_timeout_ms is read from ASSESSMENT_REQUEST_TIMEOUT_MS.
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int64:
			envVal := os.Getenv(envKey)
			if envVal == "" {
				continue
			}
			if field.Type() == reflect.TypeOf(time.Duration(0)) {
				if d, err := time.ParseDuration(envVal); err == nil {
					field.SetInt(int64(d))
					continue
				}
			}
			if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
				field.SetInt(intVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
			if envVal := os.Getenv(envKey); envVal != "" {
				if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				if field.Type().Elem().Kind() == reflect.String {
					slice := strings.Split(envVal, ",")
					field.Set(reflect.ValueOf(slice))
				}
			}
		case reflect.Struct:
			if field.CanAddr() {
				fieldPrefix := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
				if prefix != "" {
					fieldPrefix = prefix + "_" + fieldPrefix
				}
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), fieldPrefix)
			}
		}
	}
}

// loadConfigWithOverrides loads the config file named by ASSESSGEN_CONFIG_FILE, or
// config.yaml when that is unset. A missing default file yields an empty config.
func loadConfigWithOverrides() (result0 *Config, err error) {
	if envPath := os.Getenv(ConfigFileEnv); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	config, err := loadConfigFromFile(DefaultConfigFile)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	return config, err
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}

	return &config, nil
}

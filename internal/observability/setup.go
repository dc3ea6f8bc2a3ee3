package observability

import (
	"context"
	"os"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/config"

	autosdk "go.opentelemetry.io/auto/sdk"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"
)

// SetupObservability is SetupObservabilityWithLevel at info level
func SetupObservability(cfg *config.OpenTelemetryConfig, serviceName string) (result0 trace.TracerProvider, result1 *metric.MeterProvider, result2 *Logger, err error) {
	return SetupObservabilityWithLevel(cfg, serviceName, zapcore.InfoLevel)
}

// SetupObservabilityWithLevel builds the logger and, when enabled in cfg, installs the
// global tracer and meter providers. Disabled signals return nil providers.
func SetupObservabilityWithLevel(cfg *config.OpenTelemetryConfig, serviceName string, level zapcore.Level) (result0 trace.TracerProvider, result1 *metric.MeterProvider, result2 *Logger, err error) {
	if serviceName != "" {
		cfg.ServiceName = serviceName
	}
	for key, value := range map[string]string{
		"OTEL_SERVICE_NAME":    cfg.ServiceName,
		"OTEL_SERVICE_VERSION": cfg.ServiceVersion,
	} {
		if err := os.Setenv(key, value); err != nil {
			return nil, nil, nil, err
		}
	}

	logger := NewLoggerWithLevel(cfg, level)

	var tp trace.TracerProvider
	if cfg.EnableTracing {
		if tp, err = setupTracing(cfg, logger); err != nil {
			return nil, nil, nil, err
		}
	}

	var mp *metric.MeterProvider
	if cfg.EnableMetrics {
		if mp, err = InitMetrics(cfg); err != nil {
			return nil, nil, nil, err
		}
		otel.SetMeterProvider(mp)
	}

	return tp, mp, logger, nil
}

func setupTracing(cfg *config.OpenTelemetryConfig, logger *Logger) (trace.TracerProvider, error) {
	var tp trace.TracerProvider
	sdk := "standard"
	if cfg.UseAutoSDK {
		tp = autosdk.TracerProvider()
		sdk = "auto"
	} else {
		var err error
		if tp, err = InitStandardTracing(cfg); err != nil {
			return nil, err
		}
	}
	otel.SetTracerProvider(tp)

	if err := InitTracing(cfg); err != nil {
		return nil, err
	}
	InitGlobalTracer()

	logger.Info(context.Background(), "Tracing enabled", map[string]interface{}{"service_name": cfg.ServiceName, "sdk": sdk})
	return tp, nil
}

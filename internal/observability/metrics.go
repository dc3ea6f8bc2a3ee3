package observability

import (
	"context"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/config"
	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics initializes OpenTelemetry metrics
func InitMetrics(cfg *config.OpenTelemetryConfig) (result0 *metric.MeterProvider, err error) {
	ctx := context.Background()

	res, err := serviceResource(cfg)
	if err != nil {
		return nil, err
	}

	var exporter metric.Exporter
	switch cfg.Protocol {
	case "grpc":
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
			otlpmetricgrpc.WithHeaders(cfg.Headers),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp grpc metric exporter: %w", err)
		}
		exporter = exp
	case "http":
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(cfg.Endpoint),
			otlpmetrichttp.WithHeaders(cfg.Headers),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp http metric exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "unsupported otel protocol: %s", cfg.Protocol)
	}

	mp := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter)),
		metric.WithResource(res),
	)
	return mp, nil
}

// GenerationMetrics counts how artifacts were produced. A nil *GenerationMetrics is
// valid and records nothing.
type GenerationMetrics struct {
	attempts         otelmetric.Int64Counter
	recoveryStages   otelmetric.Int64Counter
	timeouts         otelmetric.Int64Counter
	languageRewrites otelmetric.Int64Counter
}

// NewGenerationMetrics registers the generation counters on meter, or on the global
// meter provider when meter is nil.
func NewGenerationMetrics(meter otelmetric.Meter) (*GenerationMetrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	attempts, err := meter.Int64Counter("assessment.generation.attempts",
		otelmetric.WithDescription("Artifacts generated, by kind and winning strategy"))
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create attempts counter: %w", err)
	}
	stages, err := meter.Int64Counter("assessment.json_recovery.stage",
		otelmetric.WithDescription("JSON recovery successes, by cascade stage"))
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create recovery counter: %w", err)
	}
	timeouts, err := meter.Int64Counter("assessment.timeouts",
		otelmetric.WithDescription("Per-question generation calls replaced by a timeout fallback"))
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create timeout counter: %w", err)
	}
	rewrites, err := meter.Int64Counter("assessment.language.rewrites",
		otelmetric.WithDescription("Language rewrite requests, by target language and outcome"))
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create rewrite counter: %w", err)
	}

	return &GenerationMetrics{
		attempts:         attempts,
		recoveryStages:   stages,
		timeouts:         timeouts,
		languageRewrites: rewrites,
	}, nil
}

// RecordAttempt counts one finished generation.
func (m *GenerationMetrics) RecordAttempt(ctx context.Context, kind, strategy string, reducedContext bool) {
	if m == nil {
		return
	}
	m.attempts.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("strategy", strategy),
		attribute.Bool("reduced_context", reducedContext),
	))
}

// RecordRecoveryStage counts a successful JSON recovery at the given stage.
func (m *GenerationMetrics) RecordRecoveryStage(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.recoveryStages.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("stage", stage)))
}

// RecordTimeout counts a timeout fallback.
func (m *GenerationMetrics) RecordTimeout(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.timeouts.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("kind", kind)))
}

// RecordLanguageRewrite counts a language rewrite request.
func (m *GenerationMetrics) RecordLanguageRewrite(ctx context.Context, target string, ok bool) {
	if m == nil {
		return
	}
	m.languageRewrites.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("target", target),
		attribute.Bool("ok", ok),
	))
}

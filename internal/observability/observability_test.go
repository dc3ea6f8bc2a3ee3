package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/config"
	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetupObservability_NoneEnabled(t *testing.T) {
	cfg := &config.OpenTelemetryConfig{
		ServiceName: "test-service",
		Protocol:    "grpc",
		Endpoint:    "localhost:4317",
		Insecure:    true,
	}
	tp, mp, logger, err := SetupObservability(cfg, "test-service")
	require.NoError(t, err)
	assert.Nil(t, tp)
	assert.Nil(t, mp)
	require.NotNil(t, logger)
}

func TestSetupObservability_StandardSDK(t *testing.T) {
	cfg := &config.OpenTelemetryConfig{
		EnableTracing:  true,
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Protocol:       "grpc",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SamplingRate:   1.0,
	}
	tp, _, logger, err := SetupObservability(cfg, "test-service")
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, isStandardSDK := tp.(*sdktrace.TracerProvider)
	assert.True(t, isStandardSDK)
}

func TestInitStandardTracing(t *testing.T) {
	tests := []struct {
		name     string
		protocol string
		wantErr  bool
	}{
		{"grpc", "grpc", false},
		{"http", "http", false},
		{"invalid", "carrier-pigeon", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp, err := InitStandardTracing(&config.OpenTelemetryConfig{
				ServiceName:  "test-service",
				Protocol:     tt.protocol,
				Endpoint:     "localhost:4317",
				Insecure:     true,
				SamplingRate: 1.0,
			})
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unsupported otel protocol")
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, tp)
		})
	}
}

func TestLogWithContextAddsTraceInfo(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	tracer := tp.Tracer("test-tracer")

	core, observedLogs := observer.New(zap.InfoLevel)
	logger := &Logger{Logger: zap.New(core)}

	ctx, span := tracer.Start(context.Background(), "test-span")
	defer span.End()

	logger.Info(ctx, "generated", map[string]interface{}{"kind": "metadata"})

	entries := observedLogs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
	assert.Equal(t, "metadata", fields["kind"])
}

func TestLoggerError_IncludesErrorField(t *testing.T) {
	core, observedLogs := observer.New(zap.InfoLevel)
	logger := &Logger{Logger: zap.New(core)}

	logger.Error(context.Background(), "failed", errors.New("boom"), map[string]interface{}{"a": 1}, nil)

	entries := observedLogs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "boom", fields["error"])
	assert.NotContains(t, fields, "trace_id")
}

func TestLoggerError_AppErrorFields(t *testing.T) {
	core, observedLogs := observer.New(zap.InfoLevel)
	logger := &Logger{Logger: zap.New(core)}

	fields := map[string]interface{}{"kind": "metadata"}
	err := contextutils.WrapError(contextutils.ErrAIRequestFailed, "provider returned 502")
	logger.Error(context.Background(), "generation failed", err, fields)

	entries := observedLogs.All()
	require.Len(t, entries, 1)
	got := entries[0].ContextMap()
	assert.Equal(t, "AI_REQUEST_FAILED", got["error_code"])
	assert.Equal(t, "error", got["error_severity"])
	assert.Equal(t, "metadata", got["kind"])
	assert.Equal(t, map[string]interface{}{"kind": "metadata"}, fields, "caller fields are not modified")
}

func TestLogger_RespectsLevel(t *testing.T) {
	core, observedLogs := observer.New(zap.WarnLevel)
	logger := &Logger{Logger: zap.New(core)}

	logger.Debug(context.Background(), "hidden")
	logger.Info(context.Background(), "hidden")
	logger.Warn(context.Background(), "shown")

	entries := observedLogs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "shown", entries[0].Message)
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, LevelFromString("error", true))
	assert.Equal(t, zap.WarnLevel, LevelFromString("warn", false))
	assert.Equal(t, zap.InfoLevel, LevelFromString("nonsense", false))
}

func TestFinishSpan_RecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	err := errors.New("provider down")
	FinishSpan(span, &err)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "provider down", ended[0].Status().Description)

	FinishSpan(nil, &err)
}

func TestFinishSpan_TagsAppErrorCode(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	err := contextutils.WrapError(contextutils.ErrTimeout, "model answer")
	FinishSpan(span, &err)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Contains(t, ended[0].Attributes(), attribute.String("error.code", "REQUEST_TIMEOUT"))
	assert.Contains(t, ended[0].Attributes(), attribute.Bool("error.retryable", contextutils.IsRetryable(err)))
}

func TestFinishSpan_Success(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	var err error
	FinishSpan(span, &err)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
}

func TestGenerationMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewGenerationMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordAttempt(ctx, "metadata", "structured", false)
	m.RecordAttempt(ctx, "metadata", "default", true)
	m.RecordRecoveryStage(ctx, "fence_strip")
	m.RecordTimeout(ctx, "model_answer")
	m.RecordLanguageRewrite(ctx, "id", true)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			sum, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok, md.Name)
			for _, dp := range sum.DataPoints {
				totals[md.Name] += dp.Value
			}
		}
	}

	assert.Equal(t, int64(2), totals["assessment.generation.attempts"])
	assert.Equal(t, int64(1), totals["assessment.json_recovery.stage"])
	assert.Equal(t, int64(1), totals["assessment.timeouts"])
	assert.Equal(t, int64(1), totals["assessment.language.rewrites"])
}

func TestGenerationMetrics_NilIsNoop(t *testing.T) {
	var m *GenerationMetrics
	assert.NotPanics(t, func() {
		m.RecordAttempt(context.Background(), "k", "s", false)
		m.RecordTimeout(context.Background(), "k")
	})
}

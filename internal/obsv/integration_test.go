package obsv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestObservabilityIntegration exercises Init, the logger, the tracer,
// and every metrics recorder together with metrics enabled.
func TestObservabilityIntegration(t *testing.T) {
	Reset()
	ctx := context.Background()
	config := &Config{
		ServiceName:    "titleparser-test",
		Environment:    "dev",
		LogLevel:       "info",
		MetricsAddr:    ":9092",
		MetricsEnabled: true,
		TracingEnabled: true,
	}

	err := Init(ctx, config)
	require.NoError(t, err)
	defer func() { _ = Shutdown(ctx) }()

	assert.NotNil(t, globalObsv)
	assert.True(t, globalObsv.initialized)
	assert.Equal(t, config, globalObsv.config)

	assert.NotNil(t, Logger())
	assert.NotNil(t, Tracer())

	ctx, span := StartSpan(ctx, "test.operation")
	assert.NotNil(t, span)
	assert.NotNil(t, ctx)
	span.End()

	RecordTitleProcessed("completed")
	RecordStageConfidence("stage.market_term", 0.95)
	RecordBatchDuration(250 * time.Millisecond)
	RecordRetry("timeout")
	RecordReviewFlag("low_confidence")
	SetPatternStoreReachable(true)
}

// TestObservabilityDisabled confirms metrics calls are harmless no-ops
// when metrics are turned off in config.
func TestObservabilityDisabled(t *testing.T) {
	Reset()
	ctx := context.Background()
	config := &Config{
		ServiceName:    "titleparser-test",
		Environment:    "dev",
		LogLevel:       "info",
		MetricsAddr:    ":9093",
		MetricsEnabled: false,
		TracingEnabled: false,
	}

	err := Init(ctx, config)
	require.NoError(t, err)
	defer func() { _ = Shutdown(ctx) }()

	assert.NotNil(t, globalObsv)
	assert.False(t, globalObsv.config.MetricsEnabled)

	RecordTitleProcessed("completed")
	RecordStageConfidence("stage.date", 0.5)
	SetPatternStoreReachable(false)
}

// TestObservabilityNotInitialized confirms every exported function is
// safe to call before Init (as stage1-6, which are pure functions, may
// be exercised in isolation without a process-wide Init call).
func TestObservabilityNotInitialized(t *testing.T) {
	Reset()

	RecordTitleProcessed("completed")
	RecordStageConfidence("stage.topic", 0.8)
	RecordBatchDuration(time.Second)
	RecordRetry("stage_panic")
	RecordReviewFlag("very_low_confidence")
	SetPatternStoreReachable(true)

	assert.NotNil(t, Logger())
	assert.NotNil(t, Tracer())

	ctx := context.Background()
	ctx, span := StartSpan(ctx, "test.operation")
	assert.NotNil(t, span)
	assert.NotNil(t, ctx)
	span.End()
}

// TestStageSpanHierarchy exercises the batch-span/stage-span nesting the
// orchestrator builds around one title's pipeline run.
func TestStageSpanHierarchy(t *testing.T) {
	Reset()
	ctx := context.Background()
	config := &Config{Environment: "dev", MetricsEnabled: false, TracingEnabled: true}
	require.NoError(t, Init(ctx, config))
	defer func() { _ = Shutdown(ctx) }()

	ctx, batchSpan := StartBatchSpan(ctx, "batch_test", 2)
	defer batchSpan.End()

	stageNames := []string{
		SpanNameStageMarketTerm,
		SpanNameStageDate,
		SpanNameStageReportType,
		SpanNameStageGeography,
		SpanNameStageTopic,
		SpanNameStageConfidence,
	}
	for _, name := range stageNames {
		_, stageSpan := StartStageSpan(ctx, name, "batch_test_title_0000", "trace-abc")
		UpdateStageSpan(stageSpan, 0.9, "pattern-1", time.Millisecond)
		RecordSpanError(stageSpan, nil)
		stageSpan.End()
	}
}

// TestLoggingIntegration exercises the log-field helpers together.
func TestLoggingIntegration(t *testing.T) {
	Reset()
	ctx := context.Background()
	config := &Config{Environment: "dev", LogLevel: "debug", MetricsEnabled: false, TracingEnabled: true}
	require.NoError(t, Init(ctx, config))
	defer func() { _ = Shutdown(ctx) }()

	ctx, span := StartSpan(ctx, "test.operation")
	defer span.End()

	fields := CommonLogFields("batch_1", "batch_1_title_0000", "trace-1")
	require.Len(t, fields, 4)

	logFields := LogWithTrace(ctx, fields...)
	assert.GreaterOrEqual(t, len(logFields), len(fields))

	empty := CommonLogFields("", "", "")
	assert.Len(t, empty, 1)
}

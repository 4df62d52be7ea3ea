package obsv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInit(t *testing.T) {
	ctx := context.Background()
	defer Reset()

	config := &Config{
		ServiceName:    "titleparser-test",
		Environment:    "dev",
		LogLevel:       "info",
		MetricsAddr:    ":9091",
		MetricsEnabled: false,
		TracingEnabled: false,
	}

	err := Init(ctx, config)
	require.NoError(t, err)
	assert.NotNil(t, globalObsv)
	assert.Equal(t, config, globalObsv.config)

	require.NoError(t, Shutdown(ctx))
}

func TestInitTwiceFails(t *testing.T) {
	ctx := context.Background()
	defer Reset()

	config := &Config{Environment: "dev"}
	require.NoError(t, Init(ctx, config))
	require.Error(t, Init(ctx, config))
}

func TestLoggerFallsBackToNopBeforeInit(t *testing.T) {
	Reset()
	logger := Logger()
	assert.NotNil(t, logger)
}

func TestTracer(t *testing.T) {
	tracer := Tracer()
	assert.NotNil(t, tracer)
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()
	ctx, span := StartSpan(ctx, "test.operation")
	assert.NotNil(t, span)
	assert.NotNil(t, ctx)
	span.End()
}

func TestStartBatchSpan(t *testing.T) {
	ctx := context.Background()
	ctx, span := StartBatchSpan(ctx, "batch_test", 3)
	assert.NotNil(t, span)
	assert.NotNil(t, ctx)
	span.End()
}

func TestStartStageSpan(t *testing.T) {
	ctx := context.Background()
	ctx, span := StartStageSpan(ctx, SpanNameStageDate, "batch_test_title_0000", "trace-id-123")
	assert.NotNil(t, span)
	assert.NotNil(t, ctx)
	defer span.End()

	UpdateStageSpan(span, 0.92, "date-pattern-1", 5*time.Millisecond)
}

func TestRecordSpanError(t *testing.T) {
	ctx := context.Background()
	ctx, span := StartSpan(ctx, "test.operation")
	defer span.End()

	RecordSpanError(span, nil)
	RecordSpanError(span, assert.AnError)
}

func TestLogWithTrace(t *testing.T) {
	ctx := context.Background()
	ctx, span := StartSpan(ctx, "test.operation")
	defer span.End()

	fields := LogWithTrace(ctx, zap.String("key1", "value1"))
	assert.GreaterOrEqual(t, len(fields), 1)
}

func TestCommonLogFields(t *testing.T) {
	fields := CommonLogFields("batch_1", "batch_1_title_0000", "trace-1")
	assert.Len(t, fields, 4)
}

func TestCommonLogFieldsEmpty(t *testing.T) {
	fields := CommonLogFields("", "", "")
	assert.Len(t, fields, 1)
}

func TestMetricsFunctionsAreNoopsBeforeInit(t *testing.T) {
	Reset()
	RecordTitleProcessed("completed")
	RecordStageConfidence("stage.date", 0.9)
	RecordBatchDuration(100 * time.Millisecond)
	RecordRetry("stage_panic")
	RecordReviewFlag("low_confidence")
	SetPatternStoreReachable(true)
}

func TestSpanNames(t *testing.T) {
	assert.Equal(t, "titleparser.batch", SpanNameBatch)
	assert.Equal(t, "stage.market_term", SpanNameStageMarketTerm)
	assert.Equal(t, "stage.date", SpanNameStageDate)
	assert.Equal(t, "stage.report_type", SpanNameStageReportType)
	assert.Equal(t, "stage.geography", SpanNameStageGeography)
	assert.Equal(t, "stage.topic", SpanNameStageTopic)
	assert.Equal(t, "stage.confidence", SpanNameStageConfidence)
}

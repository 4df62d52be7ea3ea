// Package obsv is the titleparser observability facade: a process-wide
// logger, tracer, and metrics registry initialized once at startup and
// consulted by the CLI, the stage 7 orchestrator, and the report writer.
package obsv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Config controls how Init wires the logger, tracer, and metrics server.
type Config struct {
	ServiceName    string
	Environment    string // dev | staging | prod
	LogLevel       string
	MetricsEnabled bool
	MetricsAddr    string
	TracingEnabled bool
}

// Observability bundles the initialized logger and config behind the
// package-level singleton every other package reaches through Logger()
// and Tracer().
type Observability struct {
	config      *Config
	logger      *zap.Logger
	initialized bool
}

var (
	globalObsv *Observability
	globalMux  sync.RWMutex
)

// Init builds the process logger (zap, production or development
// depending on config.Environment, mirroring the teacher's
// NewOrchestrator environment switch) and, if enabled, starts the
// Prometheus exposition server.
func Init(ctx context.Context, config *Config) error {
	globalMux.Lock()
	defer globalMux.Unlock()

	if globalObsv != nil {
		return fmt.Errorf("observability already initialized")
	}

	logger, err := newLogger(config.Environment)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	if config.MetricsEnabled {
		if err := initMetrics(PrometheusConfig{Enabled: true, Addr: config.MetricsAddr}, logger); err != nil {
			logger.Error("failed to initialize prometheus metrics", zap.Error(err))
			return fmt.Errorf("failed to init metrics: %w", err)
		}
	}

	globalObsv = &Observability{
		config:      config,
		logger:      logger,
		initialized: true,
	}
	return nil
}

func newLogger(environment string) (*zap.Logger, error) {
	switch environment {
	case "prod", "staging":
		return zap.NewProduction()
	default:
		return zap.NewDevelopment()
	}
}

// Shutdown flushes the logger and stops the metrics server.
func Shutdown(ctx context.Context) error {
	globalMux.Lock()
	defer globalMux.Unlock()

	if globalObsv == nil {
		return nil
	}
	if err := shutdownMetrics(ctx); err != nil {
		globalObsv.logger.Error("failed to shut down metrics server", zap.Error(err))
	}
	_ = globalObsv.logger.Sync()
	globalObsv = nil
	return nil
}

// Reset clears the global observability state; for tests only.
func Reset() {
	globalMux.Lock()
	defer globalMux.Unlock()
	globalObsv = nil
}

// Logger returns the process logger, or a no-op logger before Init.
func Logger() *zap.Logger {
	globalMux.RLock()
	defer globalMux.RUnlock()
	if globalObsv == nil || !globalObsv.initialized {
		return zap.NewNop()
	}
	return globalObsv.logger
}

// Tracer returns the process tracer. No OTLP exporter is wired by
// default; a noop tracer keeps every span call cheap until an operator
// attaches a collector.
func Tracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("titleparser")
}

// StartSpan starts a span under the package tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// Span names, one per pipeline stage plus the batch root.
const (
	SpanNameBatch           = "titleparser.batch"
	SpanNameStageMarketTerm = "stage.market_term"
	SpanNameStageDate       = "stage.date"
	SpanNameStageReportType = "stage.report_type"
	SpanNameStageGeography  = "stage.geography"
	SpanNameStageTopic      = "stage.topic"
	SpanNameStageConfidence = "stage.confidence"
)

// StartBatchSpan creates the root span for one batch run.
func StartBatchSpan(ctx context.Context, batchID string, titleCount int) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("batch_id", batchID),
		attribute.Int("title_count", titleCount),
	}
	return StartSpan(ctx, SpanNameBatch, trace.WithAttributes(attrs...))
}

// StartStageSpan creates a span for one stage invocation against one
// title, tagged with the title's trace id for cross-referencing logs.
func StartStageSpan(ctx context.Context, spanName, processingID, titleTraceID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("processing_id", processingID),
		attribute.String("title_trace_id", titleTraceID),
	}
	return StartSpan(ctx, spanName, trace.WithAttributes(attrs...))
}

// UpdateStageSpan records the stage's confidence and matched pattern id
// once the stage returns.
func UpdateStageSpan(span trace.Span, confidence float64, matchedPatternID string, elapsed time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.Float64("confidence", confidence),
		attribute.String("matched_pattern_id", matchedPatternID),
		attribute.Int64("elapsed_ms", elapsed.Milliseconds()),
	}
	span.SetAttributes(attrs...)
}

// RecordSpanError records an error on a span and marks it failed.
func RecordSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// LogWithTrace appends the active span's trace/span id to a zap field
// slice, the titleparser analogue of the teacher's slog-attrs helper.
func LogWithTrace(ctx context.Context, fields ...zap.Field) []zap.Field {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		fields = append(fields,
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	return fields
}

// CommonLogFields builds the zap fields every pipeline log line carries.
func CommonLogFields(batchID, processingID, titleTraceID string) []zap.Field {
	fields := []zap.Field{zap.String("source", "titleparser")}
	if batchID != "" {
		fields = append(fields, zap.String("batch_id", batchID))
	}
	if processingID != "" {
		fields = append(fields, zap.String("processing_id", processingID))
	}
	if titleTraceID != "" {
		fields = append(fields, zap.String("title_trace_id", titleTraceID))
	}
	return fields
}

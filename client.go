// Package titleparser provides a high-level interface for parsing
// market-research report titles into structured elements: market-term
// classification, forecast date range, report type, geographic regions,
// and topic, each carrying a confidence score.
package titleparser

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/marketlens/titleparser/internal/config"
	"github.com/marketlens/titleparser/internal/obsv"
	"github.com/marketlens/titleparser/internal/patterns"
	"github.com/marketlens/titleparser/internal/pipeline/stage2"
	"github.com/marketlens/titleparser/internal/pipeline/stage6"
	"github.com/marketlens/titleparser/internal/pipeline/stage7"
)

// Parser is the package's high-level entry point: one pattern store
// connection, one confidence tracker, one stage 7 orchestrator.
type Parser struct {
	store        patterns.Store
	orchestrator *stage7.Orchestrator
	tracker      *stage6.Tracker
	logger       *zap.Logger
}

// New connects to the pattern store named by cfg.Store.URI, loads every
// pattern kind, and wires a stage 7 orchestrator around it. A
// Mongo-backed ResultSink is wired automatically, reusing the pattern
// store's own connection (spec §4.7.6) instead of dialing Mongo twice.
func New(ctx context.Context, cfg config.Config) (*Parser, error) {
	logger := obsv.Logger()

	mongoCfg := patterns.DefaultMongoConfig()
	mongoCfg.URI = cfg.Store.URI
	if cfg.Store.Database != "" {
		mongoCfg.Database = cfg.Store.Database
	}

	store, err := patterns.NewMongoStore(ctx, mongoCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pattern store: %w", err)
	}

	sink := stage7.NewMongoResultSink(store.Client(), stage7.MongoResultSinkConfig{
		Database:   mongoCfg.Database,
		Collection: "markets_processed",
	}, logger)

	return newParser(store, sink, cfg, logger), nil
}

// NewWithStore builds a Parser around an already-constructed Store
// (typically a patterns.StaticStore) and a caller-supplied ResultSink,
// for tests and offline/local runs that never touch Mongo.
func NewWithStore(store patterns.Store, sink stage7.ResultSink, cfg config.Config) *Parser {
	if sink == nil {
		sink = stage7.NoopResultSink{}
	}
	return newParser(store, sink, cfg, obsv.Logger())
}

func newParser(store patterns.Store, sink stage7.ResultSink, cfg config.Config, logger *zap.Logger) *Parser {
	tracker := stage6.NewTracker(logger)
	window := stage2.YearWindow{Min: cfg.DateWindow.MinYear, Max: cfg.DateWindow.MaxYear}
	if window.Min == 0 && window.Max == 0 {
		window = stage2.DefaultYearWindow()
	}

	orchConfig := stage7.DefaultConfig()
	if cfg.Batch.Size > 0 {
		orchConfig.BatchSize = cfg.Batch.Size
	}
	if cfg.Retry.Attempts > 0 {
		orchConfig.RetryAttempts = cfg.Retry.Attempts
	}
	if cfg.Retry.BaseMs > 0 {
		orchConfig.RetryBase = time.Duration(cfg.Retry.BaseMs) * time.Millisecond
	}
	if cfg.Timeout.Seconds > 0 {
		orchConfig.TimeoutSeconds = time.Duration(cfg.Timeout.Seconds) * time.Second
	}

	orchestrator := stage7.NewOrchestrator(store, window, tracker, sink, orchConfig, logger)

	return &Parser{
		store:        store,
		orchestrator: orchestrator,
		tracker:      tracker,
		logger:       logger,
	}
}

// ParseTitle runs one title through the full seven-stage pipeline and
// returns its processing result. The batch id is synthesized as a
// single-title ad hoc batch (spec §4.7.2 describes batch ids as
// timestamp-derived regardless of batch size).
func (p *Parser) ParseTitle(ctx context.Context, title string) stage7.ProcessingResult {
	batchID := stage7.GenerateBatchID()
	return p.orchestrator.ProcessTitle(ctx, title, batchID, 0)
}

// ParseBatch runs every title through the pipeline in parallel and
// returns each title's result alongside aggregate batch statistics
// (spec §4.7.5). An empty batch id is generated automatically.
func (p *Parser) ParseBatch(ctx context.Context, titles []string) ([]stage7.ProcessingResult, stage7.BatchStats) {
	return p.orchestrator.ProcessBatch(ctx, titles, "")
}

// ParseBatchWithID is ParseBatch with a caller-supplied batch id, for
// callers that need to correlate the batch with an external job id.
func (p *Parser) ParseBatchWithID(ctx context.Context, titles []string, batchID string) ([]stage7.ProcessingResult, stage7.BatchStats) {
	return p.orchestrator.ProcessBatch(ctx, titles, batchID)
}

// Statistics returns the cumulative processing statistics across every
// batch this Parser has run.
func (p *Parser) Statistics() stage7.ProcessingStatistics {
	return p.orchestrator.ProcessingStatistics()
}

// Patterns exposes the underlying pattern store for inspection (the
// CLI's `patterns` subcommand lists and validates loaded patterns this
// way, without duplicating store-connection logic).
func (p *Parser) Patterns() patterns.Store {
	return p.store
}

// Close releases the pattern store's connection. A no-op for
// patterns.StaticStore.
func (p *Parser) Close(ctx context.Context) error {
	return p.store.Close(ctx)
}

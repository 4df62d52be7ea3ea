// Package stage7 is the pipeline orchestrator: it generates batch and
// per-title identifiers, drives every title through stages 1-6 in order,
// applies the retry policy, and persists results. Batch reports are
// written by internal/report.
package stage7

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/marketlens/titleparser/internal/patterns"
	"github.com/marketlens/titleparser/internal/pipeline/stage1"
	"github.com/marketlens/titleparser/internal/pipeline/stage2"
	"github.com/marketlens/titleparser/internal/pipeline/stage3"
	"github.com/marketlens/titleparser/internal/pipeline/stage4"
	"github.com/marketlens/titleparser/internal/pipeline/stage5"
	"github.com/marketlens/titleparser/internal/pipeline/stage6"
)

// Status is a processing result's lifecycle state (spec §3.2).
type Status string

const (
	StatusPending        Status = "pending"
	StatusProcessing     Status = "processing"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusRequiresReview Status = "requires_review"
)

// Config controls batch sizing, retry policy, per-title timeout, and
// dispatch throttling. Defaults mirror spec §4.7/§6.4.
type Config struct {
	BatchSize      int
	RetryAttempts  int
	RetryBase      time.Duration
	TimeoutSeconds time.Duration
	Concurrency    int
	QPS            float64
}

// DefaultConfig returns spec §6.4's defaults: batch size 100, 3 retries,
// 30s per-title timeout.
func DefaultConfig() Config {
	return Config{
		BatchSize:      100,
		RetryAttempts:  3,
		RetryBase:      time.Second,
		TimeoutSeconds: 30 * time.Second,
		Concurrency:    8,
		QPS:            50,
	}
}

// ExtractedElements is the consolidated structured output of stages 1-5
// for one title (spec §6.2).
type ExtractedElements struct {
	MarketTermType              string
	ExtractedForecastDateRange  string
	ExtractedReportType         string
	ExtractedRegions            []string
	Topic                       string
	TopicName                   string
}

// ComponentResults carries every stage's raw result record, for audit
// and for inclusion in the persisted document (spec §3.2, §6.2).
type ComponentResults struct {
	MarketClassification stage1.Result
	DateExtraction       stage2.Result
	ReportExtraction     stage3.Result
	GeographicDetection  stage4.Result
	TopicExtraction      stage5.Result
	ConfidenceAnalysis   stage6.Analysis
}

// ProcessingResult is the per-title output record (spec §6.2).
type ProcessingResult struct {
	Title            string
	OriginalTitle    string
	BatchID          string
	ProcessingID     string
	TraceID          string
	Status           Status
	Elements         ExtractedElements
	ConfidenceAnalysis *stage6.Analysis
	ProcessingTime   time.Duration
	ErrorMessage     string
	ComponentResults *ComponentResults
	CreatedTimestamp string
	Flags            []string
}

// Document renders the result into the flat schema spec §6.2 describes,
// suitable for bson/json marshaling by a ResultSink or report writer.
func (r ProcessingResult) Document() map[string]interface{} {
	var confidence map[string]interface{}
	if r.ConfidenceAnalysis != nil {
		a := r.ConfidenceAnalysis
		confidence = map[string]interface{}{
			"overall":          a.OverallConfidence,
			"level":            string(a.Level),
			"review_flag":      string(a.ReviewFlag),
			"component_scores": a.ComponentScores,
			"completeness":     a.ExtractionCompleteness,
			"quality":          a.QualityIndicators,
		}
	}
	return map[string]interface{}{
		"_id":                           r.ProcessingID,
		"batch_id":                      r.BatchID,
		"processing_id":                 r.ProcessingID,
		"original_title":                r.OriginalTitle,
		"status":                        string(r.Status),
		"market_term_type":              r.Elements.MarketTermType,
		"extracted_forecast_date_range": r.Elements.ExtractedForecastDateRange,
		"extracted_report_type":         r.Elements.ExtractedReportType,
		"extracted_regions":             r.Elements.ExtractedRegions,
		"topic":                         r.Elements.Topic,
		"topic_name":                    r.Elements.TopicName,
		"confidence_analysis":           confidence,
		"component_results":             r.ComponentResults,
		"processing_time_seconds":       r.ProcessingTime.Seconds(),
		"flags":                         r.Flags,
		"created_timestamp":             r.CreatedTimestamp,
	}
}

// BatchStats summarizes one processBatch call (spec §4.7.5).
type BatchStats struct {
	BatchID          string
	TotalTitles      int
	Completed        int
	Failed           int
	RequiresReview   int
	ProcessingTime   time.Duration
	SuccessRate      float64
	TitlesPerSecond  float64
	StartTimestamp   string
	EndTimestamp     string
}

// ProcessingStatistics is a cumulative snapshot across every batch an
// Orchestrator has run.
type ProcessingStatistics struct {
	BatchesProcessed      int
	TotalTitlesProcessed  int
	SuccessfulExtractions int
	FailedExtractions     int
	RequiresReviewCount   int
	TotalProcessingTime   time.Duration
	OverallSuccessRate    float64
	OverallReviewRate     float64
	OverallFailureRate    float64
	OverallTitlesPerSecond float64
}

// Orchestrator drives titles through stages 1-6, retries failures,
// persists results, and tracks cumulative statistics. An Orchestrator is
// safe for concurrent use; ProcessBatch itself parallelizes across
// titles (spec §5 "parallel threads at the batch level").
type Orchestrator struct {
	store   patterns.Store
	window  stage2.YearWindow
	tracker *stage6.Tracker
	sink    ResultSink
	config  Config
	logger  *zap.Logger
	limiter *rate.Limiter

	mu    sync.Mutex
	stats ProcessingStatistics
}

// NewOrchestrator constructs an Orchestrator. A nil tracker, sink, or
// logger is replaced with a usable default (a fresh stage6.Tracker, a
// NoopResultSink, and a no-op logger respectively).
func NewOrchestrator(store patterns.Store, window stage2.YearWindow, tracker *stage6.Tracker, sink ResultSink, config Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = NoopResultSink{}
	}
	if tracker == nil {
		tracker = stage6.NewTracker(logger)
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 8
	}
	if config.QPS <= 0 {
		config.QPS = 50
	}
	o := &Orchestrator{
		store:   store,
		window:  window,
		tracker: tracker,
		sink:    sink,
		config:  config,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(config.QPS), int(config.QPS)+1),
	}
	logger.Info("pipeline orchestrator initialized")
	return o
}

// GenerateBatchID encodes a timestamp at microsecond resolution (spec
// §4.7.2).
func GenerateBatchID() string {
	now := time.Now().UTC()
	return fmt.Sprintf("batch_%s_%06d", now.Format("20060102_150405"), now.Nanosecond()/1000)
}

func generateProcessingID(batchID string, index int) string {
	return fmt.Sprintf("%s_title_%04d", batchID, index)
}

// timestamps returns the Pacific and UTC renderings of now, the dual
// header every text artifact and created-timestamp field carries.
func timestamps() (pdt string, utc string) {
	now := time.Now().UTC()
	utc = now.Format("2006-01-02 15:04:05") + " UTC"
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		return utc, utc
	}
	pdt = now.In(loc).Format("2006-01-02 15:04:05 MST")
	return pdt, utc
}

type stageOutcome struct {
	components ComponentResults
	elements   ExtractedElements
	err        error
}

// runStages invokes stages 1-5 in strict order, chaining each stage's
// working string into the next (spec §4.7.3): stage 2 removes the date
// from title; stage 3 consumes stage 2's cleaned title and may produce a
// connector-title pipeline-forward string; stage 4 consumes stage 3's
// output; stage 5 consumes stage 4's cleaned title plus the structured
// elements collected so far.
func runStages(store patterns.Store, window stage2.YearWindow, title string) (ComponentResults, ExtractedElements) {
	classResult := stage1.Classify(store, title)
	dateResult := stage2.Extract(store, title, window)
	reportResult := stage3.Extract(store, dateResult.CleanedTitle, classResult.Class, title)
	geoResult := stage4.Extract(store, reportResult.PipelineForwardTitle)
	topicResult := stage5.Extract(geoResult.CleanedTitle, classResult.Class, stage5.Elements{
		DateRange:  dateResult.DateRange,
		ReportType: reportResult.ReportType,
		Regions:    geoResult.Regions,
	})

	components := ComponentResults{
		MarketClassification: classResult,
		DateExtraction:       dateResult,
		ReportExtraction:     reportResult,
		GeographicDetection:  geoResult,
		TopicExtraction:      topicResult,
	}
	elements := ExtractedElements{
		MarketTermType:             string(classResult.Class),
		ExtractedForecastDateRange: dateResult.DateRange,
		ExtractedReportType:        reportResult.ReportType,
		ExtractedRegions:           geoResult.Regions,
		Topic:                      topicResult.Topic,
		TopicName:                  topicResult.NormalizedTopic,
	}
	return components, elements
}

// attemptOnce runs stages 1-5 under the per-title timeout, converting an
// unrecovered stage panic or a timeout into an error eligible for retry
// (spec §4.7.4, §5 "Cancellation & timeouts").
func (o *Orchestrator) attemptOnce(ctx context.Context, title string) stageOutcome {
	ctx, cancel := context.WithTimeout(ctx, o.config.TimeoutSeconds)
	defer cancel()

	ch := make(chan stageOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- stageOutcome{err: fmt.Errorf("stage panic: %v", r)}
			}
		}()
		components, elements := runStages(o.store, o.window, title)
		ch <- stageOutcome{components: components, elements: elements}
	}()

	select {
	case out := <-ch:
		return out
	case <-ctx.Done():
		return stageOutcome{err: fmt.Errorf("title processing timed out: %w", ctx.Err())}
	}
}

// ProcessTitle processes one title through the full pipeline, retrying
// on stage failure with exponential backoff, and returns exactly one
// ProcessingResult regardless of outcome (spec §4.7.3, §7 "no title is
// silently dropped").
func (o *Orchestrator) ProcessTitle(ctx context.Context, title, batchID string, index int) ProcessingResult {
	processingID := generateProcessingID(batchID, index)
	pdt, _ := timestamps()
	start := time.Now()

	result := ProcessingResult{
		Title:            title,
		OriginalTitle:    title,
		BatchID:          batchID,
		ProcessingID:     processingID,
		TraceID:          uuid.NewString(),
		Status:           StatusProcessing,
		CreatedTimestamp: pdt,
	}

	var outcome stageOutcome
	for attempt := 0; attempt <= o.config.RetryAttempts; attempt++ {
		outcome = o.attemptOnce(ctx, title)
		if outcome.err == nil {
			break
		}
		o.logger.Warn("stage processing error",
			zap.String("processing_id", processingID),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", o.config.RetryAttempts+1),
			zap.Error(outcome.err))
		if attempt < o.config.RetryAttempts {
			time.Sleep(backoffSchedule(attempt, o.config.RetryBase))
		}
	}

	result.Elements = outcome.elements
	result.ComponentResults = &outcome.components

	if outcome.err != nil {
		result.Status = StatusFailed
		result.ErrorMessage = fmt.Sprintf("error processing title %q: %v", title, outcome.err)
		result.Flags = append(result.Flags, "processing_error")
		result.ProcessingTime = time.Since(start)
		return result
	}

	analysis := o.tracker.Analyze(stage6.ExtractionResult{
		Title:                          title,
		OriginalTitle:                  title,
		MarketTermType:                 result.Elements.MarketTermType,
		MarketClassificationConfidence: outcome.components.MarketClassification.Confidence,
		DateRange:                      result.Elements.ExtractedForecastDateRange,
		DateExtractionConfidence:       outcome.components.DateExtraction.Confidence,
		ReportType:                     result.Elements.ExtractedReportType,
		ReportExtractionConfidence:     outcome.components.ReportExtraction.Confidence,
		Regions:                        result.Elements.ExtractedRegions,
		GeographicDetectionConfidence:  outcome.components.GeographicDetection.Confidence,
		Topic:                          result.Elements.Topic,
		TopicName:                      result.Elements.TopicName,
		TopicExtractionConfidence:      outcome.components.TopicExtraction.Confidence,
		ProcessingTime:                 time.Since(start),
	})
	outcome.components.ConfidenceAnalysis = analysis
	result.ComponentResults = &outcome.components
	result.ConfidenceAnalysis = &analysis

	if analysis.OverallConfidence < 0.8 {
		result.Status = StatusRequiresReview
		result.Flags = append(result.Flags, "low_confidence")
	} else {
		result.Status = StatusCompleted
	}
	if result.Elements.Topic == "" {
		result.Flags = append(result.Flags, "no_topic_extracted")
	}
	if analysis.OverallConfidence < 0.5 {
		result.Flags = append(result.Flags, "very_low_confidence")
	}

	result.ProcessingTime = time.Since(start)
	return result
}

// ProcessBatch processes titles independently and in parallel (spec §5),
// reporting progress every 10 titles, then persists the batch and
// returns per-title results plus batch statistics. An empty batchID is
// auto-generated.
func (o *Orchestrator) ProcessBatch(ctx context.Context, titles []string, batchID string) ([]ProcessingResult, BatchStats) {
	if batchID == "" {
		batchID = GenerateBatchID()
	}
	start := time.Now()
	pdtStart, _ := timestamps()
	o.logger.Info("starting batch processing", zap.String("batch_id", batchID), zap.Int("titles", len(titles)))

	results := make([]ProcessingResult, len(titles))
	var processed int64
	var wg sync.WaitGroup
	sem := make(chan struct{}, o.config.Concurrency)

	for i, title := range titles {
		wg.Add(1)
		go func(i int, title string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := o.limiter.Wait(ctx); err != nil {
				o.logger.Warn("rate limiter wait interrupted", zap.Error(err))
			}
			results[i] = o.ProcessTitle(ctx, title, batchID, i)

			if n := atomic.AddInt64(&processed, 1); n%10 == 0 {
				o.trackProgress(int(n), len(titles), batchID)
			}
		}(i, title)
	}
	wg.Wait()
	o.trackProgress(len(titles), len(titles), batchID)

	processingTime := time.Since(start)
	pdtEnd, _ := timestamps()

	var completed, failed, requiresReview int
	for _, r := range results {
		switch r.Status {
		case StatusCompleted:
			completed++
		case StatusFailed:
			failed++
		case StatusRequiresReview:
			requiresReview++
		}
	}

	var successRate, titlesPerSecond float64
	if len(titles) > 0 {
		successRate = float64(completed) / float64(len(titles))
	}
	if processingTime > 0 {
		titlesPerSecond = float64(len(titles)) / processingTime.Seconds()
	}

	stats := BatchStats{
		BatchID:         batchID,
		TotalTitles:     len(titles),
		Completed:       completed,
		Failed:          failed,
		RequiresReview:  requiresReview,
		ProcessingTime:  processingTime,
		SuccessRate:     successRate,
		TitlesPerSecond: titlesPerSecond,
		StartTimestamp:  pdtStart,
		EndTimestamp:    pdtEnd,
	}

	o.mu.Lock()
	o.stats.BatchesProcessed++
	o.stats.TotalTitlesProcessed += len(titles)
	o.stats.SuccessfulExtractions += completed
	o.stats.FailedExtractions += failed
	o.stats.RequiresReviewCount += requiresReview
	o.stats.TotalProcessingTime += processingTime
	o.mu.Unlock()

	if err := o.sink.SaveBatch(ctx, results); err != nil {
		o.logger.Error("failed to persist batch results", zap.String("batch_id", batchID), zap.Error(err))
	}

	o.logger.Info("batch processing complete",
		zap.String("batch_id", batchID),
		zap.Int("completed", completed),
		zap.Int("failed", failed),
		zap.Int("requires_review", requiresReview),
		zap.Float64("success_rate", successRate),
		zap.Float64("titles_per_second", titlesPerSecond))

	return results, stats
}

func (o *Orchestrator) trackProgress(current, total int, batchID string) {
	var pct float64
	if total > 0 {
		pct = float64(current) / float64(total) * 100
	}
	o.logger.Info("progress", zap.String("batch_id", batchID), zap.Int("current", current), zap.Int("total", total), zap.Float64("percent", pct))
}

// ProcessingStatistics returns a cumulative snapshot across every batch
// this Orchestrator has run.
func (o *Orchestrator) ProcessingStatistics() ProcessingStatistics {
	o.mu.Lock()
	defer o.mu.Unlock()
	stats := o.stats
	if stats.TotalTitlesProcessed > 0 {
		stats.OverallSuccessRate = float64(stats.SuccessfulExtractions) / float64(stats.TotalTitlesProcessed)
		stats.OverallReviewRate = float64(stats.RequiresReviewCount) / float64(stats.TotalTitlesProcessed)
		stats.OverallFailureRate = float64(stats.FailedExtractions) / float64(stats.TotalTitlesProcessed)
	}
	if stats.TotalProcessingTime > 0 {
		stats.OverallTitlesPerSecond = float64(stats.TotalTitlesProcessed) / stats.TotalProcessingTime.Seconds()
	}
	return stats
}

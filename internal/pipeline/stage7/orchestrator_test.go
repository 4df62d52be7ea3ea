package stage7

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marketlens/titleparser/internal/patterns"
	"github.com/marketlens/titleparser/internal/pipeline/stage2"
)

func testStore(t *testing.T) patterns.Store {
	t.Helper()
	return patterns.NewStaticStore(patterns.Seed(), nil)
}

func testOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.TimeoutSeconds = 5 * time.Second
	return NewOrchestrator(testStore(t), stage2.DefaultYearWindow(), nil, nil, cfg, nil)
}

func TestGenerateBatchIDIsUniqueEnough(t *testing.T) {
	a := GenerateBatchID()
	time.Sleep(time.Microsecond)
	b := GenerateBatchID()
	require.NotEmpty(t, a)
	require.Contains(t, a, "batch_")
	require.NotEqual(t, a, b)
}

func TestGenerateProcessingIDFormat(t *testing.T) {
	id := generateProcessingID("batch_20260101_000000_000000", 7)
	require.Equal(t, "batch_20260101_000000_000000_title_0007", id)
}

func TestProcessTitleCompletesHighConfidenceTitle(t *testing.T) {
	o := testOrchestrator(t)
	result := o.ProcessTitle(context.Background(), "Global Artificial Intelligence Market Size & Share Report, 2030", "batch_test", 0)

	require.Equal(t, "batch_test", result.BatchID)
	require.Equal(t, "batch_test_title_0000", result.ProcessingID)
	require.NotEmpty(t, result.TraceID)
	require.NotEmpty(t, result.Elements.ExtractedForecastDateRange)
	require.NotNil(t, result.ConfidenceAnalysis)
	require.NotNil(t, result.ComponentResults)
	require.Empty(t, result.ErrorMessage)
	require.Contains(t, []Status{StatusCompleted, StatusRequiresReview}, result.Status)
}

func TestProcessTitleNeverDropsATitleOnStageFailure(t *testing.T) {
	o := testOrchestrator(t)
	o.config.RetryAttempts = 1
	o.config.TimeoutSeconds = time.Nanosecond

	result := o.ProcessTitle(context.Background(), "North America Widget Market, 2029-2035", "batch_timeout", 1)

	require.Equal(t, StatusFailed, result.Status)
	require.NotEmpty(t, result.ErrorMessage)
	require.Contains(t, result.Flags, "processing_error")
}

func TestProcessBatchReportsStatsForAllTitles(t *testing.T) {
	o := testOrchestrator(t)
	titles := []string{
		"Global Artificial Intelligence Market Size & Share Report, 2030",
		"North America Widget Market Forecast, 2025-2032",
		"Asia Pacific Electric Vehicle Market Analysis",
	}
	results, stats := o.ProcessBatch(context.Background(), titles, "")

	require.Len(t, results, len(titles))
	require.NotEmpty(t, stats.BatchID)
	require.Equal(t, len(titles), stats.TotalTitles)
	require.Equal(t, stats.Completed+stats.Failed+stats.RequiresReview, stats.TotalTitles)

	for i, r := range results {
		require.Equal(t, i, indexFromProcessingID(t, stats.BatchID, r.ProcessingID))
	}

	snapshot := o.ProcessingStatistics()
	require.Equal(t, 1, snapshot.BatchesProcessed)
	require.Equal(t, len(titles), snapshot.TotalTitlesProcessed)
}

func indexFromProcessingID(t *testing.T, batchID, processingID string) int {
	t.Helper()
	for i := 0; i < 10000; i++ {
		if generateProcessingID(batchID, i) == processingID {
			return i
		}
	}
	t.Fatalf("could not recover index from processing id %q", processingID)
	return -1
}

func TestBackoffScheduleDoublesWithoutJitter(t *testing.T) {
	require.Equal(t, time.Second, backoffSchedule(0, time.Second))
	require.Equal(t, 2*time.Second, backoffSchedule(1, time.Second))
	require.Equal(t, 4*time.Second, backoffSchedule(2, time.Second))
}

func TestNoopResultSinkAlwaysSucceeds(t *testing.T) {
	sink := NoopResultSink{}
	require.NoError(t, sink.SaveBatch(context.Background(), []ProcessingResult{{ProcessingID: "x"}}))
	require.NoError(t, sink.SaveBatch(context.Background(), nil))
}

type failingSink struct{}

func (failingSink) SaveBatch(context.Context, []ProcessingResult) error {
	return errors.New("connection refused")
}

func TestProcessBatchSurvivesPersistenceFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimeoutSeconds = 5 * time.Second
	o := NewOrchestrator(testStore(t), stage2.DefaultYearWindow(), nil, failingSink{}, cfg, nil)

	results, stats := o.ProcessBatch(context.Background(), []string{"Global Widget Market Report"}, "batch_persist")
	require.Len(t, results, 1)
	require.Equal(t, 1, stats.TotalTitles)
}

func TestDocumentIncludesCoreFields(t *testing.T) {
	r := ProcessingResult{
		Title:         "Global Widget Market",
		OriginalTitle: "Global Widget Market",
		BatchID:       "batch_doc",
		ProcessingID:  "batch_doc_title_0000",
		Status:        StatusCompleted,
		Elements: ExtractedElements{
			MarketTermType:     "standard",
			ExtractedRegions:   []string{"Global"},
			Topic:              "Widget",
			TopicName:          "widget",
		},
	}
	doc := r.Document()
	require.Equal(t, "batch_doc_title_0000", doc["_id"])
	require.Equal(t, "completed", doc["status"])
	require.Equal(t, "Widget", doc["topic"])
}

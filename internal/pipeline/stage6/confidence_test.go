package stage6

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func highQualityResult() ExtractionResult {
	return ExtractionResult{
		Title:                           "Global Artificial Intelligence Market Size & Share Report, 2030",
		OriginalTitle:                   "Global Artificial Intelligence Market Size & Share Report, 2030",
		MarketTermType:                  "standard",
		MarketClassificationConfidence:  0.95,
		DateRange:                       "2030",
		DateExtractionConfidence:        0.98,
		ReportType:                      "Market Size & Share Report",
		ReportExtractionConfidence:      0.92,
		Regions:                         []string{"Global"},
		GeographicDetectionConfidence:   0.85,
		Topic:                           "Artificial Intelligence",
		TopicName:                       "artificial-intelligence",
		TopicExtractionConfidence:       0.88,
		ProcessingTime:                  250 * time.Millisecond,
	}
}

func TestAnalyzeHighQualityYieldsNoReview(t *testing.T) {
	tracker := NewTracker(nil)
	analysis := tracker.Analyze(highQualityResult())

	require.Equal(t, ReviewNone, analysis.ReviewFlag)
	require.True(t, analysis.OverallConfidence >= reviewThreshold)
	require.Equal(t, 1.0, analysis.ExtractionCompleteness)
	require.Empty(t, analysis.ConfusionPatterns)
}

func TestAnalyzeLowConfidenceFlagsCriticalReview(t *testing.T) {
	tracker := NewTracker(nil)
	result := ExtractionResult{
		Title:                          "Complex Technical Title with Issues",
		OriginalTitle:                  "Complex Technical Title with Issues",
		MarketTermType:                 "ambiguous",
		MarketClassificationConfidence: 0.45,
		DateExtractionConfidence:       0.30,
		ReportExtractionConfidence:     0.25,
		GeographicDetectionConfidence:  0.20,
		Topic:                          "Technical Title",
		TopicName:                      "technical-title",
		TopicExtractionConfidence:      0.55,
		Errors:                         []string{"Pattern matching failed", "Ambiguous structure"},
	}
	analysis := tracker.Analyze(result)

	require.Equal(t, ReviewCritical, analysis.ReviewFlag)
	require.Equal(t, LevelVeryLow, analysis.Level)
	require.Less(t, analysis.OverallConfidence, criticalReviewThreshold)
}

func TestAnalyzeFlagsDatePatternPresentButMissed(t *testing.T) {
	tracker := NewTracker(nil)
	result := ExtractionResult{
		Title:                    "Something Market Forecast 2029",
		DateExtractionConfidence: 0.5,
	}
	analysis := tracker.Analyze(result)

	found := false
	for _, p := range analysis.ConfusionPatterns {
		if p == "date_extraction: Date pattern present but not extracted" {
			found = true
		}
	}
	require.True(t, found)
}

func TestAnalyzeDetectsRegionConflictInTopic(t *testing.T) {
	tracker := NewTracker(nil)
	result := ExtractionResult{
		Title:                         "North America Widget Market",
		Topic:                         "North America Widget",
		Regions:                       []string{"North America"},
		GeographicDetectionConfidence: 0.9,
	}
	analysis := tracker.Analyze(result)

	require.Contains(t, analysis.ConfusionPatterns, `Region "North America" appears in both topic and region extraction`)
}

func TestPerformanceMetricsAggregatesAcrossCalls(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.Analyze(highQualityResult())
	tracker.Analyze(highQualityResult())

	metrics := tracker.PerformanceMetrics()
	require.Equal(t, 2, metrics.TotalProcessed)
	require.Equal(t, 0, metrics.FlaggedForReview)
	require.Equal(t, "insufficient_data", metrics.TrendDirection)
}

func TestGetDistributionBucketsScores(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.Analyze(highQualityResult())

	dist := tracker.GetDistribution()
	require.Equal(t, 1, dist.TotalSamples)
	require.Len(t, dist.HistogramBins, 6)
}

func TestShouldFlagForReview(t *testing.T) {
	require.True(t, ShouldFlagForReview(0.5))
	require.False(t, ShouldFlagForReview(0.95))
}

// Package stage6 aggregates the per-component confidence scores produced
// by stages 1-5 into a single overall confidence, decides whether a title
// needs human review, and tracks confusion patterns and rolling
// performance metrics across everything the pipeline has processed.
package stage6

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Level buckets an overall confidence score into a human-readable tier.
type Level string

const (
	LevelHigh     Level = "high"
	LevelGood     Level = "good"
	LevelMedium   Level = "medium"
	LevelLow      Level = "low"
	LevelVeryLow  Level = "very_low"
)

// ReviewFlag is the human-review escalation assigned to a title.
type ReviewFlag string

const (
	ReviewNone     ReviewFlag = "no_review"
	ReviewStandard ReviewFlag = "standard_review"
	ReviewPriority ReviewFlag = "priority_review"
	ReviewCritical ReviewFlag = "critical_review"
)

// component weights: importance of each pipeline stage in the overall score.
var componentWeights = map[string]float64{
	"market_classification": 0.15,
	"date_extraction":       0.20,
	"report_extraction":     0.15,
	"geographic_detection":  0.25,
	"topic_extraction":      0.25,
}

// componentOrder fixes iteration order so weighted-average math and the
// exported component breakdown are deterministic across calls.
var componentOrder = []string{
	"market_classification",
	"date_extraction",
	"report_extraction",
	"geographic_detection",
	"topic_extraction",
}

// completenessWeights penalize missing extractions.
var completenessWeights = map[string]float64{
	"date_missing":    -0.10,
	"report_missing":  -0.05,
	"regions_missing": -0.15,
	"topic_missing":   -0.30,
}

const (
	qualityTechnicalCompounds = 0.05
	qualityProperNormalization = 0.03
	qualityProcessingErrors    = -0.15

	reviewThreshold         = 0.8
	priorityReviewThreshold = 0.6
	criticalReviewThreshold = 0.4

	lowConfidenceThreshold = 0.7
)

var (
	topicYearRe       = regexp.MustCompile(`\b20[0-9]{2}\b`)
	titleYearRe       = regexp.MustCompile(`\b(20[0-9]{2}|19[0-9]{2})\b`)
	technicalCompound = regexp.MustCompile(`\b[A-Z0-9]+\b`)
	normalizedSlug    = regexp.MustCompile(`^[a-z0-9-]+$`)
)

var commonReportTerms = []string{"report", "analysis", "study", "outlook", "forecast"}
var commonRegionTerms = []string{"global", "north america", "europe", "asia", "apac", "china", "us", "uk"}

// ExtractionResult is the consolidated output of stages 1-5 for one title,
// the input to confidence aggregation.
type ExtractionResult struct {
	Title         string
	OriginalTitle string

	MarketTermType               string
	MarketClassificationConfidence float64

	DateRange               string
	DateExtractionConfidence float64

	ReportType               string
	ReportExtractionConfidence float64

	Regions                       []string
	GeographicDetectionConfidence float64

	Topic                     string
	TopicName                 string
	TopicExtractionConfidence float64

	ProcessingTime time.Duration
	Errors         []string
}

// QualityIndicators is the diagnostic breakdown behind an Analysis's
// overall confidence, exposed so callers can render or log it.
type QualityIndicators struct {
	ExtractionCompleteness  float64
	WeightedComponentScore  float64
	CompletenessAdjustment  float64
	QualityAdjustment       float64
	ComponentBreakdown      map[string]float64
	ProcessingTimeMS        float64
}

// ConfusionPattern records a single low-confidence or conflicting
// component result for later pattern-library review.
type ConfusionPattern struct {
	Title         string
	Component     string
	ActualResult  string
	Confidence    float64
	PatternIssue  string
	Timestamp     time.Time
}

// Analysis is Stage 6's output: the overall confidence assessment for one
// title.
type Analysis struct {
	Title                  string
	OverallConfidence      float64
	Level                  Level
	ReviewFlag             ReviewFlag
	WeightedScores         map[string]float64
	ComponentScores        map[string]float64
	ExtractionCompleteness float64
	ConfusionPatterns      []string
	QualityIndicators      QualityIndicators
	Recommendation         string
	ProcessingTimestamp    time.Time
}

// Distribution summarizes confidence scores into a histogram, matching
// the bins used for the production quality dashboard.
type Distribution struct {
	TotalSamples       int
	AverageConfidence  float64
	MedianConfidence   float64
	HistogramBins      []string
	HistogramCounts    []int
	HistogramPercents  []float64
	HighQuality        int
	ProductionReady    int
	NeedsReview        int
	CriticalReview     int
}

// PerformanceMetrics is a point-in-time snapshot of everything the
// Tracker has observed since it was created.
type PerformanceMetrics struct {
	TotalProcessed         int
	HighConfidenceCount    int
	GoodConfidenceCount    int
	MediumConfidenceCount  int
	LowConfidenceCount     int
	VeryLowConfidenceCount int
	FlaggedForReview       int
	AverageConfidence      float64
	ExtractionSuccessRates map[string]float64
	ProcessingSpeedMS      float64
	TrendDirection         string
}

// metrics is the Prometheus instrumentation emitted alongside the
// in-memory rolling history; the history backs PerformanceMetrics/
// GetDistribution, the histograms and counters back live dashboards.
type metrics struct {
	overallConfidence prometheus.Histogram
	reviewFlags       *prometheus.CounterVec
	componentScore    *prometheus.HistogramVec
	processed         prometheus.Counter
}

func newMetrics() *metrics {
	return &metrics{
		overallConfidence: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "titleparser_confidence_overall",
			Help:    "Overall confidence score assigned to a parsed title.",
			Buckets: []float64{0.2, 0.4, 0.6, 0.8, 0.9, 1.0},
		}),
		reviewFlags: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "titleparser_confidence_review_flags_total",
			Help: "Count of titles by assigned review flag.",
		}, []string{"flag"}),
		componentScore: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "titleparser_confidence_component",
			Help:    "Per-component confidence score feeding the overall score.",
			Buckets: []float64{0.4, 0.6, 0.7, 0.8, 0.9, 1.0},
		}, []string{"component"}),
		processed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "titleparser_confidence_titles_processed_total",
			Help: "Total number of titles scored by the confidence tracker.",
		}),
	}
}

// Tracker calculates weighted confidence scores, flags titles for human
// review, and accumulates performance metrics across every title it
// scores. A Tracker is safe for concurrent use.
type Tracker struct {
	logger *zap.Logger
	m      *metrics

	mu                    sync.RWMutex
	history               []Analysis
	confusionPatterns     []ConfusionPattern
	totalProcessed        int
	confidenceScores      []float64
	completenessScores    []float64
	componentSuccessRates map[string][]float64
	processingTimesMS     []float64
	reviewFlagCounts      map[string]int
}

// NewTracker constructs a Tracker. A nil logger is replaced with a no-op
// logger.
func NewTracker(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		logger:                logger,
		m:                     newMetrics(),
		componentSuccessRates: make(map[string][]float64),
		reviewFlagCounts:      make(map[string]int),
	}
	t.logger.Info("confidence tracker initialized")
	return t
}

// Analyze computes the overall confidence analysis for one extraction
// result and records it into the Tracker's rolling history.
func (t *Tracker) Analyze(result ExtractionResult) Analysis {
	componentScores := map[string]float64{
		"market_classification": result.MarketClassificationConfidence,
		"date_extraction":       result.DateExtractionConfidence,
		"report_extraction":     result.ReportExtractionConfidence,
		"geographic_detection":  result.GeographicDetectionConfidence,
		"topic_extraction":      result.TopicExtractionConfidence,
	}

	scores := make([]float64, len(componentOrder))
	weights := make([]float64, len(componentOrder))
	for i, c := range componentOrder {
		scores[i] = componentScores[c]
		weights[i] = componentWeights[c]
	}
	weightedScore := weightedAverage(scores, weights)

	completenessScore := extractionCompleteness(result)
	completenessAdjustment := completenessAdjustment(result)
	qualityAdjustment := qualityAdjustment(result)

	overall := clamp01(weightedScore + completenessAdjustment + qualityAdjustment)
	level := confidenceLevel(overall)
	flag := reviewFlag(overall)
	confusion := t.trackConfusionPatterns(result, componentScores)

	weightedScores := make(map[string]float64, len(componentOrder))
	for _, c := range componentOrder {
		weightedScores[c] = componentScores[c] * componentWeights[c]
	}

	analysis := Analysis{
		Title:                  result.Title,
		OverallConfidence:      round3(overall),
		Level:                  level,
		ReviewFlag:             flag,
		WeightedScores:         weightedScores,
		ComponentScores:        componentScores,
		ExtractionCompleteness: completenessScore,
		ConfusionPatterns:      confusion,
		QualityIndicators: QualityIndicators{
			ExtractionCompleteness: completenessScore,
			WeightedComponentScore: weightedScore,
			CompletenessAdjustment: completenessAdjustment,
			QualityAdjustment:      qualityAdjustment,
			ComponentBreakdown:     componentScores,
			ProcessingTimeMS:       float64(result.ProcessingTime.Microseconds()) / 1000.0,
		},
		Recommendation:      recommendation(overall, flag),
		ProcessingTimestamp: time.Now().UTC(),
	}

	t.track(analysis, result, componentScores)
	t.logger.Debug("scored title",
		zap.String("title", truncate(result.Title, 50)),
		zap.Float64("confidence", overall),
		zap.String("review_flag", string(flag)))

	return analysis
}

// ShouldFlagForReview reports whether confidence is below the standard
// review threshold.
func ShouldFlagForReview(confidence float64) bool {
	return confidence < reviewThreshold
}

func weightedAverage(scores, weights []float64) float64 {
	if len(scores) == 0 || len(weights) == 0 || len(scores) != len(weights) {
		return 0.0
	}
	var sum, totalWeight float64
	for i := range scores {
		sum += scores[i] * weights[i]
		totalWeight += weights[i]
	}
	if totalWeight == 0 {
		return 0.0
	}
	return sum / totalWeight
}

func extractionCompleteness(r ExtractionResult) float64 {
	score := 0.0
	if r.DateRange != "" {
		score += 0.25
	}
	if r.ReportType != "" {
		score += 0.25
	}
	if len(r.Regions) > 0 {
		score += 0.25
	}
	if r.Topic != "" {
		score += 0.25
	}
	return score
}

func completenessAdjustment(r ExtractionResult) float64 {
	adj := 0.0
	if r.DateRange == "" {
		adj += completenessWeights["date_missing"]
	}
	if r.ReportType == "" {
		adj += completenessWeights["report_missing"]
	}
	if len(r.Regions) == 0 {
		adj += completenessWeights["regions_missing"]
	}
	if r.Topic == "" {
		adj += completenessWeights["topic_missing"]
	}
	return adj
}

func qualityAdjustment(r ExtractionResult) float64 {
	adj := 0.0
	if r.Topic != "" && technicalCompound.MatchString(r.Topic) {
		adj += qualityTechnicalCompounds
	}
	if r.TopicName != "" && normalizedSlug.MatchString(r.TopicName) {
		adj += qualityProperNormalization
	}
	if len(r.Errors) > 0 {
		adj += qualityProcessingErrors
	}
	return adj
}

func confidenceLevel(confidence float64) Level {
	switch {
	case confidence >= 0.9:
		return LevelHigh
	case confidence >= 0.8:
		return LevelGood
	case confidence >= 0.6:
		return LevelMedium
	case confidence >= 0.4:
		return LevelLow
	default:
		return LevelVeryLow
	}
}

func reviewFlag(confidence float64) ReviewFlag {
	switch {
	case confidence >= reviewThreshold:
		return ReviewNone
	case confidence >= priorityReviewThreshold:
		return ReviewStandard
	case confidence >= criticalReviewThreshold:
		return ReviewPriority
	default:
		return ReviewCritical
	}
}

func recommendation(confidence float64, flag ReviewFlag) string {
	pct := fmt.Sprintf("%.1f%%", confidence*100)
	switch flag {
	case ReviewNone:
		return fmt.Sprintf("High quality extraction (%s) - ready for production use", pct)
	case ReviewStandard:
		return fmt.Sprintf("Good extraction (%s) - minor review recommended", pct)
	case ReviewPriority:
		return fmt.Sprintf("Moderate confidence (%s) - priority review needed", pct)
	default:
		return fmt.Sprintf("Low confidence (%s) - critical review required", pct)
	}
}

// trackConfusionPatterns flags components whose confidence fell below
// lowConfidenceThreshold with an explanation, then appends cross-component
// conflicts (e.g. a date that survived inside the topic as well as being
// extracted separately).
func (t *Tracker) trackConfusionPatterns(r ExtractionResult, componentScores map[string]float64) []string {
	var patterns []string

	for _, component := range componentOrder {
		confidence := componentScores[component]
		if confidence >= lowConfidenceThreshold {
			continue
		}
		issue := patternIssue(component, r)
		if issue == "" {
			continue
		}
		patterns = append(patterns, component+": "+issue)

		t.mu.Lock()
		t.confusionPatterns = append(t.confusionPatterns, ConfusionPattern{
			Title:        r.Title,
			Component:    component,
			ActualResult: componentResult(component, r),
			Confidence:   confidence,
			PatternIssue: issue,
			Timestamp:    time.Now().UTC(),
		})
		t.mu.Unlock()
	}

	patterns = append(patterns, detectConflicts(r)...)
	return patterns
}

func patternIssue(component string, r ExtractionResult) string {
	switch component {
	case "date_extraction":
		if r.DateRange == "" && titleYearRe.MatchString(r.Title) {
			return "Date pattern present but not extracted"
		}
	case "report_extraction":
		if r.ReportType == "" {
			lower := strings.ToLower(r.Title)
			for _, term := range commonReportTerms {
				if strings.Contains(lower, term) {
					return "Report type indicators present but not extracted"
				}
			}
		}
	case "geographic_detection":
		if len(r.Regions) == 0 {
			lower := strings.ToLower(r.Title)
			for _, term := range commonRegionTerms {
				if strings.Contains(lower, term) {
					return "Geographic indicators present but not extracted"
				}
			}
		}
	case "topic_extraction":
		if r.Topic == "" {
			return "No topic extracted from title"
		}
		if len(strings.TrimSpace(r.Topic)) < 2 {
			return "Extracted topic too short"
		}
	}
	return ""
}

func detectConflicts(r ExtractionResult) []string {
	var conflicts []string
	if r.Topic != "" && topicYearRe.MatchString(r.Topic) && r.DateRange != "" {
		conflicts = append(conflicts, "Date appears in both topic and date extraction")
	}
	if r.Topic != "" && len(r.Regions) > 0 {
		topicLower := strings.ToLower(r.Topic)
		for _, region := range r.Regions {
			if strings.Contains(topicLower, strings.ToLower(region)) {
				conflicts = append(conflicts, fmt.Sprintf("Region %q appears in both topic and region extraction", region))
			}
		}
	}
	return conflicts
}

func componentResult(component string, r ExtractionResult) string {
	switch component {
	case "market_classification":
		return r.MarketTermType
	case "date_extraction":
		return r.DateRange
	case "report_extraction":
		return r.ReportType
	case "geographic_detection":
		return strings.Join(r.Regions, ", ")
	case "topic_extraction":
		return r.Topic
	}
	return ""
}

// track records analysis into the rolling history and emits the
// corresponding Prometheus observations.
func (t *Tracker) track(analysis Analysis, r ExtractionResult, componentScores map[string]float64) {
	t.mu.Lock()
	t.totalProcessed++
	t.confidenceScores = append(t.confidenceScores, analysis.OverallConfidence)
	t.completenessScores = append(t.completenessScores, analysis.ExtractionCompleteness)
	for component, score := range componentScores {
		t.componentSuccessRates[component] = append(t.componentSuccessRates[component], score)
	}
	if r.ProcessingTime > 0 {
		t.processingTimesMS = append(t.processingTimesMS, float64(r.ProcessingTime.Microseconds())/1000.0)
	}
	flagKey := "not_flagged"
	if analysis.ReviewFlag != ReviewNone {
		flagKey = "flagged"
	}
	t.reviewFlagCounts[flagKey]++
	t.history = append(t.history, analysis)
	t.mu.Unlock()

	t.m.overallConfidence.Observe(analysis.OverallConfidence)
	t.m.reviewFlags.WithLabelValues(string(analysis.ReviewFlag)).Inc()
	t.m.processed.Inc()
	for component, score := range componentScores {
		t.m.componentScore.WithLabelValues(component).Observe(score)
	}
}

// PerformanceMetrics returns a snapshot of everything the Tracker has
// observed since construction.
func (t *Tracker) PerformanceMetrics() PerformanceMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.totalProcessed == 0 {
		return PerformanceMetrics{TrendDirection: "insufficient_data", ExtractionSuccessRates: map[string]float64{}}
	}

	var high, good, medium, low, veryLow int
	for _, score := range t.confidenceScores {
		switch {
		case score >= 0.9:
			high++
		case score >= 0.8:
			good++
		case score >= 0.6:
			medium++
		case score >= 0.4:
			low++
		default:
			veryLow++
		}
	}

	successRates := make(map[string]float64, len(t.componentSuccessRates))
	for component, scores := range t.componentSuccessRates {
		if len(scores) == 0 {
			continue
		}
		passing := 0
		for _, s := range scores {
			if s >= 0.8 {
				passing++
			}
		}
		successRates[component] = float64(passing) / float64(len(scores))
	}

	return PerformanceMetrics{
		TotalProcessed:         t.totalProcessed,
		HighConfidenceCount:    high,
		GoodConfidenceCount:    good,
		MediumConfidenceCount:  medium,
		LowConfidenceCount:     low,
		VeryLowConfidenceCount: veryLow,
		FlaggedForReview:       t.reviewFlagCounts["flagged"],
		AverageConfidence:      round3(mean(t.confidenceScores)),
		ExtractionSuccessRates: successRates,
		ProcessingSpeedMS:      round2(mean(t.processingTimesMS)),
		TrendDirection:         trendDirection(t.confidenceScores),
	}
}

// GetDistribution returns a histogram of every confidence score the
// Tracker has observed, bucketed the way the quality dashboard expects.
func (t *Tracker) GetDistribution() Distribution {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.confidenceScores) == 0 {
		return Distribution{}
	}

	bins := []float64{0.0, 0.2, 0.4, 0.6, 0.8, 0.9, 1.0}
	counts := make([]int, len(bins)-1)
	for _, score := range t.confidenceScores {
		for i := 0; i < len(bins)-1; i++ {
			if (score >= bins[i] && score < bins[i+1]) || (i == len(bins)-2 && score == 1.0) {
				counts[i]++
				break
			}
		}
	}

	labels := make([]string, len(bins)-1)
	percents := make([]float64, len(bins)-1)
	for i := range counts {
		labels[i] = fmt.Sprintf("%.1f-%.1f", bins[i], bins[i+1])
		percents[i] = round1(float64(counts[i]) / float64(len(t.confidenceScores)) * 100)
	}

	highQuality, productionReady, needsReview, criticalReview := 0, 0, 0, 0
	for _, score := range t.confidenceScores {
		if score >= 0.9 {
			highQuality++
		}
		if score >= 0.8 {
			productionReady++
		}
		if score < 0.8 {
			needsReview++
		}
		if score < 0.4 {
			criticalReview++
		}
	}

	sorted := append([]float64(nil), t.confidenceScores...)
	sort.Float64s(sorted)

	return Distribution{
		TotalSamples:      len(t.confidenceScores),
		AverageConfidence: round3(mean(t.confidenceScores)),
		MedianConfidence:  round3(median(sorted)),
		HistogramBins:     labels,
		HistogramCounts:   counts,
		HistogramPercents: percents,
		HighQuality:       highQuality,
		ProductionReady:   productionReady,
		NeedsReview:       needsReview,
		CriticalReview:    criticalReview,
	}
}

// ConfusionPatterns returns a copy of every confusion pattern recorded
// since construction.
func (t *Tracker) ConfusionPatterns() []ConfusionPattern {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]ConfusionPattern, len(t.confusionPatterns))
	copy(out, t.confusionPatterns)
	return out
}

// trendDirection compares the mean of the most recent 10 scores against
// the mean of the 10 before them; fewer than 20 total scores is
// "insufficient_data".
func trendDirection(scores []float64) string {
	if len(scores) < 20 {
		return "insufficient_data"
	}
	recent := scores[len(scores)-10:]
	earlier := scores[len(scores)-20 : len(scores)-10]
	diff := mean(recent) - mean(earlier)
	switch {
	case diff > 0.05:
		return "improving"
	case diff < -0.05:
		return "declining"
	default:
		return "stable"
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func round3(x float64) float64 { return roundTo(x, 1000) }
func round2(x float64) float64 { return roundTo(x, 100) }
func round1(x float64) float64 { return roundTo(x, 10) }

func roundTo(x, factor float64) float64 {
	return float64(int(x*factor+0.5)) / factor
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

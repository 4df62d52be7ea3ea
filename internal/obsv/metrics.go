package obsv

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// PrometheusConfig configures the metrics exposition server.
type PrometheusConfig struct {
	Enabled bool
	Addr    string
}

// Process-wide pipeline metrics, registered once on first Init.
var (
	titlesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "titleparser_titles_processed_total",
			Help: "Total number of titles processed, by terminal status.",
		},
		[]string{"status"},
	)

	stageConfidence = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "titleparser_stage_confidence",
			Help:    "Per-stage confidence score distribution.",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"stage"},
	)

	batchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "titleparser_batch_duration_seconds",
			Help:    "Wall-clock duration of a processBatch call.",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "titleparser_retries_total",
			Help: "Total number of per-title stage retries.",
		},
		[]string{"reason"},
	)

	reviewFlagsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "titleparser_review_flags_total",
			Help: "Total number of review flags assigned, by flag.",
		},
		[]string{"flag"},
	)

	patternStoreReachable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "titleparser_pattern_store_reachable",
			Help: "1 if the pattern store was reachable at last check, else 0.",
		},
	)
)

var (
	metricsRegistered bool
	metricsServer     *http.Server
)

// initMetrics registers the metrics (once per process) and starts the
// exposition server.
func initMetrics(cfg PrometheusConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}

	if !metricsRegistered {
		prometheus.MustRegister(
			titlesProcessedTotal,
			stageConfidence,
			batchDurationSeconds,
			retriesTotal,
			reviewFlagsTotal,
			patternStoreReachable,
		)
		metricsRegistered = true
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer = &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		logger.Info("prometheus metrics exporter started", zap.String("addr", cfg.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start prometheus metrics exporter", zap.Error(err), zap.String("addr", cfg.Addr))
		}
	}()
	return nil
}

func shutdownMetrics(ctx context.Context) error {
	if metricsServer != nil {
		return metricsServer.Shutdown(ctx)
	}
	return nil
}

func isMetricsEnabled() bool {
	globalMux.RLock()
	defer globalMux.RUnlock()
	return globalObsv != nil && globalObsv.config.MetricsEnabled
}

// RecordTitleProcessed increments the terminal-status counter.
func RecordTitleProcessed(status string) {
	if !isMetricsEnabled() {
		return
	}
	titlesProcessedTotal.WithLabelValues(status).Inc()
}

// RecordStageConfidence observes one stage's confidence for one title.
func RecordStageConfidence(stage string, confidence float64) {
	if !isMetricsEnabled() {
		return
	}
	stageConfidence.WithLabelValues(stage).Observe(confidence)
}

// RecordBatchDuration observes one processBatch call's wall-clock time.
func RecordBatchDuration(d time.Duration) {
	if !isMetricsEnabled() {
		return
	}
	batchDurationSeconds.Observe(d.Seconds())
}

// RecordRetry increments the retry counter for a given failure reason.
func RecordRetry(reason string) {
	if !isMetricsEnabled() {
		return
	}
	retriesTotal.WithLabelValues(reason).Inc()
}

// RecordReviewFlag increments the review-flag counter.
func RecordReviewFlag(flag string) {
	if !isMetricsEnabled() {
		return
	}
	reviewFlagsTotal.WithLabelValues(flag).Inc()
}

// SetPatternStoreReachable records the last store health check result.
func SetPatternStoreReachable(reachable bool) {
	if !isMetricsEnabled() {
		return
	}
	if reachable {
		patternStoreReachable.Set(1)
	} else {
		patternStoreReachable.Set(0)
	}
}

// Package report writes one batch's results to a timestamped output
// directory: a JSON record dump plus a set of plain-text artifacts, in
// the same encoding/json-plus-fmt.Fprintf style the golden manifest
// tooling (tools/golden/manifest_check.go) uses for reporting.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marketlens/titleparser/internal/pipeline/stage7"
)

// Writer writes batch output directories under Root (spec §6.3). A zero
// Writer defaults Root to "outputs".
type Writer struct {
	Root       string
	ScriptName string
}

// NewWriter returns a Writer rooted at root, labeling each run directory
// with scriptName. An empty root defaults to "outputs"; an empty
// scriptName defaults to "titleparser".
func NewWriter(root, scriptName string) *Writer {
	if root == "" {
		root = "outputs"
	}
	if scriptName == "" {
		scriptName = "titleparser"
	}
	return &Writer{Root: root, ScriptName: scriptName}
}

// Summary is the batch-level JSON report document (spec §6.2/§4.7.7):
// metadata, overall statistics, confidence distribution, and
// representative samples.
type Summary struct {
	BatchID             string                   `json:"batch_id"`
	GeneratedAtPDT      string                   `json:"generated_at_pdt"`
	GeneratedAtUTC      string                   `json:"generated_at_utc"`
	Stats               stage7.BatchStats        `json:"stats"`
	ConfidenceHistogram map[string]int           `json:"confidence_histogram"`
	SuccessSamples      []stage7.ProcessingResult `json:"success_samples"`
	FailureSamples      []stage7.ProcessingResult `json:"failure_samples"`
	ReviewSamples       []stage7.ProcessingResult `json:"review_samples"`
}

// WriteBatch writes the full output directory for one batch: the JSON
// record dump, the JSON summary, and every text artifact named in spec
// §6.3. It returns the directory path it wrote to.
func (w *Writer) WriteBatch(results []stage7.ProcessingResult, stats stage7.BatchStats) (string, error) {
	dir := w.runDir(time.Now().UTC())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %q: %w", dir, err)
	}

	if err := w.writeResultsJSON(dir, results); err != nil {
		return dir, err
	}
	if err := w.writeSummaryReport(dir, results, stats); err != nil {
		return dir, err
	}
	if err := w.writeTextArtifacts(dir, results); err != nil {
		return dir, err
	}
	return dir, nil
}

// runDir builds outputs/<YYYY>/<MM>/<DD>/<YYYYMMDD_HHMMSS>_<script_name>/
// (spec §6.3).
func (w *Writer) runDir(now time.Time) string {
	stamp := now.Format("20060102_150405")
	return filepath.Join(w.Root,
		now.Format("2006"), now.Format("01"), now.Format("02"),
		fmt.Sprintf("%s_%s", stamp, w.ScriptName))
}

func (w *Writer) writeResultsJSON(dir string, results []stage7.ProcessingResult) error {
	docs := make([]map[string]interface{}, len(results))
	for i, r := range results {
		docs[i] = r.Document()
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pipeline_results.json: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "pipeline_results.json"), data, 0o644)
}

func (w *Writer) writeSummaryReport(dir string, results []stage7.ProcessingResult, stats stage7.BatchStats) error {
	pdt, utc := headerTimestamps()
	summary := Summary{
		BatchID:             stats.BatchID,
		GeneratedAtPDT:      pdt,
		GeneratedAtUTC:      utc,
		Stats:               stats,
		ConfidenceHistogram: confidenceHistogram(results),
		SuccessSamples:      sampleByStatus(results, stage7.StatusCompleted, 10),
		FailureSamples:      sampleByStatus(results, stage7.StatusFailed, 5),
		ReviewSamples:       sampleByStatus(results, stage7.StatusRequiresReview, 5),
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "summary.json"), data, 0o644); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, "summary_report.md"))
	if err != nil {
		return fmt.Errorf("failed to create summary_report.md: %w", err)
	}
	defer f.Close()

	fmt.Fprintf(f, "# Batch Report: %s\n\n", stats.BatchID)
	fmt.Fprintf(f, "Generated: %s / %s\n\n", pdt, utc)
	fmt.Fprintf(f, "## Statistics\n\n")
	fmt.Fprintf(f, "- Total titles: %d\n", stats.TotalTitles)
	fmt.Fprintf(f, "- Completed: %d\n", stats.Completed)
	fmt.Fprintf(f, "- Failed: %d\n", stats.Failed)
	fmt.Fprintf(f, "- Requires review: %d\n", stats.RequiresReview)
	fmt.Fprintf(f, "- Success rate: %.2f%%\n", stats.SuccessRate*100)
	fmt.Fprintf(f, "- Titles/sec: %.2f\n", stats.TitlesPerSecond)
	fmt.Fprintf(f, "- Processing time: %s\n\n", stats.ProcessingTime)
	fmt.Fprintf(f, "## Confidence distribution\n\n")
	for _, level := range []string{"high", "good", "medium", "low", "very_low"} {
		fmt.Fprintf(f, "- %s: %d\n", level, summary.ConfidenceHistogram[level])
	}
	return nil
}

func confidenceHistogram(results []stage7.ProcessingResult) map[string]int {
	hist := map[string]int{"high": 0, "good": 0, "medium": 0, "low": 0, "very_low": 0}
	for _, r := range results {
		if r.ConfidenceAnalysis == nil {
			continue
		}
		hist[string(r.ConfidenceAnalysis.Level)]++
	}
	return hist
}

func sampleByStatus(results []stage7.ProcessingResult, status stage7.Status, limit int) []stage7.ProcessingResult {
	var out []stage7.ProcessingResult
	for _, r := range results {
		if r.Status != status {
			continue
		}
		out = append(out, r)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func headerTimestamps() (pdt, utc string) {
	now := time.Now().UTC()
	utc = now.Format("2006-01-02 15:04:05") + " UTC"
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		return utc, utc
	}
	pdt = now.In(loc).Format("2006-01-02 15:04:05 MST")
	return pdt, utc
}

func writeHeader(f *os.File) {
	pdt, utc := headerTimestamps()
	fmt.Fprintf(f, "# Generated: %s / %s\n\n", pdt, utc)
}

// writeTextArtifacts emits every per-run text artifact named in spec
// §6.3.
func (w *Writer) writeTextArtifacts(dir string, results []stage7.ProcessingResult) error {
	writers := []struct {
		name string
		fn   func(*os.File, []stage7.ProcessingResult)
	}{
		{"final_topics.txt", writeFinalTopics},
		{"market_classifications.txt", writeMarketClassifications},
		{"extracted_dates.txt", writeExtractedDates},
		{"extracted_report_types.txt", writeExtractedReportTypes},
		{"extracted_regions.txt", writeExtractedRegions},
		{"oneline_pipeline_results.txt", writeOnelinePipelineResults},
		{"successful_extractions.txt", writeSuccessfulExtractions},
		{"failed_extractions.txt", writeFailedExtractions},
		{"pattern_analysis.txt", writePatternAnalysis},
	}
	for _, wr := range writers {
		f, err := os.Create(filepath.Join(dir, wr.name))
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", wr.name, err)
		}
		writeHeader(f)
		wr.fn(f, results)
		f.Close()
	}
	return nil
}

func writeFinalTopics(f *os.File, results []stage7.ProcessingResult) {
	for _, r := range results {
		if r.Elements.Topic != "" {
			fmt.Fprintln(f, r.Elements.Topic)
		}
	}
}

func writeMarketClassifications(f *os.File, results []stage7.ProcessingResult) {
	for _, r := range results {
		fmt.Fprintf(f, "%s\t%s\n", r.OriginalTitle, r.Elements.MarketTermType)
	}
}

func writeExtractedDates(f *os.File, results []stage7.ProcessingResult) {
	writeDeduped(f, results, func(r stage7.ProcessingResult) string { return r.Elements.ExtractedForecastDateRange })
}

func writeExtractedReportTypes(f *os.File, results []stage7.ProcessingResult) {
	writeDeduped(f, results, func(r stage7.ProcessingResult) string { return r.Elements.ExtractedReportType })
}

func writeExtractedRegions(f *os.File, results []stage7.ProcessingResult) {
	seen := make(map[string]bool)
	for _, r := range results {
		for _, region := range r.Elements.ExtractedRegions {
			if region == "" || seen[region] {
				continue
			}
			seen[region] = true
			fmt.Fprintln(f, region)
		}
	}
}

// writeDeduped writes the deduplicated, order-preserving sequence of
// non-empty values extract(r) returns across results (spec §4.7.7).
func writeDeduped(f *os.File, results []stage7.ProcessingResult, extract func(stage7.ProcessingResult) string) {
	seen := make(map[string]bool)
	for _, r := range results {
		v := extract(r)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		fmt.Fprintln(f, v)
	}
}

func writeOnelinePipelineResults(f *os.File, results []stage7.ProcessingResult) {
	for _, r := range results {
		fmt.Fprintf(f, "%s -> [%s][%s][%s][%s] -> %s\n",
			r.OriginalTitle,
			r.Elements.MarketTermType,
			r.Elements.ExtractedForecastDateRange,
			r.Elements.ExtractedReportType,
			strings.Join(r.Elements.ExtractedRegions, ","),
			r.Elements.Topic)
	}
}

func writeSuccessfulExtractions(f *os.File, results []stage7.ProcessingResult) {
	for _, r := range results {
		if r.Status != stage7.StatusCompleted {
			continue
		}
		fmt.Fprintf(f, "%s | %s | %s | %s | %s\n",
			r.ProcessingID, r.OriginalTitle, r.Elements.ExtractedForecastDateRange,
			r.Elements.ExtractedReportType, r.Elements.Topic)
	}
}

func writeFailedExtractions(f *os.File, results []stage7.ProcessingResult) {
	for _, r := range results {
		if r.Status != stage7.StatusFailed {
			continue
		}
		fmt.Fprintf(f, "%s | %s | %s\n", r.ProcessingID, r.OriginalTitle, r.ErrorMessage)
	}
}

// writePatternAnalysis groups failures by their flags, the cheapest
// signal available for spotting a systematic pattern-library gap.
func writePatternAnalysis(f *os.File, results []stage7.ProcessingResult) {
	counts := make(map[string]int)
	for _, r := range results {
		if r.Status != stage7.StatusFailed && r.Status != stage7.StatusRequiresReview {
			continue
		}
		for _, flag := range r.Flags {
			counts[flag]++
		}
	}
	fmt.Fprintln(f, "Flag breakdown across failed and review-flagged titles:")
	for flag, count := range counts {
		fmt.Fprintf(f, "%s: %d\n", flag, count)
	}
}

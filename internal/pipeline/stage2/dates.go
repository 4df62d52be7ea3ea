// Package stage2 extracts a single forecast date range from a title
// and returns a cleaned title with the matched span removed.
package stage2

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/marketlens/titleparser/internal/patterns"
	"github.com/marketlens/titleparser/internal/textutil"
)

// Format identifies which pattern family produced the extraction.
type Format string

const (
	FormatRange         Format = "range"
	FormatTerminalComma Format = "terminal_comma"
	FormatBracket       Format = "bracket"
	FormatEmbedded      Format = "embedded"
	FormatMultiple      Format = "multiple"
	FormatNone          Format = "none"
)

// Tag categorizes the extraction outcome for downstream reporting.
type Tag string

const (
	TagExtracted       Tag = "extracted"
	TagNoDatesPresent  Tag = "no_dates_present"
	TagMissed          Tag = "missed"
)

// YearWindow bounds which years are accepted as plausible forecast
// years; defaults to 2020..2040 per spec.
type YearWindow struct {
	Min, Max int
}

// DefaultYearWindow returns the spec's default validity window.
func DefaultYearWindow() YearWindow {
	return YearWindow{Min: 2020, Max: 2040}
}

func (w YearWindow) valid(year int) bool {
	return year >= w.Min && year <= w.Max
}

// Result is Stage 2's output.
type Result struct {
	DateRange    string
	StartYear    int
	EndYear      int
	Format       Format
	Confidence   float64
	RawMatch     string
	CleanedTitle string
	Tag          Tag
}

var multiYearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// Extract runs every date format family against title, in priority
// order, and returns the highest-confidence match with the matched
// span removed from the title.
func Extract(store patterns.Store, title string, window YearWindow) Result {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return Result{Format: FormatNone, CleanedTitle: title, Tag: TagNoDatesPresent}
	}

	candidates := []Result{
		extractRange(store, title, window),
		extractTerminalComma(store, title, window),
		extractBracket(store, title, window),
		extractEmbedded(store, title, window),
	}

	best := Result{Format: FormatNone, Tag: TagNoDatesPresent}
	for _, c := range candidates {
		if c.DateRange != "" && c.Confidence > best.Confidence {
			best = c
		}
	}

	if best.DateRange == "" || best.Confidence < 0.8 {
		if m := extractMultiple(title, window); m.DateRange != "" && m.Confidence > best.Confidence {
			best = m
		}
	}

	if best.DateRange == "" {
		return Result{Format: FormatNone, CleanedTitle: textutil.Clean(title), Tag: TagNoDatesPresent}
	}

	best.Tag = TagExtracted
	best.CleanedTitle = removeMatch(title, best.RawMatch, best.Format)
	return best
}

func extractRange(store patterns.Store, title string, window YearWindow) Result {
	for _, c := range store.PatternsBySubtype(patterns.KindDatePattern, patterns.SubtypeDateRange) {
		if c.Regex == nil {
			continue
		}
		m := c.Regex.FindStringSubmatch(title)
		if m == nil || len(m) < 3 {
			continue
		}
		start, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		endStr := m[2]
		var end int
		if len(endStr) == 2 {
			end, err = strconv.Atoi(strconv.Itoa(start)[:2] + endStr)
		} else {
			end, err = strconv.Atoi(endStr)
		}
		if err != nil || !window.valid(start) || !window.valid(end) {
			continue
		}
		store.IncrementSuccess(c.ID)
		return Result{
			DateRange:  normalizeRange(start, end),
			StartYear:  start,
			EndYear:    end,
			Format:     FormatRange,
			Confidence: rangeConfidence(start, end, window),
			RawMatch:   m[0],
		}
	}
	return Result{}
}

func extractTerminalComma(store patterns.Store, title string, window YearWindow) Result {
	for _, c := range store.PatternsBySubtype(patterns.KindDatePattern, patterns.SubtypeDateTerminal) {
		if c.Regex == nil {
			continue
		}
		m := c.Regex.FindStringSubmatch(title)
		if m == nil || len(m) < 2 {
			continue
		}
		year, err := strconv.Atoi(m[1])
		if err != nil || !window.valid(year) {
			continue
		}
		store.IncrementSuccess(c.ID)
		return Result{
			DateRange:  strconv.Itoa(year),
			StartYear:  year,
			Format:     FormatTerminalComma,
			Confidence: 0.95,
			RawMatch:   m[0],
		}
	}
	return Result{}
}

// extractBracket removes the year from bracketed content while
// preserving other words in the bracket (spec's "preserved words"
// behavior) by recording the non-year tokens in RawMatch's sibling
// cleanup step — see removeMatch.
func extractBracket(store patterns.Store, title string, window YearWindow) Result {
	for _, c := range store.PatternsBySubtype(patterns.KindDatePattern, patterns.SubtypeDateBracketed) {
		if c.Regex == nil {
			continue
		}
		m := c.Regex.FindStringSubmatch(title)
		if m == nil || len(m) < 2 {
			continue
		}
		yearMatch := multiYearPattern.FindString(m[1])
		if yearMatch == "" {
			continue
		}
		year, err := strconv.Atoi(yearMatch)
		if err != nil || !window.valid(year) {
			continue
		}
		store.IncrementSuccess(c.ID)
		return Result{
			DateRange:  strconv.Itoa(year),
			StartYear:  year,
			Format:     FormatBracket,
			Confidence: 0.90,
			RawMatch:   m[0],
		}
	}
	return Result{}
}

func extractEmbedded(store patterns.Store, title string, window YearWindow) Result {
	for _, c := range store.PatternsBySubtype(patterns.KindDatePattern, patterns.SubtypeDateEmbedded) {
		if c.Regex == nil {
			continue
		}
		m := c.Regex.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		var yearStr string
		for _, g := range m[1:] {
			if g != "" {
				yearStr = g
				break
			}
		}
		if yearStr == "" {
			continue
		}
		year, err := strconv.Atoi(yearStr)
		if err != nil || !window.valid(year) {
			continue
		}
		store.IncrementSuccess(c.ID)
		return Result{
			DateRange:  strconv.Itoa(year),
			StartYear:  year,
			Format:     FormatEmbedded,
			Confidence: 0.85,
			RawMatch:   m[0],
		}
	}
	return Result{}
}

func extractMultiple(title string, window YearWindow) Result {
	matches := multiYearPattern.FindAllString(title, -1)
	var valid []int
	for _, y := range matches {
		year, err := strconv.Atoi(y)
		if err == nil && window.valid(year) {
			valid = append(valid, year)
		}
	}
	if len(valid) < 2 {
		return Result{}
	}
	latest := valid[0]
	for _, y := range valid[1:] {
		if y > latest {
			latest = y
		}
	}
	return Result{
		DateRange:  strconv.Itoa(latest),
		StartYear:  latest,
		Format:     FormatMultiple,
		Confidence: 0.60,
		RawMatch:   strconv.Itoa(latest),
	}
}

func normalizeRange(start, end int) string {
	if start == end {
		return strconv.Itoa(start)
	}
	return strconv.Itoa(start) + "-" + strconv.Itoa(end)
}

func rangeConfidence(start, end int, window YearWindow) float64 {
	confidence := 0.98
	switch {
	case end < start:
		confidence *= 0.3
	case end == start:
		confidence *= 0.9
	case end-start > 15:
		confidence *= 0.7
	}
	return confidence
}

// removeMatch strips the matched span from title. Bracket matches
// preserve any non-year words found inside the brackets by reinserting
// them where the bracket was.
func removeMatch(title, raw string, format Format) string {
	if format != FormatBracket {
		return textutil.Clean(strings.Replace(title, raw, "", 1))
	}

	inner := strings.Trim(raw, "[]()")
	words := strings.Fields(inner)
	var preserved []string
	for _, w := range words {
		if multiYearPattern.MatchString(w) {
			continue
		}
		preserved = append(preserved, w)
	}
	replacement := strings.Join(preserved, " ")
	return textutil.Clean(strings.Replace(title, raw, replacement, 1))
}

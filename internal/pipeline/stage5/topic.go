// Package stage5 is the final step in the systematic-removal pipeline:
// it isolates the topic by stripping everything the earlier stages
// already identified (date, report type, geographic regions) and
// applying one of three workflows depending on the market-term class.
package stage5

import (
	"regexp"
	"strings"

	"github.com/marketlens/titleparser/internal/pipeline/stage1"
	"github.com/marketlens/titleparser/internal/textutil"
)

// Format identifies which market-term workflow produced the topic.
type Format string

const (
	FormatStandardMarket Format = "standard_market"
	FormatMarketFor      Format = "market_for"
	FormatMarketIn       Format = "market_in"
	FormatUnknown        Format = "unknown"
)

// Elements is everything earlier stages extracted, needed to strip the
// topic candidate of their text.
type Elements struct {
	DateRange   string
	ReportType  string
	Regions     []string
}

// Result is Stage 5's output.
type Result struct {
	Topic                 string
	NormalizedTopic        string
	Format                 Format
	Confidence             float64
	TechnicalCompounds     []string
	Notes                  string
}

var (
	marketWord    = regexp.MustCompile(`(?i)\bmarket\b`)
	marketForRe   = regexp.MustCompile(`(?i)\bmarket\s+for\s+(.+)`)
	marketInRe    = regexp.MustCompile(`(?i)(.+?)\s+market\s+in\s+`)
	trailingComma = regexp.MustCompile(`\s*,\s*$`)
	trailingAmp   = regexp.MustCompile(`\s*&\s*$`)
	leadingAndSp  = regexp.MustCompile(`(?i)^\s*and\s+`)
	leadingThe    = regexp.MustCompile(`(?i)^\s*the\s+`)
	multiSpace    = regexp.MustCompile(`\s{2,}`)
	ampShareArtifact = regexp.MustCompile(`(?i)\s*&\s*share\b`)
	leadingAmp    = regexp.MustCompile(`^\s*&\s*`)
)

// Extract routes title to the workflow matching class and returns the
// residual topic, its normalized form, and the technical compounds
// (acronyms, hyphenated terms, embedded numbers) preserved within it.
func Extract(title string, class stage1.Class, elements Elements) Result {
	switch class {
	case stage1.ClassMarketFor:
		return processMarketFor(title, elements)
	case stage1.ClassMarketIn:
		return processMarketIn(title, elements)
	default:
		return processStandardMarket(title, elements)
	}
}

func processStandardMarket(title string, elements Elements) Result {
	var textBeforeMarket string
	if loc := marketWord.FindStringIndex(title); loc != nil {
		textBeforeMarket = strings.TrimSpace(title[:loc[0]])
	} else {
		textBeforeMarket = title
	}

	candidate := applySystematicRemoval(textBeforeMarket, elements)
	final := cleanArtifacts(candidate)

	return buildResult(final, FormatStandardMarket)
}

func processMarketFor(title string, elements Elements) Result {
	m := marketForRe.FindStringSubmatch(title)
	if m == nil {
		return processStandardMarket(title, elements)
	}
	textAfterFor := strings.TrimSpace(m[1])

	candidate := applySystematicRemoval(textAfterFor, elements)
	final := cleanArtifacts(candidate)

	return buildResult(final, FormatMarketFor)
}

func processMarketIn(title string, elements Elements) Result {
	m := marketInRe.FindStringSubmatch(title)
	if m == nil {
		return processStandardMarket(title, elements)
	}
	textBeforeMarketIn := strings.TrimSpace(m[1])

	// Regions provide context for "Market in" titles rather than text
	// to strip out — spec's context-integration workflow.
	withoutRegions := elements
	withoutRegions.Regions = nil

	candidate := applySystematicRemoval(textBeforeMarketIn, withoutRegions)
	final := cleanArtifacts(candidate)

	return buildResult(final, FormatMarketIn)
}

func buildResult(topic string, format Format) Result {
	compounds := textutil.FindTechnicalCompounds(topic)
	var normalized string
	if topic != "" {
		normalized = textutil.NormalizeTopicName(topic)
	}
	return Result{
		Topic:              topic,
		NormalizedTopic:    normalized,
		Format:             format,
		Confidence:         confidenceFor(topic, format, compounds),
		TechnicalCompounds: compounds,
	}
}

// applySystematicRemoval strips the date, report type, and geographic
// region text already identified by earlier stages out of text.
func applySystematicRemoval(text string, elements Elements) string {
	remaining := text

	if elements.DateRange != "" {
		remaining = removeWordBounded(remaining, elements.DateRange)
		remaining = trailingComma.ReplaceAllString(remaining, "")
	}

	if elements.ReportType != "" {
		remaining = removeWordBounded(remaining, elements.ReportType)
		remaining = ampShareArtifact.ReplaceAllString(remaining, "")
	}

	for _, region := range elements.Regions {
		if region == "" {
			continue
		}
		remaining = removeWordBounded(remaining, region)
	}

	remaining = leadingAmp.ReplaceAllString(remaining, "")
	remaining = multiSpace.ReplaceAllString(remaining, " ")
	return strings.TrimSpace(remaining)
}

func removeWordBounded(text, term string) string {
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
	return re.ReplaceAllString(text, "")
}

func cleanArtifacts(text string) string {
	if text == "" {
		return text
	}
	cleaned := text
	cleaned = trailingComma.ReplaceAllString(cleaned, "")
	cleaned = trailingAmp.ReplaceAllString(cleaned, "")
	cleaned = leadingAndSp.ReplaceAllString(cleaned, "")
	cleaned = leadingThe.ReplaceAllString(cleaned, "")
	cleaned = multiSpace.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

func confidenceFor(topic string, format Format, compounds []string) float64 {
	if topic == "" {
		return 0.0
	}
	confidence := 0.5
	if len(strings.Fields(topic)) >= 2 {
		confidence += 0.2
	}
	if len(compounds) > 0 {
		confidence += 0.15
	}
	switch format {
	case FormatStandardMarket:
		confidence += 0.1
	case FormatMarketFor, FormatMarketIn:
		confidence += 0.05
	}
	if len(strings.TrimSpace(topic)) < 3 {
		confidence -= 0.3
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// Package stage3 extracts a canonical report-type phrase ("Market
// Size, Share & Growth Report") from a title using a dictionary of
// keywords and separators loaded from the pattern library, anchored on
// the keyword "Market".
package stage3

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/marketlens/titleparser/internal/patterns"
	"github.com/marketlens/titleparser/internal/pipeline/stage1"
	"github.com/marketlens/titleparser/internal/textutil"
)

// Format classifies how the report type was produced.
type Format string

const (
	FormatCompound        Format = "compound"
	FormatTerminal        Format = "terminal"
	FormatEmbedded        Format = "embedded"
	FormatPrefix          Format = "prefix"
	FormatAcronymEmbedded Format = "acronym-embedded"
)

// Result is Stage 3's public contract (spec §4.3.7).
type Result struct {
	Keywords             []string
	ReportType           string
	Confidence           float64
	Format               Format
	Acronym              string
	PipelineForwardTitle string
	Notes                string
}

var duplicateKeywordPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(Market)\s+Market\b`),
	regexp.MustCompile(`(?i)\b(Report)\s+Report\b`),
	regexp.MustCompile(`(?i)\b(Analysis)\s+Analysis\b`),
	regexp.MustCompile(`(?i)\b(Study)\s+Study\b`),
}

var reportIndicatorWords = []string{
	"Analysis", "Report", "Study", "Forecast", "Outlook", "Trends", "Size", "Share", "Growth", "Industry",
}

// Extract runs the dictionary detector (and, for connector titles, the
// market-aware workflow) against working, the string handed down from
// stage 2. class is Stage 1's classification and original is the
// untouched input title, kept for diagnostics. Internal failures never
// propagate: callers always get a valid Result, with ReportType empty
// and PipelineForwardTitle equal to working on failure (spec §4.3.7).
func Extract(store patterns.Store, working string, class stage1.Class, original string) (res Result) {
	defer func() {
		if recover() != nil {
			res = Result{PipelineForwardTitle: working, Notes: "internal extraction failure"}
		}
	}()

	if hit, ok := tryAcronymEmbedded(store, working); ok {
		return hit
	}

	if class != stage1.ClassStandard {
		return marketAwareWorkflow(store, working, class)
	}
	return standardWorkflow(store, working)
}

func tryAcronymEmbedded(store patterns.Store, working string) (Result, bool) {
	for _, c := range store.Patterns(patterns.KindAcronymEmbeddedTemplate) {
		if c.Regex == nil {
			continue
		}
		m := c.Regex.FindStringSubmatch(working)
		if m == nil || len(m) < 2 {
			continue
		}
		acronym := m[1]
		reportType := fmt.Sprintf("%s %s", acronym, c.BaseType)
		store.IncrementSuccess(c.ID)
		return Result{
			Keywords:             []string{acronym, c.BaseType},
			ReportType:           reportType,
			Confidence:           0.92,
			Format:               FormatAcronymEmbedded,
			Acronym:              acronym,
			PipelineForwardTitle: textutil.Clean(strings.Replace(working, m[0], "", 1)),
			Notes:                "acronym-embedded template " + c.ID,
		}, true
	}
	return Result{}, false
}

func standardWorkflow(store patterns.Store, title string) Result {
	detection := detectKeywords(store, title)

	var reportType string
	if detection.confidence > 0.2 {
		reportType = reconstruct(store, detection, true)
	}

	format := FormatCompound
	if len(detection.keywordsFound) <= 1 {
		format = FormatTerminal
	}
	if detection.anyWrapped {
		format = FormatEmbedded
	}

	pipelineForward := cleanRemainingTitle(title, detection)

	confidence := 0.0
	if reportType != "" {
		confidence = detection.confidence
	}

	return Result{
		Keywords:             detection.keywordsFound,
		ReportType:           reportType,
		Confidence:           confidence,
		Format:               format,
		PipelineForwardTitle: pipelineForward,
	}
}

func marketAwareWorkflow(store patterns.Store, title string, class stage1.Class) Result {
	connector := connectorWord(class)
	marketTerm, remaining, pipelineForward, ok := extractMarketTerm(title, connector)
	if !ok {
		// No entity follows the connector: the report type is "Market"
		// and the working string is forwarded unchanged.
		res := standardWorkflow(store, title)
		res.ReportType = "Market"
		res.PipelineForwardTitle = title
		return res
	}

	detection := detectKeywords(store, remaining)
	var reconstructed string
	if detection.confidence > 0.2 {
		reconstructed = reconstruct(store, detection, false)
	}
	if reconstructed == "" {
		// reconstruct's boundary mode only keeps keywords positioned
		// after Market in sequence order, so Market has to lead here
		// the same way it does in a standard title.
		fallbackText := strings.TrimSpace("Market " + remaining)
		fallbackDetection := detectKeywords(store, fallbackText)
		if fallbackDetection.confidence > 0.2 {
			reconstructed = reconstruct(store, fallbackDetection, true)
		}
	}

	var finalType string
	confidence := 0.9
	switch {
	case reconstructed == "":
		if marketTerm != "" {
			finalType = "Market"
		}
	case strings.Contains(strings.ToLower(reconstructed), "market"):
		finalType = reconstructed
		confidence = detection.confidence
	default:
		finalType = "Market " + reconstructed
		confidence = detection.confidence
	}

	return Result{
		Keywords:             detection.keywordsFound,
		ReportType:           finalType,
		Confidence:           confidence,
		Format:               FormatPrefix,
		PipelineForwardTitle: pipelineForward,
		Notes:                "market-aware workflow, extracted term: " + marketTerm,
	}
}

func connectorWord(class stage1.Class) string {
	switch class {
	case stage1.ClassMarketFor:
		return "for"
	case stage1.ClassMarketIn:
		return "in"
	case stage1.ClassMarketBy:
		return "by"
	default:
		return ""
	}
}

// extractMarketTerm locates "Market <connector> <entity>" where entity
// stops before a report-indicator word or a comma, per spec §4.3.6.
func extractMarketTerm(title, connector string) (marketTerm, remaining, pipelineForward string, ok bool) {
	if connector == "" {
		return "", title, title, false
	}
	indicator := strings.Join(reportIndicatorWords, "|")
	pattern := fmt.Sprintf(`(?i)\bMarket\s+%s\s+([^,]*?)(?:\s+(?:%s)\b|\s*,\s*(?:%s)|$)`, connector, indicator, indicator)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", title, title, false
	}
	loc := re.FindStringSubmatchIndex(title)
	if loc == nil {
		return "", title, title, false
	}
	// RE2 has no lookahead, so the terminator (report-indicator word or
	// comma) is consumed by the overall match. loc[3] is the entity
	// group's own end, before the terminator — use it instead of
	// loc[1] so the terminator word survives into remaining/context
	// rather than being dropped (spec §4.3.6 step 2 expects it to feed
	// the report-type search).
	entityEnd := loc[1]
	if loc[3] >= 0 {
		entityEnd = loc[3]
	}
	fullMatch := title[loc[0]:entityEnd]
	var context string
	if loc[2] >= 0 {
		context = strings.TrimSpace(title[loc[2]:loc[3]])
	}

	prefix := strings.TrimSpace(title[:loc[0]])
	after := strings.TrimSpace(title[entityEnd:])

	var parts []string
	if prefix != "" {
		parts = append(parts, prefix)
	}
	if after != "" {
		parts = append(parts, after)
	}
	remaining = strings.Trim(strings.Join(parts, " "), " ,-–—")

	if prefix != "" {
		pipelineForward = strings.TrimSpace(fmt.Sprintf("%s %s %s", prefix, connector, context))
	} else {
		pipelineForward = context
	}

	return strings.TrimSpace(fullMatch), remaining, pipelineForward, true
}

type keywordOccurrence struct {
	term    string
	start   int
	end     int
	wrapped bool
}

type detectionResult struct {
	keywordsFound        []string
	sequence             []keywordOccurrence
	separators           []string
	boundaryMarkers      []string
	marketBoundary       bool
	marketBoundaryPos    int
	confidence           float64
	anyWrapped           bool
}

// detectKeywords implements the keyword-detection algorithm of spec
// §4.3.3: locate every dictionary keyword by word boundary (bracket-
// or paren-wrapped hits take priority), order them by position, find
// the separators between consecutive hits, and score confidence.
func detectKeywords(store patterns.Store, title string) detectionResult {
	primary := store.PatternsBySubtype(patterns.KindReportTypeDictionary, patterns.SubtypePrimaryKeyword)
	secondary := store.PatternsBySubtype(patterns.KindReportTypeDictionary, patterns.SubtypeSecondaryKeyword)

	var marketTerm string
	if len(primary) > 0 {
		marketTerm = primary[0].Term
	}

	var occurrences []keywordOccurrence
	all := append(append([]patterns.Compiled{}, primary...), secondary...)
	for _, kw := range all {
		occ, found := findKeyword(title, kw.Term)
		if found {
			occurrences = append(occurrences, occ)
		}
	}
	sort.Slice(occurrences, func(i, j int) bool { return occurrences[i].start < occurrences[j].start })

	result := detectionResult{marketBoundaryPos: -1}
	for i, occ := range occurrences {
		result.keywordsFound = append(result.keywordsFound, occ.term)
		result.sequence = append(result.sequence, occ)
		if occ.wrapped {
			result.anyWrapped = true
		}
		if marketTerm != "" && strings.EqualFold(occ.term, marketTerm) && !result.marketBoundary {
			result.marketBoundary = true
			result.marketBoundaryPos = i
		}
	}

	result.separators, result.boundaryMarkers = detectSeparators(store, title, result.sequence)

	if result.marketBoundary {
		result.confidence += 0.40
	}
	kwBonus := float64(len(result.keywordsFound)) * 0.10
	if kwBonus > 0.50 {
		kwBonus = 0.50
	}
	result.confidence += kwBonus
	if len(result.separators) > 0 {
		result.confidence += 0.10
	}

	return result
}

func findKeyword(title, term string) (keywordOccurrence, bool) {
	wordBoundary := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)

	wrapped := regexp.MustCompile(`(?i)[\[(][^\])]*\b` + regexp.QuoteMeta(term) + `\b[^\])]*[\])]`)
	if loc := wrapped.FindStringIndex(title); loc != nil {
		inner := wordBoundary.FindStringIndex(title[loc[0]:loc[1]])
		if inner != nil {
			return keywordOccurrence{term: term, start: loc[0] + inner[0], end: loc[0] + inner[1], wrapped: true}, true
		}
	}

	loc := wordBoundary.FindStringIndex(title)
	if loc == nil {
		return keywordOccurrence{}, false
	}
	return keywordOccurrence{term: term, start: loc[0], end: loc[1]}, true
}

func detectSeparators(store patterns.Store, title string, sequence []keywordOccurrence) ([]string, []string) {
	separatorPatterns := store.PatternsBySubtype(patterns.KindReportTypeDictionary, patterns.SubtypeSeparator)
	boundaryPatterns := store.PatternsBySubtype(patterns.KindReportTypeDictionary, patterns.SubtypeBoundaryMarker)

	separatorOrder := make([]string, len(separatorPatterns))
	for i, p := range separatorPatterns {
		separatorOrder[i] = p.Term
	}
	boundaryTerms := make([]string, len(boundaryPatterns))
	for i, p := range boundaryPatterns {
		boundaryTerms[i] = p.Term
	}

	foundSep := map[string]bool{}
	foundBoundary := map[string]bool{}

	if len(sequence) < 2 {
		for _, sep := range separatorOrder {
			if containsSeparator(title, sep) {
				foundSep[sep] = true
			}
		}
	} else {
		for i := 0; i < len(sequence)-1; i++ {
			if sequence[i].end >= sequence[i+1].start {
				continue
			}
			between := title[sequence[i].end:sequence[i+1].start]
			for _, sep := range separatorOrder {
				if containsSeparator(between, sep) {
					foundSep[sep] = true
				}
			}
			for _, b := range boundaryTerms {
				if strings.Contains(between, b) {
					foundBoundary[b] = true
				}
			}
		}
	}

	var separators, boundaries []string
	for _, sep := range separatorOrder {
		if foundSep[sep] {
			separators = append(separators, sep)
		}
	}
	for _, b := range boundaryTerms {
		if foundBoundary[b] {
			boundaries = append(boundaries, b)
		}
	}
	return separators, boundaries
}

// reconstruct builds the canonical report-type string from a detection
// result. requireBoundary controls whether only post-Market keywords
// are used (standard workflow) or every keyword in sequence order
// (market-aware workflow, per spec §4.3.6 step 4).
func reconstruct(store patterns.Store, d detectionResult, requireBoundary bool) string {
	if len(d.keywordsFound) == 0 {
		return ""
	}

	var parts []string
	if requireBoundary {
		if d.marketBoundary {
			parts = append(parts, d.sequence[d.marketBoundaryPos].term)
			for i, occ := range d.sequence {
				if i > d.marketBoundaryPos && !strings.EqualFold(occ.term, d.sequence[d.marketBoundaryPos].term) {
					parts = append(parts, occ.term)
				}
			}
		} else {
			for _, occ := range d.sequence {
				parts = append(parts, occ.term)
			}
		}
	} else {
		for _, occ := range d.sequence {
			parts = append(parts, occ.term)
		}
	}
	if len(parts) == 0 {
		return ""
	}

	var reconstructed string
	switch {
	case len(parts) == 1:
		reconstructed = parts[0]
	case contains(d.separators, "&"):
		reconstructed = strings.Join(parts, " & ")
	case contains(d.separators, "and"):
		if len(parts) == 2 {
			reconstructed = strings.Join(parts, " and ")
		} else {
			joiner := ", "
			if !requireBoundary {
				joiner = " "
			}
			reconstructed = strings.Join(parts[:len(parts)-1], joiner) + " and " + parts[len(parts)-1]
		}
	default:
		reconstructed = strings.Join(parts, " ")
	}

	return cleanReconstructed(reconstructed)
}

func cleanReconstructed(s string) string {
	s = textutil.CollapseWhitespace(s)
	for _, re := range duplicateKeywordPatterns {
		s = re.ReplaceAllString(s, "$1")
	}
	return textutil.TitleCaseKeywords(s)
}

// containsSeparator reports whether sep occurs in haystack. Word-like
// separators (e.g. "and") require word boundaries so an entity token
// such as "Thailand" doesn't register a spurious match; symbol
// separators (e.g. "&") are matched as plain substrings.
func containsSeparator(haystack, sep string) bool {
	if !isWordSeparator(sep) {
		return strings.Contains(haystack, sep)
	}
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(sep) + `\b`)
	return re.MatchString(haystack)
}

func isWordSeparator(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// cleanRemainingTitle removes every detected keyword span from title,
// leaving the text that flows to stage 4 (spec §4.3.7's pipeline-
// forward title, standard-workflow case).
func cleanRemainingTitle(title string, d detectionResult) string {
	if len(d.sequence) == 0 {
		return textutil.Clean(title)
	}
	spans := append([]keywordOccurrence{}, d.sequence...)
	sort.Slice(spans, func(i, j int) bool { return spans[i].start > spans[j].start })

	remaining := title
	for _, occ := range spans {
		if occ.start < 0 || occ.end > len(remaining) || occ.start > occ.end {
			continue
		}
		remaining = remaining[:occ.start] + remaining[occ.end:]
	}
	return textutil.Clean(remaining)
}

// Package textutil holds the small, pure string transforms shared by
// every pipeline stage: whitespace collapsing, punctuation trimming, and
// the topic/report-type normalization rules of spec §3.3.
package textutil

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	nonAlnumHyphen = regexp.MustCompile(`[^a-z0-9-]+`)
	hyphenRun      = regexp.MustCompile(`-+`)
	leadPunct      = regexp.MustCompile(`^[\s,;:\-–—.]+`)
	trailPunct     = regexp.MustCompile(`[\s,;:\-–—.]+$`)
)

// CollapseWhitespace reduces any run of whitespace to a single space and
// trims the ends.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// TrimPunctuation strips leading/trailing punctuation noise left over
// after a span has been spliced out of a title.
func TrimPunctuation(s string) string {
	s = leadPunct.ReplaceAllString(s, "")
	s = trailPunct.ReplaceAllString(s, "")
	return s
}

// Clean runs the standard collapse-then-trim sequence applied after
// every stage splices a matched span out of its working string.
func Clean(s string) string {
	return TrimPunctuation(CollapseWhitespace(s))
}

// NormalizeTopicName implements spec §4.5.4: lowercase, any run of
// non-alphanumeric-or-hyphen becomes a single hyphen, hyphen runs
// collapse, leading/trailing hyphens trim.
func NormalizeTopicName(topic string) string {
	lower := strings.ToLower(topic)
	hyphenated := nonAlnumHyphen.ReplaceAllString(lower, "-")
	collapsed := hyphenRun.ReplaceAllString(hyphenated, "-")
	return strings.Trim(collapsed, "-")
}

// connectives stay lowercase during title-casing (spec §4.3.5).
var connectives = map[string]bool{
	"and": true, "or": true, "of": true, "in": true,
	"on": true, "at": true, "by": true, "for": true, "&": true,
}

// TitleCaseKeywords capitalizes each significant word, keeping
// connectives lowercase, and always capitalizes the first word —
// spec §4.3.5's reconstruction cleanup rule.
func TitleCaseKeywords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		lw := strings.ToLower(w)
		if connectives[lw] && i != 0 {
			words[i] = lw
			continue
		}
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	r := []rune(w)
	if len(r) == 1 {
		return strings.ToUpper(w)
	}
	return strings.ToUpper(string(r[0])) + strings.ToLower(string(r[1:]))
}

// WordBoundaryContains reports whether term occurs in s as a whole,
// case-insensitive word.
func WordBoundaryContains(s, term string) bool {
	if term == "" {
		return false
	}
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
	return re.MatchString(s)
}

// RemoveWordBoundary removes every case-insensitive, word-bounded
// occurrence of term from s.
func RemoveWordBoundary(s, term string) string {
	if term == "" {
		return s
	}
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
	return re.ReplaceAllString(s, "")
}

// TechnicalCompoundPatterns are the shapes stage 5 must preserve
// verbatim: digit-letter tokens (5G, 8K), 2-4 letter acronyms (AI, IoT,
// API), hyphenated compounds (AI-Powered), and embedded-number
// identifiers (H2O2) — spec §4.5.3.
var TechnicalCompoundPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d+[A-Za-z]+\b`),
	regexp.MustCompile(`\b[A-Z][A-Za-z]{0,2}[A-Z]\b`),
	regexp.MustCompile(`\b[A-Za-z0-9]+-[A-Za-z0-9]+(?:-[A-Za-z0-9]+)*\b`),
	regexp.MustCompile(`\b[A-Za-z]+\d+[A-Za-z0-9]*\b`),
}

// FindTechnicalCompounds returns the distinct technical-compound tokens
// found in s, grouped by pattern in TechnicalCompoundPatterns order and,
// within one pattern, in order of appearance.
func FindTechnicalCompounds(s string) []string {
	seen := map[string]bool{}
	var out []string
	for _, re := range TechnicalCompoundPatterns {
		for _, m := range re.FindAllString(s, -1) {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

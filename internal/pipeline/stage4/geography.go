// Package stage4 detects and removes geographic entities from a title,
// resolving aliases to their primary term and guarding against
// false positives inside hyphenated words (e.g. "De-identified").
package stage4

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/marketlens/titleparser/internal/patterns"
	"github.com/marketlens/titleparser/internal/textutil"
)

// Result is Stage 4's output: the resolved region names, in order of
// first match, and the residual title with every matched span removed.
type Result struct {
	Regions      []string
	CleanedTitle string
	Confidence   float64
	Notes        string
}

var (
	separatorBefore = regexp.MustCompile(`(?i)\b(and|plus)\s*$`)
	separatorAfter  = regexp.MustCompile(`(?i)^\s*(and|plus)\b`)

	doubleComma     = regexp.MustCompile(`\s*,\s*,\s*`)
	doubleAmpersand = regexp.MustCompile(`\s*&\s*&\s*`)
	commaAndComma   = regexp.MustCompile(`\s*,\s*and\s*,\s*`)
	doubleAnd       = regexp.MustCompile(`(?i)\s*and\s*and\s*`)
	ampersandBetween = regexp.MustCompile(`\w\s*&\s*\w`)
	leadingPunctKeepAmp = regexp.MustCompile(`^\s*[,;&-]\s*`)
	trailingPunctKeepAmp = regexp.MustCompile(`\s*[,;&-]\s*$`)
	leadingPunct        = regexp.MustCompile(`^\s*[,;-]\s*`)
	trailingPunct       = regexp.MustCompile(`\s*[,;-]\s*$`)
	leadingAnd          = regexp.MustCompile(`(?i)^\s*and\s*`)
	trailingAnd         = regexp.MustCompile(`(?i)\s*and\s*$`)

	danglingAndEnd   = regexp.MustCompile(`(?i)\b(and|plus)\s*$`)
	danglingAndStart = regexp.MustCompile(`(?i)^\s*(and|plus)\b`)
	danglingInEnd    = regexp.MustCompile(`(?i)\bin\s*$`)
	danglingAmpStart = regexp.MustCompile(`^\s*&\b`)
	singleLetterWord = regexp.MustCompile(`\b\w\b`)
)

// Extract removes every geographic entity pattern from title, in
// priority order, resolving each match to its canonical term.
func Extract(store patterns.Store, title string) Result {
	if strings.TrimSpace(title) == "" {
		return Result{CleanedTitle: "", Confidence: 1.0, Notes: "empty input"}
	}

	working := title
	var regions []string
	seen := map[string]bool{}
	var notes []string

	for _, p := range store.Patterns(patterns.KindGeographicEntity) {
		if p.Regex == nil {
			continue
		}
		matches := p.Regex.FindAllStringIndex(working, -1)
		if len(matches) == 0 {
			continue
		}

		var kept [][]int
		for _, loc := range matches {
			matchedText := strings.TrimSpace(working[loc[0]:loc[1]])
			if len(matchedText) < 2 {
				continue
			}
			if isPartOfHyphenatedWord(working, loc) {
				continue
			}
			kept = append(kept, loc)
		}
		if len(kept) == 0 {
			continue
		}

		for i := len(kept) - 1; i >= 0; i-- {
			loc := kept[i]
			matchedText := strings.TrimSpace(working[loc[0]:loc[1]])
			resolved := resolvePrimaryTerm(matchedText, p)
			if !seen[resolved] {
				seen[resolved] = true
				regions = append(regions, resolved)
			}
			working = removeMatchWithCleanup(store, working, loc)
		}
		notes = append(notes, p.Term+": "+strconv.Itoa(len(kept))+" match(es)")
	}

	confidence := confidenceScore(title, regions, working)
	working = finalCleanup(working)

	// regions were appended in reverse-match order within each pattern
	// (matches processed right-to-left to keep earlier offsets valid);
	// restore first-appearance order across the whole title.
	regions = reorderByFirstAppearance(title, regions)

	return Result{Regions: regions, CleanedTitle: working, Confidence: confidence, Notes: strings.Join(notes, "; ")}
}

func resolvePrimaryTerm(matchedText string, p patterns.Compiled) string {
	lower := strings.ToLower(matchedText)
	for _, alias := range p.Aliases {
		if strings.ToLower(alias) == lower {
			return p.Term
		}
	}
	if strings.ToLower(p.Term) == lower {
		return p.Term
	}
	return matchedText
}

// isPartOfHyphenatedWord guards against false positives like
// "De-identified" matching a region named "De..." (spec §4.4's
// hyphenation guard).
func isPartOfHyphenatedWord(text string, loc []int) bool {
	start, end := loc[0], loc[1]
	if start > 0 && text[start-1] == '-' {
		return true
	}
	if end < len(text) && text[end] == '-' {
		return true
	}
	return false
}

// removeMatchWithCleanup deletes the matched span and absorbs an
// adjacent "and"/"plus" connector when it sits between two geographic
// entities, then normalizes leftover punctuation artifacts.
func removeMatchWithCleanup(store patterns.Store, text string, loc []int) string {
	start, end := loc[0], loc[1]
	before := strings.TrimRight(text[:start], " \t")
	after := strings.TrimLeft(text[end:], " \t")

	if m := separatorBefore.FindStringIndex(before); m != nil {
		if regionPrecedesSeparator(store, text[:start]) {
			before = strings.TrimRight(before[:m[0]], " \t")
		}
	}
	if m := separatorAfter.FindStringIndex(after); m != nil {
		remainder := after[m[1]:]
		if regionFollowsSeparator(store, remainder) {
			after = strings.TrimLeft(remainder, " \t")
		}
	}

	cleaned := before + " " + after
	cleaned = doubleComma.ReplaceAllString(cleaned, ", ")
	cleaned = doubleAmpersand.ReplaceAllString(cleaned, " & ")
	cleaned = commaAndComma.ReplaceAllString(cleaned, " ")
	cleaned = doubleAnd.ReplaceAllString(cleaned, " ")
	cleaned = textutil.CollapseWhitespace(cleaned)

	if !ampersandBetween.MatchString(cleaned) {
		cleaned = leadingPunctKeepAmp.ReplaceAllString(cleaned, "")
		cleaned = trailingPunctKeepAmp.ReplaceAllString(cleaned, "")
	} else {
		cleaned = leadingPunct.ReplaceAllString(cleaned, "")
		cleaned = trailingPunct.ReplaceAllString(cleaned, "")
	}
	cleaned = leadingAnd.ReplaceAllString(cleaned, "")
	cleaned = trailingAnd.ReplaceAllString(cleaned, "")

	return strings.TrimSpace(cleaned)
}

// regionPrecedesSeparator checks only the top-priority patterns
// (mirroring the source implementation's bounded lookback) to decide
// whether a connector sits between two resolved regions.
func regionPrecedesSeparator(store patterns.Store, prefix string) bool {
	all := store.Patterns(patterns.KindGeographicEntity)
	limit := len(all)
	if limit > 20 {
		limit = 20
	}
	for _, p := range all[:limit] {
		if p.Regex == nil {
			continue
		}
		combined := regexp.MustCompile(p.Regex.String() + `\s+(?i:and|plus)\s*$`)
		if combined.MatchString(prefix) {
			return true
		}
	}
	return false
}

func regionFollowsSeparator(store patterns.Store, remainder string) bool {
	all := store.Patterns(patterns.KindGeographicEntity)
	limit := len(all)
	if limit > 20 {
		limit = 20
	}
	for _, p := range all[:limit] {
		if p.Regex == nil {
			continue
		}
		combined := regexp.MustCompile(`^\s*` + p.Regex.String())
		if combined.MatchString(remainder) {
			return true
		}
	}
	return false
}

func confidenceScore(original string, regions []string, remaining string) float64 {
	if original == "" {
		return 1.0
	}
	confidence := 0.8
	if len(regions) > 0 {
		boost := float64(len(regions)) * 0.05
		if boost > 0.2 {
			boost = 0.2
		}
		confidence += boost
	}

	suspicious := []*regexp.Regexp{danglingAndEnd, danglingAndStart, danglingInEnd, danglingAmpStart, singleLetterWord}
	for _, re := range suspicious {
		if re.MatchString(remaining) {
			confidence -= 0.1
		}
	}

	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

func finalCleanup(text string) string {
	if text == "" {
		return ""
	}
	text = regexp.MustCompile(`(?i)^\s*(and|plus)\s+`).ReplaceAllString(text, "")
	text = regexp.MustCompile(`(?i)\s+(and|plus)\s*$`).ReplaceAllString(text, "")
	return textutil.Clean(text)
}

// reorderByFirstAppearance sorts resolved regions by where their
// resolved name first appears in the original title (a name that does
// not appear there sorts last, keeping its relative order), since
// the extraction loop processes one geographic pattern at a time
// (priority order) rather than left-to-right across all patterns.
func reorderByFirstAppearance(original string, regions []string) []string {
	type posRegion struct {
		pos    int
		region string
	}
	var ordered []posRegion
	lower := strings.ToLower(original)
	for _, r := range regions {
		pos := strings.Index(lower, strings.ToLower(r))
		if pos < 0 {
			pos = len(original)
		}
		ordered = append(ordered, posRegion{pos: pos, region: r})
	}
	for i := 1; i < len(ordered); i++ {
		j := i
		for j > 0 && ordered[j-1].pos > ordered[j].pos {
			ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
			j--
		}
	}
	out := make([]string, len(ordered))
	for i, o := range ordered {
		out[i] = o.region
	}
	return out
}

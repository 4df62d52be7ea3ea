// Package stage1 classifies a title by its market-term connector
// ("Market for", "Market in", "Market by") before any other stage
// touches the text. It never rewrites the title.
package stage1

import (
	"strings"

	"github.com/marketlens/titleparser/internal/patterns"
)

// Class is one of the market-term classifications a title can receive.
type Class string

const (
	ClassStandard  Class = "standard"
	ClassMarketFor Class = "market-for"
	ClassMarketIn  Class = "market-in"
	ClassMarketBy  Class = "market-by"
	ClassAmbiguous Class = "ambiguous"
)

// connectorClass maps a market-term connector word to the class it
// signals. The lookup keys off the pattern's matched term, not its ID,
// so custom pattern IDs for the same connectors classify the same way —
// see classifyConnector below.
var connectorClass = map[string]Class{
	"for": ClassMarketFor,
	"in":  ClassMarketIn,
	"by":  ClassMarketBy,
}

// Result is Stage 1's output: the class, a confidence score, and the
// verbatim matched term text (empty for ClassStandard).
type Result struct {
	Class       Class
	Confidence  float64
	MatchedTerm string
}

// Classify inspects title against the store's market-term patterns and
// returns the single best classification. Multiple distinct connectors
// firing on the same title is classified ambiguous; no connector firing
// is standard.
func Classify(store patterns.Store, title string) Result {
	compiled := store.Patterns(patterns.KindMarketTerm)
	if len(compiled) == 0 {
		return Result{Class: ClassStandard, Confidence: 1.0}
	}

	type hit struct {
		class      Class
		matched    string
		confidence float64
	}
	var hits []hit

	for _, c := range compiled {
		if c.Regex == nil {
			continue
		}
		loc := c.Regex.FindStringIndex(title)
		if loc == nil {
			continue
		}
		class := classifyConnector(c.Term)
		if class == "" {
			continue
		}
		matched := title[loc[0]:loc[1]]
		hits = append(hits, hit{class: class, matched: matched, confidence: confidenceFor(c.Priority)})
		if c.Regex != nil {
			store.IncrementSuccess(c.ID)
		}
	}

	if len(hits) == 0 {
		return Result{Class: ClassStandard, Confidence: 0.9}
	}

	distinct := map[Class]bool{}
	for _, h := range hits {
		distinct[h.class] = true
	}
	if len(distinct) > 1 {
		return Result{Class: ClassAmbiguous, Confidence: 0.5, MatchedTerm: hits[0].matched}
	}

	best := hits[0]
	for _, h := range hits[1:] {
		if h.confidence > best.confidence {
			best = h
		}
	}
	return Result{Class: best.class, Confidence: best.confidence, MatchedTerm: best.matched}
}

// classifyConnector derives the class from a pattern term like "Market
// For" without depending on a fixed pattern ID, so operators can add
// equivalent market-term patterns to the library under new IDs.
func classifyConnector(term string) Class {
	lower := strings.ToLower(term)
	switch {
	case strings.Contains(lower, "for"):
		return connectorClass["for"]
	case strings.Contains(lower, " in"), strings.HasSuffix(lower, "in"):
		return connectorClass["in"]
	case strings.Contains(lower, "by"):
		return connectorClass["by"]
	default:
		return ""
	}
}

// confidenceFor scales down with priority: the lowest-priority (most
// specific) pattern that fires earns the highest confidence.
func confidenceFor(priority int) float64 {
	switch {
	case priority <= 1:
		return 0.97
	case priority == 2:
		return 0.95
	case priority == 3:
		return 0.93
	default:
		return 0.85
	}
}

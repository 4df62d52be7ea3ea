package patterns

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// geoPattern builds a word-boundary alternation over a term and its
// aliases, longest-first so Go's leftmost-first regexp semantics
// prefer the most specific alias (e.g. "United States of America"
// over "United States") when both would match at the same position.
func geoPattern(term string, aliases []string) string {
	variants := append([]string{term}, aliases...)
	sort.Slice(variants, func(i, j int) bool { return len(variants[i]) > len(variants[j]) })
	for i, v := range variants {
		trailingBoundary := `\b`
		if last := v[len(v)-1]; !isWordByte(last) {
			trailingBoundary = ""
		}
		variants[i] = regexp.QuoteMeta(v) + trailingBoundary
	}
	return `(?i)\b(?:` + strings.Join(variants, "|") + `)`
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= '0' && b <= '9') ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z')
}

// Seed returns the default in-process pattern set used by StaticStore and
// by tests. It is a representative slice of the production pattern
// library described in spec §3.1/§6.1 — enough market-term, date,
// report-type-dictionary, geographic, and acronym-template records to
// exercise every stage and every scenario in spec §8.2 — not the full
// production corpus (that lives in the document store, seeded by
// offline tooling out of this module's scope).
func Seed() []Record {
	now := time.Now()
	var recs []Record

	add := func(r Record) {
		r.Active = true
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
		recs = append(recs, r)
	}

	// --- Stage 1: market-term classification patterns ---
	add(Record{ID: "mt-for", Kind: KindMarketTerm, Term: "Market For", Pattern: `(?i)\bmarket\s+for\b`, Priority: 1})
	add(Record{ID: "mt-in", Kind: KindMarketTerm, Term: "Market In", Pattern: `(?i)\bmarket\s+in\b`, Priority: 2})
	add(Record{ID: "mt-by", Kind: KindMarketTerm, Term: "Market By", Pattern: `(?i)\bmarket\s+by\b`, Priority: 3})

	// --- Stage 2: date format families ---
	add(Record{ID: "date-range", Kind: KindDatePattern, Subtype: SubtypeDateRange,
		Term: "year range", Priority: 1,
		Pattern: `(?i)\b(20[0-4][0-9])\s*(?:-|–|—|\bto\b)\s*(20[0-4][0-9]|[0-9]{2})\b`})
	add(Record{ID: "date-terminal", Kind: KindDatePattern, Subtype: SubtypeDateTerminal,
		Term: "terminal comma year", Priority: 2,
		Pattern: `,\s*(20[0-4][0-9])\.?\s*$`})
	add(Record{ID: "date-bracket", Kind: KindDatePattern, Subtype: SubtypeDateBracketed,
		Term: "bracketed year", Priority: 3,
		Pattern: `[\[\(]([^\]\)]*?20[0-4][0-9][^\]\)]*?)[\]\)]`})
	add(Record{ID: "date-embedded", Kind: KindDatePattern, Subtype: SubtypeDateEmbedded,
		Term: "embedded year", Priority: 4,
		Pattern: `(?i)(?:\b(?:outlook|through|by)\s+(20[0-4][0-9])\b)|(?:\b(20[0-4][0-9])\s+(?:\w+\s+){0,3}?outlook\b)`})

	// --- Stage 3: report-type dictionary ---
	add(Record{ID: "rtd-market", Kind: KindReportTypeDictionary, Subtype: SubtypePrimaryKeyword,
		Term: "Market", Priority: 1, Frequency: 9680, Percentage: 96.8})

	secondary := []struct {
		term string
		freq int
	}{
		{"Size", 4200}, {"Share", 3900}, {"Growth", 3100}, {"Trends", 2900},
		{"Analysis", 2700}, {"Forecast", 2400}, {"Outlook", 1900}, {"Report", 1800},
		{"Industry", 1600}, {"Study", 1100}, {"Research", 900}, {"Insights", 700},
		// attested misspellings, kept verbatim per spec §4.3.2
		{"Industy", 60}, {"Repot", 45}, {"Indsutry", 38}, {"Sze", 22},
	}
	for i, s := range secondary {
		add(Record{ID: "rtd-sec-" + s.term, Kind: KindReportTypeDictionary, Subtype: SubtypeSecondaryKeyword,
			Term: s.term, Priority: i + 2, Frequency: s.freq})
	}

	separators := []string{"&", "and", ",", "|", ":", ";", "-", "–", "—"}
	for i, sep := range separators {
		add(Record{ID: "rtd-sep-" + sep, Kind: KindReportTypeDictionary, Subtype: SubtypeSeparator,
			Term: sep, Priority: i})
	}

	boundary := []string{"[", "]", "(", ")"}
	for i, b := range boundary {
		add(Record{ID: "rtd-bound-" + b, Kind: KindReportTypeDictionary, Subtype: SubtypeBoundaryMarker,
			Term: b, Priority: i})
	}

	// --- Stage 3: acronym-embedded templates ---
	add(Record{ID: "acr-industry-report", Kind: KindAcronymEmbeddedTemplate,
		Term: "acronym, Industry Report", Priority: 1, BaseType: "Industry Report",
		Pattern: `(?i),\s*([A-Z]{2,6})\s+Industry\s+Report\b`})
	add(Record{ID: "acr-market-report", Kind: KindAcronymEmbeddedTemplate,
		Term: "acronym Market Report", Priority: 2, BaseType: "Market Report",
		Pattern: `(?i)\b([A-Z]{2,6})\s+Market\s+Report\b`})

	// --- Stage 4: geographic entities ---
	geo := []struct {
		term     string
		aliases  []string
		priority int
	}{
		{"Europe, Middle East and Africa", []string{"EMEA", "Europe Middle East and Africa", "Europe Middle East & Africa"}, 1},
		{"Asia Pacific", []string{"APAC", "Asia-Pacific"}, 10},
		{"North America", nil, 10},
		{"Latin America", []string{"LATAM"}, 10},
		{"Middle East and Africa", []string{"MEA", "Middle East & Africa"}, 10},
		{"United States", []string{"U.S.", "US", "USA", "United States of America"}, 20},
		{"United Kingdom", []string{"U.K.", "UK"}, 20},
		{"Europe", nil, 20},
		{"Middle East", nil, 20},
		{"Africa", nil, 20},
		{"Southeast Asia", []string{"SEA"}, 20},
		{"South Asia", nil, 20},
		{"East Asia", nil, 20},
		{"Canada", nil, 30},
		{"Mexico", nil, 30},
		{"China", nil, 30},
		{"Japan", nil, 30},
		{"India", nil, 30},
		{"Germany", nil, 30},
		{"France", nil, 30},
		{"Brazil", nil, 30},
		{"Australia", nil, 30},
		{"South Korea", []string{"Korea"}, 30},
		{"GCC", []string{"Gulf Cooperation Council"}, 30},
		{"Global", nil, 90},
	}
	for _, g := range geo {
		add(Record{ID: "geo-" + g.term, Kind: KindGeographicEntity, Term: g.term, Aliases: g.aliases,
			Priority: g.priority, Pattern: geoPattern(g.term, g.aliases)})
	}

	// --- confusing-term telemetry hints (stage 6 diagnostics) ---
	add(Record{ID: "confuse-share", Kind: KindConfusingTerm, Term: "Share",
		NormalizedForm: "ambiguous with report-type keyword 'Share'", Priority: 1})
	add(Record{ID: "confuse-growth", Kind: KindConfusingTerm, Term: "Growth",
		NormalizedForm: "ambiguous with report-type keyword 'Growth'", Priority: 2})

	return recs
}

// Package patterns provides typed, read-only access to the pattern
// library: the versioned collection of market-term, date, report-type,
// geographic, and acronym-template records that drive the extraction
// pipeline. The runtime loads active patterns once per process (or per
// batch) into immutable in-memory tables; CRUD and seeding live in
// offline tooling, out of scope here.
package patterns

import (
	"regexp"
	"time"
)

// Kind identifies the pattern's role in the pipeline.
type Kind string

const (
	KindMarketTerm              Kind = "market_term"
	KindDatePattern             Kind = "date_pattern"
	KindReportTypePattern       Kind = "report_type_pattern"
	KindReportTypeDictionary    Kind = "report_type_dictionary"
	KindGeographicEntity        Kind = "geographic_entity"
	KindConfusingTerm           Kind = "confusing_term"
	KindAcronymEmbeddedTemplate Kind = "acronym_embedded_template"
)

// Subtype narrows dictionary entries (report-type keywords) and date
// patterns into their functional role.
type Subtype string

const (
	SubtypePrimaryKeyword   Subtype = "primary_keyword"
	SubtypeSecondaryKeyword Subtype = "secondary_keyword"
	SubtypeSeparator        Subtype = "separator"
	SubtypeBoundaryMarker   Subtype = "boundary_marker"

	SubtypeDateRange       Subtype = "range"
	SubtypeDateTerminal    Subtype = "terminal_comma"
	SubtypeDateBracketed   Subtype = "bracketed"
	SubtypeDateEmbedded    Subtype = "embedded"
)

// Record is the schema described in spec §6.1: a single typed pattern
// document as stored in the pattern library collection.
type Record struct {
	ID               string    `bson:"_id" json:"_id"`
	Kind             Kind      `bson:"type" json:"type"`
	Subtype          Subtype   `bson:"subtype,omitempty" json:"subtype,omitempty"`
	Term             string    `bson:"term" json:"term"`
	Aliases          []string  `bson:"aliases,omitempty" json:"aliases,omitempty"`
	Pattern          string    `bson:"pattern,omitempty" json:"pattern,omitempty"`
	Priority         int       `bson:"priority" json:"priority"`
	Active           bool      `bson:"active" json:"active"`
	FormatType       string    `bson:"format_type,omitempty" json:"format_type,omitempty"`
	BaseType         string    `bson:"base_type,omitempty" json:"base_type,omitempty"`
	ConfidenceWeight float64   `bson:"confidence_weight,omitempty" json:"confidence_weight,omitempty"`
	NormalizedForm   string    `bson:"normalized_form,omitempty" json:"normalized_form,omitempty"`
	Frequency        int       `bson:"frequency,omitempty" json:"frequency,omitempty"`
	Percentage       float64   `bson:"percentage,omitempty" json:"percentage,omitempty"`
	SuccessCount     int64     `bson:"success_count" json:"success_count"`
	FailureCount     int64     `bson:"failure_count" json:"failure_count"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updated_at"`
}

// Compiled pairs a Record with its compiled matcher. For records with no
// explicit Pattern, callers synthesize one (e.g. stage 4 builds an
// alias-alternation regex); Regex is nil until that happens.
type Compiled struct {
	Record
	Regex *regexp.Regexp
}

// ByPriorityThenLength sorts compiled patterns by ascending priority,
// breaking ties by descending term length (longest literal first), the
// total order required by spec §3.1's invariants.
type ByPriorityThenLength []Compiled

func (b ByPriorityThenLength) Len() int      { return len(b) }
func (b ByPriorityThenLength) Swap(i, j int) { b[i], b[j] = b[j], b[i] }
func (b ByPriorityThenLength) Less(i, j int) bool {
	if b[i].Priority != b[j].Priority {
		return b[i].Priority < b[j].Priority
	}
	return len(b[i].Term) > len(b[j].Term)
}

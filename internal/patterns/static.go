package patterns

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// StaticStore is an in-memory Store backed by a fixed slice of records —
// either the built-in Seed() or a YAML file. It backs unit tests and
// offline/local runs, the same role internal/scrape/statistics.go's
// LoadRegexConfig plays for the teacher's scrape package (regex config
// sourced from a file instead of a live service).
type StaticStore struct {
	tables map[Kind][]Compiled
	logger *zap.Logger

	successCounts atomic.Pointer[map[string]int64]
	failureCounts atomic.Pointer[map[string]int64]
}

// NewStaticStore compiles and indexes the given records in-process.
// Unparseable regex sources are dropped with a warning, never returned
// to callers, matching the live store's failure semantics (spec §4.1).
func NewStaticStore(records []Record, logger *zap.Logger) *StaticStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &StaticStore{tables: make(map[Kind][]Compiled), logger: logger}

	byKind := make(map[Kind][]Compiled)
	for _, rec := range records {
		if !rec.Active {
			continue
		}
		compiled := Compiled{Record: rec}
		if rec.Pattern != "" {
			re, err := regexp.Compile(rec.Pattern)
			if err != nil {
				logger.Warn("dropping unparseable pattern",
					zap.String("id", rec.ID), zap.String("pattern", rec.Pattern), zap.Error(err))
				continue
			}
			compiled.Regex = re
		}
		byKind[rec.Kind] = append(byKind[rec.Kind], compiled)
	}
	for kind, list := range byKind {
		sort.Sort(ByPriorityThenLength(list))
		s.tables[kind] = list
	}

	empty := map[string]int64{}
	s.successCounts.Store(&empty)
	failEmpty := map[string]int64{}
	s.failureCounts.Store(&failEmpty)
	return s
}

// NewStaticStoreFromYAML loads records from a YAML file shaped as
// `records: [...]` and otherwise behaves like NewStaticStore.
func NewStaticStoreFromYAML(path string, logger *zap.Logger) (*StaticStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pattern seed file: %w", err)
	}
	var doc struct {
		Records []Record `yaml:"records"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing pattern seed file: %w", err)
	}
	return NewStaticStore(doc.Records, logger), nil
}

func (s *StaticStore) Patterns(kind Kind) []Compiled {
	return s.tables[kind]
}

func (s *StaticStore) PatternsBySubtype(kind Kind, subtype Subtype) []Compiled {
	all := s.tables[kind]
	out := make([]Compiled, 0, len(all))
	for _, c := range all {
		if c.Subtype == subtype {
			out = append(out, c)
		}
	}
	return out
}

// IncrementSuccess and IncrementFailure record telemetry in-process only
// (no persistence) — sufficient for tests and offline runs, which never
// assert on counter durability.
func (s *StaticStore) IncrementSuccess(id string) {
	s.bump(&s.successCounts, id)
}

func (s *StaticStore) IncrementFailure(id string) {
	s.bump(&s.failureCounts, id)
}

func (s *StaticStore) bump(counts *atomic.Pointer[map[string]int64], id string) {
	for {
		old := counts.Load()
		next := make(map[string]int64, len(*old)+1)
		for k, v := range *old {
			next[k] = v
		}
		next[id]++
		if counts.CompareAndSwap(old, &next) {
			return
		}
	}
}

func (s *StaticStore) Close(ctx context.Context) error { return nil }

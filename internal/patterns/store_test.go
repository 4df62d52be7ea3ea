package patterns

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticStoreOrdering(t *testing.T) {
	store := NewStaticStore(Seed(), nil)
	geo := store.Patterns(KindGeographicEntity)
	require.NotEmpty(t, geo)
	require.Equal(t, "Europe, Middle East and Africa", geo[0].Term, "compound region must sort before its components")

	for i := 1; i < len(geo); i++ {
		require.LessOrEqual(t, geo[i-1].Priority, geo[i].Priority)
		if geo[i-1].Priority == geo[i].Priority {
			require.GreaterOrEqual(t, len(geo[i-1].Term), len(geo[i].Term))
		}
	}
}

func TestStaticStoreDropsBadPattern(t *testing.T) {
	bad := []Record{
		{ID: "bad", Kind: KindGeographicEntity, Term: "Bad", Pattern: `(unclosed`, Active: true, Priority: 1},
		{ID: "good", Kind: KindGeographicEntity, Term: "Good", Pattern: `\bGood\b`, Active: true, Priority: 1},
	}
	store := NewStaticStore(bad, nil)
	patterns := store.Patterns(KindGeographicEntity)
	require.Len(t, patterns, 1)
	require.Equal(t, "good", patterns[0].ID)
}

func TestPatternsBySubtype(t *testing.T) {
	store := NewStaticStore(Seed(), nil)
	primary := store.PatternsBySubtype(KindReportTypeDictionary, SubtypePrimaryKeyword)
	require.Len(t, primary, 1)
	require.Equal(t, "Market", primary[0].Term)
}

func TestCounterIncrementsDoNotPanic(t *testing.T) {
	store := NewStaticStore(Seed(), nil)
	store.IncrementSuccess("rtd-market")
	store.IncrementFailure("rtd-market")
	store.IncrementSuccess("rtd-market")
}

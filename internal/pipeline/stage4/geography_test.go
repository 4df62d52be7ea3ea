package stage4

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marketlens/titleparser/internal/patterns"
)

func newStore(t *testing.T) patterns.Store {
	t.Helper()
	return patterns.NewStaticStore(patterns.Seed(), nil)
}

func TestExtractSingleRegion(t *testing.T) {
	store := newStore(t)
	res := Extract(store, "Electric Vehicle Battery Market in United States")
	require.Contains(t, res.Regions, "United States")
	require.NotContains(t, res.CleanedTitle, "United States")
}

func TestExtractResolvesAlias(t *testing.T) {
	store := newStore(t)
	res := Extract(store, "AI Diagnostics Market in APAC")
	require.Contains(t, res.Regions, "Asia Pacific")
}

func TestExtractCompoundRegionBeforeComponents(t *testing.T) {
	store := newStore(t)
	res := Extract(store, "Cloud Security Market in Europe, Middle East and Africa")
	require.Contains(t, res.Regions, "Europe, Middle East and Africa")
	require.NotContains(t, res.Regions, "Europe")
}

func TestExtractGuardsHyphenatedWord(t *testing.T) {
	store := newStore(t)
	res := Extract(store, "Anti-Africa Sentiment Tracking Market")
	require.NotContains(t, res.Regions, "Africa")
}

func TestExtractTwoRegionsWithAnd(t *testing.T) {
	store := newStore(t)
	res := Extract(store, "Battery Recycling Market in Canada and Mexico")
	require.Contains(t, res.Regions, "Canada")
	require.Contains(t, res.Regions, "Mexico")
}

func TestExtractEmptyInput(t *testing.T) {
	store := newStore(t)
	res := Extract(store, "")
	require.Empty(t, res.Regions)
}

package titleparser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marketlens/titleparser/internal/config"
	"github.com/marketlens/titleparser/internal/patterns"
	"github.com/marketlens/titleparser/internal/pipeline/stage7"
)

func testParser(t *testing.T) *Parser {
	t.Helper()
	store := patterns.NewStaticStore(patterns.Seed(), nil)
	return NewWithStore(store, stage7.NoopResultSink{}, config.Default())
}

func TestParseTitleEndToEnd(t *testing.T) {
	parser := testParser(t)
	result := parser.ParseTitle(context.Background(), "Global Artificial Intelligence Market Size & Share Report, 2030")

	require.NotEmpty(t, result.ProcessingID)
	require.NotEmpty(t, result.TraceID)
	require.Equal(t, "2030", result.Elements.ExtractedForecastDateRange)
	require.Contains(t, result.Elements.ExtractedRegions, "Global")
	require.NotEmpty(t, result.Elements.Topic)
	require.NotNil(t, result.ConfidenceAnalysis)
}

func TestParseBatchEndToEnd(t *testing.T) {
	parser := testParser(t)
	titles := []string{
		"North America Electric Vehicle Market Forecast, 2025-2032",
		"Asia Pacific Semiconductor Market Analysis",
		"Market for Renewable Energy Storage Solutions",
	}

	results, stats := parser.ParseBatch(context.Background(), titles)
	require.Len(t, results, len(titles))
	require.Equal(t, len(titles), stats.TotalTitles)
	require.Equal(t, stats.Completed+stats.Failed+stats.RequiresReview, stats.TotalTitles)

	snapshot := parser.Statistics()
	require.Equal(t, len(titles), snapshot.TotalTitlesProcessed)
}

func TestParserPatternsExposesStore(t *testing.T) {
	parser := testParser(t)
	store := parser.Patterns()
	require.NotEmpty(t, store.Patterns(patterns.KindMarketTerm))
}

func TestParserCloseIsNoopForStaticStore(t *testing.T) {
	parser := testParser(t)
	require.NoError(t, parser.Close(context.Background()))
}

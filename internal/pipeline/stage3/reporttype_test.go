package stage3

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marketlens/titleparser/internal/patterns"
	"github.com/marketlens/titleparser/internal/pipeline/stage1"
)

func newStore(t *testing.T) patterns.Store {
	t.Helper()
	return patterns.NewStaticStore(patterns.Seed(), nil)
}

func TestExtractStandardCompound(t *testing.T) {
	store := newStore(t)
	res := Extract(store, "Global Automotive Market Size, Share & Growth Report", stage1.ClassStandard, "")
	require.Contains(t, res.ReportType, "Market")
	require.Contains(t, res.ReportType, "Report")
	require.Greater(t, res.Confidence, 0.0)
}

func TestExtractMarketForFallsBackToMarket(t *testing.T) {
	store := newStore(t)
	res := Extract(store, "Market for Quantum Sensors", stage1.ClassMarketFor, "")
	require.NotEmpty(t, res.ReportType)
	require.Equal(t, FormatPrefix, res.Format)
}

func TestExtractMarketInWithReportType(t *testing.T) {
	store := newStore(t)
	res := Extract(store, "Market in Electric Vehicles Size and Share Report", stage1.ClassMarketIn, "")
	require.Equal(t, "Market Size Share and Report", res.ReportType)
}

func TestExtractMarketForKeepsTerminatingIndicatorWord(t *testing.T) {
	store := newStore(t)
	res := Extract(store, "Veterinary Vaccine Market for Livestock Analysis, 2025", stage1.ClassMarketFor, "")
	require.Equal(t, "Market Analysis", res.ReportType)
}

func TestExtractMarketInKeepsTerminatingIndicatorWordBeforeAmpersand(t *testing.T) {
	store := newStore(t)
	res := Extract(store, "AI Market in Automotive Outlook & Trends, 2024-2029", stage1.ClassMarketIn, "")
	require.Equal(t, "Market Outlook & Trends", res.ReportType)
}

func TestExtractAcronymEmbedded(t *testing.T) {
	store := newStore(t)
	res := Extract(store, "Global Location Tracking, RTLS Industry Report", stage1.ClassStandard, "")
	require.Equal(t, FormatAcronymEmbedded, res.Format)
	require.Equal(t, "RTLS", res.Acronym)
	require.Contains(t, res.ReportType, "Industry Report")
}

func TestExtractNoKeywordsYieldsEmpty(t *testing.T) {
	store := newStore(t)
	res := Extract(store, "Quarterly Widget Update", stage1.ClassStandard, "")
	require.Empty(t, res.ReportType)
}

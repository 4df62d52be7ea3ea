package stage5

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marketlens/titleparser/internal/pipeline/stage1"
)

func TestProcessStandardMarket(t *testing.T) {
	res := Extract(
		"Global Artificial Intelligence Market Size & Share Report, 2030",
		stage1.ClassStandard,
		Elements{DateRange: "2030", ReportType: "Market Size & Share Report", Regions: []string{"Global"}},
	)
	require.Equal(t, FormatStandardMarket, res.Format)
	require.Contains(t, res.Topic, "Artificial Intelligence")
	require.NotContains(t, res.Topic, "Global")
}

func TestProcessMarketFor(t *testing.T) {
	res := Extract(
		"Global Market for Advanced Materials in Aerospace, 2030",
		stage1.ClassMarketFor,
		Elements{DateRange: "2030", Regions: []string{"Global"}},
	)
	require.Equal(t, FormatMarketFor, res.Format)
	require.Contains(t, res.Topic, "Advanced Materials")
}

func TestProcessMarketInPreservesRegionContext(t *testing.T) {
	res := Extract(
		"Pharmaceutical Market in North America Analysis",
		stage1.ClassMarketIn,
		Elements{ReportType: "Analysis", Regions: []string{"North America"}},
	)
	require.Equal(t, FormatMarketIn, res.Format)
	require.Contains(t, res.Topic, "Pharmaceutical")
}

func TestNormalizeTopicNameLowercasesAndHyphenates(t *testing.T) {
	res := Extract("AI-Powered Diagnostics Market", stage1.ClassStandard, Elements{})
	require.Equal(t, "ai-powered-diagnostics", res.NormalizedTopic)
}

func TestFindsTechnicalCompounds(t *testing.T) {
	res := Extract("5G Infrastructure Market", stage1.ClassStandard, Elements{})
	require.Contains(t, res.TechnicalCompounds, "5G")
}

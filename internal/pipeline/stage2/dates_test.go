package stage2

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marketlens/titleparser/internal/patterns"
)

func newStore(t *testing.T) patterns.Store {
	t.Helper()
	return patterns.NewStaticStore(patterns.Seed(), nil)
}

func TestExtractRangeFormat(t *testing.T) {
	store := newStore(t)
	res := Extract(store, "Blockchain Technology Market Trends, 2020-2027", DefaultYearWindow())
	require.Equal(t, FormatRange, res.Format)
	require.Equal(t, "2020-2027", res.DateRange)
	require.Equal(t, TagExtracted, res.Tag)
	require.NotContains(t, res.CleanedTitle, "2020")
}

func TestExtractAbbreviatedEndYear(t *testing.T) {
	store := newStore(t)
	res := Extract(store, "Technology Market Study, 2023-27", DefaultYearWindow())
	require.Equal(t, FormatRange, res.Format)
	require.Equal(t, "2023-2027", res.DateRange)
}

func TestExtractTerminalComma(t *testing.T) {
	store := newStore(t)
	res := Extract(store, "Automotive Battery Market Report, 2031.", DefaultYearWindow())
	require.Equal(t, FormatTerminalComma, res.Format)
	require.Equal(t, "2031", res.DateRange)
}

func TestExtractBracketPreservesNonYearWords(t *testing.T) {
	store := newStore(t)
	res := Extract(store, "Renewable Energy Market Analysis [2024 Report]", DefaultYearWindow())
	require.Equal(t, FormatBracket, res.Format)
	require.Equal(t, "2024", res.DateRange)
	require.Contains(t, res.CleanedTitle, "Report")
	require.NotContains(t, res.CleanedTitle, "2024")
}

func TestExtractEmbeddedOutlook(t *testing.T) {
	store := newStore(t)
	res := Extract(store, "Cybersecurity Market Outlook 2031", DefaultYearWindow())
	require.Equal(t, FormatEmbedded, res.Format)
	require.Equal(t, "2031", res.DateRange)
}

func TestExtractEmbeddedLeadingYear(t *testing.T) {
	store := newStore(t)
	res := Extract(store, "2030 Technology Outlook", DefaultYearWindow())
	require.Equal(t, FormatEmbedded, res.Format)
	require.Equal(t, "2030", res.DateRange)
}

func TestExtractMultipleFallback(t *testing.T) {
	store := newStore(t)
	res := Extract(store, "Industry Report 2023 with 2025 Projections", DefaultYearWindow())
	require.Equal(t, FormatMultiple, res.Format)
	require.Equal(t, "2025", res.DateRange)
}

func TestExtractNoDates(t *testing.T) {
	store := newStore(t)
	res := Extract(store, "Technology Innovation Trends", DefaultYearWindow())
	require.Equal(t, FormatNone, res.Format)
	require.Equal(t, TagNoDatesPresent, res.Tag)
}

package stage1

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marketlens/titleparser/internal/patterns"
)

func TestClassify(t *testing.T) {
	store := patterns.NewStaticStore(patterns.Seed(), nil)

	cases := []struct {
		name  string
		title string
		want  Class
	}{
		{"standard", "Global Automotive Market Size, Share & Growth Report, 2024-2030", ClassStandard},
		{"market-for", "Market for Electric Vehicle Batteries in Automotive, 2024-2030", ClassMarketFor},
		{"market-in", "Market in Renewable Energy Storage Systems, 2024-2030", ClassMarketIn},
		{"market-by", "Market by Application and End-Use Industry, 2024-2030", ClassMarketBy},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(store, tc.title)
			require.Equal(t, tc.want, got.Class)
			if tc.want != ClassStandard {
				require.NotEmpty(t, got.MatchedTerm)
			}
		})
	}
}

func TestClassifyEmptyStoreIsStandard(t *testing.T) {
	store := patterns.NewStaticStore(nil, nil)
	got := Classify(store, "Market for Anything, 2030")
	require.Equal(t, ClassStandard, got.Class)
}

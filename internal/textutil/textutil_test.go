package textutil

import "testing"

func TestCollapseWhitespace(t *testing.T) {
	got := CollapseWhitespace("  Global   Market   Report  ")
	want := "Global Market Report"
	if got != want {
		t.Errorf("CollapseWhitespace() = %q, want %q", got, want)
	}
}

func TestClean(t *testing.T) {
	cases := map[string]string{
		", Size, Share & Growth Report -": "Size, Share & Growth Report",
		"  [2024-2030]  ":                 "[2024-2030]",
	}
	for in, want := range cases {
		if got := Clean(in); got != want {
			t.Errorf("Clean(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeTopicName(t *testing.T) {
	cases := map[string]string{
		"AI-Powered Diagnostics": "ai-powered-diagnostics",
		"5G Infrastructure":      "5g-infrastructure",
		"  Cloud / Computing  ":  "cloud-computing",
	}
	for in, want := range cases {
		if got := NormalizeTopicName(in); got != want {
			t.Errorf("NormalizeTopicName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTitleCaseKeywords(t *testing.T) {
	cases := map[string]string{
		"size and share report":      "Size and Share Report",
		"market for growth & trends": "Market for Growth & Trends",
	}
	for in, want := range cases {
		if got := TitleCaseKeywords(in); got != want {
			t.Errorf("TitleCaseKeywords(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFindTechnicalCompounds(t *testing.T) {
	got := FindTechnicalCompounds("5G and AI-Powered IoT Devices Market")
	foundFive, foundCompound := false, false
	for _, token := range got {
		if token == "5G" {
			foundFive = true
		}
		if token == "AI-Powered" {
			foundCompound = true
		}
	}
	if !foundFive || !foundCompound {
		t.Errorf("FindTechnicalCompounds() = %v, expected 5G and AI-Powered", got)
	}
}

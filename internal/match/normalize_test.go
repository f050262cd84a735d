package match

import "testing"

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase", "Open BAR", "open bar"},
		{"collapse whitespace", "  pay   the\tvenue\n", "pay the venue"},
		{"empty", "   ", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeText(tc.input); got != tc.expected {
				t.Fatalf("expected %q got %q", tc.expected, got)
			}
		})
	}
}

func TestNormalizePlanJoinsFields(t *testing.T) {
	profile := NormalizePlan("Free", "Drinks for everyone")
	if profile.Text != "free drinks for everyone" {
		t.Fatalf("unexpected text %q", profile.Text)
	}
	hits := profile.Matches([]string{"free drinks"})
	if len(hits) != 1 {
		t.Fatalf("expected phrase spanning title and description to match, got %v", hits)
	}
}

func TestMatchPhrasesOrder(t *testing.T) {
	text := "open bar and unlimited refills, open bar again"
	hits := MatchPhrases(text, []string{"unlimited", "", "open bar", "unlimited", "2-for-1"})
	if len(hits) != 2 || hits[0] != "unlimited" || hits[1] != "open bar" {
		t.Fatalf("unexpected hits %v", hits)
	}
	if got := MatchPhrases("nothing here", []string{"open bar"}); len(got) != 0 {
		t.Fatalf("expected no hits, got %v", got)
	}
}

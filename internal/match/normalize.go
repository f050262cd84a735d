package match

import (
	"regexp"
	"strings"
)

var whitespace = regexp.MustCompile(`\s+`)

// PlanProfile captures the normalized text of an activation plan.
type PlanProfile struct {
	Title       string
	Description string
	Text        string
}

// NormalizePlan lowercases and joins title and description for phrase matching.
func NormalizePlan(title, description string) PlanProfile {
	return PlanProfile{
		Title:       title,
		Description: description,
		Text:        NormalizeText(title + " " + description),
	}
}

// NormalizeText lowercases input and collapses whitespace runs to one space.
func NormalizeText(input string) string {
	lower := strings.ToLower(strings.TrimSpace(input))
	return whitespace.ReplaceAllString(lower, " ")
}

// MatchPhrases returns the phrases contained in text, in phrase-list order.
// Phrases are expected to be normalized already.
func MatchPhrases(text string, phrases []string) []string {
	var hits []string
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		if strings.Contains(text, phrase) {
			hits = appendUnique(hits, phrase)
		}
	}
	return hits
}

// Matches returns the phrases found in the profile text.
func (p PlanProfile) Matches(phrases []string) []string {
	return MatchPhrases(p.Text, phrases)
}

func appendUnique(s []string, v string) []string {
	if v == "" {
		return s
	}
	for _, existing := range s {
		if existing == v {
			return s
		}
	}
	return append(s, v)
}

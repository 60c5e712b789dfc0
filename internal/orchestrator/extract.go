package orchestrator

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxRecommendationsPerInsight = 8
	maxRecommendationRunes       = 240

	// wordsForFullConfidence is the analysis length at which confidence peaks.
	wordsForFullConfidence = 400
)

// extractRecommendations returns the bullet or numbered lines of text.
func extractRecommendations(text string) []string {
	var out []string
	for line := range strings.Lines(text) {
		item, ok := listItem(strings.TrimSpace(line))
		if !ok {
			continue
		}
		out = append(out, truncateRunes(item, maxRecommendationRunes))
		if len(out) == maxRecommendationsPerInsight {
			break
		}
	}
	return out
}

func listItem(line string) (string, bool) {
	for _, marker := range []string{"- ", "* ", "• "} {
		if rest, ok := strings.CutPrefix(line, marker); ok {
			rest = strings.TrimSpace(rest)
			return rest, rest != ""
		}
	}

	// "1. item" or "1) item"
	digits := strings.IndexFunc(line, func(r rune) bool { return !unicode.IsDigit(r) })
	if digits <= 0 || digits+1 >= len(line) {
		return "", false
	}
	if (line[digits] == '.' || line[digits] == ')') && line[digits+1] == ' ' {
		rest := strings.TrimSpace(line[digits+2:])
		return rest, rest != ""
	}
	return "", false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n-3])) + "..."
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// analysisConfidence grows linearly with length from 0.80 to 0.95.
func analysisConfidence(words int) float64 {
	c := 0.80 + 0.15*math.Min(1, float64(words)/wordsForFullConfidence)
	return math.Round(c*1000) / 1000
}

// estimateTokens approximates a token count at four bytes per token.
func estimateTokens(s string) int64 {
	return int64((len(s) + 3) / 4)
}

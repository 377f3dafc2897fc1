package unified

import (
	"strings"
	"unicode"

	levenshtein "github.com/ka-weihe/fast-levenshtein"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/Pal-droid/anizone/internal/models"
)

const (
	MatchExact       = "exact"
	MatchContains    = "contains"
	MatchFuzzy       = "fuzzy"
	MatchLevenshtein = "levenshtein"
)

// normalizeTitle lowercases and reduces punctuation to single spaces.
func normalizeTitle(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space && b.Len() > 0 {
			b.WriteRune(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// similarity is 1 - edit distance over the longer length.
func similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.Distance(a, b))/float64(longest)
}

// Score rates how well title matches the search query. Exact matches score
// 1, titles containing the query are lifted above plain edit similarity.
func Score(query, title string) models.MatchScore {
	q, t := normalizeTitle(query), normalizeTitle(title)
	if q == "" || t == "" {
		return models.MatchScore{Score: 0, Method: MatchLevenshtein}
	}
	if q == t {
		return models.MatchScore{Score: 1, Method: MatchExact}
	}

	sim := similarity(q, t)
	switch {
	case strings.Contains(t, q):
		return models.MatchScore{Score: clamp(0.5 + 0.5*sim), Method: MatchContains}
	case fuzzy.MatchFold(q, t):
		return models.MatchScore{Score: clamp(0.25 + 0.5*sim), Method: MatchFuzzy}
	default:
		return models.MatchScore{Score: clamp(sim * 0.5), Method: MatchLevenshtein}
	}
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

package resolve

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// MinSimilarity is the Jaro-Winkler score a candidate needs to be suggested.
const MinSimilarity = 0.85

// Suggest returns the candidate closest to word, or "" when nothing is
// similar enough.
func Suggest(word string, candidates []string) string {
	word = strings.ToLower(word)
	best, score := "", 0.0
	for _, c := range candidates {
		s := matchr.JaroWinkler(word, strings.ToLower(c), false)
		if s > score || (s == score && len(c) < len(best)) {
			best, score = c, s
		}
	}
	if score < MinSimilarity {
		return ""
	}
	return best
}

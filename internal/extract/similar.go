package extract

import (
	"strings"
	"unicode"
)

// Jaccard returns the Jaccard index of the lowercase word sets of a and b.
// Two texts without words are identical.
func Jaccard(a, b string) float64 {
	wa, wb := wordSet(a), wordSet(b)
	if len(wa) == 0 && len(wb) == 0 {
		return 1
	}
	inter := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	return float64(inter) / float64(union)
}

// AreContentsSimilar reports whether a and b share at least threshold of
// their words (Jaccard index).
func AreContentsSimilar(a, b string, threshold float64) bool {
	return Jaccard(a, b) >= threshold
}

func wordSet(s string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

package linkage

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"abook/internal/model"
)

// Similarity returns 1 - levenshtein(a, b)/max(len(a), len(b)) over runes,
// clamped at 0. Two empty strings are identical.
func Similarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1.0
	}
	sim := 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
	return max(sim, 0)
}

// nameParts returns the lowercase given and family name of c. Without a
// structured name the display name is split on whitespace: the first word is
// the given name and the last word the family name.
func nameParts(c *model.Contact) (given, family string) {
	if c.Name.Given != "" || c.Name.Family != "" {
		return strings.ToLower(strings.TrimSpace(c.Name.Given)), strings.ToLower(strings.TrimSpace(c.Name.Family))
	}
	words := strings.Fields(strings.ToLower(c.DisplayName))
	for i, w := range words {
		words[i] = strings.TrimRight(w, ".,")
	}
	switch len(words) {
	case 0:
		return "", ""
	case 1:
		return words[0], ""
	}
	return words[0], words[len(words)-1]
}

func fullName(c *model.Contact) string {
	return strings.ToLower(c.FullName())
}

// NameSimilarity scores how alike the names of a and b are, in [0, 1].
func NameSimilarity(a, b *model.Contact) float64 {
	fa, fb := fullName(a), fullName(b)
	if fa != "" && fa == fb {
		return 1.0
	}

	ga, la := nameParts(a)
	gb, lb := nameParts(b)
	if ga != "" && la != "" {
		if ga == gb && la == lb {
			return 1.0
		}
		if ga == lb && la == gb {
			return 0.90
		}
		if la == lb && isInitialOf(ga, gb) {
			return 0.75
		}
	}

	return Similarity(fa, fb)
}

// isInitialOf reports whether one of a, b is a single character that starts the other.
func isInitialOf(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if utf8.RuneCountInString(a) == 1 {
		return strings.HasPrefix(b, a)
	}
	if utf8.RuneCountInString(b) == 1 {
		return strings.HasPrefix(a, b)
	}
	return false
}

package textmatch

import (
	"strings"
	"unicode"
)

// Fold lowercases s, trims it and collapses whitespace runs to one space.
// Letters are left alone; this is the form text is embedded in.
func Fold(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Normalize lowercases s, trims surrounding whitespace and collapses every
// run of identical consecutive runes to a single rune ("coolll" -> "col").
// Normalize(Normalize(s)) == Normalize(s) for all s.
func Normalize(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	prev := rune(-1)
	for _, r := range s {
		if r == prev {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// Contains reports whether needle occurs in haystack after normalizing both.
// An empty needle never matches.
func Contains(haystack, needle string) bool {
	needle = Normalize(needle)
	if needle == "" {
		return false
	}
	return strings.Contains(Normalize(haystack), needle)
}

// Trigrams returns the trigram set of s the way pg_trgm builds it: the text is
// lowercased and split into alphanumeric words, each word padded with two
// spaces in front and one behind, and every 3-rune window is collected.
func Trigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range words(s) {
		padded := []rune("  " + word + " ")
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
	}
	return set
}

// Similarity returns the trigram similarity of a and b in [0,1]: the number of
// shared trigrams divided by the number of distinct trigrams in either.
// Identical non-empty text scores 1.0; text without any word scores 0.
func Similarity(a, b string) float64 {
	ta := Trigrams(a)
	tb := Trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for g := range ta {
		if _, ok := tb[g]; ok {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

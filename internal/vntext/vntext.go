// Package vntext provides Vietnamese text normalization shared by the parser,
// the cache-key builders, and the index query builder.
package vntext

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// dReplacer handles đ/Đ, which carry no combining mark and survive NFD.
var dReplacer = strings.NewReplacer("đ", "d", "Đ", "D")

// Normalize trims, collapses internal whitespace, and lowercases. Diacritics
// are preserved. This is the canonical form used for cache keys and as the
// parser input.
func Normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Fold removes Vietnamese diacritics ("phường" -> "phuong"). Falls back to
// the input unchanged if the transform fails on malformed UTF-8.
func Fold(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return dReplacer.Replace(s)
	}
	return dReplacer.Replace(out)
}

// NormalizeFold is Normalize followed by Fold.
func NormalizeFold(s string) string {
	return Fold(Normalize(s))
}

// TokenCount returns the number of whitespace-separated tokens.
func TokenCount(s string) int {
	return len(strings.Fields(s))
}

// ContainsFold reports whether haystack contains needle, ignoring case and
// diacritics.
func ContainsFold(haystack, needle string) bool {
	return strings.Contains(NormalizeFold(haystack), NormalizeFold(needle))
}

// EqualFold reports whether two strings are equal ignoring case and diacritics.
func EqualFold(a, b string) bool {
	return NormalizeFold(a) == NormalizeFold(b)
}

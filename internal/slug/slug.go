// Package slug derives filesystem- and URL-safe identifiers from display text.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Placeholder is returned when the input reduces to nothing.
const Placeholder = "untitled"

var separatorRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Slug lower-cases text, folds diacritics, collapses every run of characters
// that are not letters or digits into a single hyphen and trims hyphens from
// both ends. The result is never empty and Slug(Slug(x)) == Slug(x).
func Slug(text string) string {
	s := fold(text)
	s = strings.ToLower(s)
	// Lower-casing can reintroduce combining marks (e.g. U+0130).
	s = fold(s)
	s = separatorRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return Placeholder
	}
	return s
}

// fold decomposes text and drops nonspacing marks so "Café" becomes "Cafe".
func fold(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// Package names folds person names and headers into comparison keys.
package names

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s, strips diacritics and collapses inner whitespace.
// "  JOSÉ  da Silva " and "jose da silva" fold to the same key.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}

// Initials returns the first letter of each folded name part, skipping
// Portuguese particles.
func Initials(s string) string {
	var b strings.Builder
	for _, part := range strings.Fields(Fold(s)) {
		if particles[part] {
			continue
		}
		r := []rune(part)
		b.WriteRune(r[0])
	}
	return b.String()
}

var particles = map[string]bool{
	"da": true, "de": true, "do": true, "das": true, "dos": true, "e": true,
}

// Canonical trims and collapses whitespace while keeping case and accents.
// It is the identity key used for witnesses and claimants.
func Canonical(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

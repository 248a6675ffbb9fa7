// Package phone extracts phone-number candidates from free-form message
// text. Two numeral systems are recognized: Latin digits and Arabic-Indic
// digits, both as eleven-digit sequences starting with the local mobile
// prefix.
package phone

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	latinPattern  = regexp.MustCompile(`01[0-9]{9}`)
	arabicPattern = regexp.MustCompile(`٠١[٠-٩]{9}`)

	arabicToLatin = strings.NewReplacer(
		"٠", "0",
		"١", "1",
		"٢", "2",
		"٣", "3",
		"٤", "4",
		"٥", "5",
		"٦", "6",
		"٧", "7",
		"٨", "8",
		"٩", "9",
	)
)

// Matcher finds phone numbers in text. The zero value preserves matches in
// their original numeral system.
type Matcher struct {
	// NormalizeArabic transliterates Arabic-Indic matches to Latin digits.
	// When off, the same number typed in both systems yields two distinct
	// match strings.
	NormalizeArabic bool
}

// Match returns all phone numbers found in text: Latin-digit matches first
// in document order, then Arabic-Indic matches in document order. The two
// groups are concatenated, never interleaved. Empty input yields nil.
func (m Matcher) Match(text string) []string {
	if text == "" {
		return nil
	}

	matches := boundedMatches(text, latinPattern)

	for _, a := range boundedMatches(text, arabicPattern) {
		if m.NormalizeArabic {
			a = arabicToLatin.Replace(a)
		}
		matches = append(matches, a)
	}

	return matches
}

// boundedMatches returns pattern matches bounded by non-word context on
// both sides. Go's \b is ASCII-only, so Unicode word-boundary semantics
// are checked explicitly: a match preceded or followed by a letter, digit,
// or underscore in any script is part of a longer run and rejected.
func boundedMatches(text string, pattern *regexp.Regexp) []string {
	var out []string
	for _, loc := range pattern.FindAllStringIndex(text, -1) {
		if prev, size := utf8.DecodeLastRuneInString(text[:loc[0]]); size > 0 && isWordRune(prev) {
			continue
		}
		if next, size := utf8.DecodeRuneInString(text[loc[1]:]); size > 0 && isWordRune(next) {
			continue
		}
		out = append(out, text[loc[0]:loc[1]])
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

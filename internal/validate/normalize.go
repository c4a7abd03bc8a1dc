// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopWords are dropped from queries before token matching. Legal suffixes
// are included so "Acme Inc" and "Acme LLC" tokenize identically.
var stopWords = map[string]bool{
	"of": true, "the": true, "and": true, "for": true,
	"inc": true, "llc": true, "corp": true, "co": true, "ltd": true,
}

// legalSuffixes are stripped from the end of names to build canonical keys.
var legalSuffixes = map[string]bool{
	"inc": true, "incorporated": true, "llc": true, "llp": true, "lp": true,
	"corp": true, "corporation": true, "co": true, "company": true,
	"ltd": true, "limited": true, "plc": true, "pc": true, "pllc": true,
	"na": true, "sa": true, "ag": true, "gmbh": true, "holdings": true,
}

// Tokens of minTokenLen characters or fewer are never significant.
const minTokenLen = 2

// Normalize lowercases s, folds accented letters to their base form,
// replaces punctuation with spaces, and collapses whitespace.
func Normalize(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		switch {
		case r == '\'' || r == '’':
			// "McDonald's" -> "mcdonalds"
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// SignificantTokens returns the normalized words of s longer than two
// characters that are not stop words, in order and without repeats.
func SignificantTokens(s string) []string {
	var tokens []string
	seen := make(map[string]bool)
	for _, w := range strings.Fields(Normalize(s)) {
		if len(w) <= minTokenLen || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		tokens = append(tokens, w)
	}
	return tokens
}

// CanonicalKey normalizes name and strips trailing legal suffixes, so
// "Google, Inc." and "GOOGLE LLC" share the key "google". A name made only of
// suffixes keeps its normalized form.
func CanonicalKey(name string) string {
	words := strings.Fields(Normalize(name))
	end := len(words)
	for end > 1 && legalSuffixes[words[end-1]] {
		end--
	}
	return strings.Join(words[:end], " ")
}

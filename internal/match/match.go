// Package match implements the diacritic- and case-insensitive name
// matching used to refine upstream search results. The upstream API only
// narrows by the first token of a query; this package applies the remaining
// tokens.
package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes combining marks after canonical decomposition, so
// "José" and "Jose" normalize identically.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases the text and strips diacritics.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	stripped, _, err := transform.String(stripMarks, strings.ToLower(text))
	if err != nil {
		// transformation failure leaves the lowercased text usable
		return strings.ToLower(text)
	}

	return stripped
}

// Tokens splits a query into normalized whitespace-separated tokens.
func Tokens(query string) []string {
	fields := strings.Fields(query)

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, Normalize(f))
	}

	return tokens
}

// Matches reports whether every token appears as a substring of the
// normalized candidate name. Order-independent; an empty token list matches
// any candidate.
func Matches(candidateName string, queryTokens []string) bool {
	normalized := Normalize(candidateName)

	for _, token := range queryTokens {
		if !strings.Contains(normalized, token) {
			return false
		}
	}

	return true
}

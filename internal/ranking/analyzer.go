package ranking

import (
	"strings"
	"unicode"
)

const (
	minCodeLen        = 2
	maxCodeLen        = 8
	maxAlphaOnlyCodes = 5
)

// Analyzer extracts code-like tokens (course codes such as "OA1" or "ZPRO") from queries.
type Analyzer struct {
	stopwords map[string]bool
}

// NewAnalyzer creates an analyzer that ignores the given stopwords.
func NewAnalyzer(stopwords []string) *Analyzer {
	sw := make(map[string]bool, len(stopwords))
	for _, w := range stopwords {
		sw[strings.ToLower(strings.TrimSpace(w))] = true
	}
	return &Analyzer{stopwords: sw}
}

// Tokenize splits s into maximal runs of letters, digits and underscores.
func Tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !isWordRune(r) })
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.Is(unicode.Mn, r)
}

// IsCode reports whether token looks like a code: 2 to 8 characters, not a
// stopword, and either containing a digit or purely alphabetic with at most 5 letters.
func (a *Analyzer) IsCode(token string) bool {
	n := len([]rune(token))
	if n < minCodeLen || n > maxCodeLen {
		return false
	}
	if a.stopwords[strings.ToLower(token)] {
		return false
	}
	alpha := true
	for _, r := range token {
		if unicode.IsDigit(r) {
			return true
		}
		if !unicode.IsLetter(r) {
			alpha = false
		}
	}
	return alpha && n <= maxAlphaOnlyCodes
}

// CodeTokens returns the code-like tokens of query in order, duplicates included.
func (a *Analyzer) CodeTokens(query string) []string {
	var out []string
	for _, tok := range Tokenize(query) {
		if a.IsCode(tok) {
			out = append(out, tok)
		}
	}
	return out
}

// TitleWords returns the lowercased words of a title for whole-word matching.
func TitleWords(title string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range Tokenize(title) {
		words[strings.ToLower(w)] = true
	}
	return words
}

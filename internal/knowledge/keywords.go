package knowledge

import (
	"strings"
	"unicode"
)

// MaxKeywords is the number of keywords extracted from a description.
const MaxKeywords = 5

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "for": true,
	"to": true, "with": true, "and": true, "or": true, "that": true, "this": true,
	"from": true, "into": true, "will": true, "should": true, "have": true,
	"their": true, "them": true, "they": true, "which": true, "when": true,
	"where": true, "what": true, "about": true, "your": true,
}

// ExtractKeywords returns up to MaxKeywords distinct lowercase words longer
// than three characters that are not stopwords, in order of appearance.
func ExtractKeywords(description string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(description)) {
		word = strings.TrimFunc(word, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if len([]rune(word)) <= 3 || stopwords[word] || seen[word] {
			continue
		}
		seen[word] = true
		out = append(out, word)
		if len(out) == MaxKeywords {
			break
		}
	}
	return out
}

// tokenize splits text into lowercase alphanumeric tokens without stopwords.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

// Package textutil holds the tokenizer shared by search, extraction and episodic recall.
package textutil

import (
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true, "but": true,
	"by": true, "can": true, "could": true, "did": true, "do": true, "does": true, "for": true,
	"from": true, "had": true, "has": true, "have": true, "he": true, "her": true, "his": true,
	"how": true, "i": true, "i'm": true, "im": true, "in": true, "is": true, "it": true, "its": true,
	"me": true, "my": true, "of": true, "on": true, "or": true, "our": true, "she": true, "so": true,
	"that": true, "the": true, "their": true, "them": true, "they": true, "this": true, "to": true,
	"was": true, "we": true, "were": true, "what": true, "what's": true, "whats": true, "when": true,
	"where": true, "which": true, "who": true, "why": true, "will": true, "with": true, "would": true,
	"you": true, "your": true, "about": true, "just": true, "really": true, "very": true, "also": true,
	"tell": true, "know": true, "remember": true, "please": true, "am": true, "been": true, "there": true,
}

// IsStopword reports whether w carries no content on its own.
func IsStopword(w string) bool { return stopwords[strings.ToLower(w)] }

// Words splits s into lowercase word tokens. Apostrophes stay inside words.
func Words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// ContentWords returns the distinct non-stopword tokens of s with at least minLen runes, in order.
func ContentWords(s string, minLen int) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range Words(s) {
		w = strings.Trim(w, "'")
		if len([]rune(w)) < minLen || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// Overlap returns the share of terms that occur in text, in [0,1].
func Overlap(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hit := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hit++
		}
	}
	return float64(hit) / float64(len(terms))
}

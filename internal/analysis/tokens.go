package analysis

import (
	"regexp"
	"strings"
)

// latinWordRegex matches alphanumeric word runs; cjkRunRegex matches
// contiguous CJK ideograph runs, which are treated as single terms since no
// word segmentation is attempted.
var (
	latinWordRegex = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_\-]{2,}`)
	cjkRunRegex    = regexp.MustCompile(`[\p{Han}]{2,}`)
)

var stopwords = map[string]bool{
	"the": true, "and": true, "that": true, "this": true, "with": true,
	"for": true, "are": true, "was": true, "were": true, "have": true,
	"has": true, "had": true, "not": true, "but": true, "you": true,
	"your": true, "can": true, "will": true, "would": true, "should": true,
	"could": true, "from": true, "they": true, "them": true, "then": true,
	"than": true, "there": true, "here": true, "what": true, "when": true,
	"where": true, "which": true, "who": true, "how": true, "why": true,
	"all": true, "any": true, "some": true, "one": true, "two": true,
	"about": true, "into": true, "over": true, "also": true, "just": true,
	"like": true, "more": true, "most": true, "other": true, "only": true,
	"its": true, "been": true, "being": true, "because": true,
	"use": true, "used": true, "using": true, "need": true, "want": true,
	"make": true, "made": true, "let": true, "lets": true, "please": true,
	"okay": true, "yes": true, "yeah": true, "now": true,
}

// tokenize splits text into lowercase terms: latin words of three or more
// characters plus CJK runs. Stopwords are removed.
func tokenize(text string) []string {
	var terms []string
	for _, w := range latinWordRegex.FindAllString(text, -1) {
		w = strings.ToLower(w)
		if !stopwords[w] {
			terms = append(terms, w)
		}
	}
	terms = append(terms, cjkRunRegex.FindAllString(text, -1)...)
	return terms
}

// termCounts builds a frequency map over all messages in a transcript.
func termCounts(texts []string) map[string]int {
	counts := make(map[string]int)
	for _, t := range texts {
		for _, term := range tokenize(t) {
			counts[term]++
		}
	}
	return counts
}

// runeLength is the character count used for the length signal; it counts
// runes, not bytes, so CJK content is not over-weighted.
func runeLength(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

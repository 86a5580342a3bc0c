// Package keywords turns free text into a short ranked list of topical tokens.
//
// Keywords are a cheap proxy for what a chat message is about. They feed the relevance
// scorer and the near-duplicate detection in contextprofile, so extraction must stay
// deterministic: same text in, same slice out.
package keywords

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultMinLength is the shortest token kept by Extract.
	DefaultMinLength = 4
	// MaxKeywords caps the length of every extracted list.
	MaxKeywords = 15
)

var punctuation = strings.NewReplacer(
	".", " ", ",", " ", "?", " ", "!", " ", ";", " ", ":", " ",
	"(", " ", ")", " ", "[", " ", "]", " ", "{", " ", "}", " ",
	`"`, " ", "'", " ",
)

// Extract returns up to MaxKeywords keywords of at least DefaultMinLength characters.
func Extract(text string) []string {
	return ExtractMin(text, DefaultMinLength)
}

// ExtractMin lowercases text, drops punctuation, stop words, numbers and tokens shorter
// than minLength runes, then ranks what is left by descending frequency. Ties keep
// first-occurrence order. Empty input yields nil.
func ExtractMin(text string, minLength int) []string {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	normalized := punctuation.Replace(strings.ToLower(text))

	counts := make(map[string]int)
	var order []string
	for _, token := range strings.Fields(normalized) {
		if utf8.RuneCountInString(token) < minLength || isNumeric(token) || IsStopWord(token) {
			continue
		}
		if counts[token] == 0 {
			order = append(order, token)
		}
		counts[token]++
	}
	if len(order) == 0 {
		return nil
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > MaxKeywords {
		order = order[:MaxKeywords]
	}
	return order
}

// Overlap counts the pairs (x from a, y from b) where either keyword contains the other.
// Containment rather than equality gives a crude stemming effect: "mariage" matches
// "mariages".
func Overlap(a, b []string) int {
	count := 0
	for _, x := range a {
		for _, y := range b {
			if strings.Contains(x, y) || strings.Contains(y, x) {
				count++
			}
		}
	}
	return count
}

func isNumeric(token string) bool {
	for _, r := range token {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return token != ""
}

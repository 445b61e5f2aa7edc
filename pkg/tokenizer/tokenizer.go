// Package tokenizer estimates token counts for language-model prompts.
package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// charsPerToken is the usual ratio for English text.
const charsPerToken = 4

// CountTokens provides a rough token count estimate. Text without spaces
// (long identifiers, base64 noise) is counted by length rather than words.
func CountTokens(text string) int {
	byWords := len(strings.Fields(text)) * 4 / 3
	byChars := utf8.RuneCountInString(text) / charsPerToken
	return max(byWords, byChars, 1)
}

// Truncate cuts text down to roughly maxTokens, collapsing whitespace on the
// way. Text already within budget is returned unchanged.
func Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if CountTokens(text) <= maxTokens {
		return text
	}

	words := strings.Fields(text)
	if n := max(maxTokens*3/4, 1); len(words) > n {
		words = words[:n]
	}
	out := strings.Join(words, " ")

	limit := maxTokens * charsPerToken
	if utf8.RuneCountInString(out) > limit {
		out = string([]rune(out)[:limit])
	}
	return out
}

package extract

import (
	"strings"
	"unicode"
)

// Token is one whitespace-delimited word with its rune span in the line.
type Token struct {
	Text  string
	Start int // rune offset, inclusive
	End   int // rune offset, exclusive
}

// tokenize splits a line on whitespace, keeping rune offsets.
func tokenize(line string) []Token {
	var tokens []Token
	runes := []rune(line)
	i := 0
	for i < len(runes) {
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			i++
		}
		start := i
		for i < len(runes) && !unicode.IsSpace(runes[i]) {
			i++
		}
		if i > start {
			tokens = append(tokens, Token{Text: string(runes[start:i]), Start: start, End: i})
		}
	}
	return tokens
}

// runeOffset converts a byte offset in s to a rune offset.
func runeOffset(s string, byteOff int) int {
	if byteOff <= 0 {
		return 0
	}
	if byteOff > len(s) {
		byteOff = len(s)
	}
	return len([]rune(s[:byteOff]))
}

// stripPunct trims leading/trailing punctuation from a token for matching.
func stripPunct(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

// isAlphabetic reports whether every rune in s is a letter.
func isAlphabetic(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// hasDigit reports whether s contains at least one decimal digit.
func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// isAlphanumeric reports whether s contains only letters and digits.
func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// overlappingTokens returns the indexes of tokens whose spans intersect
// [start, end).
func overlappingTokens(tokens []Token, start, end int) []int {
	var idx []int
	for i, t := range tokens {
		if t.Start < end && start < t.End {
			idx = append(idx, i)
		}
	}
	return idx
}

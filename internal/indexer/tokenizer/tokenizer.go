// Package tokenizer splits query text into words. Stop-word removal and
// lemmatization happen upstream in the preprocessing pipeline; here a word is
// any run of letters, digits, combining marks or underscores.
package tokenizer

import (
	"strings"
	"unicode"
)

// Words returns the lowercased word runs of text in order.
func Words(text string) []string {
	text = strings.ToLower(text)
	return strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	})
}

// Lex splits a boolean expression into parentheses and word runs, keeping
// the original case so upper-case operators stay recognisable. Everything
// else is discarded.
func Lex(expr string) []string {
	tokens := make([]string, 0, len(expr)/4+1)
	start := -1
	for i, r := range expr {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, expr[start:i])
			start = -1
		}
		if r == '(' || r == ')' {
			tokens = append(tokens, string(r))
		}
	}
	if start >= 0 {
		tokens = append(tokens, expr[start:])
	}
	return tokens
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

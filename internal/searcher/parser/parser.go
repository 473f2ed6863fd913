// Package parser turns a boolean search expression into postfix form using
// the shunting-yard algorithm.
//
// Operators are recognised only in upper case: NOT binds tightest, then AND,
// then OR. AND and OR are left-associative; NOT is a prefix operator and
// right-associative, so "NOT NOT a" is "a". Parentheses group. Any other
// word is an operand and is lowercased.
package parser

import (
	"fmt"
	"strings"

	"github.com/kk0kc/oip/internal/indexer/tokenizer"
	apperrors "github.com/kk0kc/oip/pkg/errors"
)

var ErrUnbalancedParens = fmt.Errorf("%w: unbalanced parentheses", apperrors.ErrMalformedQuery)

type Kind int

const (
	Operand Kind = iota
	Operator
	LeftParen
	RightParen
)

const (
	OpAND = "AND"
	OpOR  = "OR"
	OpNOT = "NOT"
)

var precedence = map[string]int{
	OpNOT: 3,
	OpAND: 2,
	OpOR:  1,
}

type Token struct {
	Kind Kind
	Text string
}

func (t Token) String() string {
	return t.Text
}

// Plan is a parsed expression ready for evaluation.
type Plan struct {
	RawQuery string
	Postfix  []Token
}

// Empty reports whether the expression contained nothing to evaluate.
func (p *Plan) Empty() bool {
	return len(p.Postfix) == 0
}

// Operands returns the distinct operand words in order of first appearance.
func (p *Plan) Operands() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, tok := range p.Postfix {
		if tok.Kind != Operand {
			continue
		}
		if _, ok := seen[tok.Text]; ok {
			continue
		}
		seen[tok.Text] = struct{}{}
		out = append(out, tok.Text)
	}
	return out
}

// String renders the postfix form, space separated.
func (p *Plan) String() string {
	parts := make([]string, len(p.Postfix))
	for i, tok := range p.Postfix {
		parts[i] = tok.Text
	}
	return strings.Join(parts, " ")
}

// Classify maps a lexed word to a token.
func Classify(word string) Token {
	switch word {
	case "(":
		return Token{Kind: LeftParen, Text: word}
	case ")":
		return Token{Kind: RightParen, Text: word}
	}
	if _, ok := precedence[word]; ok {
		return Token{Kind: Operator, Text: word}
	}
	return Token{Kind: Operand, Text: strings.ToLower(word)}
}

// Parse converts query to postfix. An expression without any tokens yields
// an empty plan and no error.
func Parse(query string) (*Plan, error) {
	plan := &Plan{RawQuery: query}
	words := tokenizer.Lex(query)
	output := make([]Token, 0, len(words))
	ops := make([]Token, 0, 8)

	for pos, word := range words {
		tok := Classify(word)
		switch tok.Kind {
		case Operand:
			output = append(output, tok)
		case LeftParen:
			ops = append(ops, tok)
		case RightParen:
			matched := false
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				ops = ops[:len(ops)-1]
				if top.Kind == LeftParen {
					matched = true
					break
				}
				output = append(output, top)
			}
			if !matched {
				return nil, fmt.Errorf("%w: unexpected ')' at token %d", ErrUnbalancedParens, pos+1)
			}
		case Operator:
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				if top.Kind == LeftParen || !popsBefore(top.Text, tok.Text) {
					break
				}
				output = append(output, top)
				ops = ops[:len(ops)-1]
			}
			ops = append(ops, tok)
		}
	}

	for len(ops) > 0 {
		top := ops[len(ops)-1]
		ops = ops[:len(ops)-1]
		if top.Kind == LeftParen {
			return nil, fmt.Errorf("%w: unclosed '('", ErrUnbalancedParens)
		}
		output = append(output, top)
	}
	plan.Postfix = output
	return plan, nil
}

// popsBefore reports whether the stacked operator must be emitted before
// incoming is pushed.
func popsBefore(stacked, incoming string) bool {
	if incoming == OpNOT {
		return false
	}
	return precedence[stacked] >= precedence[incoming]
}

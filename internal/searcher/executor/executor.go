// Package executor evaluates parsed boolean expressions against the inverted
// index using roaring bitmaps.
package executor

import (
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kk0kc/oip/internal/indexer/index"
	"github.com/kk0kc/oip/internal/lemma"
	"github.com/kk0kc/oip/internal/searcher/parser"
	apperrors "github.com/kk0kc/oip/pkg/errors"
)

var (
	ErrMissingOperand  = fmt.Errorf("%w: operator is missing an operand", apperrors.ErrMalformedQuery)
	ErrDanglingOperand = fmt.Errorf("%w: operands are not joined by an operator", apperrors.ErrMalformedQuery)
	ErrUnknownOperator = fmt.Errorf("%w: unknown operator", apperrors.ErrMalformedQuery)

	ErrUniverseTooLarge = fmt.Errorf("%w: document universe exceeds %d ids",
		apperrors.ErrIndexUnavailable, uint64(index.MaxDocumentID)+1)
)

// Postings is the read side of the inverted index the executor needs.
type Postings interface {
	Postings(lemma string) index.PostingList
	TotalDocuments() int
}

type Result struct {
	Query   string            `json:"query"`
	Postfix string            `json:"postfix"`
	Lemmas  map[string]string `json:"lemmas"`
	DocIDs  []int             `json:"doc_ids"`
}

type Engine struct {
	postings   Postings
	lemmatizer lemma.WordLemmatizer
	logger     *slog.Logger
}

// New builds an engine over src. Operand words are resolved through
// lemmatizer; a word it does not know is looked up as-is.
func New(src Postings, lemmatizer lemma.WordLemmatizer) *Engine {
	return &Engine{
		postings:   src,
		lemmatizer: lemmatizer,
		logger:     slog.Default().With("component", "boolean-executor"),
	}
}

// Search parses and evaluates expr. The matching ids are ascending and
// unique; an empty expression matches nothing.
func (e *Engine) Search(expr string) (*Result, error) {
	plan, err := parser.Parse(expr)
	if err != nil {
		return nil, err
	}
	bm, err := e.Evaluate(plan)
	if err != nil {
		return nil, err
	}
	ids := toIDs(bm)
	lemmas := make(map[string]string)
	for _, w := range plan.Operands() {
		lemmas[w] = e.resolve(w)
	}
	e.logger.Debug("boolean query executed",
		"query", expr,
		"postfix", plan.String(),
		"matches", len(ids),
	)
	return &Result{
		Query:   expr,
		Postfix: plan.String(),
		Lemmas:  lemmas,
		DocIDs:  ids,
	}, nil
}

// Evaluate runs a postfix plan. The returned bitmap is owned by the caller.
func (e *Engine) Evaluate(plan *parser.Plan) (*roaring.Bitmap, error) {
	if plan.Empty() {
		return roaring.New(), nil
	}
	stack := make([]*roaring.Bitmap, 0, len(plan.Postfix))
	pop := func() (*roaring.Bitmap, bool) {
		if len(stack) == 0 {
			return nil, false
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return top, true
	}

	for _, tok := range plan.Postfix {
		if tok.Kind == parser.Operand {
			stack = append(stack, e.lookup(tok.Text))
			continue
		}
		switch tok.Text {
		case parser.OpNOT:
			operand, ok := pop()
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrMissingOperand, tok.Text)
			}
			flipped, err := e.complement(operand)
			if err != nil {
				return nil, err
			}
			stack = append(stack, flipped)
		case parser.OpAND, parser.OpOR:
			right, okR := pop()
			left, okL := pop()
			if !okR || !okL {
				return nil, fmt.Errorf("%w: %s", ErrMissingOperand, tok.Text)
			}
			if tok.Text == parser.OpAND {
				stack = append(stack, roaring.And(left, right))
			} else {
				stack = append(stack, roaring.Or(left, right))
			}
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, tok.Text)
		}
	}

	switch len(stack) {
	case 0:
		return roaring.New(), nil
	case 1:
		return stack[0], nil
	default:
		return nil, fmt.Errorf("%w: %d results left", ErrDanglingOperand, len(stack))
	}
}

func (e *Engine) resolve(word string) string {
	if e.lemmatizer == nil {
		return word
	}
	if l, ok := e.lemmatizer.Lemmatize(word); ok {
		return l
	}
	return word
}

func (e *Engine) lookup(word string) *roaring.Bitmap {
	bm := roaring.New()
	for _, id := range e.postings.Postings(e.resolve(word)) {
		if index.ValidDocumentID(id) {
			bm.Add(uint32(id))
		}
	}
	return bm
}

// complement flips operand over the document universe [0, TotalDocuments).
func (e *Engine) complement(operand *roaring.Bitmap) (*roaring.Bitmap, error) {
	total := e.postings.TotalDocuments()
	if total <= 0 {
		return roaring.New(), nil
	}
	if total > index.MaxDocumentID+1 {
		return nil, fmt.Errorf("%w: %d documents", ErrUniverseTooLarge, total)
	}
	return roaring.Flip(operand, 0, uint64(total)), nil
}

func toIDs(bm *roaring.Bitmap) []int {
	ids := make([]int, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		ids = append(ids, int(it.Next()))
	}
	return ids
}

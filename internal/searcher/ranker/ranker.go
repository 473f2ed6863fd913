// Package ranker scores free-text queries against document tf-idf vectors
// by cosine similarity.
package ranker

import (
	"log/slog"
	"math"
	"sort"

	"github.com/kk0kc/oip/internal/indexer/index"
	"github.com/kk0kc/oip/internal/indexer/tokenizer"
	"github.com/kk0kc/oip/internal/lemma"
)

// MinSimilarity is the score at or below which a match is treated as noise.
const MinSimilarity = 1e-6

type ScoredDoc struct {
	DocID int     `json:"doc_id"`
	Score float64 `json:"score"`
}

// Result of a vector query. NoOverlap is set when no query word resolved to
// a known lemma, which is distinct from matches that all scored too low.
type Result struct {
	Query      string      `json:"query"`
	Lemmas     []string    `json:"lemmas"`
	NoOverlap  bool        `json:"no_overlap"`
	Candidates int         `json:"candidates"`
	Hits       []ScoredDoc `json:"results"`
}

// Postings lists candidate documents for a lemma.
type Postings interface {
	Postings(lemma string) index.PostingList
}

// Vectors exposes per-document lemma weights. *tfidf.Model implements it.
type Vectors interface {
	Vector(docID int) (map[string]float64, bool)
	Norm(docID int) float64
	IDF(lemma string) (float64, bool)
}

// LemmaSet is a set of lemmas, used for the common-lemma set.
type LemmaSet map[string]struct{}

func NewLemmaSet(lemmas ...string) LemmaSet {
	s := make(LemmaSet, len(lemmas))
	for _, l := range lemmas {
		s[l] = struct{}{}
	}
	return s
}

func (s LemmaSet) Contains(l string) bool {
	_, ok := s[l]
	return ok
}

type Config struct {
	Index      Postings
	Vectors    Vectors
	Lemmatizer lemma.WordLemmatizer
	Common     LemmaSet
	// Weighting defaults to CommonLemmaWeighting.
	Weighting Weighting
	// MaxQueryWords caps the words considered per query; 0 means no cap.
	MaxQueryWords int
}

type Engine struct {
	index         Postings
	vectors       Vectors
	lemmatizer    lemma.WordLemmatizer
	common        LemmaSet
	weighting     Weighting
	maxQueryWords int
	logger        *slog.Logger
}

func New(cfg Config) *Engine {
	w := cfg.Weighting
	if w == nil {
		w = CommonLemmaWeighting{}
	}
	common := cfg.Common
	if common == nil {
		common = LemmaSet{}
	}
	return &Engine{
		index:         cfg.Index,
		vectors:       cfg.Vectors,
		lemmatizer:    cfg.Lemmatizer,
		common:        common,
		weighting:     w,
		maxQueryWords: cfg.MaxQueryWords,
		logger:        slog.Default().With("component", "vector-ranker"),
	}
}

// Weighting returns the active query weighting policy.
func (e *Engine) Weighting() Weighting {
	return e.weighting
}

// MaxQueryWords returns the per-query word cap; 0 means no cap.
func (e *Engine) MaxQueryWords() int {
	return e.maxQueryWords
}

// Search ranks documents against query and keeps the topN best; topN <= 0
// returns every match.
func (e *Engine) Search(query string, topN int) *Result {
	res := &Result{Query: query, Lemmas: []string{}, Hits: []ScoredDoc{}}

	counts, order, total := e.resolve(query)
	if total == 0 {
		res.NoOverlap = true
		return res
	}
	res.Lemmas = order

	qvec := e.QueryVector(counts, total)
	qnorm := vectorNorm(qvec, order)

	candidates := e.candidates(order)
	res.Candidates = len(candidates)

	scored := make([]ScoredDoc, 0, len(candidates))
	for _, id := range candidates {
		score := e.cosine(qvec, order, qnorm, id)
		if score <= MinSimilarity {
			continue
		}
		scored = append(scored, ScoredDoc{DocID: id, Score: score})
	}
	res.Hits = TopN(scored, topN)

	e.logger.Debug("vector query executed",
		"query", query,
		"lemmas", order,
		"candidates", len(candidates),
		"results", len(res.Hits),
	)
	return res
}

// QueryVector weighs each distinct lemma of a query. counts holds how many
// query words resolved to each lemma and total their sum.
func (e *Engine) QueryVector(counts map[string]int, total int) map[string]float64 {
	vec := make(map[string]float64, len(counts))
	for l, c := range counts {
		idf, _ := e.vectors.IDF(l)
		vec[l] = e.weighting.Weigh(QueryLemma{
			Lemma:  l,
			Count:  c,
			Total:  total,
			Common: e.common.Contains(l),
			IDF:    idf,
		})
	}
	return vec
}

// resolve lemmatizes the query words. order lists distinct lemmas by first
// appearance; words without a lemma are dropped.
func (e *Engine) resolve(query string) (map[string]int, []string, int) {
	counts := make(map[string]int)
	if e.lemmatizer == nil {
		return counts, nil, 0
	}
	words := tokenizer.Words(query)
	if e.maxQueryWords > 0 && len(words) > e.maxQueryWords {
		words = words[:e.maxQueryWords]
	}
	order := make([]string, 0, len(words))
	total := 0
	for _, w := range words {
		l, ok := e.lemmatizer.Lemmatize(w)
		if !ok {
			continue
		}
		if _, seen := counts[l]; !seen {
			order = append(order, l)
		}
		counts[l]++
		total++
	}
	return counts, order, total
}

func (e *Engine) candidates(lemmas []string) []int {
	seen := make(map[int]struct{})
	for _, l := range lemmas {
		for _, id := range e.index.Postings(l) {
			seen[id] = struct{}{}
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (e *Engine) cosine(qvec map[string]float64, order []string, qnorm float64, docID int) float64 {
	dvec, ok := e.vectors.Vector(docID)
	if !ok {
		return 0
	}
	return Cosine(qvec, order, qnorm, dvec, e.vectors.Norm(docID))
}

// Cosine is dot(q, d) / (qnorm × dnorm) over the lemmas in order, clamped to
// 1. Either norm being zero yields 0.
func Cosine(q map[string]float64, order []string, qnorm float64, d map[string]float64, dnorm float64) float64 {
	if qnorm == 0 || dnorm == 0 {
		return 0
	}
	var dot float64
	for _, l := range order {
		if dw, ok := d[l]; ok {
			dot += q[l] * dw
		}
	}
	return math.Min(dot/(qnorm*dnorm), 1)
}

func vectorNorm(vec map[string]float64, order []string) float64 {
	var sum float64
	for _, l := range order {
		sum += vec[l] * vec[l]
	}
	return math.Sqrt(sum)
}

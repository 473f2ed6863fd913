// Package tfidf computes per-document term-frequency × inverse-document-
// frequency weights for two parallel schemes, raw terms and lemmas, and keeps
// the lemma vectors with their Euclidean norms for similarity scoring.
//
// For a unit u in document d:
//
//	tf(u, d) = occurrences(u, d) / totalUnits(d)
//	idf(u)   = ln(N / df(u))
//	w(u, d)  = tf(u, d) × idf(u)
//
// Terms and lemmas use their own totalUnits. N is the number of documents in
// the corpus the model was built from; the model is never updated in place.
package tfidf

import (
	"math"
	"sort"

	"github.com/kk0kc/oip/internal/corpus"
)

// Weight is one line of a tf-idf artifact.
type Weight struct {
	Unit  string
	IDF   float64
	TfIdf float64
}

// Model is an immutable set of document weight vectors.
type Model struct {
	documents int
	termIDF   map[string]float64
	lemmaIDF  map[string]float64

	// Sorted by unit.
	termWeights  map[int][]Weight
	lemmaWeights map[int][]Weight

	vectors map[int]map[string]float64
	norms   map[int]float64
}

// Build computes both weighting schemes over docs in a single pass.
func Build(docs []corpus.Document) *Model {
	m := &Model{
		documents:    len(docs),
		termIDF:      make(map[string]float64),
		lemmaIDF:     make(map[string]float64),
		termWeights:  make(map[int][]Weight, len(docs)),
		lemmaWeights: make(map[int][]Weight, len(docs)),
		vectors:      make(map[int]map[string]float64, len(docs)),
		norms:        make(map[int]float64, len(docs)),
	}

	termCounts := make(map[int]map[string]int, len(docs))
	lemmaCounts := make(map[int]map[string]int, len(docs))
	termTotals := make(map[int]int, len(docs))
	lemmaTotals := make(map[int]int, len(docs))
	termDF := make(map[string]int)
	lemmaDF := make(map[string]int)

	for _, doc := range docs {
		tc := make(map[string]int)
		for _, term := range doc.Terms {
			tc[term]++
		}
		for term := range tc {
			termDF[term]++
		}
		termCounts[doc.ID] = tc
		termTotals[doc.ID] = len(doc.Terms)

		lc := make(map[string]int)
		total := 0
		for _, entry := range doc.Lemmas {
			lc[entry.Lemma] += entry.Occurrences()
			total += entry.Occurrences()
		}
		for l := range lc {
			lemmaDF[l]++
		}
		lemmaCounts[doc.ID] = lc
		lemmaTotals[doc.ID] = total
	}

	for term, df := range termDF {
		m.termIDF[term] = idf(m.documents, df)
	}
	for l, df := range lemmaDF {
		m.lemmaIDF[l] = idf(m.documents, df)
	}

	for _, doc := range docs {
		m.termWeights[doc.ID] = weigh(termCounts[doc.ID], termTotals[doc.ID], m.termIDF)
		lw := weigh(lemmaCounts[doc.ID], lemmaTotals[doc.ID], m.lemmaIDF)
		m.lemmaWeights[doc.ID] = lw
		m.setVector(doc.ID, lw)
	}
	return m
}

// FromWeights rebuilds a model from previously written lemma artifacts.
// documents is the corpus size the artifacts were computed for. Term weights
// are not restored.
func FromWeights(lemmaWeights map[int][]Weight, documents int) *Model {
	m := &Model{
		documents:    documents,
		termIDF:      make(map[string]float64),
		lemmaIDF:     make(map[string]float64),
		termWeights:  make(map[int][]Weight),
		lemmaWeights: make(map[int][]Weight, len(lemmaWeights)),
		vectors:      make(map[int]map[string]float64, len(lemmaWeights)),
		norms:        make(map[int]float64, len(lemmaWeights)),
	}
	for id, ws := range lemmaWeights {
		sorted := append([]Weight(nil), ws...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Unit < sorted[j].Unit })
		for _, w := range sorted {
			if _, ok := m.lemmaIDF[w.Unit]; !ok {
				m.lemmaIDF[w.Unit] = w.IDF
			}
		}
		m.lemmaWeights[id] = sorted
		m.setVector(id, sorted)
	}
	return m
}

func (m *Model) setVector(id int, weights []Weight) {
	vec := make(map[string]float64, len(weights))
	for _, w := range weights {
		vec[w.Unit] = w.TfIdf
	}
	m.vectors[id] = vec
	m.norms[id] = Norm(weights)
}

func idf(n, df int) float64 {
	return math.Log(float64(n) / float64(df))
}

func weigh(counts map[string]int, total int, idfs map[string]float64) []Weight {
	weights := make([]Weight, 0, len(counts))
	for unit, c := range counts {
		tf := float64(c) / float64(total)
		weights = append(weights, Weight{Unit: unit, IDF: idfs[unit], TfIdf: tf * idfs[unit]})
	}
	sort.Slice(weights, func(i, j int) bool { return weights[i].Unit < weights[j].Unit })
	return weights
}

// Norm is the Euclidean length of the weight vector, summed in slice order
// so equal inputs give bit-identical results. An empty vector has norm 0.
func Norm(weights []Weight) float64 {
	if len(weights) == 0 {
		return 0
	}
	var sum float64
	for _, w := range weights {
		sum += w.TfIdf * w.TfIdf
	}
	return math.Sqrt(sum)
}

// Documents returns N, the corpus size used for idf.
func (m *Model) Documents() int {
	return m.documents
}

// IDF returns the lemma idf; ok is false for a lemma never seen.
func (m *Model) IDF(lemma string) (float64, bool) {
	v, ok := m.lemmaIDF[lemma]
	return v, ok
}

// TermIDF returns the raw-term idf.
func (m *Model) TermIDF(term string) (float64, bool) {
	v, ok := m.termIDF[term]
	return v, ok
}

// Vector returns the lemma weights of a document. The map must not be
// modified.
func (m *Model) Vector(docID int) (map[string]float64, bool) {
	v, ok := m.vectors[docID]
	return v, ok
}

// Norm returns the Euclidean norm of the document's lemma vector.
func (m *Model) Norm(docID int) float64 {
	return m.norms[docID]
}

// LemmaWeights returns a document's lemma artifact lines, sorted by lemma.
func (m *Model) LemmaWeights(docID int) []Weight {
	return m.lemmaWeights[docID]
}

// TermWeights returns a document's term artifact lines, sorted by term.
func (m *Model) TermWeights(docID int) []Weight {
	return m.termWeights[docID]
}

// DocIDs returns every document with a vector, ascending.
func (m *Model) DocIDs() []int {
	ids := make([]int, 0, len(m.vectors))
	for id := range m.vectors {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

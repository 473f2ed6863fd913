// Package index holds the inverted index: an immutable mapping from a lemma
// to the documents that contain it, plus its flat text serialisation
// ("lemma:id1,id2,...", one lemma per line).
package index

import (
	"slices"
	"sort"
)

// Store is a read-only inverted index. It is safe for concurrent use once
// built.
type Store struct {
	postings  map[string]PostingList
	totalDocs int
	skipped   int
}

// Postings returns the documents containing lemma in ascending order, or nil
// for an unknown lemma. The returned list is a copy.
func (s *Store) Postings(lemma string) PostingList {
	p, ok := s.postings[lemma]
	if !ok {
		return nil
	}
	return slices.Clone(p)
}

// DocumentFrequency returns the number of documents containing lemma.
func (s *Store) DocumentFrequency(lemma string) int {
	return len(s.postings[lemma])
}

// Has reports whether lemma is indexed.
func (s *Store) Has(lemma string) bool {
	_, ok := s.postings[lemma]
	return ok
}

// TotalDocuments is the size of the document universe [0, n). When the store
// was loaded without an explicit count it is one past the largest id seen,
// which undercounts trailing documents that contributed no lemma.
func (s *Store) TotalDocuments() int {
	return s.totalDocs
}

// Len returns the number of distinct lemmas.
func (s *Store) Len() int {
	return len(s.postings)
}

// Skipped returns the number of malformed lines ignored while loading.
func (s *Store) Skipped() int {
	return s.skipped
}

// Lemmas returns every indexed lemma in ascending order.
func (s *Store) Lemmas() []string {
	lemmas := make([]string, 0, len(s.postings))
	for l := range s.postings {
		lemmas = append(lemmas, l)
	}
	sort.Strings(lemmas)
	return lemmas
}

// Common returns the lemmas whose document frequency equals n.
func (s *Store) Common(n int) []string {
	common := make([]string, 0)
	if n <= 0 {
		return common
	}
	for l, p := range s.postings {
		if len(p) == n {
			common = append(common, l)
		}
	}
	sort.Strings(common)
	return common
}

func newStore(postings map[string]PostingList, explicitTotal int) *Store {
	maxID := -1
	for _, p := range postings {
		if m := p.Max(); m > maxID {
			maxID = m
		}
	}
	total := maxID + 1
	if explicitTotal > total {
		total = explicitTotal
	}
	return &Store{postings: postings, totalDocs: total}
}

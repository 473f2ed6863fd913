package index

import (
	"github.com/kk0kc/oip/internal/corpus"
)

// Builder collects (document, lemma) pairs and produces a Store. It is not
// safe for concurrent use.
type Builder struct {
	postings map[string][]int
	skipped  int
}

func NewBuilder() *Builder {
	return &Builder{postings: make(map[string][]int)}
}

// Add records that docID contains lemma. Duplicate pairs are harmless; ids
// outside [0, MaxDocumentID] are dropped and counted in Store.Skipped.
func (b *Builder) Add(docID int, lemma string) {
	if !ValidDocumentID(docID) {
		b.skipped++
		return
	}
	b.postings[lemma] = append(b.postings[lemma], docID)
}

// AddDocument records every lemma of doc's inventory.
func (b *Builder) AddDocument(doc corpus.Document) {
	for _, entry := range doc.Lemmas {
		b.Add(doc.ID, entry.Lemma)
	}
}

// Build freezes the collected postings. totalDocs is the document count
// reported by ingestion; it is raised to one past the largest id if smaller.
// The builder must not be reused.
func (b *Builder) Build(totalDocs int) *Store {
	postings := make(map[string]PostingList, len(b.postings))
	for lemma, ids := range b.postings {
		postings[lemma] = normalize(ids)
	}
	b.postings = nil
	s := newStore(postings, totalDocs)
	s.skipped = b.skipped
	return s
}

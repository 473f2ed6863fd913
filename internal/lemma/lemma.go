// Package lemma resolves surface words to their canonical lemma.
//
// The resolution itself is done by the preprocessing pipeline; this package
// only folds the per-document groupings it emitted into one corpus-wide
// lookup table and exposes it behind the WordLemmatizer capability.
package lemma

import (
	"strings"

	"github.com/kk0kc/oip/internal/corpus"
)

// WordLemmatizer maps a lowercased surface word to its lemma. ok is false
// when the word is unknown.
type WordLemmatizer interface {
	Lemmatize(word string) (lemma string, ok bool)
}

// Func adapts a plain function to WordLemmatizer.
type Func func(word string) (string, bool)

func (f Func) Lemmatize(word string) (string, bool) {
	return f(word)
}

// Map is an immutable word→lemma table built from corpus inventories.
type Map struct {
	words     map[string]string
	conflicts int
}

// Lemmatize looks the word up case-insensitively.
func (m *Map) Lemmatize(word string) (string, bool) {
	l, ok := m.words[strings.ToLower(word)]
	return l, ok
}

// Len reports the number of distinct surface words.
func (m *Map) Len() int {
	return len(m.words)
}

// Conflicts reports how many times a word was remapped to a different lemma
// while the table was built. Only the last mapping survives.
func (m *Map) Conflicts() int {
	return m.conflicts
}

// Builder accumulates word→lemma pairs. Later additions overwrite earlier
// ones.
type Builder struct {
	words     map[string]string
	conflicts int
}

func NewBuilder() *Builder {
	return &Builder{words: make(map[string]string)}
}

// Add records that every word in words realises lemma.
func (b *Builder) Add(lemma string, words ...string) {
	for _, w := range words {
		w = strings.ToLower(w)
		if prev, ok := b.words[w]; ok && prev != lemma {
			b.conflicts++
		}
		b.words[w] = lemma
	}
}

// AddDocument folds in every lemma grouping of doc.
func (b *Builder) AddDocument(doc corpus.Document) {
	for _, entry := range doc.Lemmas {
		b.Add(entry.Lemma, entry.Words...)
	}
}

// Build freezes the table. The builder must not be reused.
func (b *Builder) Build() *Map {
	m := &Map{words: b.words, conflicts: b.conflicts}
	b.words = nil
	return m
}

// FromDocuments builds a Map from docs in the order given; callers pass docs
// sorted by id so the surviving mapping is deterministic.
func FromDocuments(docs []corpus.Document) *Map {
	b := NewBuilder()
	for _, doc := range docs {
		b.AddDocument(doc)
	}
	return b.Build()
}

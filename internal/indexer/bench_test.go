package indexer

import (
	"fmt"
	"testing"

	"github.com/kk0kc/oip/internal/corpus"
)

var benchVocabulary = []string{
	"distributed", "search", "analytics", "platform",
	"indexing", "query", "engine", "ranking", "cache", "shard",
}

// syntheticCorpus builds n documents, each holding four lemmas of the
// vocabulary plus one lemma shared by every document.
func syntheticCorpus(n int) []corpus.Document {
	docs := make([]corpus.Document, n)
	v := len(benchVocabulary)
	for i := range docs {
		entries := []corpus.LemmaEntry{{Lemma: "document", Words: []string{"document"}}}
		terms := []string{"document"}
		for k := 0; k < 4; k++ {
			l := benchVocabulary[(i+k*3)%v]
			entries = append(entries, corpus.LemmaEntry{Lemma: l, Words: []string{l, l + "s"}})
			terms = append(terms, l, l+"s")
		}
		docs[i] = corpus.Document{ID: i, Terms: terms, Lemmas: entries}
	}
	return docs
}

func BenchmarkBuild(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		docs := syntheticCorpus(n)
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = Build(docs, Options{})
			}
		})
	}
}

func BenchmarkVectorSearchParallel(b *testing.B) {
	s := Build(syntheticCorpus(10000), Options{})
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			q := benchVocabulary[i%len(benchVocabulary)] + " " + benchVocabulary[(i+1)%len(benchVocabulary)]
			_ = s.Vector.Search(q, 10)
			i++
		}
	})
}

func BenchmarkBooleanSearchParallel(b *testing.B) {
	s := Build(syntheticCorpus(10000), Options{})
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := s.Boolean.Search("(search AND ranking) OR NOT cache"); err != nil {
				b.Fatal(err)
			}
		}
	})
}

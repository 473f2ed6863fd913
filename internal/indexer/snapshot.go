// Package indexer assembles the read-only search structures of one corpus
// load into a Snapshot and publishes snapshots to queries through Engine.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kk0kc/oip/internal/corpus"
	"github.com/kk0kc/oip/internal/indexer/index"
	"github.com/kk0kc/oip/internal/indexer/tfidf"
	"github.com/kk0kc/oip/internal/lemma"
	"github.com/kk0kc/oip/internal/searcher/executor"
	"github.com/kk0kc/oip/internal/searcher/ranker"
	apperrors "github.com/kk0kc/oip/pkg/errors"
)

const (
	SourceInventories = "inventories"
	SourceArtifacts   = "artifacts"
)

// Options tune the query engines of a snapshot.
type Options struct {
	Weighting     ranker.Weighting
	MaxQueryWords int
}

type Stats struct {
	Documents      int    `json:"documents"`
	TotalDocuments int    `json:"total_documents"`
	Lemmas         int    `json:"lemmas"`
	CommonLemmas   int    `json:"common_lemmas"`
	Words          int    `json:"words"`
	LemmaConflicts int    `json:"lemma_conflicts"`
	SkippedDirs    int    `json:"skipped_dirs"`
	SkippedLines   int    `json:"skipped_lines"`
	Source         string `json:"source"`
}

// Snapshot is every structure derived from a single corpus load. Nothing in
// it is modified after Build returns; Engine stamps Generation and LoadedAt
// on its own copy when publishing.
type Snapshot struct {
	Generation uint64
	LoadedAt   time.Time

	Index  *index.Store
	Model  *tfidf.Model
	Lemmas *lemma.Map
	Common ranker.LemmaSet
	Stats  Stats

	Vector  *ranker.Engine
	Boolean *executor.Engine
}

// IsCommon reports whether lemma occurs in every document.
func (s *Snapshot) IsCommon(lemma string) bool {
	return s.Common.Contains(lemma)
}

// TotalDocuments is the universe used to complement NOT.
func (s *Snapshot) TotalDocuments() int {
	return s.Index.TotalDocuments()
}

// Build derives a snapshot from in-memory inventories. docs must be sorted by
// id so that lemma conflicts resolve the same way on every build.
func Build(docs []corpus.Document, opts Options) *Snapshot {
	ids := make([]int, len(docs))
	b := index.NewBuilder()
	for i, doc := range docs {
		ids[i] = doc.ID
		b.AddDocument(doc)
	}
	store := b.Build(universe(ids))
	return assemble(store, tfidf.Build(docs), lemma.FromDocuments(docs), len(docs), opts, Stats{
		Source: SourceInventories,
	})
}

// BuildFromDir reads every inventory under layout and builds a snapshot.
func BuildFromDir(ctx context.Context, layout corpus.Layout, opts Options) (*Snapshot, error) {
	docs, cs, err := corpus.ReadDir(layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrIndexUnavailable, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := Build(docs, opts)
	s.Stats.SkippedDirs = cs.SkippedDirs
	s.Stats.SkippedLines = cs.SkippedLines
	return s, nil
}

// LoadArtifacts restores a snapshot from a previously written inverted index
// and lemma tf-idf artifacts. The lemma inventories are still read to rebuild
// the word→lemma table. A missing index is an error.
func LoadArtifacts(ctx context.Context, layout corpus.Layout, indexPath string, opts Options) (*Snapshot, error) {
	docs, cs, err := corpus.ReadDir(layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrIndexUnavailable, err)
	}
	ids := make([]int, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	store, err := index.Open(indexPath, index.WithTotalDocuments(universe(ids)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrIndexUnavailable, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model, skipped, err := tfidf.ReadArtifacts(layout, ids, len(ids))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrIndexUnavailable, err)
	}
	return assemble(store, model, lemma.FromDocuments(docs), len(docs), opts, Stats{
		Source:       SourceArtifacts,
		SkippedDirs:  cs.SkippedDirs,
		SkippedLines: cs.SkippedLines + store.Skipped() + skipped,
	}), nil
}

// WriteArtifacts writes the inverted index to indexPath and both tf-idf
// artifacts into every document directory.
func (s *Snapshot) WriteArtifacts(layout corpus.Layout, indexPath string) error {
	if err := s.Index.WriteFile(indexPath); err != nil {
		return err
	}
	return s.Model.WriteArtifacts(layout)
}

func assemble(store *index.Store, model *tfidf.Model, lemmas *lemma.Map, documents int, opts Options, stats Stats) *Snapshot {
	common := ranker.NewLemmaSet(store.Common(documents)...)
	stats.Documents = documents
	stats.TotalDocuments = store.TotalDocuments()
	stats.Lemmas = store.Len()
	stats.CommonLemmas = len(common)
	stats.Words = lemmas.Len()
	stats.LemmaConflicts = lemmas.Conflicts()

	if stats.LemmaConflicts > 0 {
		slog.Default().With("component", "indexer").Warn("surface words mapped to more than one lemma",
			"conflicts", stats.LemmaConflicts,
		)
	}
	return &Snapshot{
		Index:  store,
		Model:  model,
		Lemmas: lemmas,
		Common: common,
		Stats:  stats,
		Vector: ranker.New(ranker.Config{
			Index:         store,
			Vectors:       model,
			Lemmatizer:    lemmas,
			Common:        common,
			Weighting:     opts.Weighting,
			MaxQueryWords: opts.MaxQueryWords,
		}),
		Boolean: executor.New(store, lemmas),
	}
}

// universe is one past the largest id, or the id count if that is larger.
func universe(ids []int) int {
	n := len(ids)
	for _, id := range ids {
		if id+1 > n {
			n = id + 1
		}
	}
	return n
}

package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kk0kc/oip/internal/corpus"
	apperrors "github.com/kk0kc/oip/pkg/errors"
)

// Loader produces a fresh snapshot.
type Loader func(ctx context.Context) (*Snapshot, error)

// DirLoader rebuilds from the raw inventories on every call.
func DirLoader(layout corpus.Layout, opts Options) Loader {
	return func(ctx context.Context) (*Snapshot, error) {
		return BuildFromDir(ctx, layout, opts)
	}
}

// ArtifactLoader restores from the written index and tf-idf artifacts.
func ArtifactLoader(layout corpus.Layout, indexPath string, opts Options) Loader {
	return func(ctx context.Context) (*Snapshot, error) {
		return LoadArtifacts(ctx, layout, indexPath, opts)
	}
}

// SwapFunc observes a snapshot replacement. prev is nil on the first load.
type SwapFunc func(prev, next *Snapshot)

// Engine holds the snapshot that queries read. Readers never block; reloads
// are serialised and publish a complete snapshot with one pointer swap.
type Engine struct {
	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
	loader     Loader

	reloadMu sync.Mutex
	hooksMu  sync.RWMutex
	hooks    []SwapFunc

	logger *slog.Logger
}

func NewEngine(loader Loader) *Engine {
	return &Engine{
		loader: loader,
		logger: slog.Default().With("component", "indexer"),
	}
}

// Current returns the live snapshot. Callers should fetch it once per query.
func (e *Engine) Current() (*Snapshot, error) {
	s := e.current.Load()
	if s == nil {
		return nil, apperrors.ErrSnapshotNotReady
	}
	return s, nil
}

// OnSwap registers fn to run after every successful swap.
func (e *Engine) OnSwap(fn SwapFunc) {
	e.hooksMu.Lock()
	defer e.hooksMu.Unlock()
	e.hooks = append(e.hooks, fn)
}

// Reload builds a new snapshot with the engine's loader and swaps it in. On
// failure the previous snapshot stays live.
func (e *Engine) Reload(ctx context.Context) (*Snapshot, error) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	start := time.Now()
	s, err := e.loader(ctx)
	if err != nil {
		e.logger.Error("snapshot reload failed", "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("reloading snapshot: %w", err)
	}
	s = e.publish(s)
	e.logger.Info("snapshot loaded",
		"generation", s.Generation,
		"source", s.Stats.Source,
		"documents", s.Stats.Documents,
		"lemmas", s.Stats.Lemmas,
		"common_lemmas", s.Stats.CommonLemmas,
		"skipped_lines", s.Stats.SkippedLines,
		"duration", time.Since(start),
	)
	return s, nil
}

// Publish swaps in a snapshot built elsewhere and returns the live copy. s
// itself is left untouched, so publishing it twice is safe.
func (e *Engine) Publish(s *Snapshot) *Snapshot {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()
	return e.publish(s)
}

// publish stamps a shallow copy of s; the derived structures are shared.
func (e *Engine) publish(s *Snapshot) *Snapshot {
	next := *s
	next.Generation = e.generation.Add(1)
	next.LoadedAt = time.Now().UTC()
	prev := e.current.Swap(&next)

	e.hooksMu.RLock()
	hooks := append([]SwapFunc(nil), e.hooks...)
	e.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(prev, &next)
	}
	return &next
}

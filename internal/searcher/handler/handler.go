// Package handler serves vector and boolean search, snapshot inspection and
// reload, and cache administration over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/kk0kc/oip/internal/catalog"
	"github.com/kk0kc/oip/internal/indexer"
	"github.com/kk0kc/oip/internal/searcher/cache"
	"github.com/kk0kc/oip/internal/searcher/executor"
	"github.com/kk0kc/oip/internal/searcher/ranker"
	apperrors "github.com/kk0kc/oip/pkg/errors"
	"github.com/kk0kc/oip/pkg/logger"
	"github.com/kk0kc/oip/pkg/metrics"
)

// Snapshots gives access to the live snapshot.
type Snapshots interface {
	Current() (*indexer.Snapshot, error)
	Reload(ctx context.Context) (*indexer.Snapshot, error)
}

type Options struct {
	DefaultLimit int
	MaxResults   int
	// Cache, Catalog and Metrics are optional.
	Cache   *cache.QueryCache
	Catalog catalog.Catalog
	Metrics *metrics.Metrics
}

type Handler struct {
	snapshots    Snapshots
	cache        *cache.QueryCache
	catalog      catalog.Catalog
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

func New(snapshots Snapshots, opts Options) *Handler {
	return &Handler{
		snapshots:    snapshots,
		cache:        opts.Cache,
		catalog:      opts.Catalog,
		metrics:      opts.Metrics,
		defaultLimit: opts.DefaultLimit,
		maxResults:   opts.MaxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every endpoint on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search/vector", h.VectorSearch)
	mux.HandleFunc("GET /api/v1/search/boolean", h.BooleanSearch)
	mux.HandleFunc("GET /api/v1/snapshot", h.Snapshot)
	mux.HandleFunc("POST /api/v1/snapshot/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

type Hit struct {
	DocID int     `json:"doc_id"`
	Score float64 `json:"score"`
	URL   string  `json:"url,omitempty"`
}

type VectorResponse struct {
	Query      string   `json:"query"`
	Lemmas     []string `json:"lemmas"`
	NoOverlap  bool     `json:"no_overlap"`
	Candidates int      `json:"candidates"`
	Results    []Hit    `json:"results"`
	Generation uint64   `json:"generation"`
	Cached     bool     `json:"cached"`
}

type BooleanResponse struct {
	Query      string             `json:"query"`
	Postfix    string             `json:"postfix"`
	Lemmas     map[string]string  `json:"lemmas"`
	TotalHits  int                `json:"total_hits"`
	DocIDs     []int              `json:"doc_ids"`
	Documents  []catalog.Document `json:"documents,omitempty"`
	Generation uint64             `json:"generation"`
	Cached     bool               `json:"cached"`
}

func (h *Handler) VectorSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}
	limit, err := h.parseLimit(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	snap, err := h.snapshots.Current()
	if err != nil {
		h.observe(cache.ModeVector, "error", false, 0, start)
		h.writeError(w, err)
		return
	}

	key := cache.VectorKey(snap.Generation, query, limit, snap.Vector.MaxQueryWords())
	res, cached, err := cache.GetOrCompute(ctx, h.cache, key, func() (*ranker.Result, error) {
		return snap.Vector.Search(query, limit), nil
	})
	if err != nil {
		h.observe(cache.ModeVector, "error", cached, 0, start)
		h.writeError(w, err)
		return
	}

	ids := make([]int, len(res.Hits))
	for i, hit := range res.Hits {
		ids[i] = hit.DocID
	}
	urls := h.lookup(ctx, ids)
	hits := make([]Hit, len(res.Hits))
	for i, hit := range res.Hits {
		hits[i] = Hit{DocID: hit.DocID, Score: round4(hit.Score), URL: urls[hit.DocID]}
	}

	outcome := "hit"
	switch {
	case res.NoOverlap:
		outcome = "no_overlap"
	case len(hits) == 0:
		outcome = "zero_result"
	}
	h.observe(cache.ModeVector, outcome, cached, len(hits), start)
	log.Info("vector search completed",
		"query", query,
		"lemmas", res.Lemmas,
		"candidates", res.Candidates,
		"returned", len(hits),
		"cache_hit", cached,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, VectorResponse{
		Query:      query,
		Lemmas:     res.Lemmas,
		NoOverlap:  res.NoOverlap,
		Candidates: res.Candidates,
		Results:    hits,
		Generation: snap.Generation,
		Cached:     cached,
	})
}

func (h *Handler) BooleanSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}
	snap, err := h.snapshots.Current()
	if err != nil {
		h.observe(cache.ModeBoolean, "error", false, 0, start)
		h.writeError(w, err)
		return
	}

	key := cache.Key(cache.ModeBoolean, snap.Generation, query, 0)
	res, cached, err := cache.GetOrCompute(ctx, h.cache, key, func() (*executor.Result, error) {
		return snap.Boolean.Search(query)
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, apperrors.ErrMalformedQuery) {
			outcome = "malformed"
		}
		h.observe(cache.ModeBoolean, outcome, cached, 0, start)
		log.Info("boolean query rejected", "query", query, "error", err)
		h.writeError(w, err)
		return
	}

	resp := BooleanResponse{
		Query:      query,
		Postfix:    res.Postfix,
		Lemmas:     res.Lemmas,
		TotalHits:  len(res.DocIDs),
		DocIDs:     res.DocIDs,
		Generation: snap.Generation,
		Cached:     cached,
	}
	if h.catalog != nil {
		shown := res.DocIDs
		if len(shown) > h.maxResults {
			shown = shown[:h.maxResults]
		}
		urls := h.lookup(ctx, shown)
		resp.Documents = make([]catalog.Document, 0, len(shown))
		for _, id := range shown {
			resp.Documents = append(resp.Documents, catalog.Document{ID: id, URL: urls[id]})
		}
	}

	outcome := "hit"
	if resp.TotalHits == 0 {
		outcome = "zero_result"
	}
	h.observe(cache.ModeBoolean, outcome, cached, resp.TotalHits, start)
	log.Info("boolean search completed",
		"query", query,
		"postfix", res.Postfix,
		"total_hits", resp.TotalHits,
		"cache_hit", cached,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, resp)
}

type SnapshotResponse struct {
	Generation uint64        `json:"generation"`
	LoadedAt   time.Time     `json:"loaded_at"`
	Weighting  string        `json:"weighting"`
	Stats      indexer.Stats `json:"stats"`
}

func snapshotResponse(s *indexer.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		Generation: s.Generation,
		LoadedAt:   s.LoadedAt,
		Weighting:  s.Vector.Weighting().Name(),
		Stats:      s.Stats,
	}
}

func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Current()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snapshotResponse(snap))
}

// Reload rebuilds the snapshot and swaps it in. On failure the previous
// snapshot keeps serving.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, err := h.snapshots.Reload(ctx)
	if err != nil {
		logger.FromContext(ctx).Error("snapshot reload failed", "error", err)
		h.writeError(w, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx); err != nil {
			h.logger.Warn("cache invalidation after reload failed", "error", err)
		}
	}
	h.writeJSON(w, http.StatusOK, snapshotResponse(snap))
}

type DocumentResponse struct {
	DocID  int           `json:"doc_id"`
	URL    string        `json:"url,omitempty"`
	Norm   float64       `json:"norm"`
	Lemmas []LemmaWeight `json:"lemmas"`
}

type LemmaWeight struct {
	Lemma string  `json:"lemma"`
	IDF   float64 `json:"idf"`
	TfIdf float64 `json:"tf_idf"`
}

// Document shows the heaviest lemmas of one document, at most limit of them.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 0 {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "document id must be a non-negative integer"))
		return
	}
	limit, err := h.parseLimit(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	snap, err := h.snapshots.Current()
	if err != nil {
		h.writeError(w, err)
		return
	}
	if _, ok := snap.Model.Vector(id); !ok {
		h.writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusNotFound, "document %d is not indexed", id))
		return
	}

	weights := toLemmaWeights(snap, id)
	sort.SliceStable(weights, func(i, j int) bool { return weights[i].TfIdf > weights[j].TfIdf })
	if len(weights) > limit {
		weights = weights[:limit]
	}
	h.writeJSON(w, http.StatusOK, DocumentResponse{
		DocID:  id,
		URL:    h.lookup(r.Context(), []int{id})[id],
		Norm:   snap.Model.Norm(id),
		Lemmas: weights,
	})
}

func toLemmaWeights(snap *indexer.Snapshot, id int) []LemmaWeight {
	ws := snap.Model.LemmaWeights(id)
	out := make([]LemmaWeight, len(ws))
	for i, w := range ws {
		out[i] = LemmaWeight{Lemma: w.Unit, IDF: w.IDF, TfIdf: w.TfIdf}
	}
	return out
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, fmt.Errorf("%w: %w", apperrors.ErrInternal, err))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) parseLimit(r *http.Request) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return h.defaultLimit, nil
	}
	n, err := strconv.Atoi(limitStr)
	if err != nil || n < 1 {
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
	}
	if n > h.maxResults {
		n = h.maxResults
	}
	return n, nil
}

// lookup resolves URLs; a failing catalog only costs the URLs.
func (h *Handler) lookup(ctx context.Context, ids []int) map[int]string {
	if h.catalog == nil || len(ids) == 0 {
		return map[int]string{}
	}
	urls, err := h.catalog.Lookup(ctx, ids)
	if err != nil {
		logger.FromContext(ctx).Warn("catalog lookup failed", "error", err)
		return map[int]string{}
	}
	return urls
}

func (h *Handler) observe(mode, outcome string, cached bool, results int, start time.Time) {
	if h.metrics == nil {
		return
	}
	cacheStatus := "miss"
	if h.cache == nil {
		cacheStatus = "disabled"
	} else if cached {
		cacheStatus = "hit"
	}
	switch cacheStatus {
	case "hit":
		h.metrics.CacheHits.Inc()
	case "miss":
		h.metrics.CacheMisses.Inc()
	}
	h.metrics.QueriesTotal.WithLabelValues(mode, outcome).Inc()
	h.metrics.QueryLatency.WithLabelValues(mode, cacheStatus).Observe(time.Since(start).Seconds())
	h.metrics.QueryResults.WithLabelValues(mode).Observe(float64(results))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to a status through pkg/errors. Internal failures are
// not echoed to the client.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		message = "internal error"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}

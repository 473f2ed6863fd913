package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kk0kc/oip/internal/catalog"
	"github.com/kk0kc/oip/internal/corpus"
	"github.com/kk0kc/oip/internal/indexer"
	"github.com/kk0kc/oip/internal/indexer/consumer"
	"github.com/kk0kc/oip/internal/searcher/cache"
	"github.com/kk0kc/oip/internal/searcher/handler"
	"github.com/kk0kc/oip/internal/searcher/ranker"
	"github.com/kk0kc/oip/pkg/config"
	"github.com/kk0kc/oip/pkg/health"
	"github.com/kk0kc/oip/pkg/kafka"
	"github.com/kk0kc/oip/pkg/logger"
	"github.com/kk0kc/oip/pkg/metrics"
	"github.com/kk0kc/oip/pkg/middleware"
	"github.com/kk0kc/oip/pkg/postgres"
	pkgredis "github.com/kk0kc/oip/pkg/redis"
	"github.com/kk0kc/oip/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "pages_dir", cfg.Corpus.PagesDir)

	weighting, err := ranker.WeightingByName(cfg.Search.Weighting)
	if err != nil {
		slog.Error("invalid search weighting", "error", err)
		os.Exit(1)
	}
	layout := corpus.LayoutFromConfig(cfg.Corpus)
	opts := indexer.Options{Weighting: weighting, MaxQueryWords: cfg.Search.MaxQueryWords}
	loader := indexer.DirLoader(layout, opts)
	if cfg.Corpus.LoadFromArtifact {
		loader = indexer.ArtifactLoader(layout, cfg.Corpus.IndexPath, opts)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	engine := indexer.NewEngine(timedLoader(loader, m))
	engine.OnSwap(func(prev, next *indexer.Snapshot) {
		m.SetSnapshot(next.Generation, next.Stats.Documents, next.Stats.Lemmas)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// No index means no queries: refuse to start.
	if _, err := engine.Reload(ctx); err != nil {
		slog.Error("failed to load snapshot", "error", err)
		os.Exit(1)
	}

	var (
		queryCache  *cache.QueryCache
		redisClient *pkgredis.Client
	)
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var (
		docCatalog catalog.Catalog
		pgClient   *postgres.Client
	)
	if cfg.Postgres.Enabled {
		pgClient, err = postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, falling back to catalog file", "error", err)
		} else {
			defer pgClient.Close()
			docCatalog = catalog.NewPostgres(pgClient)
			slog.Info("document catalog backed by postgres", "host", cfg.Postgres.Host)
		}
	}
	if docCatalog == nil && cfg.Corpus.CatalogPath != "" {
		f, err := catalog.OpenFile(cfg.Corpus.CatalogPath)
		if err != nil {
			slog.Warn("document catalog not loaded, results carry no urls", "error", err)
		} else {
			docCatalog = f
			slog.Info("document catalog loaded", "path", cfg.Corpus.CatalogPath, "documents", f.Len(), "skipped", f.Skipped())
		}
	}

	reloader := &countingReloader{engine: engine, metrics: m}
	if cfg.Kafka.Enabled {
		var invalidator consumer.Invalidator
		if queryCache != nil {
			invalidator = queryCache
		}
		hostname, _ := os.Hostname()
		group := fmt.Sprintf("%s-%s", cfg.Kafka.ConsumerGroup, hostname)
		kc := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, group,
			consumer.HandleIndexComplete(reloader, invalidator),
			kafka.WithRetry(resilience.FromConfig(cfg.Retry)))
		sc := consumer.New(kc)
		go func() {
			if err := sc.Start(ctx); err != nil {
				slog.Error("snapshot consumer error", "error", err)
			}
		}()
		if queryCache != nil {
			ic := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate, group,
				consumer.HandleCacheInvalidate(queryCache))
			go func() {
				if err := ic.Start(ctx); err != nil {
					slog.Error("cache invalidation consumer error", "error", err)
				}
			}()
		}
		slog.Info("listening for snapshot events", "topic", cfg.Kafka.Topics.IndexComplete, "group", group)
	}

	checker := health.NewChecker()
	checker.Register("snapshot", func(ctx context.Context) health.ComponentHealth {
		s, err := engine.Current()
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %d, %d documents", s.Generation, s.Stats.Documents),
		}
	})
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping), health.Optional())
	}
	if pgClient != nil {
		checker.Register("postgres", health.PingCheck(pgClient.Ping), health.Optional())
	}

	h := handler.New(reloader, handler.Options{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
		Cache:        queryCache,
		Catalog:      docCatalog,
		Metrics:      m,
	})

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", m.Handler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if rl := cfg.Server.RateLimit; rl.Enabled {
		chain = middleware.RateLimit(middleware.NewLimiter(rl.RequestsPerSecond, rl.Burst))(chain)
		slog.Info("rate limiting enabled", "rps", rl.RequestsPerSecond, "burst", rl.Burst)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port != cfg.Server.Port {
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func timedLoader(next indexer.Loader, m *metrics.Metrics) indexer.Loader {
	return func(ctx context.Context) (*indexer.Snapshot, error) {
		start := time.Now()
		s, err := next(ctx)
		m.BuildDuration.Observe(time.Since(start).Seconds())
		return s, err
	}
}

// countingReloader records reload outcomes for every caller: the HTTP
// endpoint and the Kafka consumer.
type countingReloader struct {
	engine  *indexer.Engine
	metrics *metrics.Metrics
}

func (r *countingReloader) Current() (*indexer.Snapshot, error) {
	return r.engine.Current()
}

func (r *countingReloader) Reload(ctx context.Context) (*indexer.Snapshot, error) {
	s, err := r.engine.Reload(ctx)
	status := "success"
	if err != nil {
		status = "failure"
	}
	r.metrics.ReloadsTotal.WithLabelValues(status).Inc()
	return s, err
}

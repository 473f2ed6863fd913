package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/kk0kc/oip/internal/catalog"
	"github.com/kk0kc/oip/internal/corpus"
	"github.com/kk0kc/oip/internal/indexer"
	"github.com/kk0kc/oip/internal/searcher/ranker"
	"github.com/kk0kc/oip/pkg/config"
	"github.com/kk0kc/oip/pkg/kafka"
	"github.com/kk0kc/oip/pkg/logger"
	"github.com/kk0kc/oip/pkg/postgres"
	"github.com/kk0kc/oip/pkg/resilience"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("indexer failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "indexer",
		Usage: "Build search artifacts from a pre-processed corpus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "configs/development.yaml",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override logging level (debug, info, warn, error)",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Build the inverted index and tf-idf artifacts",
				Action: buildCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "pages",
						Usage: "Pages directory (overrides corpus.pagesDir)",
					},
					&cli.StringFlag{
						Name:  "index",
						Usage: "Output path of the inverted index (overrides corpus.indexPath)",
					},
					&cli.BoolFlag{
						Name:  "publish",
						Usage: "Announce the new artifacts on the index-complete topic",
						Value: true,
					},
				},
			},
			{
				Name:  "cache",
				Usage: "Manage cached search results",
				Subcommands: []*cli.Command{
					{
						Name:   "invalidate",
						Usage:  "Ask every searcher to drop cached results",
						Action: cacheInvalidateCommand,
					},
				},
			},
			{
				Name:  "catalog",
				Usage: "Manage the document catalog",
				Subcommands: []*cli.Command{
					{
						Name:   "sync",
						Usage:  "Upsert the catalog file into PostgreSQL",
						Action: catalogSyncCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "file",
								Usage: "Catalog file (overrides corpus.catalogPath)",
							},
						},
					},
				},
			},
		},
	}
}

type configKey struct{}

// setup loads the config once for every command and configures logging.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	level := cfg.Logging.Level
	if l := c.String("log-level"); l != "" {
		level = l
	}
	logger.Setup(level, cfg.Logging.Format)
	c.Context = context.WithValue(c.Context, configKey{}, cfg)
	return nil
}

func configFrom(c *cli.Context) *config.Config {
	if cfg, ok := c.Context.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

func buildCommand(c *cli.Context) error {
	cfg := configFrom(c)
	if v := c.String("pages"); v != "" {
		cfg.Corpus.PagesDir = v
	}
	if v := c.String("index"); v != "" {
		cfg.Corpus.IndexPath = v
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	weighting, err := ranker.WeightingByName(cfg.Search.Weighting)
	if err != nil {
		return err
	}
	layout := corpus.LayoutFromConfig(cfg.Corpus)

	start := time.Now()
	snap, err := indexer.BuildFromDir(ctx, layout, indexer.Options{
		Weighting:     weighting,
		MaxQueryWords: cfg.Search.MaxQueryWords,
	})
	if err != nil {
		return fmt.Errorf("building snapshot: %w", err)
	}
	if err := snap.WriteArtifacts(layout, cfg.Corpus.IndexPath); err != nil {
		return fmt.Errorf("writing artifacts: %w", err)
	}
	slog.Info("artifacts written",
		"index_path", cfg.Corpus.IndexPath,
		"documents", snap.Stats.Documents,
		"lemmas", snap.Stats.Lemmas,
		"common_lemmas", snap.Stats.CommonLemmas,
		"lemma_conflicts", snap.Stats.LemmaConflicts,
		"skipped_dirs", snap.Stats.SkippedDirs,
		"skipped_lines", snap.Stats.SkippedLines,
		"duration", time.Since(start),
	)

	if !cfg.Kafka.Enabled || !c.Bool("publish") {
		return nil
	}
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
	defer producer.Close()
	return publishSnapshot(ctx, producer, resilience.FromConfig(cfg.Retry),
		indexer.NewSnapshotEvent(snap, cfg.Corpus.IndexPath, cfg.Corpus.PagesDir))
}

// publishSnapshot announces event, retrying transient broker failures.
func publishSnapshot(ctx context.Context, pub kafka.Publisher, retry resilience.RetryConfig, event indexer.SnapshotEvent) error {
	err := resilience.Retry(ctx, "publish snapshot event", retry, func(ctx context.Context) error {
		return pub.Publish(ctx, kafka.Event{Key: event.BuildID, Value: event})
	})
	if err != nil {
		return fmt.Errorf("announcing snapshot %s: %w", event.BuildID, err)
	}
	slog.Info("snapshot announced", "build_id", event.BuildID)
	return nil
}

// InvalidateRequest is the body of a cache-invalidate message. Searchers
// drop their cache on any message, so the fields are informational.
type InvalidateRequest struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

func cacheInvalidateCommand(c *cli.Context) error {
	cfg := configFrom(c)
	if !cfg.Kafka.Enabled {
		return fmt.Errorf("kafka is disabled; enable kafka.enabled to reach the searchers")
	}
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate)
	defer producer.Close()
	req := InvalidateRequest{Reason: "manual", RequestedAt: time.Now().UTC()}
	return resilience.Retry(c.Context, "publish cache invalidation", resilience.FromConfig(cfg.Retry), func(ctx context.Context) error {
		return producer.Publish(ctx, kafka.Event{Key: "invalidate", Value: req})
	})
}

func catalogSyncCommand(c *cli.Context) error {
	cfg := configFrom(c)
	path := cfg.Corpus.CatalogPath
	if v := c.String("file"); v != "" {
		path = v
	}
	f, err := catalog.OpenFile(path)
	if err != nil {
		return err
	}
	if f.Skipped() > 0 {
		slog.Warn("catalog lines skipped", "path", path, "skipped", f.Skipped())
	}

	var client *postgres.Client
	err = resilience.Retry(c.Context, "connect postgres", resilience.FromConfig(cfg.Retry), func(context.Context) error {
		var err error
		client, err = postgres.New(cfg.Postgres)
		return err
	})
	if err != nil {
		return fmt.Errorf("connecting to catalog database: %w", err)
	}
	defer client.Close()

	pg := catalog.NewPostgres(client)
	if err := pg.EnsureSchema(c.Context); err != nil {
		return err
	}
	n, err := pg.Sync(c.Context, f.Documents())
	if err != nil {
		return err
	}
	slog.Info("catalog synced", "path", path, "documents", n)
	return nil
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/kk0kc/oip/internal/catalog"
	"github.com/kk0kc/oip/internal/corpus"
	"github.com/kk0kc/oip/internal/indexer"
	"github.com/kk0kc/oip/internal/searcher/ranker"
	"github.com/kk0kc/oip/pkg/config"
	"github.com/kk0kc/oip/pkg/logger"
)

const (
	modeVector  = "vec"
	modeBoolean = "bool"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "query",
		Usage: "Query the corpus from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "configs/development.yaml",
			},
			&cli.BoolFlag{
				Name:  "artifacts",
				Usage: "Load the written index and tf-idf files instead of the inventories",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Number of vector results to print (0 prints all)",
				Value:   10,
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "vector",
				Usage:     "Rank documents by cosine similarity to the query",
				ArgsUsage: "<text>",
				Action:    vectorCommand,
			},
			{
				Name:      "boolean",
				Usage:     "Evaluate an AND / OR / NOT expression",
				ArgsUsage: "<expression>",
				Action:    booleanCommand,
			},
			{
				Name:   "shell",
				Usage:  "Read queries from stdin until 'exit'",
				Action: shellCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Initial mode: vec or bool",
						Value: modeVector,
					},
				},
			},
		},
	}
}

// session is a loaded snapshot plus the optional URL catalog.
type session struct {
	snap    *indexer.Snapshot
	catalog catalog.Catalog
	limit   int
	out     io.Writer
}

func open(c *cli.Context) (*session, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	// Logs go to stderr so they never interleave with results.
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, "text")

	weighting, err := ranker.WeightingByName(cfg.Search.Weighting)
	if err != nil {
		return nil, err
	}
	layout := corpus.LayoutFromConfig(cfg.Corpus)
	opts := indexer.Options{Weighting: weighting, MaxQueryWords: cfg.Search.MaxQueryWords}
	loader := indexer.DirLoader(layout, opts)
	if c.Bool("artifacts") || cfg.Corpus.LoadFromArtifact {
		loader = indexer.ArtifactLoader(layout, cfg.Corpus.IndexPath, opts)
	}
	snap, err := indexer.NewEngine(loader).Reload(c.Context)
	if err != nil {
		return nil, err
	}

	s := &session{snap: snap, limit: c.Int("limit"), out: c.App.Writer}
	if cfg.Corpus.CatalogPath != "" {
		if f, err := catalog.OpenFile(cfg.Corpus.CatalogPath); err == nil {
			s.catalog = f
		} else {
			slog.Debug("catalog not loaded", "error", err)
		}
	}
	return s, nil
}

func vectorCommand(c *cli.Context) error {
	s, err := open(c)
	if err != nil {
		return err
	}
	return s.vector(c.Context, strings.Join(c.Args().Slice(), " "))
}

func booleanCommand(c *cli.Context) error {
	s, err := open(c)
	if err != nil {
		return err
	}
	return s.boolean(c.Context, strings.Join(c.Args().Slice(), " "))
}

func shellCommand(c *cli.Context) error {
	mode := c.String("mode")
	if mode != modeVector && mode != modeBoolean {
		return fmt.Errorf("unknown mode %q, want %s or %s", mode, modeVector, modeBoolean)
	}
	s, err := open(c)
	if err != nil {
		return err
	}
	return s.shell(c.Context, c.App.Reader, mode)
}

func (s *session) vector(ctx context.Context, query string) error {
	res := s.snap.Vector.Search(query, s.limit)
	if len(res.Hits) == 0 {
		if res.NoOverlap {
			fmt.Fprintln(s.out, "No query words are known to the index.")
		} else {
			fmt.Fprintln(s.out, "Nothing found.")
		}
		return nil
	}
	ids := make([]int, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.DocID
	}
	urls := s.urls(ctx, ids)
	fmt.Fprintln(s.out, "Top results:")
	for _, h := range res.Hits {
		line := fmt.Sprintf("Document %d: relevance = %.4f", h.DocID, h.Score)
		if u, ok := urls[h.DocID]; ok {
			line += "  " + u
		}
		fmt.Fprintln(s.out, line)
	}
	return nil
}

func (s *session) boolean(ctx context.Context, expr string) error {
	res, err := s.snap.Boolean.Search(expr)
	if err != nil {
		return err
	}
	if len(res.DocIDs) == 0 {
		fmt.Fprintln(s.out, "No documents found")
		return nil
	}
	parts := make([]string, len(res.DocIDs))
	for i, id := range res.DocIDs {
		parts[i] = fmt.Sprint(id)
	}
	fmt.Fprintf(s.out, "Found %d documents:\n%s\n", len(res.DocIDs), strings.Join(parts, ", "))
	return nil
}

// shell answers one query per line. ":bool" and ":vec" switch modes; a
// malformed query prints its error and the loop continues.
func (s *session) shell(ctx context.Context, in io.Reader, mode string) error {
	fmt.Fprintf(s.out, "Loaded %d documents, %d lemmas (%d common)\n",
		s.snap.Stats.Documents, s.snap.Stats.Lemmas, s.snap.Stats.CommonLemmas)
	fmt.Fprintln(s.out, "Type ':bool' or ':vec' to switch mode, 'exit' to quit")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(s.out, "%s> ", mode)
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "exit"):
			return nil
		case line == ":bool":
			mode = modeBoolean
			continue
		case line == ":vec":
			mode = modeVector
			continue
		}

		var err error
		if mode == modeBoolean {
			err = s.boolean(ctx, line)
		} else {
			err = s.vector(ctx, line)
		}
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *session) urls(ctx context.Context, ids []int) map[int]string {
	if s.catalog == nil {
		return nil
	}
	urls, err := s.catalog.Lookup(ctx, ids)
	if err != nil {
		slog.Warn("catalog lookup failed", "error", err)
		return nil
	}
	return urls
}

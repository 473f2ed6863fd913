// Package corpus reads the per-document inventories produced by the
// preprocessing pipeline: one directory per document holding the raw term
// list and the lemma groupings observed in that document.
package corpus

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kk0kc/oip/pkg/config"
)

// DirPrefix is the prefix of every per-document directory; the suffix is the
// document id.
const DirPrefix = "page_"

// LemmaEntry is one line of a lemma inventory: the canonical lemma and every
// surface form it was realised as in the document.
type LemmaEntry struct {
	Lemma string
	Words []string
}

// Occurrences counts how many times the lemma was realised.
func (e LemmaEntry) Occurrences() int {
	return len(e.Words)
}

// Document is the inventory of a single document.
type Document struct {
	ID     int
	Terms  []string
	Lemmas []LemmaEntry
}

// Layout names the files inside the pages directory.
type Layout struct {
	PagesDir        string
	TermsFile       string
	LemmasFile      string
	TermsTfIdfFile  string
	LemmasTfIdfFile string
}

// DefaultLayout returns the file names the preprocessing pipeline writes.
func DefaultLayout(pagesDir string) Layout {
	return Layout{
		PagesDir:        pagesDir,
		TermsFile:       "tokens.txt",
		LemmasFile:      "lemmas.txt",
		TermsTfIdfFile:  "terms_tfidf.txt",
		LemmasTfIdfFile: "lemmas_tfidf.txt",
	}
}

// LayoutFromConfig applies the configured file names; empty names keep the
// defaults.
func LayoutFromConfig(c config.CorpusConfig) Layout {
	l := DefaultLayout(c.PagesDir)
	for dst, src := range map[*string]string{
		&l.TermsFile:       c.TermsFile,
		&l.LemmasFile:      c.LemmasFile,
		&l.TermsTfIdfFile:  c.TermsTfIdfFile,
		&l.LemmasTfIdfFile: c.LemmasTfIdfFile,
	} {
		if src != "" {
			*dst = src
		}
	}
	return l
}

// DocDir returns the directory holding the inventories of document id.
func (l Layout) DocDir(id int) string {
	return filepath.Join(l.PagesDir, DirPrefix+strconv.Itoa(id))
}

// Stats summarises a directory scan.
type Stats struct {
	Documents    int
	SkippedDirs  int
	SkippedLines int
}

// DocumentIDs lists the ids of every page_<N> directory in ascending order.
// Entries that are not directories or whose suffix is not a non-negative
// integer are ignored.
func DocumentIDs(pagesDir string) ([]int, int, error) {
	entries, err := os.ReadDir(pagesDir)
	if err != nil {
		return nil, 0, fmt.Errorf("reading pages directory %s: %w", pagesDir, err)
	}
	ids := make([]int, 0, len(entries))
	skipped := 0
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || !strings.HasPrefix(name, DirPrefix) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimPrefix(name, DirPrefix))
		if err != nil || id < 0 {
			skipped++
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, skipped, nil
}

// ReadDir loads every document inventory under the layout's pages directory,
// ordered by id. A document whose term or lemma file is absent contributes an
// empty inventory for that side.
func ReadDir(layout Layout) ([]Document, Stats, error) {
	logger := slog.Default().With("component", "corpus")
	ids, skippedDirs, err := DocumentIDs(layout.PagesDir)
	if err != nil {
		return nil, Stats{}, err
	}
	stats := Stats{SkippedDirs: skippedDirs}
	docs := make([]Document, 0, len(ids))
	for _, id := range ids {
		doc, skipped, err := ReadDocument(layout, id)
		if err != nil {
			return nil, stats, err
		}
		stats.SkippedLines += skipped
		docs = append(docs, doc)
	}
	stats.Documents = len(docs)
	logger.Info("corpus inventories loaded",
		"pages_dir", layout.PagesDir,
		"documents", stats.Documents,
		"skipped_dirs", stats.SkippedDirs,
		"skipped_lines", stats.SkippedLines,
	)
	return docs, stats, nil
}

// ReadDocument loads the inventories of a single document.
func ReadDocument(layout Layout, id int) (Document, int, error) {
	doc := Document{ID: id}
	dir := layout.DocDir(id)

	err := readOptional(filepath.Join(dir, layout.TermsFile), func(r io.Reader) error {
		var err error
		doc.Terms, err = ParseTerms(r)
		return err
	})
	if err != nil {
		return doc, 0, err
	}

	skipped := 0
	err = readOptional(filepath.Join(dir, layout.LemmasFile), func(r io.Reader) error {
		var err error
		doc.Lemmas, skipped, err = ParseLemmas(r)
		return err
	})
	if err != nil {
		return doc, 0, err
	}
	return doc, skipped, nil
}

// ParseTerms reads one raw term per line, ignoring blank lines.
func ParseTerms(r io.Reader) ([]string, error) {
	scanner := newScanner(r)
	terms := make([]string, 0, 256)
	for scanner.Scan() {
		term := strings.TrimSpace(scanner.Text())
		if term == "" {
			continue
		}
		terms = append(terms, term)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning terms: %w", err)
	}
	return terms, nil
}

// ParseLemmas reads "lemma word1 word2 ..." lines. Lines naming no surface
// form are skipped and counted; blank lines are ignored.
func ParseLemmas(r io.Reader) ([]LemmaEntry, int, error) {
	scanner := newScanner(r)
	entries := make([]LemmaEntry, 0, 128)
	skipped := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			skipped++
			continue
		}
		entries = append(entries, LemmaEntry{Lemma: parts[0], Words: parts[1:]})
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("scanning lemmas: %w", err)
	}
	return entries, skipped, nil
}

// readOptional parses path if it exists; a missing file is not an error.
func readOptional(path string, parse func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	if err := parse(f); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return scanner
}

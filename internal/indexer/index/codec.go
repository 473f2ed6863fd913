package index

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LoadOption customises Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	totalDocs int
}

// WithTotalDocuments supplies the document count from ingestion instead of
// inferring it from the largest posting.
func WithTotalDocuments(n int) LoadOption {
	return func(o *loadOptions) {
		o.totalDocs = n
	}
}

// Load parses the flat serialisation. Lines without a colon, with an empty
// lemma or with an id outside [0, MaxDocumentID] are skipped and counted; a
// repeated lemma replaces the earlier line.
func Load(r io.Reader, opts ...LoadOption) (*Store, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	postings := make(map[string]PostingList)
	skipped := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lemma, ids, ok := parseLine(line)
		if !ok {
			skipped++
			continue
		}
		postings[lemma] = ids
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	s := newStore(postings, o.totalDocs)
	s.skipped = skipped
	return s, nil
}

// Open loads the index stored at path.
func Open(path string, opts ...LoadOption) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening index file: %w", err)
	}
	defer f.Close()
	s, err := Load(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading index %s: %w", path, err)
	}
	if s.skipped > 0 {
		slog.Default().With("component", "index").Warn("skipped malformed index lines",
			"path", path,
			"skipped", s.skipped,
		)
	}
	return s, nil
}

func parseLine(line string) (string, PostingList, bool) {
	lemma, rest, found := strings.Cut(line, ":")
	lemma = strings.TrimSpace(lemma)
	if !found || lemma == "" {
		return "", nil, false
	}
	fields := strings.Split(rest, ",")
	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || !ValidDocumentID(id) {
			return "", nil, false
		}
		ids = append(ids, id)
	}
	return lemma, normalize(ids), true
}

// WriteTo serialises the store in ascending lemma order. The output depends
// only on the store's contents.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	buf := make([]byte, 0, 256)
	for _, lemma := range s.Lemmas() {
		buf = buf[:0]
		buf = append(buf, lemma...)
		buf = append(buf, ':')
		for i, id := range s.postings[lemma] {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = strconv.AppendInt(buf, int64(id), 10)
		}
		buf = append(buf, '\n')
		n, err := bw.Write(buf)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("writing postings for %q: %w", lemma, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return written, fmt.Errorf("flushing index: %w", err)
	}
	return written, nil
}

// WriteFile atomically replaces path with the serialised store. It writes a
// .tmp sibling first and renames on success.
func (s *Store) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating index directory: %w", err)
		}
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	if _, err := s.WriteTo(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing index file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming index file: %w", err)
	}
	return nil
}

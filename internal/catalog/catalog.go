// Package catalog maps document ids to the URLs they were crawled from. The
// crawler appends "N: url" lines to index.txt; the catalog can be served from
// that file directly or from Postgres after a sync.
package catalog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

type Document struct {
	ID  int    `json:"doc_id"`
	URL string `json:"url"`
}

// Catalog resolves document ids. Unknown ids are absent from the result.
type Catalog interface {
	Lookup(ctx context.Context, ids []int) (map[int]string, error)
}

// File is an in-memory catalog read from the crawler's index file.
type File struct {
	urls    map[int]string
	skipped int
}

// Parse reads "N: url" lines. Lines without a colon, with a non-integer id or
// with an empty url are skipped. A repeated id keeps the last url.
func Parse(r io.Reader) (*File, error) {
	f := &File{urls: make(map[int]string)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		idText, url, ok := strings.Cut(line, ":")
		id, err := strconv.Atoi(strings.TrimSpace(idText))
		url = strings.TrimSpace(url)
		if !ok || err != nil || id < 0 || url == "" {
			f.skipped++
			continue
		}
		f.urls[id] = url
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return f, nil
}

// OpenFile parses the catalog stored at path.
func OpenFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer fh.Close()
	return Parse(fh)
}

func (f *File) Lookup(_ context.Context, ids []int) (map[int]string, error) {
	out := make(map[int]string, len(ids))
	for _, id := range ids {
		if url, ok := f.urls[id]; ok {
			out[id] = url
		}
	}
	return out, nil
}

// Documents returns every entry ordered by id.
func (f *File) Documents() []Document {
	docs := make([]Document, 0, len(f.urls))
	for id, url := range f.urls {
		docs = append(docs, Document{ID: id, URL: url})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

func (f *File) Len() int { return len(f.urls) }

// Skipped is the number of malformed lines ignored by Parse.
func (f *File) Skipped() int { return f.skipped }

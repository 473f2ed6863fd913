package corpus_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kk0kc/oip/internal/corpus"
	"github.com/kk0kc/oip/internal/corpus/corpustest"
	"github.com/kk0kc/oip/pkg/config"
)

func TestParseLemmasSkipsBareLemma(t *testing.T) {
	input := "cat cat cats\nlonely\n\n  dog   dogs  \n"
	entries, skipped, err := corpus.ParseLemmas(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 1, skipped)
	require.Len(t, entries, 2)
	assert.Equal(t, corpus.LemmaEntry{Lemma: "cat", Words: []string{"cat", "cats"}}, entries[0])
	assert.Equal(t, "dog", entries[1].Lemma)
	assert.Equal(t, 1, entries[1].Occurrences())
}

func TestParseTermsIgnoresBlankLines(t *testing.T) {
	terms, err := corpus.ParseTerms(strings.NewReader("cat\n\n dog \ncat\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "dog", "cat"}, terms)
}

func TestReadDirRoundTrip(t *testing.T) {
	sample := corpustest.Sample()
	layout := corpustest.Write(t, sample)

	docs, stats, err := corpus.ReadDir(layout)
	require.NoError(t, err)
	assert.Equal(t, len(sample), stats.Documents)
	assert.Equal(t, sample, docs)
}

func TestReadDirOrdersAndFilters(t *testing.T) {
	layout := corpus.DefaultLayout(t.TempDir())
	for _, name := range []string{"page_10", "page_2", "page_x", "other"} {
		require.NoError(t, os.MkdirAll(filepath.Join(layout.PagesDir, name), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(layout.PagesDir, "page_3"), nil, 0o644))

	docs, stats, err := corpus.ReadDir(layout)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, 2, docs[0].ID)
	assert.Equal(t, 10, docs[1].ID)
	assert.Empty(t, docs[0].Terms, "missing inventories yield an empty document")
	assert.Equal(t, 1, stats.SkippedDirs)
}

func TestReadDirMissing(t *testing.T) {
	_, _, err := corpus.ReadDir(corpus.DefaultLayout(filepath.Join(t.TempDir(), "nope")))
	assert.Error(t, err)
}

func TestLayoutFromConfig(t *testing.T) {
	l := corpus.LayoutFromConfig(config.CorpusConfig{PagesDir: "/data/pages", LemmasFile: "lemmas.v2.txt"})
	assert.Equal(t, "/data/pages", l.PagesDir)
	assert.Equal(t, "lemmas.v2.txt", l.LemmasFile)
	assert.Equal(t, "tokens.txt", l.TermsFile)
	assert.Equal(t, filepath.Join("/data/pages", "page_7"), l.DocDir(7))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "pages", cfg.Corpus.PagesDir)
	assert.Equal(t, "inverted_index.txt", cfg.Corpus.IndexPath)
	assert.Equal(t, "lemmas_tfidf.txt", cfg.Corpus.LemmasTfIdfFile)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, "common", cfg.Search.Weighting)
	assert.Equal(t, 60*time.Second, cfg.Redis.CacheTTL)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oip.yaml")
	yml := `
corpus:
  pagesDir: /data/pages
search:
  defaultLimit: 5
  maxResults: 50
  weighting: idf
redis:
  cacheTTL: 2m
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("OIP_INDEX_PATH", "/data/inverted_index.txt")
	t.Setenv("OIP_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/pages", cfg.Corpus.PagesDir)
	assert.Equal(t, "/data/inverted_index.txt", cfg.Corpus.IndexPath)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, "idf", cfg.Search.Weighting)
	assert.Equal(t, 2*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "lemmas.txt", cfg.Corpus.LemmasFile, "unset keys keep defaults")
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"weighting":     "search:\n  weighting: bm25\n",
		"limit":         "search:\n  defaultLimit: 0\n",
		"maxBelowLimit": "search:\n  defaultLimit: 20\n  maxResults: 10\n",
		"rateLimit":     "server:\n  rateLimit:\n    enabled: true\n    requestsPerSecond: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

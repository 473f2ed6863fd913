package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kk0kc/oip/pkg/config"
	"github.com/kk0kc/oip/pkg/postgres"
)

const sample = `0: https://example.org/wiki/Cat
1: https://example.org/wiki/Dog

garbage line
x: https://example.org/bad
2:
3: https://example.org/wiki/Mouse
1: https://example.org/wiki/Dog_(animal)
`

func TestParse(t *testing.T) {
	f, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 3, f.Len())
	assert.Equal(t, 3, f.Skipped())
	assert.Equal(t, []Document{
		{ID: 0, URL: "https://example.org/wiki/Cat"},
		{ID: 1, URL: "https://example.org/wiki/Dog_(animal)"},
		{ID: 3, URL: "https://example.org/wiki/Mouse"},
	}, f.Documents())
}

func TestFileLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.txt")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	f, err := OpenFile(path)
	require.NoError(t, err)

	got, err := f.Lookup(context.Background(), []int{3, 2, 0})
	require.NoError(t, err)
	assert.Equal(t, map[int]string{
		0: "https://example.org/wiki/Cat",
		3: "https://example.org/wiki/Mouse",
	}, got)
}

func TestOpenFileMissing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}

func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	port, _ := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	db, err := postgres.New(config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOrDefault("TEST_POSTGRES_DB", "oip_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "oip"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestPostgresSyncAndLookup(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()
	pg := NewPostgres(db)
	require.NoError(t, pg.EnsureSchema(ctx))

	f, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	n, err := pg.Sync(ctx, f.Documents())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := pg.Lookup(ctx, []int{1, 3, 99})
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/wiki/Dog_(animal)", got[1])
	assert.Equal(t, "https://example.org/wiki/Mouse", got[3])
	assert.NotContains(t, got, 99)

	empty, err := pg.Lookup(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

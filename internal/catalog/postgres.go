package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/kk0kc/oip/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id         INTEGER PRIMARY KEY,
	url        TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Postgres stores the catalog in the documents table.
type Postgres struct {
	client *postgres.Client
	logger *slog.Logger
}

func NewPostgres(client *postgres.Client) *Postgres {
	return &Postgres{
		client: client,
		logger: slog.Default().With("component", "catalog"),
	}
}

// EnsureSchema creates the documents table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.client.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating catalog schema: %w", err)
	}
	return nil
}

// Sync upserts docs in one transaction and returns how many rows were
// written.
func (p *Postgres) Sync(ctx context.Context, docs []Document) (int, error) {
	written := 0
	err := p.client.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO documents (id, url) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET url = EXCLUDED.url, updated_at = NOW()`)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()
		for _, d := range docs {
			if _, err := stmt.ExecContext(ctx, d.ID, d.URL); err != nil {
				return fmt.Errorf("upserting document %d: %w", d.ID, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	p.logger.Info("catalog synced", "documents", written)
	return written, nil
}

func (p *Postgres) Lookup(ctx context.Context, ids []int) (map[int]string, error) {
	out := make(map[int]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]int64, len(ids))
	for i, id := range ids {
		keys[i] = int64(id)
	}
	rows, err := p.client.DB.QueryContext(ctx,
		`SELECT id, url FROM documents WHERE id = ANY($1)`, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id  int
			url string
		)
		if err := rows.Scan(&id, &url); err != nil {
			return nil, fmt.Errorf("scanning catalog row: %w", err)
		}
		out[id] = url
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating catalog rows: %w", err)
	}
	return out, nil
}

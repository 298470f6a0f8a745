package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/geoaziz/contentcore/pkg/config"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS blobs (
	key        TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS stream_lines (
	id         BIGSERIAL PRIMARY KEY,
	stream     TEXT NOT NULL,
	line       BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stream_lines_stream ON stream_lines(stream, id);
`

// PostgresMedium stores blobs and streams in PostgreSQL, for deployments
// where the content directory must be shared or survive the host.
type PostgresMedium struct {
	db *sql.DB
}

// NewPostgresMedium connects, verifies the connection, and bootstraps the
// schema.
func NewPostgresMedium(cfg config.PostgresConfig) (*PostgresMedium, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrapping postgres schema: %w", err)
	}
	return &PostgresMedium{db: db}, nil
}

func (m *PostgresMedium) ReadBlob(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := m.db.QueryRowContext(ctx,
		`SELECT data FROM blobs WHERE key = $1`, key,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", key, err)
	}
	return data, nil
}

func (m *PostgresMedium) WriteBlob(ctx context.Context, key string, data []byte) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO blobs (key, data, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		key, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing blob %s: %w", key, err)
	}
	return nil
}

func (m *PostgresMedium) ListBlobs(ctx context.Context, prefix string) ([]string, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT key FROM blobs WHERE key LIKE $1 || '%' ORDER BY key`, prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("listing blobs under %s: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scanning blob key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (m *PostgresMedium) AppendLine(ctx context.Context, stream string, line []byte) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO stream_lines (stream, line, created_at) VALUES ($1, $2, $3)`,
		stream, line, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("appending to stream %s: %w", stream, err)
	}
	return nil
}

func (m *PostgresMedium) ReadLines(ctx context.Context, stream string) ([][]byte, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT line FROM stream_lines WHERE stream = $1 ORDER BY id`, stream,
	)
	if err != nil {
		return nil, fmt.Errorf("reading stream %s: %w", stream, err)
	}
	defer rows.Close()

	var lines [][]byte
	for rows.Next() {
		var line []byte
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scanning stream line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (m *PostgresMedium) ClearStream(ctx context.Context, stream string) error {
	if _, err := m.db.ExecContext(ctx,
		`DELETE FROM stream_lines WHERE stream = $1`, stream,
	); err != nil {
		return fmt.Errorf("clearing stream %s: %w", stream, err)
	}
	return nil
}

func (m *PostgresMedium) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *PostgresMedium) Close() error {
	return m.db.Close()
}

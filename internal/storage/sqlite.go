package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS blobs (
	key        TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS stream_lines (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	stream     TEXT NOT NULL,
	line       BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stream_lines_stream ON stream_lines(stream, id);
`

// SQLiteMedium stores blobs and streams in a single local SQLite database.
// It uses the cgo-free modernc driver, so the binary stays pure Go.
type SQLiteMedium struct {
	db *sql.DB
}

// NewSQLiteMedium opens (creating if needed) the database at path and
// bootstraps the schema.
func NewSQLiteMedium(path string) (*SQLiteMedium, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent mutations.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrapping sqlite schema: %w", err)
	}
	return &SQLiteMedium{db: db}, nil
}

func (m *SQLiteMedium) ReadBlob(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := m.db.QueryRowContext(ctx,
		`SELECT data FROM blobs WHERE key = ?`, key,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", key, err)
	}
	return data, nil
}

func (m *SQLiteMedium) WriteBlob(ctx context.Context, key string, data []byte) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO blobs (key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing blob %s: %w", key, err)
	}
	return nil
}

func (m *SQLiteMedium) ListBlobs(ctx context.Context, prefix string) ([]string, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT key FROM blobs WHERE key LIKE ? || '%' ORDER BY key`, prefix,
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

func (m *SQLiteMedium) AppendLine(ctx context.Context, stream string, line []byte) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO stream_lines (stream, line, created_at) VALUES (?, ?, ?)`,
		stream, line, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("appending to stream %s: %w", stream, err)
	}
	return nil
}

func (m *SQLiteMedium) ReadLines(ctx context.Context, stream string) ([][]byte, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT line FROM stream_lines WHERE stream = ? ORDER BY id`, stream,
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

func (m *SQLiteMedium) ClearStream(ctx context.Context, stream string) error {
	if _, err := m.db.ExecContext(ctx,
		`DELETE FROM stream_lines WHERE stream = ?`, stream,
	); err != nil {
		return fmt.Errorf("clearing stream %s: %w", stream, err)
	}
	return nil
}

func (m *SQLiteMedium) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *SQLiteMedium) Close() error {
	return m.db.Close()
}

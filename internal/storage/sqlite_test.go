package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteMedium {
	t.Helper()
	m, err := NewSQLiteMedium(filepath.Join(t.TempDir(), "content.db"))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestSQLiteMediumBlobRoundTrip(t *testing.T) {
	m := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, m.WriteBlob(ctx, "blog-posts", []byte("first")))
	require.NoError(t, m.WriteBlob(ctx, "blog-posts", []byte("second")))

	data, err := m.ReadBlob(ctx, "blog-posts")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	_, err = m.ReadBlob(ctx, "nope")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestSQLiteMediumListBlobs(t *testing.T) {
	m := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, m.WriteBlob(ctx, "backups/blog-posts_b", []byte("[]")))
	require.NoError(t, m.WriteBlob(ctx, "backups/blog-posts_a", []byte("[]")))
	require.NoError(t, m.WriteBlob(ctx, "backups/projects_a", []byte("[]")))

	keys, err := m.ListBlobs(ctx, "backups/blog-posts_")
	require.NoError(t, err)
	assert.Equal(t, []string{"backups/blog-posts_a", "backups/blog-posts_b"}, keys)
}

func TestSQLiteMediumStream(t *testing.T) {
	m := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, m.AppendLine(ctx, "views", []byte(`{"n":1}`)))
	require.NoError(t, m.AppendLine(ctx, "views", []byte(`{"n":2}`)))
	require.NoError(t, m.AppendLine(ctx, "performance", []byte(`{"n":3}`)))

	lines, err := m.ReadLines(ctx, "views")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, `{"n":1}`, string(lines[0]))

	require.NoError(t, m.ClearStream(ctx, "views"))
	lines, err = m.ReadLines(ctx, "views")
	require.NoError(t, err)
	assert.Empty(t, lines)

	// Clearing one stream leaves the other intact.
	lines, err = m.ReadLines(ctx, "performance")
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestSQLiteMediumPing(t *testing.T) {
	m := newTestSQLite(t)
	assert.NoError(t, m.Ping(context.Background()))
}

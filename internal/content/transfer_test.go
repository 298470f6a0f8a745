package content

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTransferFixture(t *testing.T) *Store {
	t.Helper()
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.True(t, s.Upsert(ctx, TypeBlog, "post", map[string]any{
		"title": "Post", "summary": "A post.", "tags": []any{"go"},
	}).Success)
	require.True(t, s.Upsert(ctx, TypeProject, "tool", map[string]any{
		"name": "Tool", "featured": true,
	}).Success)
	return s
}

func TestExportJSON(t *testing.T) {
	s := seedTransferFixture(t)

	out, err := s.Export(context.Background(), ExportOptions{Format: FormatJSON})
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "blog", rows[0]["type"])
	assert.Equal(t, "Post", rows[0]["title"])
	assert.Equal(t, "project", rows[1]["type"])
	assert.NotContains(t, rows[0], "_exported")
}

func TestExportJSONLWithMetadata(t *testing.T) {
	s := seedTransferFixture(t)

	out, err := s.Export(context.Background(), ExportOptions{
		Format:          FormatJSONL,
		IncludeMetadata: true,
	})
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var row map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &row))
		assert.NotEmpty(t, row["_exported"])
	}
}

func TestExportCSV(t *testing.T) {
	s := seedTransferFixture(t)

	out, err := s.Export(context.Background(), ExportOptions{
		Format:          FormatCSV,
		IncludeMetadata: true,
	})
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	// Header is sorted, holds only scalar columns, and skips metadata.
	assert.Contains(t, lines[0], "slug")
	assert.Contains(t, lines[0], "type")
	assert.NotContains(t, lines[0], "tags")
	assert.NotContains(t, lines[0], "_exported")
}

func TestExportSingleType(t *testing.T) {
	s := seedTransferFixture(t)

	out, err := s.Export(context.Background(), ExportOptions{
		Types:  []Type{TypeProject},
		Format: FormatJSON,
	})
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "project", rows[0]["type"])
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	s := seedTransferFixture(t)

	_, err := s.Export(context.Background(), ExportOptions{Format: ExportFormat("xml")})
	assert.Error(t, err)
}

func TestImport(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	payload := `[
		{"type":"blog","slug":"imported","title":"Imported Post"},
		{"type":"pages","slug":"bad","title":"Wrong Type"},
		{"type":"project","name":"Imported Tool"}
	]`
	res := s.Import(ctx, payload)
	assert.False(t, res.Success)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "invalid content type")

	blog := s.Get(ctx, TypeBlog)
	require.Len(t, blog, 1)
	assert.Equal(t, "Imported Post", blog[0].Title)

	// Slug derived from the name when the item carries none.
	projects := s.Get(ctx, TypeProject)
	require.Len(t, projects, 1)
	assert.Equal(t, "imported-tool", projects[0].Slug)
}

func TestImportSingleObject(t *testing.T) {
	s, _ := newTestStore(t)

	res := s.Import(context.Background(), `{"type":"blog","slug":"solo","title":"Solo"}`)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Imported)
	assert.Zero(t, res.Failed)
}

func TestImportInvalidJSON(t *testing.T) {
	s, _ := newTestStore(t)

	res := s.Import(context.Background(), `not json`)
	assert.False(t, res.Success)
	assert.Zero(t, res.Imported)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "invalid JSON")
}

func TestExportImportRoundTrip(t *testing.T) {
	src := seedTransferFixture(t)
	dst, _ := newTestStore(t)
	ctx := context.Background()

	out, err := src.Export(ctx, ExportOptions{Format: FormatJSON})
	require.NoError(t, err)

	res := dst.Import(ctx, out)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Imported)

	require.Len(t, dst.Get(ctx, TypeBlog), 1)
	require.Len(t, dst.Get(ctx, TypeProject), 1)
	assert.Equal(t, "Tool", dst.Get(ctx, TypeProject)[0].Name)
}

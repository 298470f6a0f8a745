package content

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "github.com/geoaziz/contentcore/pkg/errors"
)

// ExportFormat selects the bulk export encoding.
type ExportFormat string

const (
	FormatJSON  ExportFormat = "json"
	FormatJSONL ExportFormat = "jsonl"
	FormatCSV   ExportFormat = "csv"
)

// ExportOptions controls a bulk export.
type ExportOptions struct {
	Types           []Type
	Format          ExportFormat
	IncludeMetadata bool
}

// ImportResult summarises a bulk import: how many items landed, how many
// failed, and why.
type ImportResult struct {
	Success  bool     `json:"success"`
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// Export renders documents of the requested types in the requested format.
// Each exported row carries a "type" column so the output can be re-imported.
func (s *Store) Export(ctx context.Context, opts ExportOptions) (string, error) {
	if len(opts.Types) == 0 {
		opts.Types = AllTypes
	}
	var rows []map[string]any
	exportedAt := time.Now().UTC().Format(time.RFC3339)
	for _, t := range opts.Types {
		if !t.Valid() {
			return "", apperrors.Newf(apperrors.ErrInvalidInput, "unknown content type %q", t)
		}
		for _, doc := range s.Get(ctx, t) {
			row := doc.ToMap()
			row["type"] = string(t)
			if opts.IncludeMetadata {
				row["_exported"] = exportedAt
			}
			rows = append(rows, row)
		}
	}

	switch opts.Format {
	case FormatJSON:
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling export: %w", err)
		}
		return string(data), nil
	case FormatJSONL:
		var b strings.Builder
		for i, row := range rows {
			data, err := json.Marshal(row)
			if err != nil {
				return "", fmt.Errorf("marshaling export row: %w", err)
			}
			if i > 0 {
				b.WriteByte('\n')
			}
			b.Write(data)
		}
		return b.String(), nil
	case FormatCSV:
		return rowsToCSV(rows)
	default:
		return "", apperrors.Newf(apperrors.ErrUnsupportedFormat, "export format %q", opts.Format)
	}
}

// rowsToCSV flattens scalar columns across all rows into CSV. Nested values
// and metadata columns (underscore-prefixed) are skipped.
func rowsToCSV(rows []map[string]any) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	colSet := make(map[string]struct{})
	for _, row := range rows {
		for key, value := range row {
			if strings.HasPrefix(key, "_") {
				continue
			}
			switch value.(type) {
			case string, float64, bool, int, nil:
				colSet[key] = struct{}{}
			}
		}
	}
	cols := make([]string, 0, len(colSet))
	for col := range colSet {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write(cols); err != nil {
		return "", fmt.Errorf("writing csv header: %w", err)
	}
	record := make([]string, len(cols))
	for _, row := range rows {
		for i, col := range cols {
			record[i] = ""
			if value, ok := row[col]; ok && value != nil {
				record[i] = fmt.Sprint(value)
			}
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("writing csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flushing csv: %w", err)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Import reads a JSON array (or single object) of typed items and upserts
// each one. Items without a valid "type" field fail individually without
// aborting the rest.
func (s *Store) Import(ctx context.Context, jsonData string) ImportResult {
	result := ImportResult{}

	var items []map[string]any
	if err := json.Unmarshal([]byte(jsonData), &items); err != nil {
		var single map[string]any
		if err2 := json.Unmarshal([]byte(jsonData), &single); err2 != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("invalid JSON: %v", err))
			return result
		}
		items = []map[string]any{single}
	}

	for i, item := range items {
		t := Type(stringField(item, "type"))
		if !t.Valid() {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: invalid content type %q", i, t))
			continue
		}
		slug := stringField(item, "slug")
		if slug == "" {
			title := stringField(item, "title", "name")
			if title == "" {
				title = fmt.Sprintf("item-%d", i)
			}
			slug = Slugify(title)
		}

		updates := make(map[string]any, len(item))
		for key, value := range item {
			if key == "type" || strings.HasPrefix(key, "_") {
				continue
			}
			updates[key] = value
		}

		if res := s.Upsert(ctx, t, slug, updates); res.Success {
			result.Imported++
		} else {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: %s", i, res.Message))
		}
	}
	result.Success = result.Failed == 0
	return result
}

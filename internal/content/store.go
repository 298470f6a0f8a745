package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/geoaziz/contentcore/pkg/errors"
	"github.com/geoaziz/contentcore/pkg/logger"
	"github.com/geoaziz/contentcore/pkg/metrics"
	"github.com/geoaziz/contentcore/pkg/resilience"

	"github.com/geoaziz/contentcore/internal/storage"
)

const (
	historyKey   = "history"
	backupPrefix = "backups/"

	// historyCap bounds the change trail; the oldest records are evicted
	// first once the cap is exceeded.
	historyCap = 1000
)

// ChangeKind classifies a mutation in the change trail.
type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// ChangeRecord is one entry in the append-only audit trail.
type ChangeRecord struct {
	ID          string         `json:"id"`
	Kind        ChangeKind     `json:"kind"`
	ContentType Type           `json:"contentType"`
	Slug        string         `json:"slug"`
	Timestamp   time.Time      `json:"timestamp"`
	Changes     map[string]any `json:"changes,omitempty"`
	Previous    *Document      `json:"previousValue,omitempty"`
}

// Result reports the outcome of a store mutation. Expected failures
// (missing slug, failed medium write) come back as a failed Result with a
// message, never as a panic or error value.
type Result struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	Document *Document `json:"data,omitempty"`
}

func failure(format string, args ...any) Result {
	return Result{Success: false, Message: fmt.Sprintf(format, args...)}
}

// Store owns CRUD over the three content collections. Every mutation takes a
// full pre-image backup of its collection and appends a change record, so
// every destructive operation is reversible.
type Store struct {
	medium  storage.Medium
	metrics *metrics.Metrics
	logger  *slog.Logger
	retry   resilience.RetryConfig
	now     func() time.Time

	// One writer at a time per content type; see locks().
	mu sync.Mutex
	wl map[Type]*sync.Mutex

	// The change-history blob is shared by all content types, so its
	// read-modify-write cycle needs a store-wide lock. The per-type locks
	// only serialize collection writes.
	hmu sync.Mutex
}

// NewStore creates a Store over the given medium. m may be nil when
// operational metrics are not wired in.
func NewStore(medium storage.Medium, m *metrics.Metrics) *Store {
	return &Store{
		medium:  medium,
		metrics: m,
		logger:  logger.WithComponent("content-store"),
		now:     time.Now,
		wl:      make(map[Type]*sync.Mutex),
	}
}

func (s *Store) lock(t Type) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.wl[t]
	if !ok {
		l = &sync.Mutex{}
		s.wl[t] = l
	}
	return l
}

// Get returns all documents of a type in storage order. A missing or
// unreadable collection yields an empty slice, never an error.
func (s *Store) Get(ctx context.Context, t Type) []Document {
	items, err := s.readCollection(ctx, t)
	if err != nil {
		s.logger.Error("reading collection", "content_type", t, "error", err)
		return nil
	}
	return items
}

func (s *Store) readCollection(ctx context.Context, t Type) ([]Document, error) {
	data, err := s.medium.ReadBlob(ctx, t.Collection())
	if apperrors.Is(err, storage.ErrBlobNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMediumFailure, err)
	}
	var items []Document
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing collection %s: %w", t.Collection(), err)
	}
	return items, nil
}

func (s *Store) writeCollection(ctx context.Context, t Type, items []Document) error {
	if items == nil {
		items = []Document{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling collection %s: %w", t.Collection(), err)
	}
	return resilience.Retry(ctx, "write-collection", s.retry, func() error {
		return s.medium.WriteBlob(ctx, t.Collection(), data)
	})
}

// backupTimestamp renders a mutation time as a backup identifier suffix:
// RFC3339 with milliseconds, colons and dots replaced by hyphens.
func backupTimestamp(ts time.Time) string {
	raw := ts.UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(raw)
}

func (s *Store) writeBackup(ctx context.Context, t Type, items []Document) (string, error) {
	if items == nil {
		items = []Document{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling backup: %w", err)
	}
	stamp := backupTimestamp(s.now())
	key := backupPrefix + t.Collection() + "_" + stamp
	if err := s.medium.WriteBlob(ctx, key, data); err != nil {
		return "", fmt.Errorf("writing backup %s: %w", key, err)
	}
	if s.metrics != nil {
		s.metrics.BackupsTotal.WithLabelValues(string(t)).Inc()
	}
	return stamp, nil
}

func (s *Store) appendChange(ctx context.Context, rec ChangeRecord) {
	s.hmu.Lock()
	defer s.hmu.Unlock()

	history, err := s.readHistory(ctx)
	if err != nil {
		s.logger.Error("reading change history", "error", err)
		history = nil
	}
	history = append(history, rec)
	if len(history) > historyCap {
		history = history[len(history)-historyCap:]
	}
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		s.logger.Error("marshaling change history", "error", err)
		return
	}
	if err := s.medium.WriteBlob(ctx, historyKey, data); err != nil {
		s.logger.Error("writing change history", "error", err)
	}
}

func (s *Store) readHistory(ctx context.Context) ([]ChangeRecord, error) {
	data, err := s.medium.ReadBlob(ctx, historyKey)
	if apperrors.Is(err, storage.ErrBlobNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var history []ChangeRecord
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("parsing change history: %w", err)
	}
	return history, nil
}

// Upsert merges fieldUpdates into the document with the given slug, creating
// the document when no such slug exists. An empty slug is derived from the
// title (or name) in fieldUpdates. The full collection is backed up before
// the write and a change record is appended after it.
func (s *Store) Upsert(ctx context.Context, t Type, slug string, fieldUpdates map[string]any) Result {
	if !t.Valid() {
		return failure("unknown content type %q", t)
	}
	if slug == "" {
		slug = Slugify(stringField(fieldUpdates, "title", "name"))
		if slug == "" {
			return failure("a slug or title is required to upsert %s content", t)
		}
	}

	l := s.lock(t)
	l.Lock()
	defer l.Unlock()

	items, err := s.readCollection(ctx, t)
	if err != nil {
		s.countFailure(t)
		return failure("failed to read %s content: %v", t, err)
	}
	if _, err := s.writeBackup(ctx, t, items); err != nil {
		s.countFailure(t)
		return failure("failed to back up %s content: %v", t, err)
	}

	idx := findBySlug(items, slug)
	kind := ChangeUpdate
	var previous *Document
	if idx >= 0 {
		prev := items[idx]
		previous = &prev
		items[idx] = items[idx].Merge(fieldUpdates)
	} else {
		kind = ChangeCreate
		doc := FromMap(fieldUpdates)
		doc.Slug = slug
		doc.CreatedAt = s.now().UTC().Format(time.RFC3339)
		items = append(items, doc)
		idx = len(items) - 1
	}

	if err := s.writeCollection(ctx, t, items); err != nil {
		s.countFailure(t)
		return failure("failed to write %s content: %v", t, err)
	}

	s.appendChange(ctx, ChangeRecord{
		ID:          uuid.NewString(),
		Kind:        kind,
		ContentType: t,
		Slug:        slug,
		Timestamp:   s.now().UTC(),
		Changes:     fieldUpdates,
		Previous:    previous,
	})
	if s.metrics != nil {
		s.metrics.MutationsTotal.WithLabelValues(string(t), string(kind)).Inc()
	}

	verb := "updated"
	if kind == ChangeCreate {
		verb = "created"
	}
	doc := items[idx]
	return Result{
		Success:  true,
		Message:  fmt.Sprintf("%s content %s successfully", t, verb),
		Document: &doc,
	}
}

// Delete removes the document with the given slug. A missing slug is a
// failure result, not an error. The deleted document is returned and a
// delete change record carries it as the pre-image.
func (s *Store) Delete(ctx context.Context, t Type, slug string) Result {
	if !t.Valid() {
		return failure("unknown content type %q", t)
	}

	l := s.lock(t)
	l.Lock()
	defer l.Unlock()

	items, err := s.readCollection(ctx, t)
	if err != nil {
		s.countFailure(t)
		return failure("failed to read %s content: %v", t, err)
	}
	if _, err := s.writeBackup(ctx, t, items); err != nil {
		s.countFailure(t)
		return failure("failed to back up %s content: %v", t, err)
	}

	idx := findBySlug(items, slug)
	if idx < 0 {
		return failure("%s content with slug %q not found", t, slug)
	}
	deleted := items[idx]
	items = append(items[:idx], items[idx+1:]...)

	if err := s.writeCollection(ctx, t, items); err != nil {
		s.countFailure(t)
		return failure("failed to write %s content: %v", t, err)
	}

	s.appendChange(ctx, ChangeRecord{
		ID:          uuid.NewString(),
		Kind:        ChangeDelete,
		ContentType: t,
		Slug:        slug,
		Timestamp:   s.now().UTC(),
		Previous:    &deleted,
	})
	if s.metrics != nil {
		s.metrics.MutationsTotal.WithLabelValues(string(t), string(ChangeDelete)).Inc()
	}

	return Result{
		Success:  true,
		Message:  fmt.Sprintf("%s content deleted successfully", t),
		Document: &deleted,
	}
}

// History returns change records, most recent first, optionally filtered by
// content type (pass an empty Type for all). limit defaults to 100.
func (s *Store) History(ctx context.Context, t Type, limit int) []ChangeRecord {
	if limit <= 0 {
		limit = 100
	}
	history, err := s.readHistory(ctx)
	if err != nil {
		s.logger.Error("reading change history", "error", err)
		return nil
	}
	if t != "" {
		filtered := history[:0]
		for _, rec := range history {
			if rec.ContentType == t {
				filtered = append(filtered, rec)
			}
		}
		history = filtered
	}
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]ChangeRecord, len(history))
	for i, rec := range history {
		out[len(history)-1-i] = rec
	}
	return out
}

// Restore overwrites the live collection with the backup snapshot taken at
// backupTimestamp. The current state is backed up first, so a restore is
// itself auditable and undoable.
func (s *Store) Restore(ctx context.Context, t Type, backupTimestamp string) Result {
	if !t.Valid() {
		return failure("unknown content type %q", t)
	}

	l := s.lock(t)
	l.Lock()
	defer l.Unlock()

	snapshot, err := s.readBackup(ctx, t, backupTimestamp)
	if apperrors.Is(err, apperrors.ErrBackupNotFound) {
		return failure("backup not found: %s_%s", t.Collection(), backupTimestamp)
	}
	if err != nil {
		return failure("failed to read backup: %v", err)
	}

	current, err := s.readCollection(ctx, t)
	if err != nil {
		return failure("failed to read %s content: %v", t, err)
	}
	if _, err := s.writeBackup(ctx, t, current); err != nil {
		return failure("failed to back up current %s content: %v", t, err)
	}
	if err := s.writeCollection(ctx, t, snapshot); err != nil {
		s.countFailure(t)
		return failure("failed to write %s content: %v", t, err)
	}

	s.appendChange(ctx, ChangeRecord{
		ID:          uuid.NewString(),
		Kind:        ChangeUpdate,
		ContentType: t,
		Slug:        "restore-" + backupTimestamp,
		Timestamp:   s.now().UTC(),
	})
	if s.metrics != nil {
		s.metrics.RestoresTotal.WithLabelValues(string(t)).Inc()
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("restored from backup: %s_%s", t.Collection(), backupTimestamp),
	}
}

func (s *Store) readBackup(ctx context.Context, t Type, backupTimestamp string) ([]Document, error) {
	key := backupPrefix + t.Collection() + "_" + backupTimestamp
	data, err := s.medium.ReadBlob(ctx, key)
	if apperrors.Is(err, storage.ErrBlobNotFound) {
		return nil, apperrors.Newf(apperrors.ErrBackupNotFound, "%s_%s", t.Collection(), backupTimestamp)
	}
	if err != nil {
		return nil, err
	}
	var snapshot []Document
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("backup %s is corrupt: %w", backupTimestamp, err)
	}
	return snapshot, nil
}

// ListBackups returns backup identifiers, newest first, optionally filtered
// by content type (pass an empty Type for all).
func (s *Store) ListBackups(ctx context.Context, t Type) []string {
	prefix := backupPrefix
	if t != "" {
		prefix += t.Collection() + "_"
	}
	keys, err := s.medium.ListBlobs(ctx, prefix)
	if err != nil {
		s.logger.Error("listing backups", "error", err)
		return nil
	}
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, strings.TrimPrefix(key, backupPrefix))
	}
	// Timestamped names sort lexicographically; reverse for newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Document returns the single document with the given slug, matching the
// same legacy-slug fallback the mutation paths use.
func (s *Store) Document(ctx context.Context, t Type, slug string) (Document, error) {
	for _, doc := range s.Get(ctx, t) {
		if doc.EffectiveSlug() == slug {
			return doc, nil
		}
	}
	return Document{}, apperrors.Newf(apperrors.ErrNotFound, "%s content with slug %q", t, slug)
}

// Title resolves the authoritative title for a document, used by the
// analytics aggregator instead of guessing from slugs.
func (s *Store) Title(ctx context.Context, t Type, slug string) (string, bool) {
	doc, err := s.Document(ctx, t, slug)
	if err != nil {
		return "", false
	}
	return doc.DisplayTitle(), true
}

func (s *Store) countFailure(t Type) {
	if s.metrics != nil {
		s.metrics.MutationFailuresTotal.WithLabelValues(string(t)).Inc()
	}
}

func findBySlug(items []Document, slug string) int {
	for i, item := range items {
		if item.EffectiveSlug() == slug {
			return i
		}
	}
	return -1
}

func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

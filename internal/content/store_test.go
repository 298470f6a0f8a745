package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/geoaziz/contentcore/pkg/errors"

	"github.com/geoaziz/contentcore/internal/storage"
)

// newTestStore builds a Store over a throwaway file medium with a ticking
// fake clock, so consecutive mutations never collide on backup timestamps.
func newTestStore(t *testing.T) (*Store, storage.Medium) {
	t.Helper()
	medium, err := storage.NewFileMedium(t.TempDir())
	require.NoError(t, err)

	s := NewStore(medium, nil)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	s.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * 5 * time.Millisecond)
	}
	return s, medium
}

func TestUpsertRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	res := s.Upsert(ctx, TypeBlog, "hello-world", map[string]any{
		"title":   "Hello World",
		"summary": "An introduction.",
		"tags":    []any{"go", "writing"},
	})
	require.True(t, res.Success)
	assert.Equal(t, "blog content created successfully", res.Message)
	require.NotNil(t, res.Document)
	assert.NotEmpty(t, res.Document.CreatedAt)

	items := s.Get(ctx, TypeBlog)
	require.Len(t, items, 1)
	assert.Equal(t, "hello-world", items[0].Slug)
	assert.Equal(t, "Hello World", items[0].Title)
	assert.Equal(t, "An introduction.", items[0].Summary)
	assert.Equal(t, []string{"go", "writing"}, items[0].Tags)
}

func TestUpsertMergesExisting(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Upsert(ctx, TypeBlog, "post", map[string]any{
		"title":    "Post",
		"summary":  "Original summary.",
		"readTime": "5 min",
	})
	res := s.Upsert(ctx, TypeBlog, "post", map[string]any{"featured": true})
	require.True(t, res.Success)
	assert.Equal(t, "blog content updated successfully", res.Message)

	items := s.Get(ctx, TypeBlog)
	require.Len(t, items, 1)
	assert.Equal(t, "Post", items[0].Title)
	assert.Equal(t, "Original summary.", items[0].Summary)
	assert.True(t, items[0].Featured)
	assert.Equal(t, "5 min", items[0].Extra["readTime"])
}

func TestUpsertDerivesSlug(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	res := s.Upsert(ctx, TypeBlog, "", map[string]any{"title": "Hello, World!"})
	require.True(t, res.Success)
	assert.Equal(t, "hello-world", res.Document.Slug)

	res = s.Upsert(ctx, TypeBlog, "", map[string]any{"summary": "no title"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "slug or title")
}

func TestUpsertRejectsUnknownType(t *testing.T) {
	s, _ := newTestStore(t)

	res := s.Upsert(context.Background(), Type("pages"), "x", map[string]any{"title": "X"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "unknown content type")
}

func TestUpsertMatchesLegacySlug(t *testing.T) {
	s, medium := newTestStore(t)
	ctx := context.Background()

	// A pre-slug document, addressable only through its derived identity.
	seed := `[{"name":"My Old Project","tech":["go"]}]`
	require.NoError(t, medium.WriteBlob(ctx, TypeProject.Collection(), []byte(seed)))

	res := s.Upsert(ctx, TypeProject, "my-old-project", map[string]any{"featured": true})
	require.True(t, res.Success)
	assert.Equal(t, "project content updated successfully", res.Message)

	items := s.Get(ctx, TypeProject)
	require.Len(t, items, 1)
	assert.Equal(t, "My Old Project", items[0].Name)
	assert.True(t, items[0].Featured)
}

func TestDeleteRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Upsert(ctx, TypeBlog, "post", map[string]any{"title": "Post"})
	res := s.Delete(ctx, TypeBlog, "post")
	require.True(t, res.Success)
	require.NotNil(t, res.Document)
	assert.Equal(t, "Post", res.Document.Title)

	assert.Empty(t, s.Get(ctx, TypeBlog))

	history := s.History(ctx, TypeBlog, 0)
	require.NotEmpty(t, history)
	assert.Equal(t, ChangeDelete, history[0].Kind)
	require.NotNil(t, history[0].Previous)
	assert.Equal(t, "Post", history[0].Previous.Title)
}

func TestDeleteMissingSlug(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Upsert(ctx, TypeBlog, "post", map[string]any{"title": "Post"})
	before := len(s.ListBackups(ctx, TypeBlog))

	res := s.Delete(ctx, TypeBlog, "nope")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "not found")

	// The pre-mutation backup is taken before the slug lookup, so even a
	// failed delete leaves a snapshot behind.
	assert.Len(t, s.ListBackups(ctx, TypeBlog), before+1)
}

func TestHistoryOrderAndFilter(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Upsert(ctx, TypeBlog, "first", map[string]any{"title": "First"})
	s.Upsert(ctx, TypeProject, "tool", map[string]any{"name": "Tool"})
	s.Upsert(ctx, TypeBlog, "second", map[string]any{"title": "Second"})

	all := s.History(ctx, "", 0)
	require.Len(t, all, 3)
	assert.Equal(t, "second", all[0].Slug)
	assert.Equal(t, "tool", all[1].Slug)
	assert.Equal(t, "first", all[2].Slug)

	blog := s.History(ctx, TypeBlog, 0)
	require.Len(t, blog, 2)
	assert.Equal(t, "second", blog[0].Slug)
	assert.Equal(t, "first", blog[1].Slug)

	limited := s.History(ctx, "", 2)
	require.Len(t, limited, 2)
	assert.Equal(t, "second", limited[0].Slug)
}

func TestHistoryCap(t *testing.T) {
	s, medium := newTestStore(t)
	ctx := context.Background()

	seeded := make([]ChangeRecord, historyCap)
	for i := range seeded {
		seeded[i] = ChangeRecord{
			ID:          fmt.Sprintf("rec-%04d", i),
			Kind:        ChangeCreate,
			ContentType: TypeBlog,
			Slug:        fmt.Sprintf("post-%04d", i),
			Timestamp:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Second),
		}
	}
	data, err := json.Marshal(seeded)
	require.NoError(t, err)
	require.NoError(t, medium.WriteBlob(ctx, historyKey, data))

	s.Upsert(ctx, TypeBlog, "newest", map[string]any{"title": "Newest"})

	history := s.History(ctx, "", historyCap+10)
	require.Len(t, history, historyCap)
	assert.Equal(t, "newest", history[0].Slug)
	// The oldest seeded record is evicted; the next one survives.
	assert.Equal(t, "rec-0001", history[len(history)-1].ID)
}

func TestRestore(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Upsert(ctx, TypeBlog, "post", map[string]any{"title": "Version One"})
	s.Upsert(ctx, TypeBlog, "post", map[string]any{"title": "Version Two"})

	backups := s.ListBackups(ctx, TypeBlog)
	require.Len(t, backups, 2)
	// Newest first: backups[0] is the snapshot taken before the second
	// upsert, holding Version One.
	stamp := strings.TrimPrefix(backups[0], TypeBlog.Collection()+"_")

	res := s.Restore(ctx, TypeBlog, stamp)
	require.True(t, res.Success)
	assert.Contains(t, res.Message, "restored from backup")

	items := s.Get(ctx, TypeBlog)
	require.Len(t, items, 1)
	assert.Equal(t, "Version One", items[0].Title)

	// The restore itself is auditable: a pre-restore backup plus a change
	// record pointing at the snapshot.
	assert.Len(t, s.ListBackups(ctx, TypeBlog), 3)
	history := s.History(ctx, TypeBlog, 0)
	assert.Equal(t, "restore-"+stamp, history[0].Slug)
	assert.Equal(t, ChangeUpdate, history[0].Kind)
}

func TestRestoreMissingBackup(t *testing.T) {
	s, _ := newTestStore(t)

	res := s.Restore(context.Background(), TypeBlog, "2024-01-01T00-00-00-000Z")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "backup not found")
}

func TestBackupTimestampFormat(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 678_000_000, time.UTC)
	assert.Equal(t, "2024-01-02T03-04-05-678Z", backupTimestamp(ts))
}

func TestTitle(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Upsert(ctx, TypeBlog, "post", map[string]any{"title": "A Post"})

	title, ok := s.Title(ctx, TypeBlog, "post")
	require.True(t, ok)
	assert.Equal(t, "A Post", title)

	_, ok = s.Title(ctx, TypeBlog, "gone")
	assert.False(t, ok)
}

func TestMutationLifecycle(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.True(t, s.Upsert(ctx, TypeBlog, "hello-world", map[string]any{
		"title":   "Hello World",
		"summary": "An introduction.",
	}).Success)
	require.True(t, s.Upsert(ctx, TypeBlog, "hello-world", map[string]any{
		"featured": true,
	}).Success)

	history := s.History(ctx, TypeBlog, 0)
	require.Len(t, history, 2)
	assert.Equal(t, ChangeUpdate, history[0].Kind)
	assert.Equal(t, ChangeCreate, history[1].Kind)
	for _, rec := range history {
		assert.Equal(t, "hello-world", rec.Slug)
	}

	require.True(t, s.Delete(ctx, TypeBlog, "hello-world").Success)
	assert.Empty(t, s.Get(ctx, TypeBlog))
	assert.Len(t, s.ListBackups(ctx, TypeBlog), 3)
}

func TestDocument(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.True(t, s.Upsert(ctx, TypeBlog, "hello-world", map[string]any{
		"title": "Hello World",
	}).Success)

	doc, err := s.Document(ctx, TypeBlog, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, "Hello World", doc.Title)

	_, err = s.Document(ctx, TypeBlog, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestConcurrentMutationsAcrossTypesKeepAllChanges(t *testing.T) {
	medium, err := storage.NewFileMedium(t.TempDir())
	require.NoError(t, err)
	s := NewStore(medium, nil)

	// The per-call ticking clock needs its own lock here: mutations of
	// different types run concurrently.
	var clockMu sync.Mutex
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	s.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		calls++
		return base.Add(time.Duration(calls) * time.Millisecond)
	}

	ctx := context.Background()
	const perType = 20
	var wg sync.WaitGroup
	for i := 0; i < perType; i++ {
		for _, tp := range []Type{TypeBlog, TypeProject} {
			wg.Add(1)
			go func(tp Type, i int) {
				defer wg.Done()
				res := s.Upsert(ctx, tp, fmt.Sprintf("%s-doc-%02d", tp, i), map[string]any{
					"title": fmt.Sprintf("Doc %d", i),
				})
				assert.True(t, res.Success, res.Message)
			}(tp, i)
		}
	}
	wg.Wait()

	history := s.History(ctx, "", 2*perType)
	require.Len(t, history, 2*perType)

	// No mutation lost its record to a concurrent writer.
	ids := make(map[string]struct{}, len(history))
	for _, rec := range history {
		ids[rec.ID] = struct{}{}
	}
	assert.Len(t, ids, 2*perType)
	assert.Len(t, s.History(ctx, TypeBlog, 2*perType), perType)
	assert.Len(t, s.History(ctx, TypeProject, 2*perType), perType)
}

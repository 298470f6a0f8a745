package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoaziz/contentcore/pkg/config"

	"github.com/geoaziz/contentcore/internal/content"
)

// stubSource serves fixed documents per content type.
type stubSource map[content.Type][]content.Document

func (s stubSource) Get(ctx context.Context, t content.Type) []content.Document {
	return s[t]
}

func newTestEngine(source stubSource) *Engine {
	return NewEngine(source, nil, nil, config.SearchConfig{})
}

func fixtureSource() stubSource {
	return stubSource{
		content.TypeBlog: {
			{
				Slug:    "systems",
				Title:   "Systems",
				Summary: "All about systems.",
				Tags:    []string{"systems", "go"},
				Date:    "2024-03-01",
			},
			{
				Slug:    "systems-engineering",
				Title:   "Systems Engineering",
				Summary: "Notes on systems design.",
				Tags:    []string{"systems"},
				Date:    "2024-02-01",
			},
			{
				Slug:    "gardening",
				Title:   "Gardening",
				Summary: "Tomatoes.",
				Tags:    []string{"hobby"},
				Date:    "2024-01-01",
			},
		},
		content.TypeProject: {
			{
				Slug:     "search-tool",
				Name:     "Search Tool",
				Tech:     []string{"Go", "Rust"},
				Featured: true,
				Date:     "2024-04-01",
			},
		},
	}
}

func TestSearchRankingAndExclusion(t *testing.T) {
	e := newTestEngine(fixtureSource())

	results := e.Search(context.Background(), Query{Text: "Systems", Type: content.TypeBlog})
	require.Len(t, results, 2)

	assert.Equal(t, "systems", results[0].Slug)
	assert.Equal(t, 1.0, results[0].Relevance)
	assert.Equal(t, "systems-engineering", results[1].Slug)
	assert.InDelta(t, 0.95, results[1].Relevance, 1e-9)

	for _, r := range results {
		assert.NotEqual(t, "gardening", r.Slug)
		assert.NotEmpty(t, r.Highlighted)
	}
}

func TestSearchEmptyQueryIsFilterPass(t *testing.T) {
	e := newTestEngine(fixtureSource())

	results := e.Search(context.Background(), Query{Type: content.TypeBlog})
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, 1.0, r.Relevance)
		assert.Empty(t, r.Highlighted)
	}
}

func TestSearchTieBreakByDate(t *testing.T) {
	e := newTestEngine(fixtureSource())

	// All relevance 1.0, so ordering falls back to date descending.
	results := e.Search(context.Background(), Query{})
	require.Len(t, results, 4)
	assert.Equal(t, "search-tool", results[0].Slug)
	assert.Equal(t, "systems", results[1].Slug)
	assert.Equal(t, "systems-engineering", results[2].Slug)
	assert.Equal(t, "gardening", results[3].Slug)
}

func TestSearchTagANDSemantics(t *testing.T) {
	e := newTestEngine(fixtureSource())
	ctx := context.Background()

	results := e.Search(ctx, Query{Tags: []string{"go", "rust"}})
	require.Len(t, results, 1)
	assert.Equal(t, "search-tool", results[0].Slug)

	// One missing tag excludes the document entirely.
	results = e.Search(ctx, Query{Tags: []string{"go", "hobby"}})
	assert.Empty(t, results)
}

func TestSearchTagSubstringMatch(t *testing.T) {
	e := newTestEngine(stubSource{
		content.TypeBlog: {
			{Slug: "post", Title: "Post", Tags: []string{"distributed-systems"}},
		},
	})

	results := e.Search(context.Background(), Query{Tags: []string{"systems"}})
	require.Len(t, results, 1)
	assert.Equal(t, "post", results[0].Slug)
}

func TestSearchFeaturedFilter(t *testing.T) {
	e := newTestEngine(fixtureSource())

	featured := true
	results := e.Search(context.Background(), Query{Featured: &featured})
	require.Len(t, results, 1)
	assert.Equal(t, "search-tool", results[0].Slug)
}

func TestSearchDateRange(t *testing.T) {
	e := newTestEngine(fixtureSource())

	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	results := e.Search(context.Background(), Query{
		Type:     content.TypeBlog,
		DateFrom: &from,
		DateTo:   &to,
	})
	require.Len(t, results, 2)
	assert.Equal(t, "systems", results[0].Slug)
	assert.Equal(t, "systems-engineering", results[1].Slug)
}

func TestSearchPagination(t *testing.T) {
	e := newTestEngine(fixtureSource())
	ctx := context.Background()

	page := e.Search(ctx, Query{Limit: 2})
	require.Len(t, page, 2)
	assert.Equal(t, "search-tool", page[0].Slug)

	page = e.Search(ctx, Query{Limit: 2, Offset: 2})
	require.Len(t, page, 2)
	assert.Equal(t, "systems-engineering", page[0].Slug)

	assert.Empty(t, e.Search(ctx, Query{Offset: 100}))
}

func TestSearchLimitCap(t *testing.T) {
	source := stubSource{content.TypeBlog: nil}
	for i := 0; i < 20; i++ {
		source[content.TypeBlog] = append(source[content.TypeBlog], content.Document{
			Slug:  content.Slugify(string(rune('a' + i))),
			Title: string(rune('a' + i)),
		})
	}
	e := NewEngine(source, nil, nil, config.SearchConfig{MaxResults: 5})

	results := e.Search(context.Background(), Query{Limit: 100})
	assert.Len(t, results, 5)
}

func TestSuggestions(t *testing.T) {
	e := newTestEngine(fixtureSource())
	ctx := context.Background()

	// Queries below the minimum length yield nothing.
	assert.Nil(t, e.Suggestions(ctx, "s", 0))

	got := e.Suggestions(ctx, "sys", 0)
	assert.Equal(t, []string{"Systems", "Systems Engineering", "systems"}, got)

	got = e.Suggestions(ctx, "sys", 2)
	assert.Equal(t, []string{"Systems", "Systems Engineering"}, got)
}

func TestSuggestionsMinimumLengthCountsRunes(t *testing.T) {
	e := newTestEngine(stubSource{
		content.TypeBlog: {
			{Slug: "cafe", Title: "Café Notes", Tags: []string{"café"}},
		},
	})
	ctx := context.Background()

	// One rune, even at two bytes, stays below the minimum.
	assert.Nil(t, e.Suggestions(ctx, "é", 0))

	got := e.Suggestions(ctx, "fé", 0)
	assert.Equal(t, []string{"Café Notes", "café"}, got)
}

func TestAllTags(t *testing.T) {
	e := newTestEngine(fixtureSource())

	tags := e.AllTags(context.Background())
	assert.Equal(t, []string{"go", "hobby", "rust", "systems"}, tags)
}

func TestTagStats(t *testing.T) {
	e := newTestEngine(fixtureSource())

	stats := e.TagStats(context.Background())
	assert.Equal(t, 3, stats["systems"])
	assert.Equal(t, 2, stats["go"])
	assert.Equal(t, 1, stats["hobby"])
	assert.Equal(t, 1, stats["rust"])
}

func TestRelatedContent(t *testing.T) {
	e := newTestEngine(fixtureSource())

	// "systems-engineering" carries the single tag "systems", which "systems"
	// also carries, so the latter comes back as related.
	related := e.RelatedContent(context.Background(), content.TypeBlog, "systems-engineering", 0)
	require.Len(t, related, 1)
	assert.Equal(t, "systems", related[0].Slug)

	// Relatedness requires every source tag: "systems" also carries "go",
	// which no other document pairs with "systems".
	assert.Empty(t, e.RelatedContent(context.Background(), content.TypeBlog, "systems", 0))
}

func TestRelatedContentUnknownSlug(t *testing.T) {
	e := newTestEngine(fixtureSource())
	assert.Nil(t, e.RelatedContent(context.Background(), content.TypeBlog, "nope", 0))
}

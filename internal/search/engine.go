// Package search answers filtered, relevance-ranked queries over the content
// store's live documents, plus suggestion, tag, and related-content lookups.
package search

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/geoaziz/contentcore/pkg/config"
	"github.com/geoaziz/contentcore/pkg/logger"
	"github.com/geoaziz/contentcore/pkg/metrics"

	"github.com/geoaziz/contentcore/internal/content"
)

// Source supplies the current documents of a content type. The content
// store satisfies this.
type Source interface {
	Get(ctx context.Context, t content.Type) []content.Document
}

// Query is one search request. Zero values mean "no filter".
type Query struct {
	Text     string       `json:"query,omitempty"`
	Type     content.Type `json:"type,omitempty"`
	Tags     []string     `json:"tags,omitempty"`
	DateFrom *time.Time   `json:"dateFrom,omitempty"`
	DateTo   *time.Time   `json:"dateTo,omitempty"`
	Featured *bool        `json:"featured,omitempty"`
	Limit    int          `json:"limit,omitempty"`
	Offset   int          `json:"offset,omitempty"`
}

// Result is one ranked search hit.
type Result struct {
	Type        content.Type `json:"type"`
	Slug        string       `json:"slug"`
	Title       string       `json:"title"`
	Summary     string       `json:"summary,omitempty"`
	Date        string       `json:"date,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Relevance   float64      `json:"relevance"`
	Highlighted string       `json:"highlighted,omitempty"`
}

// Engine executes search queries against a Source.
type Engine struct {
	source  Source
	cache   *QueryCache
	metrics *metrics.Metrics
	cfg     config.SearchConfig
	logger  *slog.Logger
}

// NewEngine creates an Engine. cache and m may be nil.
func NewEngine(source Source, cache *QueryCache, m *metrics.Metrics, cfg config.SearchConfig) *Engine {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 50
	}
	if cfg.SuggestionLimit <= 0 {
		cfg.SuggestionLimit = 10
	}
	if cfg.RelatedLimit <= 0 {
		cfg.RelatedLimit = 5
	}
	if cfg.MinSuggestionRune <= 0 {
		cfg.MinSuggestionRune = 2
	}
	return &Engine{
		source:  source,
		cache:   cache,
		metrics: m,
		cfg:     cfg,
		logger:  logger.WithComponent("search-engine"),
	}
}

// Search runs the full pipeline: hard filters, relevance scoring, snippet
// highlighting, ranking, and pagination.
func (e *Engine) Search(ctx context.Context, q Query) []Result {
	start := time.Now()
	if q.Limit <= 0 {
		q.Limit = e.cfg.DefaultLimit
	}
	if e.cfg.MaxResults > 0 && q.Limit > e.cfg.MaxResults {
		q.Limit = e.cfg.MaxResults
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, q); ok {
			e.observe(start, len(cached))
			return cached
		}
		results := e.cache.Do(q, func() []Result {
			return e.execute(ctx, q)
		})
		e.cache.Set(ctx, q, results)
		e.observe(start, len(results))
		return results
	}

	results := e.execute(ctx, q)
	e.observe(start, len(results))
	return results
}

type scoredResult struct {
	Result
	date time.Time
}

func (e *Engine) execute(ctx context.Context, q Query) []Result {
	types := content.AllTypes
	if q.Type != "" {
		types = []content.Type{q.Type}
	}

	// Fan the scan out per content type; collect in type order so the
	// pre-sort ordering stays deterministic.
	perType := make([][]scoredResult, len(types))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range types {
		i, t := i, t
		g.Go(func() error {
			perType[i] = e.scanType(gctx, t, q)
			return nil
		})
	}
	_ = g.Wait()

	var scored []scoredResult
	for _, batch := range perType {
		scored = append(scored, batch...)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if math.Abs(scored[i].Relevance-scored[j].Relevance) > 0.01 {
			return scored[i].Relevance > scored[j].Relevance
		}
		return scored[i].date.After(scored[j].date)
	})

	if q.Offset >= len(scored) {
		return []Result{}
	}
	scored = scored[q.Offset:]
	if len(scored) > q.Limit {
		scored = scored[:q.Limit]
	}
	out := make([]Result, len(scored))
	for i, sr := range scored {
		out[i] = sr.Result
	}
	return out
}

func (e *Engine) scanType(ctx context.Context, t content.Type, q Query) []scoredResult {
	var out []scoredResult
	for _, doc := range e.source.Get(ctx, t) {
		if q.Featured != nil && doc.Featured != *q.Featured {
			continue
		}
		date := doc.EffectiveDate()
		if q.DateFrom != nil && date.Before(*q.DateFrom) {
			continue
		}
		if q.DateTo != nil && date.After(*q.DateTo) {
			continue
		}
		docTags := doc.DerivedTags()
		if !hasAllTags(docTags, q.Tags) {
			continue
		}

		score := relevance(doc, q.Text)
		if q.Text != "" && score == 0 {
			continue
		}

		result := Result{
			Type:      t,
			Slug:      doc.EffectiveSlug(),
			Title:     doc.DisplayTitle(),
			Summary:   doc.SummaryText(),
			Date:      doc.Date,
			Tags:      docTags,
			Relevance: score,
		}
		if q.Text != "" {
			result.Highlighted = highlight(doc.SummaryText(), q.Text)
		}
		out = append(out, scoredResult{Result: result, date: date})
	}
	return out
}

// hasAllTags requires every requested tag to match some document tag by
// case-insensitive substring.
func hasAllTags(docTags, requested []string) bool {
	for _, want := range requested {
		want = strings.ToLower(want)
		found := false
		for _, have := range docTags {
			if strings.Contains(have, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Suggestions returns autocomplete candidates: distinct titles and tags
// containing the query, sorted, truncated to limit. Queries shorter than
// two characters yield nothing.
func (e *Engine) Suggestions(ctx context.Context, query string, limit int) []string {
	if utf8.RuneCountInString(query) < e.cfg.MinSuggestionRune {
		return nil
	}
	if limit <= 0 {
		limit = e.cfg.SuggestionLimit
	}
	q := strings.ToLower(query)
	seen := make(map[string]struct{})

	for _, t := range content.AllTypes {
		for _, doc := range e.source.Get(ctx, t) {
			if doc.Title != "" && strings.Contains(strings.ToLower(doc.Title), q) {
				seen[doc.Title] = struct{}{}
			}
		}
	}
	for _, tag := range e.AllTags(ctx) {
		if strings.Contains(tag, q) {
			seen[tag] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// AllTags returns every distinct derived tag across all content, sorted.
func (e *Engine) AllTags(ctx context.Context) []string {
	seen := make(map[string]struct{})
	for _, t := range content.AllTypes {
		for _, doc := range e.source.Get(ctx, t) {
			for _, tag := range doc.DerivedTags() {
				seen[tag] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// TagStats returns how many documents carry each derived tag.
func (e *Engine) TagStats(ctx context.Context) map[string]int {
	stats := make(map[string]int)
	for _, t := range content.AllTypes {
		for _, doc := range e.source.Get(ctx, t) {
			for _, tag := range doc.DerivedTags() {
				stats[tag]++
			}
		}
	}
	return stats
}

// RelatedContent returns documents sharing at least one tag with the source
// document, excluding the source itself, ranked through the same pipeline.
func (e *Engine) RelatedContent(ctx context.Context, t content.Type, slug string, limit int) []Result {
	if limit <= 0 {
		limit = e.cfg.RelatedLimit
	}
	var source *content.Document
	for _, doc := range e.source.Get(ctx, t) {
		if doc.EffectiveSlug() == slug {
			d := doc
			source = &d
			break
		}
	}
	if source == nil {
		return nil
	}
	tags := source.DerivedTags()
	if len(tags) == 0 {
		return nil
	}

	results := e.execute(ctx, Query{Tags: tags, Limit: limit + 1})
	out := make([]Result, 0, limit)
	for _, r := range results {
		if r.Slug == slug {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (e *Engine) observe(start time.Time, resultCount int) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchesTotal.Inc()
	e.metrics.SearchLatency.Observe(time.Since(start).Seconds())
	e.metrics.SearchResultsCount.Observe(float64(resultCount))
}

// Package analytics derives engagement metrics from the event log. The
// aggregator holds no state of its own: every answer is computed from the
// log at call time, so it can never drift out of sync with recorded events.
package analytics

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/geoaziz/contentcore/pkg/logger"

	"github.com/geoaziz/contentcore/internal/content"
	"github.com/geoaziz/contentcore/internal/eventlog"
)

// Engagement thresholds: a view counts as engaged when the viewer scrolled
// past 30% and stayed longer than 30 seconds.
const (
	engagedScrollDepth = 30
	engagedTimeOnPage  = 30
)

// ContentMetrics is the derived per-document engagement summary.
type ContentMetrics struct {
	Slug            string         `json:"slug"`
	ContentType     content.Type   `json:"type"`
	Title           string         `json:"title"`
	Views           int            `json:"views"`
	AvgReadingTime  int            `json:"avgReadingTime"`
	AvgScrollDepth  int            `json:"avgScrollDepth"`
	AvgTimeOnPage   int            `json:"avgTimeOnPage"`
	ViewsLastDay    int            `json:"viewsLastDay"`
	ViewsLastWeek   int            `json:"viewsLastWeek"`
	ViewsLastMonth  int            `json:"viewsLastMonth"`
	EngagementRate  int            `json:"engagementRate"`
	TopReferrers    map[string]int `json:"topReferrers"`
	DeviceBreakdown map[string]int `json:"deviceBreakdown"`
	LastViewed      time.Time      `json:"lastViewed,omitzero"`
}

// PerformanceSummary aggregates page-load samples over a trailing window.
type PerformanceSummary struct {
	TotalSamples  int `json:"totalSamples"`
	RecentSamples int `json:"recentSamples"`
	AvgLoadTime   int `json:"avgLoadTime"`
	AvgFCP        int `json:"avgFirstContentfulPaint"`
	AvgLCP        int `json:"avgLargestContentfulPaint"`
}

// TitleLookup resolves the authoritative title for a document. The content
// store provides one; without it the aggregator falls back to the slug.
type TitleLookup func(ctx context.Context, t content.Type, slug string) (string, bool)

// Aggregator computes metrics on demand from the event log.
type Aggregator struct {
	log    *eventlog.Log
	titles TitleLookup
	logger *slog.Logger
	now    func() time.Time
}

// NewAggregator creates an Aggregator. titles may be nil.
func NewAggregator(log *eventlog.Log, titles TitleLookup) *Aggregator {
	return &Aggregator{
		log:    log,
		titles: titles,
		logger: logger.WithComponent("analytics-aggregator"),
		now:    time.Now,
	}
}

// MetricsFor computes the metrics for one document from its view events.
func (a *Aggregator) MetricsFor(ctx context.Context, t content.Type, slug string, title string) ContentMetrics {
	return a.compute(t, slug, title, a.log.ReadViews(ctx, t, slug))
}

func (a *Aggregator) compute(t content.Type, slug string, title string, views []eventlog.ViewEvent) ContentMetrics {
	now := a.now()
	dayAgo := now.Add(-24 * time.Hour)
	weekAgo := now.Add(-7 * 24 * time.Hour)
	monthAgo := now.Add(-30 * 24 * time.Hour)

	m := ContentMetrics{
		Slug:            slug,
		ContentType:     t,
		Title:           title,
		Views:           len(views),
		TopReferrers:    make(map[string]int),
		DeviceBreakdown: make(map[string]int),
	}

	var readingTime, scrollDepth, timeOnPage, engaged int
	for _, v := range views {
		if v.Timestamp.After(dayAgo) {
			m.ViewsLastDay++
		}
		if v.Timestamp.After(weekAgo) {
			m.ViewsLastWeek++
		}
		if v.Timestamp.After(monthAgo) {
			m.ViewsLastMonth++
		}
		readingTime += v.ReadingTime
		scrollDepth += v.ScrollDepth
		timeOnPage += v.TimeOnPage
		if v.ScrollDepth > engagedScrollDepth && v.TimeOnPage > engagedTimeOnPage {
			engaged++
		}
		if v.Source != "" {
			m.TopReferrers[v.Source]++
		}
		device := v.Device
		if device == "" {
			device = eventlog.DeviceUnknown
		}
		m.DeviceBreakdown[string(device)]++
	}

	if len(views) > 0 {
		m.AvgReadingTime = roundDiv(readingTime, len(views))
		m.AvgScrollDepth = roundDiv(scrollDepth, len(views))
		m.AvgTimeOnPage = roundDiv(timeOnPage, len(views))
		m.EngagementRate = int(math.Round(float64(engaged) / float64(len(views)) * 100))
		m.LastViewed = views[len(views)-1].Timestamp
	}
	return m
}

// AllMetrics groups the full view log by (type, slug) and computes metrics
// for each group in a deterministic order. Titles come from the TitleLookup
// when available; the slug stands in only for documents that no longer
// exist.
func (a *Aggregator) AllMetrics(ctx context.Context) []ContentMetrics {
	groups := make(map[string][]eventlog.ViewEvent)
	var order []string
	for _, view := range a.log.ReadAllViews(ctx) {
		key := string(view.ContentType) + ":" + view.Slug
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], view)
	}
	sort.Strings(order)

	out := make([]ContentMetrics, 0, len(groups))
	for _, key := range order {
		views := groups[key]
		t := views[0].ContentType
		slug := views[0].Slug
		title := slug
		if a.titles != nil {
			if resolved, ok := a.titles(ctx, t, slug); ok {
				title = resolved
			}
		}
		out = append(out, a.compute(t, slug, title, views))
	}
	return out
}

// TopContent returns documents ordered by lifetime views, descending.
func (a *Aggregator) TopContent(ctx context.Context, limit int) []ContentMetrics {
	if limit <= 0 {
		limit = 10
	}
	all := a.AllMetrics(ctx)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Views > all[j].Views
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// TrendingContent returns documents with at least one view in the trailing
// week, ordered by last-week views descending. Lifetime views do not count.
func (a *Aggregator) TrendingContent(ctx context.Context, limit int) []ContentMetrics {
	if limit <= 0 {
		limit = 10
	}
	var trending []ContentMetrics
	for _, m := range a.AllMetrics(ctx) {
		if m.ViewsLastWeek > 0 {
			trending = append(trending, m)
		}
	}
	sort.SliceStable(trending, func(i, j int) bool {
		return trending[i].ViewsLastWeek > trending[j].ViewsLastWeek
	})
	if len(trending) > limit {
		trending = trending[:limit]
	}
	return trending
}

// Summary computes the performance summary over the trailing windowDays
// days. All averages are 0 when the window is empty.
func (a *Aggregator) Summary(ctx context.Context, windowDays int) PerformanceSummary {
	if windowDays <= 0 {
		windowDays = 1
	}
	recent := a.log.ReadPerformance(ctx, a.now().Add(-time.Duration(windowDays)*24*time.Hour))

	s := PerformanceSummary{
		TotalSamples:  a.log.CountPerformance(ctx),
		RecentSamples: len(recent),
	}
	if len(recent) == 0 {
		return s
	}
	var loadTime, fcp, lcp float64
	for _, sample := range recent {
		loadTime += sample.LoadTime
		fcp += sample.FCP
		lcp += sample.LCP
	}
	n := float64(len(recent))
	s.AvgLoadTime = int(math.Round(loadTime / n))
	s.AvgFCP = int(math.Round(fcp / n))
	s.AvgLCP = int(math.Round(lcp / n))
	return s
}

func roundDiv(sum, n int) int {
	return int(math.Round(float64(sum) / float64(n)))
}

package search

import (
	"strings"

	"github.com/geoaziz/contentcore/internal/content"
)

// Field weights for relevance scoring. The raw score is normalised by
// 2*maxFieldScore and clamped to 1, so an exact title match alone lands at
// 0.5 and stacking field matches saturates the score.
const maxFieldScore = 5.0

// relevance scores how well a document matches the query, in [0,1]. An
// empty query matches everything with relevance 1, which turns a search
// into a pure filter pass.
func relevance(doc content.Document, query string) float64 {
	if query == "" {
		return 1
	}
	q := strings.ToLower(query)
	score := 0.0

	title := strings.ToLower(doc.Title)
	switch {
	case title != "" && title == q:
		score += maxFieldScore
	case title != "" && strings.Contains(title, q):
		score += maxFieldScore * 0.8
	}

	if summary := strings.ToLower(doc.SummaryText()); summary != "" && strings.Contains(summary, q) {
		score += maxFieldScore * 0.5
	}

	if anyContains(doc.Tags, q) || anyContains(doc.Tech, q) {
		score += maxFieldScore * 0.6
	}

	if anyContains(doc.Keywords, q) {
		score += maxFieldScore * 0.4
	}

	normalized := score / (maxFieldScore * 2)
	if normalized > 1 {
		normalized = 1
	}
	return normalized
}

func anyContains(values []string, q string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

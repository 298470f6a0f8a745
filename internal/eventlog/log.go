package eventlog

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/geoaziz/contentcore/pkg/logger"
	"github.com/geoaziz/contentcore/pkg/metrics"

	"github.com/geoaziz/contentcore/internal/content"
	"github.com/geoaziz/contentcore/internal/storage"
)

const (
	viewStream        = "views"
	performanceStream = "performance"
)

// Log is the append-only store of view events and performance samples.
// Records are one self-describing JSON document per line, so a single
// corrupt record can be skipped without discarding the rest of the stream.
type Log struct {
	medium  storage.Medium
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
	mirror  *Forwarder

	appendMu sync.Mutex
}

// NewLog creates a Log over the given medium. m may be nil.
func NewLog(medium storage.Medium, m *metrics.Metrics) *Log {
	return &Log{
		medium:  medium,
		metrics: m,
		logger:  logger.WithComponent("event-log"),
		now:     time.Now,
	}
}

// SetMirror attaches a Forwarder that receives a copy of every successfully
// validated event, for publishing to downstream consumers.
func (l *Log) SetMirror(f *Forwarder) {
	l.mirror = f
}

// RecordView appends one view event. Malformed input and write failures are
// logged and swallowed, never surfaced to the caller.
func (l *Log) RecordView(ctx context.Context, view ViewEvent) {
	if view.Slug == "" || !view.ContentType.Valid() {
		l.logger.Warn("dropping malformed view event",
			"slug", view.Slug,
			"content_type", view.ContentType,
		)
		l.countDropped(viewStream)
		return
	}
	if view.Timestamp.IsZero() {
		view.Timestamp = l.now().UTC()
	}
	l.append(ctx, viewStream, view)
	if l.mirror != nil {
		l.mirror.Forward(view)
	}
}

// RecordPerformance appends one performance sample, best effort.
func (l *Log) RecordPerformance(ctx context.Context, sample PerformanceSample) {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = l.now().UTC()
	}
	l.append(ctx, performanceStream, sample)
	if l.mirror != nil {
		l.mirror.Forward(sample)
	}
}

func (l *Log) append(ctx context.Context, stream string, record any) {
	line, err := json.Marshal(record)
	if err != nil {
		l.logger.Warn("dropping unserializable event", "stream", stream, "error", err)
		l.countDropped(stream)
		return
	}
	l.appendMu.Lock()
	err = l.medium.AppendLine(ctx, stream, line)
	l.appendMu.Unlock()
	if err != nil {
		l.logger.Error("failed to append event", "stream", stream, "error", err)
		l.countDropped(stream)
		return
	}
	if l.metrics != nil {
		l.metrics.EventsAppendedTotal.WithLabelValues(stream).Inc()
	}
}

// ReadViews returns all view events for the given document, oldest first.
// Corrupt lines are skipped silently.
func (l *Log) ReadViews(ctx context.Context, t content.Type, slug string) []ViewEvent {
	var out []ViewEvent
	for _, view := range l.ReadAllViews(ctx) {
		if view.ContentType == t && view.Slug == slug {
			out = append(out, view)
		}
	}
	return out
}

// ReadAllViews returns every parsable view event in the log, oldest first.
func (l *Log) ReadAllViews(ctx context.Context) []ViewEvent {
	lines, err := l.medium.ReadLines(ctx, viewStream)
	if err != nil {
		l.logger.Error("reading view stream", "error", err)
		return nil
	}
	out := make([]ViewEvent, 0, len(lines))
	for _, line := range lines {
		var view ViewEvent
		if err := json.Unmarshal(line, &view); err != nil {
			continue
		}
		out = append(out, view)
	}
	return out
}

// ReadPerformance returns performance samples recorded after cutoff. A zero
// cutoff returns everything.
func (l *Log) ReadPerformance(ctx context.Context, cutoff time.Time) []PerformanceSample {
	lines, err := l.medium.ReadLines(ctx, performanceStream)
	if err != nil {
		l.logger.Error("reading performance stream", "error", err)
		return nil
	}
	var out []PerformanceSample
	for _, line := range lines {
		var sample PerformanceSample
		if err := json.Unmarshal(line, &sample); err != nil {
			continue
		}
		if sample.Timestamp.After(cutoff) {
			out = append(out, sample)
		}
	}
	return out
}

// CountPerformance returns the total number of parsable samples in the log.
func (l *Log) CountPerformance(ctx context.Context) int {
	lines, err := l.medium.ReadLines(ctx, performanceStream)
	if err != nil {
		l.logger.Error("reading performance stream", "error", err)
		return 0
	}
	count := 0
	for _, line := range lines {
		var sample PerformanceSample
		if err := json.Unmarshal(line, &sample); err != nil {
			continue
		}
		count++
	}
	return count
}

// Clear discards both streams. Testing only.
func (l *Log) Clear(ctx context.Context) {
	for _, stream := range []string{viewStream, performanceStream} {
		if err := l.medium.ClearStream(ctx, stream); err != nil {
			l.logger.Error("clearing stream", "stream", stream, "error", err)
		}
	}
}

func (l *Log) countDropped(stream string) {
	if l.metrics != nil {
		l.metrics.EventsDroppedTotal.WithLabelValues(stream).Inc()
	}
}

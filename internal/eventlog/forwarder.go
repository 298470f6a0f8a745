package eventlog

import (
	"context"
	"log/slog"

	"github.com/geoaziz/contentcore/pkg/kafka"
	"github.com/geoaziz/contentcore/pkg/logger"
)

// Forwarder mirrors recorded events to Kafka for downstream consumers
// (warehouse loads, external dashboards). It buffers through a channel so a
// slow broker never blocks the recording path; when the buffer is full the
// event is dropped with a warning, matching the log's availability-first
// policy.
type Forwarder struct {
	views   *kafka.Producer
	samples *kafka.Producer
	eventCh chan any
	logger  *slog.Logger
	done    chan struct{}
}

// NewForwarder creates a Forwarder routing view events and performance
// samples to their respective producers.
func NewForwarder(views, samples *kafka.Producer, bufferSize int) *Forwarder {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Forwarder{
		views:   views,
		samples: samples,
		eventCh: make(chan any, bufferSize),
		logger:  logger.WithComponent("event-forwarder"),
		done:    make(chan struct{}),
	}
}

// Start launches the publish loop. It drains buffered events on ctx
// cancellation before returning.
func (f *Forwarder) Start(ctx context.Context) {
	go func() {
		defer close(f.done)
		for {
			select {
			case event, ok := <-f.eventCh:
				if !ok {
					return
				}
				f.publish(ctx, event)
			case <-ctx.Done():
				f.drain()
				return
			}
		}
	}()
	f.logger.Info("event forwarder started", "buffer_size", cap(f.eventCh))
}

// Forward enqueues an event for mirroring. Never blocks.
func (f *Forwarder) Forward(event any) {
	select {
	case f.eventCh <- event:
	default:
		f.logger.Warn("event mirror dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the publish loop to finish.
func (f *Forwarder) Close() {
	close(f.eventCh)
	<-f.done
}

func (f *Forwarder) publish(ctx context.Context, event any) {
	var producer *kafka.Producer
	key := "event"
	switch e := event.(type) {
	case ViewEvent:
		producer = f.views
		key = string(e.ContentType) + ":" + e.Slug
	case PerformanceSample:
		producer = f.samples
		key = e.URL
	}
	if producer == nil {
		f.logger.Warn("no producer registered for event type")
		return
	}
	if err := producer.Publish(ctx, kafka.Event{Key: key, Value: event}); err != nil {
		f.logger.Error("failed to mirror event", "error", err)
	}
}

func (f *Forwarder) drain() {
	for {
		select {
		case event, ok := <-f.eventCh:
			if !ok {
				return
			}
			f.publish(context.Background(), event)
		default:
			return
		}
	}
}

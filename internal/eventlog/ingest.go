package eventlog

import (
	"context"

	"github.com/geoaziz/contentcore/pkg/kafka"
	"github.com/geoaziz/contentcore/pkg/logger"
)

// ViewHandler returns a Kafka message handler that appends remote view
// events to the log. Undecodable messages are logged and skipped, never
// retried: the stream must keep moving.
func ViewHandler(log *Log) kafka.MessageHandler {
	lg := logger.WithComponent("event-ingest")
	return func(ctx context.Context, key []byte, value []byte) error {
		view, err := kafka.DecodeJSON[ViewEvent](value)
		if err != nil {
			lg.Warn("skipping undecodable view event", "error", err)
			return nil
		}
		log.RecordView(ctx, view)
		return nil
	}
}

// PerformanceHandler returns a Kafka message handler that appends remote
// performance samples to the log.
func PerformanceHandler(log *Log) kafka.MessageHandler {
	lg := logger.WithComponent("event-ingest")
	return func(ctx context.Context, key []byte, value []byte) error {
		sample, err := kafka.DecodeJSON[PerformanceSample](value)
		if err != nil {
			lg.Warn("skipping undecodable performance sample", "error", err)
			return nil
		}
		log.RecordPerformance(ctx, sample)
		return nil
	}
}

// Package consumer reacts to index-complete events from Kafka by reloading
// the searcher's snapshot and dropping cached results that belong to the
// previous one.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kk0kc/oip/internal/indexer"
	"github.com/kk0kc/oip/pkg/kafka"
)

// Reloader swaps in a freshly loaded snapshot.
type Reloader interface {
	Reload(ctx context.Context) (*indexer.Snapshot, error)
}

// Invalidator drops cached query results.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// SnapshotConsumer wraps a Kafka consumer subscribed to the index-complete
// topic.
type SnapshotConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *SnapshotConsumer {
	return &SnapshotConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "snapshot-consumer"),
	}
}

// Start blocks until ctx is cancelled.
func (sc *SnapshotConsumer) Start(ctx context.Context) error {
	sc.logger.Info("snapshot consumer starting")
	return sc.consumer.Start(ctx)
}

// HandleIndexComplete returns a handler that reloads on every SnapshotEvent.
// Undecodable messages are logged and acknowledged so they are not redelivered.
// invalidator may be nil when no cache is configured.
func HandleIndexComplete(reloader Reloader, invalidator Invalidator) kafka.MessageHandler {
	logger := slog.Default().With("component", "snapshot-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[indexer.SnapshotEvent](value)
		if err != nil {
			logger.Error("failed to decode snapshot event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		logger.Info("index build announced",
			"build_id", event.BuildID,
			"documents", event.Documents,
			"lemmas", event.Lemmas,
		)
		snap, err := reloader.Reload(ctx)
		if err != nil {
			return fmt.Errorf("reloading for build %s: %w", event.BuildID, err)
		}
		if invalidator != nil {
			if err := invalidator.Invalidate(ctx); err != nil {
				logger.Warn("cache invalidation failed", "error", err)
			}
		}
		logger.Info("snapshot reloaded from event",
			"build_id", event.BuildID,
			"generation", snap.Generation,
		)
		return nil
	}
}

// HandleCacheInvalidate returns a handler that drops cached results on any
// message.
func HandleCacheInvalidate(invalidator Invalidator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		return invalidator.Invalidate(ctx)
	}
}

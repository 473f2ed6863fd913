// Package kafka carries snapshot notifications between the indexer and the
// searchers over segmentio/kafka-go. Events are JSON; consumers hand each
// message to a MessageHandler and commit once it has been dealt with.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kk0kc/oip/pkg/config"
	"github.com/kk0kc/oip/pkg/resilience"
)

const fetchBackoff = time.Second

// MessageHandler is a callback invoked for each Kafka message.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// messageReader is the part of *kafka.Reader the consume loop uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerOption func(*Consumer)

// WithRetry retries a failing handler with backoff before the message is
// dropped. Without it a handler gets a single attempt.
func WithRetry(cfg resilience.RetryConfig) ConsumerOption {
	return func(c *Consumer) { c.retry = &cfg }
}

type Consumer struct {
	reader  messageReader
	handler MessageHandler
	retry   *resilience.RetryConfig
	logger  *slog.Logger
}

// NewConsumer subscribes handler to topic. Every searcher replica must see
// every snapshot event, so group is normally unique per replica; an empty
// group falls back to cfg.ConsumerGroup. Only events published after the
// group first joins are delivered, since the snapshot is loaded at startup.
func NewConsumer(cfg config.KafkaConfig, topic, group string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	if group == "" {
		group = cfg.ConsumerGroup
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     group,
		MinBytes:    1,
		MaxBytes:    1e6,
		MaxWait:     time.Second,
		StartOffset: kafka.LastOffset,
	})
	c := newConsumer(r, handler, opts...)
	c.logger = c.logger.With("topic", topic, "group", group)
	return c
}

func newConsumer(r messageReader, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:  r,
		handler: handler,
		logger:  slog.Default().With("component", "kafka-consumer"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start consumes until ctx is cancelled, then closes the reader. A message
// whose handler still fails after retries is logged and committed so that a
// poison event cannot stall later snapshot announcements.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchBackoff):
			}
			continue
		}

		log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)
		log.Debug("message received", "key", string(msg.Key), "value_size", len(msg.Value))
		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("dropping message after handler failure", "error", err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Error("failed to commit message", "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	call := func(ctx context.Context) error {
		return c.handler(ctx, msg.Key, msg.Value)
	}
	if c.retry == nil {
		return call(ctx)
	}
	return resilience.Retry(ctx, "handle kafka message", *c.retry, call)
}

// Close closes the underlying reader. Start closes it on return as well.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}

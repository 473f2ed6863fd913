package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kk0kc/oip/pkg/resilience"
)

type payload struct {
	BuildID   string `json:"build_id"`
	Documents int    `json:"documents"`
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[payload]([]byte(`{"build_id":"b7","documents":12}`))
	require.NoError(t, err)
	assert.Equal(t, payload{BuildID: "b7", Documents: 12}, got)

	_, err = DecodeJSON[payload]([]byte(`[1,2`))
	assert.Error(t, err)
}

// fakeReader hands out queued messages, then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
	drained   chan struct{}
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{queue: msgs, drained: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	if len(r.queue) == 0 {
		select {
		case <-r.drained:
		default:
			close(r.drained)
		}
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func run(t *testing.T, c *Consumer, r *fakeReader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	select {
	case <-r.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("messages were not consumed")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestConsumerCommitsHandledMessages(t *testing.T) {
	r := newFakeReader(
		kafka.Message{Offset: 1, Key: []byte("a"), Value: []byte(`{}`)},
		kafka.Message{Offset: 2, Key: []byte("b"), Value: []byte(`{}`)},
	)
	var keys []string
	c := newConsumer(r, func(_ context.Context, key, _ []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	run(t, c, r)

	assert.Equal(t, []string{"a", "b"}, keys)
	assert.Equal(t, []int64{1, 2}, r.committed)
	assert.True(t, r.closed)
}

func TestConsumerRetriesThenDrops(t *testing.T) {
	r := newFakeReader(
		kafka.Message{Offset: 7, Value: []byte(`poison`)},
		kafka.Message{Offset: 8, Value: []byte(`ok`)},
	)
	attempts := map[string]int{}
	c := newConsumer(r, func(_ context.Context, _, value []byte) error {
		attempts[string(value)]++
		if string(value) == "poison" {
			return errors.New("reload failed")
		}
		return nil
	}, WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}))
	run(t, c, r)

	assert.Equal(t, 3, attempts["poison"])
	assert.Equal(t, 1, attempts["ok"])
	assert.Equal(t, []int64{7, 8}, r.committed, "a dropped message does not block the next one")
}

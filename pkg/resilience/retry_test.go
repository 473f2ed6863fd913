package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kk0kc/oip/pkg/config"
)

var fast = RetryConfig{MaxAttempts: 4, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestRetrySucceedsEventually(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "publish", fast, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("broker not ready")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), "publish", fast, func(ctx context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 4, calls)
}

func TestRetryStopsOnPermanent(t *testing.T) {
	bad := errors.New("bad payload")
	calls := 0
	err := Retry(context.Background(), "publish", fast, func(ctx context.Context) error {
		calls++
		return Permanent(bad)
	})
	assert.Equal(t, bad, err)
	assert.Equal(t, 1, calls)
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "publish", RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour}, func(ctx context.Context) error {
		return errors.New("down")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeDelayCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second}.withDefaults()
	assert.LessOrEqual(t, computeDelay(10, cfg), 3*time.Second)
}

func TestFromConfig(t *testing.T) {
	rc := FromConfig(config.RetryConfig{MaxAttempts: 7, InitialDelay: time.Second, MaxDelay: time.Minute})
	assert.Equal(t, 7, rc.MaxAttempts)
	assert.Equal(t, time.Minute, rc.MaxDelay)
}

package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"placement-workers/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		err  string
		want bool
	}{
		{"rpc error: code = Unavailable desc = connection refused", true},
		{"context deadline exceeded", true},
		{"rpc error: code = NotFound desc = job not found", false},
		{"permission denied", false},
	}
	for _, tt := range tests {
		t.Run(tt.err, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableZeebeError(stderrors.New(tt.err)))
		})
	}
}

func TestExecuteWithRetry(t *testing.T) {
	c := &Client{config: &ClientConfig{RetryConfig: &RetryConfig{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}}}

	t.Run("retries transient errors then succeeds", func(t *testing.T) {
		calls := 0
		got, err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
			calls++
			if calls < 3 {
				return nil, stderrors.New("unavailable")
			}
			return "ok", nil
		}, "topology")

		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry permanent errors", func(t *testing.T) {
		calls := 0
		_, err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
			calls++
			return nil, stderrors.New("already exists")
		}, "deploy")

		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, errors.ErrCodeWorkflowEngineFailed, errors.CodeOf(err))
		assert.False(t, errors.IsRetryable(err))
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		_, err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
			calls++
			return nil, stderrors.New("connection reset")
		}, "topology")

		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.True(t, errors.IsRetryable(err))
	})
}

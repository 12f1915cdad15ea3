package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sleepRecorder records requested delays without sleeping.
type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestPolicy_Success(t *testing.T) {
	rec := &sleepRecorder{}
	p := &Policy{MaxAttempts: 3, Delay: 5 * time.Second, Sleep: rec.sleep}

	attempts, err := p.Do(context.Background(), func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first try")
	assert.Empty(t, rec.delays)
}

func TestPolicy_EventualSuccess(t *testing.T) {
	rec := &sleepRecorder{}
	p := &Policy{MaxAttempts: 3, Delay: 5 * time.Second, Retryable: IsTimeout, Sleep: rec.sleep}

	calls := 0
	attempts, err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("post workflow: %w", timeoutErr{})
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, rec.delays)
}

func TestPolicy_AllAttemptsFail(t *testing.T) {
	rec := &sleepRecorder{}
	p := &Policy{MaxAttempts: 3, Delay: 5 * time.Second, Retryable: IsTimeout, Sleep: rec.sleep}

	calls := 0
	attempts, err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return context.DeadlineExceeded
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts, "should attempt exactly maxAttempts times")
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "should wrap the last error")
	assert.Len(t, rec.delays, 2, "no sleep after the final attempt")

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
}

func TestPolicy_NonRetryableStopsImmediately(t *testing.T) {
	rec := &sleepRecorder{}
	p := &Policy{MaxAttempts: 3, Delay: time.Second, Retryable: IsTimeout, Sleep: rec.sleep}

	expected := errors.New("connection refused")
	calls := 0
	attempts, err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return expected
	})
	assert.Equal(t, expected, err, "should return the original error")
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
}

func TestPolicy_NilRetryableRetriesEverything(t *testing.T) {
	rec := &sleepRecorder{}
	p := &Policy{MaxAttempts: 2, Delay: time.Millisecond, Sleep: rec.sleep}

	attempts, err := p.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("boom")
	})
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 2, attempts)
}

func TestPolicy_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Policy{MaxAttempts: 10, Delay: 10 * time.Millisecond}

	calls := 0
	_, err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		if calls == 2 {
			cancel() // Cancel after second attempt
		}
		return errors.New("error")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled, "should return context.Canceled")
	assert.LessOrEqual(t, calls, 2, "should stop when context is canceled")
}

func TestPolicy_DefaultSleepWaits(t *testing.T) {
	p := Fixed(2, 20*time.Millisecond, nil)

	start := time.Now()
	_, err := p.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("error")
	})
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestPolicy_InvalidMaxAttempts(t *testing.T) {
	for _, n := range []int{0, -1} {
		calls := 0
		attempts, err := (&Policy{MaxAttempts: n}).Do(context.Background(), func(ctx context.Context) error {
			calls++
			return nil
		})
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
		assert.Equal(t, 0, attempts)
		assert.Equal(t, 0, calls, "should not attempt with maxAttempts=%d", n)
	}
}

func TestIsTimeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), true},
		{"os deadline", os.ErrDeadlineExceeded, true},
		{"net timeout", timeoutErr{}, true},
		{"canceled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTimeout(tt.err))
		})
	}
}

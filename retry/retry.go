// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"
)

var (
	// ErrInvalidMaxAttempts is returned when MaxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrExhausted is wrapped by ExhaustedError once every attempt failed.
	ErrExhausted = errors.New("retry attempts exhausted")
)

// ExhaustedError is returned when all attempts failed with retryable errors.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrExhausted, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.Last}
}

// Policy is a bounded retry with a fixed delay between attempts.
type Policy struct {
	// MaxAttempts counts the first try.
	MaxAttempts int

	// Delay is slept between attempts, never after the last one.
	Delay time.Duration

	// Retryable decides whether an error earns another attempt.
	// A nil Retryable retries every error.
	Retryable func(error) bool

	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Fixed returns a policy with a constant delay.
func Fixed(maxAttempts int, delay time.Duration, retryable func(error) bool) *Policy {
	return &Policy{
		MaxAttempts: maxAttempts,
		Delay:       delay,
		Retryable:   retryable,
	}
}

// Do runs op until it succeeds, fails with a non-retryable error, or
// MaxAttempts is reached. It returns the number of attempts made.
// Non-retryable errors are returned unchanged; exhaustion is reported
// as an *ExhaustedError wrapping the last error.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	if p.MaxAttempts <= 0 {
		return 0, ErrInvalidMaxAttempts
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		// Check context before attempting
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 1 {
				logger.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return attempt, nil
		}

		if p.Retryable != nil && !p.Retryable(lastErr) {
			return attempt, lastErr
		}

		// Don't sleep after the last attempt
		if attempt == p.MaxAttempts {
			break
		}

		logger.Warn("operation failed, will retry",
			"attempt", attempt, "maxAttempts", p.MaxAttempts, "delay", p.Delay, "err", lastErr)

		if err := sleep(ctx, p.Delay); err != nil {
			return attempt, err
		}
	}

	return p.MaxAttempts, &ExhaustedError{Attempts: p.MaxAttempts, Last: lastErr}
}

// sleepContext sleeps for d unless ctx ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsTimeout reports whether err is a transport or deadline timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

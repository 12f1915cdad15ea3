// Package retry provides a small bounded-retry policy used around remote calls.
//
// A Policy tries an operation up to MaxAttempts times, sleeping a fixed Delay
// between attempts, and only retries errors accepted by its Retryable
// predicate. The sleep function is injectable so callers and tests can
// observe the delays without waiting on a wall clock.
package retry

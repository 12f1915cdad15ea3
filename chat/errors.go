package chat

import "errors"

var (
	// ErrStreamerRequired is returned when no upstream streamer is provided.
	ErrStreamerRequired = errors.New("streamer required")

	// ErrStoreRequired is returned when no conversation store is provided.
	ErrStoreRequired = errors.New("conversation store required")

	// ErrAlreadyConsumed is yielded when a Send iterator is ranged over twice.
	ErrAlreadyConsumed = errors.New("chat response already consumed")

	// ErrIncomplete is returned by Collect when the stream ended before the
	// answer was finalized.
	ErrIncomplete = errors.New("chat stream ended before message_end")
)

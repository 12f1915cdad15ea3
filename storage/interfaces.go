package storage

import (
	"context"

	"github.com/poiesic/plantdesk/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// ConversationRepository stores chat conversations and their turns.
type ConversationRepository interface {
	Repository

	// CreateConversation creates an empty conversation with a fresh uuid and
	// places it at the head of the recent list.
	CreateConversation(ctx context.Context) (*core.Conversation, error)

	// EnsureConversation returns the conversation with the given id, or a new
	// one when id is empty or unknown.
	EnsureConversation(ctx context.Context, id string) (*core.Conversation, error)

	// GetConversation retrieves a conversation with its turns.
	// Returns ErrNotFound if the conversation doesn't exist.
	GetConversation(ctx context.Context, id string) (*core.Conversation, error)

	// AppendTurn validates and appends a turn. Turns are never modified.
	// Returns ErrNotFound if the conversation doesn't exist.
	AppendTurn(ctx context.Context, id string, turn core.ConversationTurn) error

	// Turns returns the turns of a conversation in append order.
	Turns(ctx context.Context, id string) ([]core.ConversationTurn, error)

	// SetUpstreamConversationID caches the remote conversation identifier.
	SetUpstreamConversationID(ctx context.Context, id, upstreamID string) error

	// UpstreamConversationID returns the cached remote identifier, or "".
	UpstreamConversationID(ctx context.Context, id string) (string, error)

	// RecentConversations returns up to limit conversations with their turns,
	// most recent first.
	RecentConversations(ctx context.Context, limit int) ([]*core.Conversation, error)

	// DeleteConversation removes a conversation and everything attached to it.
	// Returns ErrNotFound if the conversation doesn't exist.
	DeleteConversation(ctx context.Context, id string) error

	// Current returns the selected conversation, creating one if nothing is
	// selected or the selection no longer exists.
	Current(ctx context.Context) (*core.Conversation, error)

	// SetCurrent selects a conversation.
	// Returns ErrNotFound if the conversation doesn't exist.
	SetCurrent(ctx context.Context, id string) error
}

// IngestHistoryRepository records successful document registrations.
type IngestHistoryRepository interface {
	Repository

	// RecordIngest appends a history record. A zero At is set to now.
	RecordIngest(ctx context.Context, record *core.IngestRecord) error

	// IngestHistory returns up to limit records, most recent first.
	// An empty datasetID returns records for all datasets.
	IngestHistory(ctx context.Context, datasetID string, limit int) ([]*core.IngestRecord, error)

	// SeenContent reports whether content with this id was ingested before.
	SeenContent(ctx context.Context, id core.ID) (bool, error)
}

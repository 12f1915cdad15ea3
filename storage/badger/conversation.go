package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/plantdesk/core"
	"github.com/poiesic/plantdesk/storage"
)

// ConversationRepository implements storage.ConversationRepository for BadgerDB.
type ConversationRepository struct {
	backend *Backend
	turnSeq *badger.Sequence
	rankSeq *badger.Sequence
	now     func() time.Time
}

var _ storage.ConversationRepository = (*ConversationRepository)(nil)

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(backend *Backend) (*ConversationRepository, error) {
	turnSeq, err := backend.GetSequence(turnSeqKey)
	if err != nil {
		return nil, err
	}
	rankSeq, err := backend.GetSequence(recentSeqKey)
	if err != nil {
		turnSeq.Release()
		return nil, err
	}

	return &ConversationRepository{
		backend: backend,
		turnSeq: turnSeq,
		rankSeq: rankSeq,
		now:     time.Now,
	}, nil
}

// Close releases the sequences.
func (r *ConversationRepository) Close() error {
	return errors.Join(r.turnSeq.Release(), r.rankSeq.Release())
}

// WithTransaction delegates to the backend.
func (r *ConversationRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// CreateConversation creates a conversation, puts it at the head of the
// recent list and selects it.
func (r *ConversationRepository) CreateConversation(ctx context.Context) (*core.Conversation, error) {
	var conversation *core.Conversation
	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		var err error
		conversation, err = r.create(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

func (r *ConversationRepository) create(tx *badger.Txn) (*core.Conversation, error) {
	conversation := &core.Conversation{
		ID:        uuid.NewString(),
		Title:     core.DefaultConversationTitle,
		CreatedAt: r.now().UTC(),
	}

	rank, err := r.rankSeq.Next()
	if err != nil {
		return nil, err
	}

	if err := tx.Set(makeConversationKey(conversation.ID), storage.MarshalConversation(conversation)); err != nil {
		return nil, err
	}
	if err := tx.Set(makeRankKey(conversation.ID), appendUint64(nil, rank)); err != nil {
		return nil, err
	}
	if err := tx.Set(makeRecentKey(rank), []byte(conversation.ID)); err != nil {
		return nil, err
	}
	if err := tx.Set([]byte(currentConversationKey), []byte(conversation.ID)); err != nil {
		return nil, err
	}
	return conversation, nil
}

// EnsureConversation returns the conversation with the given id. An empty or
// unknown id yields a newly created, selected conversation.
func (r *ConversationRepository) EnsureConversation(ctx context.Context, id string) (*core.Conversation, error) {
	if id != "" {
		conversation, err := r.GetConversation(ctx, id)
		if err == nil {
			return conversation, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}
	return r.CreateConversation(ctx)
}

// GetConversation retrieves a conversation with its turns.
func (r *ConversationRepository) GetConversation(ctx context.Context, id string) (*core.Conversation, error) {
	var conversation *core.Conversation
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		var err error
		conversation, err = readConversation(tx, id)
		if err != nil {
			return err
		}
		conversation.Turns, err = readTurns(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

// AppendTurn validates and appends a turn.
func (r *ConversationRepository) AppendTurn(ctx context.Context, id string, turn core.ConversationTurn) error {
	if err := core.ValidateTurn(turn); err != nil {
		return err
	}
	value := storage.MarshalTurn(turn)

	return r.backend.update(ctx, func(tx *badger.Txn) error {
		if _, err := readConversation(tx, id); err != nil {
			return err
		}
		seq, err := r.turnSeq.Next()
		if err != nil {
			return err
		}
		return tx.Set(makeTurnKey(id, seq), value)
	})
}

// Turns returns the turns of a conversation in append order.
func (r *ConversationRepository) Turns(ctx context.Context, id string) ([]core.ConversationTurn, error) {
	var turns []core.ConversationTurn
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		if _, err := readConversation(tx, id); err != nil {
			return err
		}
		var err error
		turns, err = readTurns(tx, id)
		return err
	})
	return turns, err
}

// SetUpstreamConversationID caches the remote conversation identifier.
func (r *ConversationRepository) SetUpstreamConversationID(ctx context.Context, id, upstreamID string) error {
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		conversation, err := readConversation(tx, id)
		if err != nil {
			return err
		}
		if conversation.UpstreamConversationID == upstreamID {
			return nil
		}
		conversation.UpstreamConversationID = upstreamID
		return tx.Set(makeConversationKey(id), storage.MarshalConversation(conversation))
	})
}

// UpstreamConversationID returns the cached remote identifier, or "".
func (r *ConversationRepository) UpstreamConversationID(ctx context.Context, id string) (string, error) {
	var upstreamID string
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		conversation, err := readConversation(tx, id)
		if err != nil {
			return err
		}
		upstreamID = conversation.UpstreamConversationID
		return nil
	})
	return upstreamID, err
}

// RecentConversations returns up to limit conversations, most recent first.
func (r *ConversationRepository) RecentConversations(ctx context.Context, limit int) ([]*core.Conversation, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.Conversation
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		ids, err := recentIDs(tx, limit)
		if err != nil {
			return err
		}
		for _, id := range ids {
			conversation, err := readConversation(tx, id)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			conversation.Turns, err = readTurns(tx, id)
			if err != nil {
				return err
			}
			results = append(results, conversation)
		}
		return nil
	})
	return results, err
}

// DeleteConversation removes a conversation, its turns, its cached upstream
// id and its recent-list entry. Deleting the selected conversation selects
// the most recent remaining one, or a new one when none remain.
func (r *ConversationRepository) DeleteConversation(ctx context.Context, id string) error {
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		if _, err := readConversation(tx, id); err != nil {
			return err
		}

		rankItem, err := tx.Get(makeRankKey(id))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err == nil {
			rank, err := rankItem.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := tx.Delete(append([]byte(recentPrefix+":"), rank...)); err != nil {
				return err
			}
		}

		turnKeys, err := collectKeys(tx, makeTurnPrefix(id))
		if err != nil {
			return err
		}
		for _, key := range turnKeys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		if err := tx.Delete(makeRankKey(id)); err != nil {
			return err
		}
		if err := tx.Delete(makeConversationKey(id)); err != nil {
			return err
		}

		current, err := readCurrentID(tx)
		if err != nil {
			return err
		}
		if current != id {
			return nil
		}
		next, err := recentIDs(tx, 1)
		if err != nil {
			return err
		}
		if len(next) > 0 {
			return tx.Set([]byte(currentConversationKey), []byte(next[0]))
		}
		_, err = r.create(tx)
		return err
	})
}

// Current returns the selected conversation. With no valid selection the most
// recent conversation is selected, or a new one is created.
func (r *ConversationRepository) Current(ctx context.Context) (*core.Conversation, error) {
	var conversation *core.Conversation
	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		id, err := readCurrentID(tx)
		if err != nil {
			return err
		}
		if id != "" {
			conversation, err = readConversation(tx, id)
			if err == nil {
				conversation.Turns, err = readTurns(tx, id)
				return err
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
		}

		recent, err := recentIDs(tx, 1)
		if err != nil {
			return err
		}
		if len(recent) == 0 {
			conversation, err = r.create(tx)
			return err
		}
		if err := tx.Set([]byte(currentConversationKey), []byte(recent[0])); err != nil {
			return err
		}
		conversation, err = readConversation(tx, recent[0])
		if err != nil {
			return err
		}
		conversation.Turns, err = readTurns(tx, recent[0])
		return err
	})
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

// SetCurrent selects a conversation.
func (r *ConversationRepository) SetCurrent(ctx context.Context, id string) error {
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		if _, err := readConversation(tx, id); err != nil {
			return err
		}
		return tx.Set([]byte(currentConversationKey), []byte(id))
	})
}

// readConversation reads conversation metadata without turns.
func readConversation(tx *badger.Txn, id string) (*core.Conversation, error) {
	item, err := tx.Get(makeConversationKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var conversation *core.Conversation
	err = item.Value(func(val []byte) error {
		var err error
		conversation, err = storage.UnmarshalConversation(val)
		return err
	})
	return conversation, err
}

func readTurns(tx *badger.Txn, id string) ([]core.ConversationTurn, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeTurnPrefix(id)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	turns := []core.ConversationTurn{}
	for iter.Rewind(); iter.Valid(); iter.Next() {
		var turn core.ConversationTurn
		err := iter.Item().Value(func(val []byte) error {
			var err error
			turn, err = storage.UnmarshalTurn(val)
			return err
		})
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// recentIDs walks the recent list from the newest entry.
func recentIDs(tx *badger.Txn, limit int) ([]string, error) {
	prefix := []byte(recentPrefix + ":")
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var ids []string
	for iter.Seek(seekLast(prefix)); iter.Valid() && len(ids) < limit; iter.Next() {
		value, err := iter.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		ids = append(ids, string(value))
	}
	return ids, nil
}

func readCurrentID(tx *badger.Txn) (string, error) {
	item, err := tx.Get([]byte(currentConversationKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	value, err := item.ValueCopy(nil)
	return string(value), err
}

func collectKeys(tx *badger.Txn, prefix []byte) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var keys [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	return keys, nil
}

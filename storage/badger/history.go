package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/plantdesk/core"
	"github.com/poiesic/plantdesk/storage"
)

// IngestHistoryRepository implements storage.IngestHistoryRepository for BadgerDB.
type IngestHistoryRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.IngestHistoryRepository = (*IngestHistoryRepository)(nil)

// NewIngestHistoryRepository creates a new IngestHistoryRepository.
func NewIngestHistoryRepository(backend *Backend) (*IngestHistoryRepository, error) {
	idSeq, err := backend.GetSequence(ingestSeqKey)
	if err != nil {
		return nil, err
	}
	return &IngestHistoryRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *IngestHistoryRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *IngestHistoryRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// RecordIngest appends a history record and marks its content as seen.
func (r *IngestHistoryRepository) RecordIngest(ctx context.Context, record *core.IngestRecord) error {
	if record.At.IsZero() {
		record.At = time.Now().UTC()
	}
	value := storage.MarshalIngestRecord(record)

	return r.backend.update(ctx, func(tx *badger.Txn) error {
		seq, err := r.idSeq.Next()
		if err != nil {
			return err
		}
		if err := tx.Set(makeIngestKey(record.At.UnixMicro(), seq), value); err != nil {
			return err
		}
		return tx.Set(makeIngestContentKey(record.ContentID), []byte(record.DatasetID))
	})
}

// IngestHistory returns up to limit records, most recent first.
func (r *IngestHistoryRepository) IngestHistory(ctx context.Context, datasetID string, limit int) ([]*core.IngestRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.IngestRecord
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		prefix := []byte(ingestPrefix + ":")
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(seekLast(prefix)); iter.Valid() && len(results) < limit; iter.Next() {
			var record *core.IngestRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalIngestRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if datasetID != "" && record.DatasetID != datasetID {
				continue
			}
			results = append(results, record)
		}
		return nil
	})
	return results, err
}

// SeenContent reports whether content with this id was ingested before.
func (r *IngestHistoryRepository) SeenContent(ctx context.Context, id core.ID) (bool, error) {
	var seen bool
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		_, err := tx.Get(makeIngestContentKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		seen = true
		return nil
	})
	return seen, err
}

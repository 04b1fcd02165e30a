// Package badger provides a Badger-based implementation of the storage interface.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goclaw/willing/pkg/storage"
)

const recordPrefix = "willing:record:"

// Config holds configuration for BadgerStorage.
type Config struct {
	Path              string
	SyncWrites        bool
	ValueLogFileSize  int64
	NumVersionsToKeep int
}

// BadgerStorage implements the Storage interface using Badger.
type BadgerStorage struct {
	db     *badger.DB
	config *Config
}

// NewBadgerStorage creates a new Badger storage instance.
func NewBadgerStorage(config *Config) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(config.Path)
	opts.SyncWrites = config.SyncWrites
	if config.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = config.ValueLogFileSize
	}
	if config.NumVersionsToKeep > 0 {
		opts.NumVersionsToKeep = config.NumVersionsToKeep
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}

	return &BadgerStorage{
		db:     db,
		config: config,
	}, nil
}

func recordKey(conversationID string) []byte {
	return []byte(recordPrefix + conversationID)
}

func serialize(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &storage.SerializationError{
			Operation: "marshal",
			Cause:     err,
		}
	}
	return data, nil
}

func deserialize(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &storage.SerializationError{
			Operation: "unmarshal",
			Cause:     err,
		}
	}
	return nil
}

// SaveRecords upserts all records through a write batch. Records are
// validated and serialized before anything is written, but the batch may
// commit in several transactions, so a failed flush can leave a partial save.
func (b *BadgerStorage) SaveRecords(ctx context.Context, records []*storage.Record) error {
	now := time.Now().UTC()
	payloads := make(map[string][]byte, len(records))
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
		copied := *r
		copied.SavedAt = now
		data, err := serialize(&copied)
		if err != nil {
			return err
		}
		payloads[r.ConversationID] = data
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for id, data := range payloads {
		if err := wb.Set(recordKey(id), data); err != nil {
			return fmt.Errorf("badger: set %s: %w", id, err)
		}
	}
	return wb.Flush()
}

// LoadRecords scans every record key.
func (b *BadgerStorage) LoadRecords(ctx context.Context) ([]*storage.Record, error) {
	var records []*storage.Record

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var r storage.Record
			if err := it.Item().Value(func(val []byte) error {
				return deserialize(val, &r)
			}); err != nil {
				return err
			}
			records = append(records, &r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetRecord retrieves one record by conversation ID.
func (b *BadgerStorage) GetRecord(ctx context.Context, conversationID string) (*storage.Record, error) {
	var r storage.Record

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(conversationID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return &storage.NotFoundError{
					EntityType: "record",
					ID:         conversationID,
				}
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return deserialize(val, &r)
		})
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteRecord removes a record.
func (b *BadgerStorage) DeleteRecord(ctx context.Context, conversationID string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(conversationID))
	})
}

// Close closes the database.
func (b *BadgerStorage) Close() error {
	return b.db.Close()
}

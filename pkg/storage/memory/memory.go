// Package memory provides an in-memory implementation of the storage interface.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goclaw/willing/pkg/storage"
)

// MemoryStorage implements the Storage interface using an in-memory map.
// Nothing survives a restart; it is the default when snapshots are not needed.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string]*storage.Record
}

// NewMemoryStorage creates a new in-memory storage instance.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*storage.Record),
	}
}

// SaveRecords upserts records.
func (m *MemoryStorage) SaveRecords(ctx context.Context, records []*storage.Record) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		copied := *r
		copied.SavedAt = now
		m.records[r.ConversationID] = &copied
	}
	return nil
}

// LoadRecords returns copies of all records ordered by conversation ID.
func (m *MemoryStorage) LoadRecords(ctx context.Context) ([]*storage.Record, error) {
	m.mu.RLock()
	out := make([]*storage.Record, 0, len(m.records))
	for _, r := range m.records {
		copied := *r
		out = append(out, &copied)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ConversationID < out[j].ConversationID
	})
	return out, nil
}

// GetRecord returns a copy of one record.
func (m *MemoryStorage) GetRecord(ctx context.Context, conversationID string) (*storage.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[conversationID]
	if !ok {
		return nil, &storage.NotFoundError{EntityType: "record", ID: conversationID}
	}
	copied := *r
	return &copied, nil
}

// DeleteRecord removes a record.
func (m *MemoryStorage) DeleteRecord(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, conversationID)
	return nil
}

// Close is a no-op.
func (m *MemoryStorage) Close() error {
	return nil
}

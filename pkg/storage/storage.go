// Package storage provides durable snapshot storage for willingness records.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Storage persists willingness records across process restarts.
type Storage interface {
	// SaveRecords upserts the given records.
	SaveRecords(ctx context.Context, records []*Record) error

	// LoadRecords returns every stored record.
	LoadRecords(ctx context.Context) ([]*Record, error)

	// GetRecord returns one record or a *NotFoundError.
	GetRecord(ctx context.Context, conversationID string) (*Record, error)

	// DeleteRecord removes a record. Deleting an unknown record is not an error.
	DeleteRecord(ctx context.Context, conversationID string) error

	// Lifecycle
	Close() error
}

// Record is the persisted willingness state of a conversation.
type Record struct {
	ConversationID string    `json:"conversation_id"`
	Score          float64   `json:"score"`
	LastReplyAt    float64   `json:"last_reply_at"`
	SavedAt        time.Time `json:"saved_at"`
}

// Validate checks the record before it is written.
func (r *Record) Validate() error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if r.ConversationID == "" {
		return fmt.Errorf("record has empty conversation ID")
	}
	return nil
}

// NotFoundError indicates that the requested entity was not found.
type NotFoundError struct {
	EntityType string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.EntityType, e.ID)
}

// StorageUnavailableError indicates that the storage backend is unavailable.
type StorageUnavailableError struct {
	Cause error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %v", e.Cause)
}

func (e *StorageUnavailableError) Unwrap() error {
	return e.Cause
}

// SerializationError indicates a failure in data serialization/deserialization.
type SerializationError struct {
	Operation string
	Cause     error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error during %s: %v", e.Operation, e.Cause)
}

func (e *SerializationError) Unwrap() error {
	return e.Cause
}

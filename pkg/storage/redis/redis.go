// Package redis provides a Redis-based implementation of the storage interface.
// All records live in a single hash so several replicas can share snapshots.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/goclaw/willing/pkg/storage"
)

// Config holds configuration for RedisStorage.
type Config struct {
	// Address is the Redis server address.
	Address string

	// Password is the Redis password.
	Password string

	// DB is the Redis database number.
	DB int

	// KeyPrefix is prepended to the hash key.
	KeyPrefix string

	// DialTimeout bounds the initial ping.
	DialTimeout time.Duration
}

// DefaultConfig returns a Config for a local Redis.
func DefaultConfig() *Config {
	return &Config{
		Address:     "localhost:6379",
		KeyPrefix:   "willing:",
		DialTimeout: 5 * time.Second,
	}
}

// RedisStorage implements the Storage interface on a Redis hash.
type RedisStorage struct {
	client goredis.Cmdable
	closer io.Closer
	key    string
}

// NewRedisStorage dials Redis and verifies the connection with PING.
func NewRedisStorage(ctx context.Context, cfg *Config) (*RedisStorage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, &storage.StorageUnavailableError{Cause: err}
	}

	s, err := NewRedisStorageWithClient(client, cfg.KeyPrefix)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	s.closer = client
	return s, nil
}

// NewRedisStorageWithClient wraps an existing client. The caller keeps
// ownership of the client; Close does not close it.
func NewRedisStorageWithClient(client goredis.Cmdable, keyPrefix string) (*RedisStorage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if keyPrefix == "" {
		keyPrefix = "willing:"
	}
	return &RedisStorage{
		client: client,
		key:    keyPrefix + "records",
	}, nil
}

// SaveRecords upserts records as JSON values in the records hash.
func (s *RedisStorage) SaveRecords(ctx context.Context, records []*storage.Record) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	values := make([]interface{}, 0, len(records)*2)
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
		copied := *r
		copied.SavedAt = now
		data, err := json.Marshal(&copied)
		if err != nil {
			return &storage.SerializationError{Operation: "marshal", Cause: err}
		}
		values = append(values, r.ConversationID, string(data))
	}

	if err := s.client.HSet(ctx, s.key, values...).Err(); err != nil {
		return &storage.StorageUnavailableError{Cause: err}
	}
	return nil
}

// LoadRecords reads the whole records hash.
func (s *RedisStorage) LoadRecords(ctx context.Context) ([]*storage.Record, error) {
	all, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}

	records := make([]*storage.Record, 0, len(all))
	for id, raw := range all {
		var r storage.Record
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, &storage.SerializationError{Operation: "unmarshal " + id, Cause: err}
		}
		records = append(records, &r)
	}
	return records, nil
}

// GetRecord reads a single record.
func (s *RedisStorage) GetRecord(ctx context.Context, conversationID string) (*storage.Record, error) {
	raw, err := s.client.HGet(ctx, s.key, conversationID).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, &storage.NotFoundError{EntityType: "record", ID: conversationID}
		}
		return nil, &storage.StorageUnavailableError{Cause: err}
	}

	var r storage.Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, &storage.SerializationError{Operation: "unmarshal", Cause: err}
	}
	return &r, nil
}

// DeleteRecord removes a record from the hash.
func (s *RedisStorage) DeleteRecord(ctx context.Context, conversationID string) error {
	if err := s.client.HDel(ctx, s.key, conversationID).Err(); err != nil {
		return &storage.StorageUnavailableError{Cause: err}
	}
	return nil
}

// Close closes the client if this storage created it.
func (s *RedisStorage) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

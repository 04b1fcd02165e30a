package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StorageTestSuite defines a test suite that can be run against any Storage implementation.
type StorageTestSuite struct {
	NewStorage func(t *testing.T) Storage
}

// RunAllTests runs all storage tests against the provided storage implementation.
func (s *StorageTestSuite) RunAllTests(t *testing.T) {
	t.Run("SaveAndLoad", s.TestSaveAndLoad)
	t.Run("Upsert", s.TestUpsert)
	t.Run("GetRecord", s.TestGetRecord)
	t.Run("DeleteRecord", s.TestDeleteRecord)
	t.Run("InvalidRecord", s.TestInvalidRecord)
	t.Run("ConcurrentAccess", s.TestConcurrentAccess)
}

// TestSaveAndLoad round-trips a batch of records.
func (s *StorageTestSuite) TestSaveAndLoad(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()
	ctx := context.Background()

	records := []*Record{
		{ConversationID: "chat-1", Score: 0.5, LastReplyAt: 100},
		{ConversationID: "chat-2", Score: 2.75, LastReplyAt: 0},
		{ConversationID: "group:42", Score: 0, LastReplyAt: 1700000000.25},
	}
	require.NoError(t, store.SaveRecords(ctx, records))

	loaded, err := store.LoadRecords(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	byID := make(map[string]*Record, len(loaded))
	for _, r := range loaded {
		byID[r.ConversationID] = r
	}
	for _, want := range records {
		got, ok := byID[want.ConversationID]
		require.True(t, ok, "missing %s", want.ConversationID)
		assert.InDelta(t, want.Score, got.Score, 1e-9)
		assert.InDelta(t, want.LastReplyAt, got.LastReplyAt, 1e-6)
		assert.False(t, got.SavedAt.IsZero(), "SavedAt should be set")
	}
}

// TestUpsert checks that saving an existing record replaces it.
func (s *StorageTestSuite) TestUpsert(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.SaveRecords(ctx, []*Record{{ConversationID: "c", Score: 1}}))
	require.NoError(t, store.SaveRecords(ctx, []*Record{{ConversationID: "c", Score: 0.25, LastReplyAt: 9}}))

	loaded, err := store.LoadRecords(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.InDelta(t, 0.25, loaded[0].Score, 1e-9)
	assert.InDelta(t, 9, loaded[0].LastReplyAt, 1e-9)
}

// TestGetRecord checks point reads and the not-found error.
func (s *StorageTestSuite) TestGetRecord(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.SaveRecords(ctx, []*Record{{ConversationID: "c", Score: 1.5}}))

	got, err := store.GetRecord(ctx, "c")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, got.Score, 1e-9)

	_, err = store.GetRecord(ctx, "missing")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf), "expected NotFoundError, got %v", err)
	assert.Equal(t, "missing", nf.ID)
}

// TestDeleteRecord checks deletion, including unknown ids.
func (s *StorageTestSuite) TestDeleteRecord(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.SaveRecords(ctx, []*Record{
		{ConversationID: "a", Score: 1},
		{ConversationID: "b", Score: 2},
	}))
	require.NoError(t, store.DeleteRecord(ctx, "a"))
	require.NoError(t, store.DeleteRecord(ctx, "never-existed"))

	loaded, err := store.LoadRecords(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "b", loaded[0].ConversationID)
}

// TestInvalidRecord checks that records without an id are rejected.
func (s *StorageTestSuite) TestInvalidRecord(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	err := store.SaveRecords(context.Background(), []*Record{{Score: 1}})
	assert.Error(t, err)
}

// TestConcurrentAccess saves from many goroutines at once.
func (s *StorageTestSuite) TestConcurrentAccess(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- store.SaveRecords(ctx, []*Record{{
				ConversationID: fmt.Sprintf("conv-%d", i),
				Score:          float64(i) / 10,
			}})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	loaded, err := store.LoadRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 20)
}

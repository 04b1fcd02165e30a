package memory

import (
	"context"
	"testing"

	"github.com/goclaw/willing/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorageSuite(t *testing.T) {
	suite := &storage.StorageTestSuite{
		NewStorage: func(t *testing.T) storage.Storage {
			return NewMemoryStorage()
		},
	}
	suite.RunAllTests(t)
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	m := NewMemoryStorage()
	ctx := context.Background()

	rec := &storage.Record{ConversationID: "c", Score: 1}
	require.NoError(t, m.SaveRecords(ctx, []*storage.Record{rec}))

	rec.Score = 2.5
	got, err := m.GetRecord(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Score)

	got.Score = 0
	again, err := m.GetRecord(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 1.0, again.Score)
}

package willing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goclaw/willing/pkg/storage"
)

// DefaultSnapshotInterval is the period between two periodic snapshots.
const DefaultSnapshotInterval = 30 * time.Second

// SnapshotMetrics receives snapshot outcomes.
type SnapshotMetrics interface {
	RecordSnapshot(operation string, records int, duration time.Duration, err error)
}

// Snapshotter copies the store to a durable backend and back. The store stays
// the source of truth; a failed save never affects scoring.
type Snapshotter struct {
	store    *MemoryStore
	backend  storage.Storage
	interval time.Duration
	logger   Logger
	metrics  SnapshotMetrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// SnapshotOption configures a Snapshotter.
type SnapshotOption func(*Snapshotter)

// WithSnapshotInterval sets the periodic save interval.
func WithSnapshotInterval(d time.Duration) SnapshotOption {
	return func(s *Snapshotter) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSnapshotLogger sets the snapshot logger.
func WithSnapshotLogger(log Logger) SnapshotOption {
	return func(s *Snapshotter) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithSnapshotMetrics sets the snapshot metrics sink.
func WithSnapshotMetrics(m SnapshotMetrics) SnapshotOption {
	return func(s *Snapshotter) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewSnapshotter creates a Snapshotter for store backed by backend.
func NewSnapshotter(store *MemoryStore, backend storage.Storage, opts ...SnapshotOption) (*Snapshotter, error) {
	if store == nil {
		return nil, fmt.Errorf("willing: snapshot store cannot be nil")
	}
	if backend == nil {
		return nil, fmt.Errorf("willing: snapshot backend cannot be nil")
	}
	s := &Snapshotter{
		store:    store,
		backend:  backend,
		interval: DefaultSnapshotInterval,
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Restore loads every persisted record into the store.
func (s *Snapshotter) Restore(ctx context.Context) (int, error) {
	start := time.Now()
	stored, err := s.backend.LoadRecords(ctx)
	if err != nil {
		s.record("restore", 0, start, err)
		return 0, fmt.Errorf("willing: restore snapshot: %w", err)
	}

	records := make([]Record, 0, len(stored))
	for _, r := range stored {
		if r == nil {
			continue
		}
		records = append(records, Record{
			ConversationID: r.ConversationID,
			Score:          r.Score,
			LastReplyAt:    r.LastReplyAt,
		})
	}
	s.store.Restore(records)
	s.record("restore", len(records), start, nil)
	s.logger.Info("willingness snapshot restored", "records", len(records))
	return len(records), nil
}

// Save writes the current store contents to the backend.
func (s *Snapshotter) Save(ctx context.Context) (int, error) {
	start := time.Now()
	snap := s.store.Snapshot()
	if len(snap) == 0 {
		s.record("save", 0, start, nil)
		return 0, nil
	}

	records := make([]*storage.Record, 0, len(snap))
	for _, r := range snap {
		records = append(records, &storage.Record{
			ConversationID: r.ConversationID,
			Score:          r.Score,
			LastReplyAt:    r.LastReplyAt,
		})
	}
	if err := s.backend.SaveRecords(ctx, records); err != nil {
		s.record("save", 0, start, err)
		return 0, fmt.Errorf("willing: save snapshot: %w", err)
	}
	s.record("save", len(records), start, nil)
	return len(records), nil
}

// Start saves periodically until ctx is cancelled or Stop is called.
// Calling Start twice is a no-op.
func (s *Snapshotter) Start(parentCtx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(parentCtx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := s.Save(ctx); err != nil {
					s.logger.Warn("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}(s.done)
}

// Stop halts periodic saving and writes a final snapshot.
func (s *Snapshotter) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	n, err := s.Save(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("willingness snapshot saved", "records", n)
	return nil
}

func (s *Snapshotter) record(op string, n int, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordSnapshot(op, n, time.Since(start), err)
	}
}

package willing

import (
	"math"
	"sort"
	"sync"
)

// entry is the mutable state held for one conversation.
type entry struct {
	score       float64
	lastReplyAt float64
}

// MemoryStore is the lock-guarded willingness store. Safe for concurrent use.
// Entries are created on first write and never evicted.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
	}
}

// Get returns the score for id, or 0 if the conversation is unknown.
func (s *MemoryStore) Get(id string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e.score
	}
	return 0
}

// Set overwrites the score for id.
func (s *MemoryStore) Set(id string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(id).score = score
}

// LastReplyTime returns the last reply timestamp for id, or 0 if unknown.
func (s *MemoryStore) LastReplyTime(id string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e.lastReplyAt
	}
	return 0
}

// RecordReplyTime sets the last reply timestamp for id. Older timestamps are
// ignored so the reply clock never moves backwards.
func (s *MemoryStore) RecordReplyTime(id string, ts float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(id)
	if ts > e.lastReplyAt {
		e.lastReplyAt = ts
	}
}

// Update runs fn on the record for id under the store lock and stores the
// record fn returns. It is the read-modify-write primitive used by the manager.
func (s *MemoryStore) Update(id string, fn func(Record) Record) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entry(id)
	next := fn(Record{ConversationID: id, Score: e.score, LastReplyAt: e.lastReplyAt})
	e.score = next.Score
	if next.LastReplyAt > e.lastReplyAt {
		e.lastReplyAt = next.LastReplyAt
	}
	return Record{ConversationID: id, Score: e.score, LastReplyAt: e.lastReplyAt}
}

// DecayAll multiplies every score by factor, keeping it within the score bounds.
func (s *MemoryStore) DecayAll(factor float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		e.score = clampScore(e.score * factor)
	}
	return len(s.entries)
}

// Len returns the number of known conversations.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Snapshot returns a copy of all records ordered by conversation ID.
func (s *MemoryStore) Snapshot() []Record {
	s.mu.Lock()
	records := make([]Record, 0, len(s.entries))
	for id, e := range s.entries {
		records = append(records, Record{ConversationID: id, Score: e.score, LastReplyAt: e.lastReplyAt})
	}
	s.mu.Unlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].ConversationID < records[j].ConversationID
	})
	return records
}

// Restore loads records into the store, replacing existing entries with the
// same ID. Scores are clamped into the valid range.
func (s *MemoryStore) Restore(records []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if r.ConversationID == "" {
			continue
		}
		s.entries[r.ConversationID] = &entry{
			score:       clampScore(r.Score),
			lastReplyAt: r.LastReplyAt,
		}
	}
}

// entry returns the entry for id, creating it. Caller must hold s.mu.
func (s *MemoryStore) entry(id string) *entry {
	e, ok := s.entries[id]
	if !ok {
		e = &entry{}
		s.entries[id] = e
	}
	return e
}

// clampScore bounds v to [MinScore, MaxScore]. NaN maps to MinScore because
// min and max propagate it.
func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return MinScore
	}
	return min(max(v, MinScore), MaxScore)
}

package jobs

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps the most recent records in memory. When the limit is
// reached the oldest record is dropped.
type MemoryStore struct {
	mu      sync.RWMutex
	limit   int
	records map[string]*Record
	order   []string // oldest first
}

// NewMemoryStore creates a store holding at most limit records. A limit of
// zero or less means unbounded.
func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{
		limit:   limit,
		records: make(map[string]*Record),
	}
}

func (s *MemoryStore) Save(ctx context.Context, record *Record) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("record must have an ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := record.clone()
	if _, exists := s.records[record.ID]; exists {
		s.records[record.ID] = stored
		return nil
	}

	if s.limit > 0 && len(s.order) >= s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.records, oldest)
	}

	s.records[record.ID] = stored
	s.order = append(s.order, record.ID)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[id]
	if !exists {
		return nil, ErrNotFound
	}
	return record.clone(), nil
}

func (s *MemoryStore) Recent(ctx context.Context, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}

	records := make([]*Record, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(records) < limit; i-- {
		records = append(records, s.records[s.order[i]].clone())
	}
	return records, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.order)), nil
}

func (s *MemoryStore) Close() error {
	return nil
}

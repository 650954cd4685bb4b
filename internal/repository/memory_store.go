package repository

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps records in process. It backs DATABASE_DRIVER=memory and the service tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[Kind]map[string]*Record
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[Kind]map[string]*Record),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, kind Kind, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[kind][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (s *MemoryStore) List(ctx context.Context, kind Kind) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.records[kind]))
	for _, rec := range s.records[kind] {
		out = append(out, copyRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Put(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.records[rec.Kind]
	if !ok {
		bucket = make(map[string]*Record)
		s.records[rec.Kind] = bucket
	}

	ts := s.now()
	current, exists := bucket[rec.ID]
	switch {
	case rec.Version == 0 && exists:
		return ErrVersionConflict
	case rec.Version == 0:
		rec.CreatedAt = ts
	case !exists:
		return ErrNotFound
	case current.Version != rec.Version:
		return ErrVersionConflict
	default:
		rec.CreatedAt = current.CreatedAt
	}

	rec.Version++
	rec.UpdatedAt = ts
	bucket[rec.ID] = copyRecord(rec)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, kind Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[kind][id]; !ok {
		return ErrNotFound
	}
	delete(s.records[kind], id)
	return nil
}

func copyRecord(rec *Record) *Record {
	c := *rec
	c.Data = append([]byte(nil), rec.Data...)
	return &c
}

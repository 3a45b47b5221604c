package store

import (
	"context"
	"iter"
	"sync"
	"time"
)

// MemoryStore is the volatile in-process backend used in mock mode. Records
// are keyed by (collection, key); collections iterate in first-insertion
// order. Safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	order   []string
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memoryCollection),
	}
}

// Write stores a copy of fields, replacing any record at key.
func (s *MemoryStore) Write(_ context.Context, collection, key string, fields Fields, ts time.Time) error {
	rec := Record{Key: key, Fields: fields.Clone(), UpdatedAt: ts}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		c = &memoryCollection{records: make(map[string]Record)}
		s.collections[collection] = c
	}
	if _, exists := c.records[key]; !exists {
		c.order = append(c.order, key)
	}
	c.records[key] = rec
	return nil
}

// ReadOne returns a copy of the record at key.
func (s *MemoryStore) ReadOne(_ context.Context, collection, key string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return Record{}, false, nil
	}
	rec, ok := c.records[key]
	if !ok {
		return Record{}, false, nil
	}
	rec.Fields = rec.Fields.Clone()
	return rec, true, nil
}

// ReadMany yields matching records in insertion order. Each iteration takes
// a fresh snapshot of the collection, so the sequence is restartable and
// the callback may write to the store.
func (s *MemoryStore) ReadMany(ctx context.Context, collection string, filter Filter) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for _, rec := range s.snapshot(collection) {
			if err := ctx.Err(); err != nil {
				yield(Record{}, err)
				return
			}
			rec.Fields = rec.Fields.Clone()
			if !filter.Match(rec) {
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (s *MemoryStore) snapshot(collection string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil
	}
	out := make([]Record, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.records[key])
	}
	return out
}

// Len returns the number of records in collection
func (s *MemoryStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.collections[collection]; ok {
		return len(c.records)
	}
	return 0
}

// Close is a no-op
func (s *MemoryStore) Close(context.Context) error {
	return nil
}

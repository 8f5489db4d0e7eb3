package records

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// MemoryStore keeps records in process. Used by tests and RECORD_STORE=memory.
type MemoryStore struct {
	clock clockwork.Clock

	mu          sync.RWMutex
	collections map[string][]Record // insertion order
}

// Verify that MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store stamping records with clock
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		clock:       clock,
		collections: make(map[string][]Record),
	}
}

func (s *MemoryStore) Find(ctx context.Context, collection string, filter Filter) ([]Record, error) {
	if _, err := SchemaFor(collection); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, rec := range s.collections[collection] {
		if filter.Matches(rec) {
			out = append(out, clone(rec))
		}
	}
	return out, nil
}

func (s *MemoryStore) FindOne(ctx context.Context, collection string, filter Filter) (Record, error) {
	found, err := s.Find(ctx, collection, filter)
	if err != nil {
		return Record{}, err
	}
	if len(found) == 0 {
		return Record{}, fmt.Errorf("%s: %w", collection, ErrNotFound)
	}
	return found[0], nil
}

func (s *MemoryStore) Insert(ctx context.Context, collection string, data map[string]interface{}) (Record, error) {
	if err := validate(collection, data); err != nil {
		return Record{}, err
	}

	now := s.clock.Now().UTC()
	rec := Record{
		ID:         uuid.New(),
		Collection: collection,
		Data:       merge(nil, data),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], rec)
	return clone(rec), nil
}

func (s *MemoryStore) UpdateOne(ctx context.Context, collection string, filter Filter, patch map[string]interface{}) (Record, error) {
	if _, err := SchemaFor(collection); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.collections[collection]
	for i, rec := range recs {
		if !filter.Matches(rec) {
			continue
		}
		data := merge(rec.Data, patch)
		if err := validate(collection, data); err != nil {
			return Record{}, err
		}
		recs[i].Data = data
		recs[i].UpdatedAt = s.clock.Now().UTC()
		return clone(recs[i]), nil
	}
	return Record{}, fmt.Errorf("%s: %w", collection, ErrNotFound)
}

// UpdateMany applies patch to every match. Nothing changes if any merged record is invalid.
func (s *MemoryStore) UpdateMany(ctx context.Context, collection string, filter Filter, patch map[string]interface{}) (int, error) {
	if _, err := SchemaFor(collection); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.collections[collection]
	updates := make(map[int]map[string]interface{})
	for i, rec := range recs {
		if !filter.Matches(rec) {
			continue
		}
		data := merge(rec.Data, patch)
		if err := validate(collection, data); err != nil {
			return 0, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		updates[i] = data
	}

	now := s.clock.Now().UTC()
	for i, data := range updates {
		recs[i].Data = data
		recs[i].UpdatedAt = now
	}
	return len(updates), nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection string, filter Filter) (int, error) {
	if _, err := SchemaFor(collection); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.collections[collection]
	kept := recs[:0]
	for _, rec := range recs {
		if !filter.Matches(rec) {
			kept = append(kept, rec)
		}
	}
	deleted := len(recs) - len(kept)
	s.collections[collection] = kept
	return deleted, nil
}

func clone(rec Record) Record {
	rec.Data = merge(nil, rec.Data)
	return rec
}

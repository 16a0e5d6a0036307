package recordstore

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore keeps records in process. Insertion order is preserved like
// rows in a sheet.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]memoryRow
}

type memoryRow struct {
	id  string
	raw json.RawMessage
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]memoryRow)}
}

func (s *MemoryStore) List(ctx context.Context, entity string) ([]json.RawMessage, error) {
	if err := validEntity(entity); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.records[entity]
	out := make([]json.RawMessage, len(rows))
	for i, row := range rows {
		out[i] = append(json.RawMessage(nil), row.raw...)
	}
	return out, nil
}

func (s *MemoryStore) Save(ctx context.Context, entity string, record interface{}) error {
	if err := validEntity(entity); err != nil {
		return err
	}
	raw, id, err := marshalRecord(record)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.records[entity]
	for i := range rows {
		if rows[i].id == id {
			rows[i].raw = raw
			return nil
		}
	}
	s.records[entity] = append(rows, memoryRow{id: id, raw: raw})
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, entity, id string) error {
	if err := validEntity(entity); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.records[entity]
	for i := range rows {
		if rows[i].id == id {
			s.records[entity] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

package store

import (
	"context"
	"sync"

	"github.com/shalu066900/pykms/internal/wire"
)

// MemoryStore is the default ClientStore implementation: an in-process
// map guarded by a mutex, safe for the concurrent callers the interface
// requires. Used when no durable backend is configured, and by tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[wire.GUID]ClientRecord
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[wire.GUID]ClientRecord)}
}

func (s *MemoryStore) Get(_ context.Context, clientMachineID wire.GUID) (*ClientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[clientMachineID]
	if !ok {
		return nil, ErrNotFound
	}
	out := rec
	return &out, nil
}

func (s *MemoryStore) Upsert(_ context.Context, rec ClientRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[rec.ClientMachineID]; ok {
		if rec.LastActivation.Before(existing.LastActivation) {
			return nil // stale write, last-writer-wins on requestTime
		}
	}
	s.records[rec.ClientMachineID] = rec
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]ClientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ClientRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, nil
}

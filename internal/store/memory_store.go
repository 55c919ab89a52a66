package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/raysh454/convotap/internal/model"
)

// MemoryStore keeps the snapshot in process memory. Snapshots are stored
// encoded so callers never share mutable state with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	blob []byte
}

var _ SnapshotStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(_ context.Context, snap *model.Snapshot) error {
	if snap == nil {
		return errors.New("snapshot cannot be nil")
	}
	blob, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	m.mu.Lock()
	m.blob = blob
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Latest(_ context.Context) (*model.Snapshot, error) {
	m.mu.RLock()
	blob := m.blob
	m.mu.RUnlock()
	if blob == nil {
		return nil, ErrNoSnapshot
	}
	var snap model.Snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (m *MemoryStore) Close() error { return nil }

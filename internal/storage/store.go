// Package storage persists the best score between sessions.
package storage

import (
	"context"
	"sync"
)

// BestScoreStore loads the best score at startup and accepts new records.
// Save never blocks the caller.
type BestScoreStore interface {
	Load(ctx context.Context) (int, error)
	Save(score int)
	Close() error
}

// MemoryStore keeps the best score for the lifetime of the process
type MemoryStore struct {
	mu   sync.Mutex
	best int
}

// NewMemoryStore creates a store starting at zero
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.best, nil
}

// Save keeps score if it beats the stored best
func (m *MemoryStore) Save(score int) {
	m.mu.Lock()
	if score > m.best {
		m.best = score
	}
	m.mu.Unlock()
}

func (m *MemoryStore) Close() error { return nil }

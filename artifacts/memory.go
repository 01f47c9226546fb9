package artifacts

import (
	"context"
	"sync"
	"time"
)

// Memory keeps artifacts in process memory for the lifetime of the session.
type Memory struct {
	mu    sync.RWMutex
	items map[string]Artifact
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]Artifact), now: time.Now}
}

func (m *Memory) Put(_ context.Context, a Artifact) error {
	if a.StoredAt.IsZero() {
		a.StoredAt = m.now()
	}
	m.mu.Lock()
	m.items[a.JobID] = a
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, jobID string) (Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.items[jobID]
	if !ok {
		return Artifact{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) Release(_ context.Context, jobID string) error {
	m.mu.Lock()
	delete(m.items, jobID)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, a := range m.items {
		if a.StoredAt.Before(cutoff) {
			delete(m.items, id)
			n++
		}
	}
	return n, nil
}

// Len reports how many artifacts are held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.items = make(map[string]Artifact)
	m.mu.Unlock()
	return nil
}

// Package handlecache maps application task ids to remote document handles so updates and
// deletes can skip the collection scan. Entries are hints: a stale entry is detected by the
// remote side (404) and the caller falls back to a scan.
package handlecache

import (
	"context"
	"sync"
)

// Cache stores id → handle per user.
type Cache interface {
	// Get returns the handle for taskID.
	Get(ctx context.Context, userID, taskID string) (handle string, ok bool, err error)
	// Put records one mapping.
	Put(ctx context.Context, userID, taskID, handle string) error
	// Replace drops all of the user's mappings and stores handles instead.
	Replace(ctx context.Context, userID string, handles map[string]string) error
	// Delete forgets one mapping.
	Delete(ctx context.Context, userID, taskID string) error
}

// Memory is a process-local Cache.
type Memory struct {
	mu    sync.RWMutex
	users map[string]map[string]string
}

var _ Cache = (*Memory)(nil)

// NewMemory returns an empty cache.
func NewMemory() *Memory { return &Memory{users: map[string]map[string]string{}} }

func (m *Memory) Get(_ context.Context, userID, taskID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.users[userID][taskID]
	return h, ok, nil
}

func (m *Memory) Put(_ context.Context, userID, taskID, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.users[userID]
	if !ok {
		byID = map[string]string{}
		m.users[userID] = byID
	}
	byID[taskID] = handle
	return nil
}

func (m *Memory) Replace(_ context.Context, userID string, handles map[string]string) error {
	cp := make(map[string]string, len(handles))
	for k, v := range handles {
		cp[k] = v
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = cp
	return nil
}

func (m *Memory) Delete(_ context.Context, userID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users[userID], taskID)
	return nil
}

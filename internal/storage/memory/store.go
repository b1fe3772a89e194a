// Package memory provides an in-process session store, used by tests
// and by embed hosts that accept losing identity on restart.
package memory

import (
	"context"
	"sync"
)

// Store keeps session ids in a map
type Store struct {
	mu       sync.RWMutex
	sessions map[string]string
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{sessions: make(map[string]string)}
}

// Get returns the stored session id for a business, or ""
func (s *Store) Get(ctx context.Context, businessID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[businessID], nil
}

// Set stores the session id for a business
func (s *Store) Set(ctx context.Context, businessID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[businessID] = sessionID
	return nil
}

// Delete removes the stored session id for a business
func (s *Store) Delete(ctx context.Context, businessID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, businessID)
	return nil
}

// Package session owns the per-business conversation identity: one
// opaque session id per business, created lazily and rotated wholesale
// on reset.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/receptly/chat-widget/internal/domain"
	"github.com/rs/zerolog/log"
)

// Manager resolves and rotates session ids over an injected store.
type Manager struct {
	mu    sync.Mutex
	store domain.SessionStore
}

// NewManager creates a session manager backed by the given store
func NewManager(store domain.SessionStore) *Manager {
	return &Manager{store: store}
}

// GetOrCreate returns the stored session id for a business, creating
// and persisting a fresh one on first use. Concurrent calls for the
// same business never observe two different ids.
func (m *Manager) GetOrCreate(ctx context.Context, businessID string) (string, error) {
	if businessID == "" {
		return "", fmt.Errorf("business id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.store.Get(ctx, businessID)
	if err != nil {
		// A broken store must not break the conversation; fall through
		// and mint a fresh id.
		log.Warn().Err(err).Str("business_id", businessID).Msg("session store read failed")
	}
	if id != "" {
		return id, nil
	}

	id = newSessionID()
	if err := m.store.Set(ctx, businessID, id); err != nil {
		log.Warn().Err(err).Str("business_id", businessID).Msg("session store write failed")
	}
	return id, nil
}

// Rotate unconditionally discards the stored id and persists a fresh
// one. The caller is responsible for the best-effort server-side delete;
// rotation proceeds regardless of its outcome.
func (m *Manager) Rotate(ctx context.Context, businessID string) (string, error) {
	if businessID == "" {
		return "", fmt.Errorf("business id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := newSessionID()
	if err := m.store.Set(ctx, businessID, id); err != nil {
		log.Warn().Err(err).Str("business_id", businessID).Msg("session store write failed during rotate")
	}
	return id, nil
}

// newSessionID synthesizes an opaque token with a time component and a
// random component.
func newSessionID() string {
	return fmt.Sprintf("sess_%d_%s", time.Now().UnixMilli(), uuid.NewString())
}

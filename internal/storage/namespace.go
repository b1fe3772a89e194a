// Package storage holds helpers shared by the session store backends.
package storage

import (
	"context"

	"github.com/receptly/chat-widget/internal/domain"
)

// Namespaced wraps a store so every business key is scoped under a
// prefix. The embed host uses this to give each browser client its own
// identity space inside one shared backend, matching the per-client
// storage the original embedded widget had for free.
func Namespaced(inner domain.SessionStore, prefix string) domain.SessionStore {
	return &namespacedStore{inner: inner, prefix: prefix}
}

type namespacedStore struct {
	inner  domain.SessionStore
	prefix string
}

func (s *namespacedStore) key(businessID string) string {
	return s.prefix + "/" + businessID
}

func (s *namespacedStore) Get(ctx context.Context, businessID string) (string, error) {
	return s.inner.Get(ctx, s.key(businessID))
}

func (s *namespacedStore) Set(ctx context.Context, businessID, sessionID string) error {
	return s.inner.Set(ctx, s.key(businessID), sessionID)
}

func (s *namespacedStore) Delete(ctx context.Context, businessID string) error {
	return s.inner.Delete(ctx, s.key(businessID))
}

package widget

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/receptly/chat-widget/internal/domain"
	"github.com/receptly/chat-widget/internal/session"
	"github.com/receptly/chat-widget/internal/storage"
)

// Registry hands out widget engines keyed by an opaque client id, one
// per embedding browser. Each widget gets a session manager scoped to
// its client so identities never leak between customers.
type Registry struct {
	store domain.SessionStore
	agent Agent

	mu      sync.Mutex
	widgets map[string]*Widget
}

// NewRegistry creates a registry over a shared session store and agent
func NewRegistry(store domain.SessionStore, agent Agent) *Registry {
	return &Registry{
		store:   store,
		agent:   agent,
		widgets: make(map[string]*Widget),
	}
}

// GetOrCreate returns the widget for a client, minting a client id when
// none is supplied. A client id is bound to one business for its
// lifetime.
func (r *Registry) GetOrCreate(clientID, businessID string) (*Widget, string, error) {
	if businessID == "" {
		return nil, "", fmt.Errorf("business id is required")
	}
	if clientID == "" {
		clientID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.widgets[clientID]; ok {
		if w.BusinessID() != businessID {
			return nil, "", fmt.Errorf("client %q is bound to another business", clientID)
		}
		return w, clientID, nil
	}

	manager := session.NewManager(storage.Namespaced(r.store, clientID))
	w := New(businessID, manager, r.agent)
	r.widgets[clientID] = w
	return w, clientID, nil
}

// Get returns the widget for a known client id
func (r *Registry) Get(clientID string) (*Widget, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.widgets[clientID]
	return w, ok
}

// Remove tears down a client's widget handle
func (r *Registry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.widgets, clientID)
}

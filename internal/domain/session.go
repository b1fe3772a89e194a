package domain

import "context"

// Session identifies one customer's conversation with one business.
// The session id is opaque and client-generated; at most one id is
// active per business at any time.
type Session struct {
	BusinessID string `json:"business_id"`
	SessionID  string `json:"session_id"`
}

// SessionStore persists the session id chosen for each business. It is
// the injected replacement for the ambient browser storage the embedded
// widget relied on.
type SessionStore interface {
	// Get returns the stored session id for a business, or "" when none
	// has been stored yet.
	Get(ctx context.Context, businessID string) (string, error)

	// Set stores the session id for a business, replacing any previous one.
	Set(ctx context.Context, businessID, sessionID string) error

	// Delete removes the stored session id for a business.
	Delete(ctx context.Context, businessID string) error
}

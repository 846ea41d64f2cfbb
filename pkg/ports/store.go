package ports

import (
	"context"

	"github.com/aretw0/triagem/pkg/domain"
)

// SessionStore persists simulation snapshots so a conversation can be
// resumed by a later request or another replica.
type SessionStore interface {
	// Save persists the state for a given session ID.
	Save(ctx context.Context, sessionID string, state *domain.SimulationState) error

	// Load retrieves the state for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.SimulationState, error)

	// Delete removes the state for a given session ID. Deleting an unknown
	// session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
}

package ports

import (
	"context"

	"github.com/aretw0/triagem/pkg/domain"
)

// HandoffDispatcher delivers transfer and ticket requests raised by a run.
// The engine only records opaque nucleus and department IDs; the host
// resolves them.
type HandoffDispatcher interface {
	Dispatch(ctx context.Context, sessionID string, handoff domain.Handoff) error
}

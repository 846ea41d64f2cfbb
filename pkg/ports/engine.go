package ports

import (
	"context"

	"github.com/aretw0/triagem/pkg/domain"
)

// Interpreter runs a single flow document. Implementations never mutate the
// state they receive and hold no per-session data.
type Interpreter interface {
	// Start seeds a run from the flow's initial context and advances it to
	// the first suspension point or the end of the flow.
	Start(ctx context.Context, sessionID string) (*domain.SimulationState, error)

	// Resume feeds one external input to a suspended run.
	Resume(ctx context.Context, state *domain.SimulationState, input string) (*domain.SimulationState, error)

	// Reset restarts a run from scratch, keeping its identifiers.
	Reset(ctx context.Context, state *domain.SimulationState) (*domain.SimulationState, error)

	// Flow returns the document being interpreted.
	Flow() *domain.Flow
}

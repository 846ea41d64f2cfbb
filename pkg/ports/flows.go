package ports

import (
	"context"

	"github.com/aretw0/triagem/pkg/domain"
)

// FlowRepository stores portable flow documents. Implementations must
// round-trip fields they do not understand.
type FlowRepository interface {
	// Get returns the flow stored under id, or domain.ErrFlowNotFound.
	Get(ctx context.Context, id string) (*domain.Flow, error)

	// Save creates or replaces the flow stored under id.
	Save(ctx context.Context, id string, flow *domain.Flow) error

	// Delete removes a flow. Deleting an unknown flow is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the stored flow IDs in ascending order.
	List(ctx context.Context) ([]string, error)
}

package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/triagem/pkg/domain"
	"github.com/aretw0/triagem/pkg/ports"
)

// FlowRepositoryContractTest is a reusable test suite that verifies if an adapter complies with ports.FlowRepository.
// The repository must start empty.
func FlowRepositoryContractTest(t *testing.T, repo ports.FlowRepository) {
	t.Helper()
	ctx := context.Background()

	flow := &domain.Flow{
		EntryStepID: "inicio",
		Version:     "1.0",
		Steps: map[string]*domain.Step{
			"inicio": {
				ID:         "inicio",
				Kind:       domain.KindMessage,
				Message:    "Olá",
				NextStepID: "fim",
				Extra:      map[string]any{"corFundo": "#fff"},
			},
			"fim": {ID: "fim", Kind: domain.KindTerminate},
		},
		InitialContext: map[string]any{"canal": "whatsapp"},
	}

	t.Run("Get_NotFound", func(t *testing.T) {
		_, err := repo.Get(ctx, "missing")
		if !errors.Is(err, domain.ErrFlowNotFound) {
			t.Fatalf("expected ErrFlowNotFound, got %v", err)
		}
	})

	t.Run("Save_And_Get", func(t *testing.T) {
		if err := repo.Save(ctx, "b-flow", flow); err != nil {
			t.Fatalf("unexpected error saving flow: %v", err)
		}
		got, err := repo.Get(ctx, "b-flow")
		if err != nil {
			t.Fatalf("unexpected error getting flow: %v", err)
		}
		if got.EntryStepID != "inicio" || len(got.Steps) != 2 {
			t.Errorf("flow mismatch: entry=%q steps=%d", got.EntryStepID, len(got.Steps))
		}
		if got.Steps["inicio"].NextStepID != "fim" {
			t.Errorf("next step lost: %q", got.Steps["inicio"].NextStepID)
		}
		if got.Steps["inicio"].Extra["corFundo"] != "#fff" {
			t.Errorf("unknown step field was not preserved: %v", got.Steps["inicio"].Extra)
		}
		if got.InitialContext["canal"] != "whatsapp" {
			t.Errorf("initial context lost: %v", got.InitialContext)
		}
	})

	t.Run("Get_ReturnsCopy", func(t *testing.T) {
		got, err := repo.Get(ctx, "b-flow")
		if err != nil {
			t.Fatal(err)
		}
		got.Steps["inicio"].Message = "changed"
		again, err := repo.Get(ctx, "b-flow")
		if err != nil {
			t.Fatal(err)
		}
		if again.Steps["inicio"].Message != "Olá" {
			t.Errorf("repository returned shared flow")
		}
	})

	t.Run("List", func(t *testing.T) {
		if err := repo.Save(ctx, "a-flow", flow); err != nil {
			t.Fatal(err)
		}
		ids, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing flows: %v", err)
		}
		if len(ids) != 2 || ids[0] != "a-flow" || ids[1] != "b-flow" {
			t.Errorf("expected [a-flow b-flow], got %v", ids)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Delete(ctx, "a-flow"); err != nil {
			t.Fatal(err)
		}
		if err := repo.Delete(ctx, "a-flow"); err != nil {
			t.Errorf("second delete should not fail: %v", err)
		}
		if _, err := repo.Get(ctx, "a-flow"); !errors.Is(err, domain.ErrFlowNotFound) {
			t.Errorf("expected ErrFlowNotFound after delete, got %v", err)
		}
	})
}

package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/triagem/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract verifies that a SessionStore implementation
// behaves the way the session manager expects.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-session-" + time.Now().Format("20060102150405.000000")

	newState := func(id string) *domain.SimulationState {
		return &domain.SimulationState{
			SessionID:     id,
			FlowID:        "flow",
			Status:        domain.StatusAwaitingMenuChoice,
			CurrentStepID: "inicio",
			PendingOptions: []domain.Option{
				{Value: "1", Label: "Suporte", NextStepID: "suporte"},
			},
			Context: map[string]any{"cliente": map[string]any{"nome": "Ana"}},
			History: []domain.HistoryEntry{
				{ID: "h1", Origin: domain.OriginBot, Text: "Olá", StepID: "inicio", Timestamp: time.Unix(1700000000, 0).UTC()},
			},
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		state := newState(sessionID)
		require.NoError(t, store.Save(ctx, sessionID, state))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, state.Status, loaded.Status)
		assert.Equal(t, state.CurrentStepID, loaded.CurrentStepID)
		require.Len(t, loaded.PendingOptions, 1)
		assert.Equal(t, "suporte", loaded.PendingOptions[0].NextStepID)
		nome, ok := domain.Lookup(loaded.Context, "cliente.nome")
		assert.True(t, ok)
		assert.Equal(t, "Ana", nome)
		require.Len(t, loaded.History, 1)
		assert.Equal(t, "Olá", loaded.History[0].Text)
		assert.True(t, state.History[0].Timestamp.Equal(loaded.History[0].Timestamp))
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Context["mutated"] = true

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.NotContains(t, again.Context, "mutated")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("List", func(t *testing.T) {
		id1, id2 := sessionID+"-1", sessionID+"-2"
		require.NoError(t, store.Save(ctx, id1, newState(id1)))
		require.NoError(t, store.Save(ctx, id2, newState(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, sessionID))
		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
		assert.NoError(t, store.Delete(ctx, sessionID), "deleting twice is not an error")

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, ids, sessionID)
	})
}

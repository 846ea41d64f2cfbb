package domain

import (
	"reflect"
)

// StateDiff represents the changes between two simulation states.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	CurrentStepID *string `json:"current_step_id,omitempty"`
	Status        *Status `json:"status,omitempty"`

	// Context contains only changed, added or deleted top-level keys.
	// For deletions, the key is present with a nil value.
	Context map[string]any `json:"context,omitempty"`

	// History contains entries appended since the old state.
	History *HistoryDelta `json:"history,omitempty"`
}

// HistoryDelta represents entries appended to the transcript.
// Reset is set when the old transcript is not a prefix of the new one.
type HistoryDelta struct {
	Appended []HistoryEntry `json:"appended"`
	Reset    bool           `json:"reset,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
func Diff(oldState, newState *SimulationState) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{
		SessionID: newState.SessionID,
	}

	if oldState == nil || oldState.CurrentStepID != newState.CurrentStepID {
		diff.CurrentStepID = &newState.CurrentStepID
	}
	if oldState == nil || oldState.Status != newState.Status {
		diff.Status = &newState.Status
	}

	diff.Context = diffContext(oldState, newState)
	diff.History = diffHistory(oldState, newState)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffContext(old *SimulationState, new *SimulationState) map[string]any {
	delta := make(map[string]any)

	if old == nil {
		for k, v := range new.Context {
			delta[k] = v
		}
		if len(delta) == 0 {
			return nil
		}
		return delta
	}

	for k, newVal := range new.Context {
		oldVal, exists := old.Context[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}
	for k := range old.Context {
		if _, exists := new.Context[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// diffHistory assumes append-only history; a reset run is sent whole.
func diffHistory(old *SimulationState, new *SimulationState) *HistoryDelta {
	if len(new.History) == 0 {
		if old != nil && len(old.History) > 0 {
			return &HistoryDelta{Reset: true}
		}
		return nil
	}
	if old == nil {
		return &HistoryDelta{Appended: new.History}
	}

	oldLen := len(old.History)
	if oldLen > len(new.History) || (oldLen > 0 && old.History[oldLen-1].ID != new.History[oldLen-1].ID) {
		return &HistoryDelta{Appended: new.History, Reset: true}
	}
	if len(new.History) > oldLen {
		return &HistoryDelta{Appended: new.History[oldLen:]}
	}
	return nil
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.CurrentStepID == nil &&
		d.Status == nil &&
		len(d.Context) == 0 &&
		d.History == nil
}

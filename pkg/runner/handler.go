package runner

import (
	"context"

	"github.com/aretw0/triagem/pkg/domain"
)

// IOHandler is the strategy used to talk to the person on the other side
// of a simulation. It lets the same loop drive a terminal (TextHandler) or
// a structured pipe (JSONHandler).
type IOHandler interface {
	// Output presents a turn. It returns true when the handler expects
	// Input to be called next.
	Output(ctx context.Context, turn *Turn) (bool, error)

	// Input reads one answer.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message such as a rejected answer.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer transforms a bot message before it is printed, for
// example markdown to ANSI.
type ContentRenderer func(string) (string, error)

// Turn is what changed after one interpreter call: the resulting state and
// the transcript entries it appended.
type Turn struct {
	State    *domain.SimulationState `json:"state"`
	Messages []domain.HistoryEntry   `json:"messages"`
	Terminal bool                    `json:"terminal"`
}

// NewTurn describes the move from prev to next. When next does not extend
// prev's transcript (a reset, or no previous state) the whole transcript
// is reported.
func NewTurn(prev, next *domain.SimulationState) *Turn {
	t := &Turn{State: next, Messages: []domain.HistoryEntry{}}
	if next == nil {
		return t
	}
	t.Terminal = next.Status.Terminal()
	from := 0
	if prev != nil {
		if n := len(prev.History); n > 0 && n <= len(next.History) && next.History[n-1].ID == prev.History[n-1].ID {
			from = n
		}
	}
	t.Messages = append(t.Messages, next.History[from:]...)
	return t
}

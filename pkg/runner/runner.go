package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/triagem/pkg/domain"
	"github.com/aretw0/triagem/pkg/ports"
)

// Commands understood by the runner itself instead of being fed to the flow.
const (
	CommandExit  = "/exit"
	CommandReset = "/reset"
)

// Runner drives a simulation turn by turn: it shows what the interpreter
// produced, reads an answer and resumes, until the run ends or the input
// is exhausted.
type Runner struct {
	Handler      IOHandler
	Logger       *slog.Logger
	Store        ports.SessionStore
	SessionID    string
	MaxInputSize int
	Dispatcher   ports.HandoffDispatcher
}

// NewRunner creates a Runner reading from stdin and writing to stdout
// unless WithInputHandler says otherwise.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		MaxInputSize: MaxInputSize(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(nil, nil)
	}
	return r
}

// Run executes the loop and returns the last state reached. A nil initial
// state starts a new run. Running out of input, or an exit command, ends
// the loop without error.
func (r *Runner) Run(ctx context.Context, interp ports.Interpreter, initial *domain.SimulationState) (*domain.SimulationState, error) {
	state := initial
	if state == nil {
		started, err := interp.Start(ctx, r.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to create initial state: %w", err)
		}
		state = started
		if err := r.saveState(ctx, state); err != nil {
			return state, err
		}
		r.dispatch(ctx, nil, state)
	}

	turn := NewTurn(nil, state)
	for {
		needsInput, err := r.Handler.Output(ctx, turn)
		if err != nil {
			return state, fmt.Errorf("output error: %w", err)
		}
		if state.Status.Terminal() || !needsInput {
			return state, nil
		}

		input, err := r.Handler.Input(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return state, nil
			}
			if ctx.Err() != nil {
				return state, ctx.Err()
			}
			return state, fmt.Errorf("input error: %w", err)
		}

		next, restarted, err := r.step(ctx, interp, state, input)
		if errors.Is(err, io.EOF) {
			return state, nil
		}
		if err != nil {
			var rejected *rejectedInput
			if errors.As(err, &rejected) {
				if err := r.Handler.SystemOutput(ctx, rejected.Error()); err != nil {
					return state, fmt.Errorf("output error: %w", err)
				}
				turn = &Turn{State: state, Messages: []domain.HistoryEntry{}}
				continue
			}
			return state, err
		}

		if err := r.saveState(ctx, next); err != nil {
			return next, fmt.Errorf("critical persistence error: %w", err)
		}
		if restarted {
			r.dispatch(ctx, nil, next)
		} else {
			r.dispatch(ctx, state, next)
		}
		turn = NewTurn(state, next)
		state = next
	}
}

// rejectedInput is an answer the user can retry.
type rejectedInput struct {
	msg string
}

func (e *rejectedInput) Error() string { return e.msg }

// step feeds one answer to the run. restarted reports that the answer was
// the reset command and next begins a new run.
func (r *Runner) step(ctx context.Context, interp ports.Interpreter, state *domain.SimulationState, input string) (next *domain.SimulationState, restarted bool, err error) {
	switch strings.TrimSpace(input) {
	case CommandExit:
		return nil, false, io.EOF
	case CommandReset:
		r.Logger.Debug("runner reset", "session_id", state.SessionID)
		next, err := interp.Reset(ctx, state)
		return next, true, err
	}

	clean, err := Sanitize(input, r.MaxInputSize)
	if err != nil {
		return nil, false, &rejectedInput{msg: fmt.Sprintf("Error: %v. Please try again.", err)}
	}

	next, err = interp.Resume(ctx, state, clean)
	if errors.Is(err, domain.ErrInvalidChoice) {
		return nil, false, &rejectedInput{msg: fmt.Sprintf("%q is not one of the choices. Please try again.", strings.TrimSpace(clean))}
	}
	if err != nil {
		return nil, false, fmt.Errorf("resume error: %w", err)
	}
	return next, false, nil
}

func (r *Runner) saveState(ctx context.Context, state *domain.SimulationState) error {
	if r.Store == nil || r.SessionID == "" {
		return nil
	}
	if err := r.Store.Save(ctx, r.SessionID, state); err != nil {
		return err
	}
	r.Logger.Debug("state saved", "session_id", r.SessionID, "step_id", state.CurrentStepID, "status", state.Status)
	return nil
}

// dispatch hands the hand-offs next gained over prev to the Dispatcher.
// prev is nil when next starts a new run.
func (r *Runner) dispatch(ctx context.Context, prev, next *domain.SimulationState) {
	if r.Dispatcher == nil {
		return
	}
	seen := 0
	if prev != nil {
		seen = min(len(prev.Handoffs), len(next.Handoffs))
	}
	for _, h := range next.Handoffs[seen:] {
		if err := r.Dispatcher.Dispatch(ctx, next.SessionID, h); err != nil {
			r.Logger.Warn("failed to dispatch handoff", "session_id", next.SessionID, "action", h.Action, "err", err)
		}
	}
}

package runner

import (
	"log/slog"

	"github.com/aretw0/triagem/pkg/ports"
)

// Option configures the Runner.
type Option func(*Runner)

// WithStore persists every state the runner produces.
func WithStore(store ports.SessionStore) Option {
	return func(r *Runner) {
		r.Store = store
	}
}

// WithSessionID sets the session used for Start and for persistence.
func WithSessionID(id string) Option {
	return func(r *Runner) {
		r.SessionID = id
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.Logger = logger
		}
	}
}

// WithInputHandler configures the IO strategy.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithMaxInputSize overrides the byte limit applied to every answer.
func WithMaxInputSize(n int) Option {
	return func(r *Runner) {
		r.MaxInputSize = n
	}
}

// WithDispatcher delivers the hand-offs raised during the run.
func WithDispatcher(d ports.HandoffDispatcher) Option {
	return func(r *Runner) {
		r.Dispatcher = d
	}
}

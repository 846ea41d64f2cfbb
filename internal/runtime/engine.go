package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/triagem/pkg/domain"
	"github.com/aretw0/triagem/pkg/expression"
	"github.com/google/uuid"
)

// Engine is the conversational state machine for one flow document.
// It holds no per-session data: every call receives a state and returns a new one.
type Engine struct {
	flow      *domain.Flow
	flowID    string
	evaluator *expression.Evaluator
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEvaluator replaces the expression evaluator used for guards and templates.
func WithEvaluator(ev *expression.Evaluator) EngineOption {
	return func(e *Engine) {
		if ev != nil {
			e.evaluator = ev
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithClock overrides the time source used for history timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides the generator of history entry IDs.
func WithIDGenerator(gen func() string) EngineOption {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// WithFlowID stamps the given flow ID on every state the engine creates.
func WithFlowID(id string) EngineOption {
	return func(e *Engine) {
		e.flowID = id
	}
}

// NewEngine binds an interpreter to a flow. The flow is cloned so later
// edits by the caller do not leak into running sessions.
func NewEngine(flow *domain.Flow, opts ...EngineOption) (*Engine, error) {
	if flow == nil {
		return nil, domain.ErrNilFlow
	}
	e := &Engine{
		flow:   flow.Clone(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.evaluator == nil {
		e.evaluator = expression.New(expression.WithLogger(e.logger))
	}
	return e, nil
}

// Flow returns the document the engine runs.
func (e *Engine) Flow() *domain.Flow {
	return e.flow
}

// Start seeds a new run from the flow's initial context and advances it
// until the first suspension point or the end of the flow.
func (e *Engine) Start(ctx context.Context, sessionID string) (*domain.SimulationState, error) {
	state := &domain.SimulationState{
		SessionID: sessionID,
		FlowID:    e.flowID,
		Status:    domain.StatusIdle,
		Context:   domain.CloneMap(e.flow.InitialContext),
		History:   []domain.HistoryEntry{},
	}
	return e.enter(ctx, state), nil
}

// Reset discards the context and transcript of a run and starts it over,
// keeping its session and flow identifiers. It is valid in any status.
func (e *Engine) Reset(ctx context.Context, current *domain.SimulationState) (*domain.SimulationState, error) {
	sessionID := ""
	if current != nil {
		sessionID = current.SessionID
	}
	next, err := e.Start(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if current != nil && current.FlowID != "" {
		next.FlowID = current.FlowID
	}
	return next, nil
}

// Resume feeds one external input to a suspended run. The given state is
// never modified. Errors are returned only for misuse: a run that is not
// suspended, or a choice that matches no pending entry.
func (e *Engine) Resume(ctx context.Context, current *domain.SimulationState, input string) (*domain.SimulationState, error) {
	if current == nil {
		return nil, fmt.Errorf("resume: %w", domain.ErrNotSuspended)
	}
	state := current.Clone()

	switch state.Status {
	case domain.StatusAwaitingMenuChoice:
		return e.resumeMenu(ctx, state, input)
	case domain.StatusAwaitingFreeText:
		return e.resumeText(ctx, state, input), nil
	case domain.StatusAwaitingConditionChoice:
		return e.resumeCondition(ctx, state, input)
	case domain.StatusAwaitingManualContinue:
		return e.resumeContinue(ctx, state), nil
	default:
		return nil, fmt.Errorf("resume in status %q: %w", state.Status, domain.ErrNotSuspended)
	}
}

// enter begins a run at the flow's entry step. A flow without a usable
// entry ends in StatusError instead of Finished.
func (e *Engine) enter(ctx context.Context, state *domain.SimulationState) *domain.SimulationState {
	entry := e.flow.EntryStepID
	if entry == "" {
		e.fail(ctx, state, domain.StatusError, "", "Flow has no entry step defined.")
		return state
	}
	if _, ok := e.flow.Step(entry); !ok {
		e.fail(ctx, state, domain.StatusError, entry, fmt.Sprintf("Entry step %q not found in flow.", entry))
		return state
	}
	return e.run(ctx, state, entry)
}

package triagem

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/triagem/internal/runtime"
	"github.com/aretw0/triagem/internal/validator"
	"github.com/aretw0/triagem/pkg/adapters/file"
	"github.com/aretw0/triagem/pkg/converter"
	"github.com/aretw0/triagem/pkg/domain"
	"github.com/aretw0/triagem/pkg/expression"
	"github.com/aretw0/triagem/pkg/ports"
	"github.com/aretw0/triagem/pkg/session"
)

// Validation results, re-exported so callers outside this module can use them.
type (
	Report    = validator.Report
	Issue     = validator.Issue
	Severity  = validator.Severity
	CyclePath = validator.CyclePath
	FixResult = validator.FixResult

	// ValidationError is what Report.Err returns for an invalid flow.
	ValidationError = validator.Error
)

// Engine is the entry point of the library. It is stateless: every method
// takes the flow it works on, so one Engine serves any number of flows and
// sessions concurrently.
type Engine struct {
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	evaluator *expression.Evaluator
	now       func() time.Time
	newID     func() string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks on every interpreter.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithEvaluator replaces the expression evaluator.
func WithEvaluator(ev *expression.Evaluator) Option {
	return func(e *Engine) {
		e.evaluator = ev
	}
}

// WithClock overrides the time source for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides the generator of history entry IDs.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		e.newID = gen
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.logger == nil {
		eng.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if eng.evaluator == nil {
		eng.evaluator = expression.New(expression.WithLogger(eng.logger))
	}
	return eng
}

// Parse decodes a JSON flow document, accepting legacy field names.
func (e *Engine) Parse(data []byte) (*domain.Flow, error) {
	return converter.Parse(data)
}

// Load reads a flow document from a .json, .yaml or .yml file.
func (e *Engine) Load(path string) (*domain.Flow, error) {
	return file.Load(path)
}

// Interpreter binds a flow to a new interpreter. flowID is stamped on every
// state it creates and may be empty.
func (e *Engine) Interpreter(flow *domain.Flow, flowID string) (ports.Interpreter, error) {
	opts := []runtime.EngineOption{
		runtime.WithLogger(e.logger.With("flow_id", flowID)),
		runtime.WithEvaluator(e.evaluator),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithFlowID(flowID),
		runtime.WithClock(e.now),
		runtime.WithIDGenerator(e.newID),
	}
	interp, err := runtime.NewEngine(flow, opts...)
	if err != nil {
		return nil, err
	}
	return interp, nil
}

// Start begins a run of flow.
func (e *Engine) Start(ctx context.Context, flow *domain.Flow, sessionID string) (*domain.SimulationState, error) {
	interp, err := e.Interpreter(flow, "")
	if err != nil {
		return nil, err
	}
	return interp.Start(ctx, sessionID)
}

// Resume feeds one input to a suspended run of flow.
func (e *Engine) Resume(ctx context.Context, flow *domain.Flow, state *domain.SimulationState, input string) (*domain.SimulationState, error) {
	interp, err := e.Interpreter(flow, "")
	if err != nil {
		return nil, err
	}
	return interp.Resume(ctx, state, input)
}

// Reset restarts a run of flow, keeping its session and flow IDs.
func (e *Engine) Reset(ctx context.Context, flow *domain.Flow, state *domain.SimulationState) (*domain.SimulationState, error) {
	interp, err := e.Interpreter(flow, "")
	if err != nil {
		return nil, err
	}
	return interp.Reset(ctx, state)
}

// Provider resolves flows from repo for a session.Manager. Every call reads
// the repository, so edits to a flow apply to the next turn of its sessions.
func (e *Engine) Provider(repo ports.FlowRepository) session.EngineProvider {
	return func(ctx context.Context, flowID string) (ports.Interpreter, error) {
		flow, err := repo.Get(ctx, flowID)
		if err != nil {
			return nil, fmt.Errorf("load flow %q: %w", flowID, err)
		}
		return e.Interpreter(flow, flowID)
	}
}

func (e *Engine) validatorOptions() []validator.Option {
	return []validator.Option{
		validator.WithLogger(e.logger),
		validator.WithEvaluator(e.evaluator),
	}
}

// Validate reports the structural issues and cycles of flow.
func (e *Engine) Validate(flow *domain.Flow) *Report {
	return validator.Validate(flow, e.validatorOptions()...)
}

// DetectCycles lists every cycle reachable from the entry step.
func (e *Engine) DetectCycles(flow *domain.Flow) []CyclePath {
	return validator.DetectCycles(flow, e.validatorOptions()...)
}

// AutoFix removes "back to menu" edges that close cycles. flow is not
// modified; check the result again with DetectCycles.
func (e *Engine) AutoFix(flow *domain.Flow) *FixResult {
	return validator.AutoFix(flow, e.validatorOptions()...)
}

// ValidateVisual checks an editor graph before it is converted back.
func (e *Engine) ValidateVisual(g *domain.VisualGraph) []Issue {
	return validator.ValidateVisual(g)
}

// ToVisual lays a flow out as an editor graph.
func ToVisual(flow *domain.Flow) *domain.VisualGraph {
	return converter.ToVisual(flow)
}

// ToDocument rebuilds a flow document from an editor graph.
func ToDocument(g *domain.VisualGraph) *domain.Flow {
	return converter.ToDocument(g)
}

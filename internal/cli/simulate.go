package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aretw0/triagem"
	"github.com/aretw0/triagem/internal/presentation/tui"
	"github.com/aretw0/triagem/pkg/adapters/process"
	"github.com/aretw0/triagem/pkg/adapters/redis"
	"github.com/aretw0/triagem/pkg/domain"
	"github.com/aretw0/triagem/pkg/ports"
	"github.com/aretw0/triagem/pkg/runner"
)

// SimulateOptions configures an interactive run of a flow file.
type SimulateOptions struct {
	FlowPath  string
	SessionID string
	// Context is a JSON object merged into the flow's initial context.
	Context string
	JSON    bool
	Debug   bool
	// Fresh discards a saved session instead of resuming it.
	Fresh bool
	// RedisAddr keeps sessions in Redis so a later run can resume them.
	RedisAddr string
	// Handlers is a hand-off handler file; missing means none.
	Handlers string
	MaxInput int

	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Simulate plays a flow in the terminal (or over JSON Lines) until it
// finishes, the input ends or ctx is cancelled.
func Simulate(ctx context.Context, opts SimulateOptions) (*domain.SimulationState, error) {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	logger := createLogger(opts.Debug, opts.Err)
	quiet := opts.JSON

	flow, err := loadFlow(opts.FlowPath, opts.Context)
	if err != nil {
		return nil, err
	}
	id := flowID(opts.FlowPath)

	eng := createEngine(logger, opts.Debug)
	if report := eng.Validate(flow); !report.Valid() && !quiet {
		printSystemMessage(opts.Err, "Flow has %d blocking issue(s) and %d loop(s); run 'triagem validate' for details.", len(report.Errors()), len(report.Cycles))
	}
	interp, err := eng.Interpreter(flow, id)
	if err != nil {
		return nil, err
	}

	var store ports.SessionStore
	if opts.RedisAddr != "" {
		rs := redis.New(opts.RedisAddr, "", 0)
		defer rs.Close()
		store = rs
	}

	state, err := hydrateState(ctx, store, opts, id)
	if err != nil {
		return nil, err
	}
	if state != nil && !quiet {
		printSystemMessage(opts.Out, "Resuming session '%s' at '%s'.", opts.SessionID, state.CurrentStepID)
	}

	runnerOpts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithInputHandler(newHandler(opts)),
	}
	if opts.MaxInput > 0 {
		runnerOpts = append(runnerOpts, runner.WithMaxInputSize(opts.MaxInput))
	}
	if store != nil {
		runnerOpts = append(runnerOpts, runner.WithStore(store))
	}
	if opts.SessionID != "" {
		runnerOpts = append(runnerOpts, runner.WithSessionID(opts.SessionID))
	}
	if opts.Handlers != "" {
		handlers, err := process.LoadHandlers(opts.Handlers)
		if err != nil {
			return nil, err
		}
		if len(handlers) > 0 {
			runnerOpts = append(runnerOpts, runner.WithDispatcher(process.NewDispatcher(
				process.WithRegistry(handlers),
				process.WithBaseDir(filepath.Dir(opts.Handlers)),
				process.WithLogger(logger),
			)))
		}
	}

	final, runErr := runner.NewRunner(runnerOpts...).Run(ctx, interp, state)
	if final != nil {
		logger.Info("simulation ended", "session_id", final.SessionID, "status", final.Status, "handoffs", len(final.Handoffs))
	}
	return final, handleExecutionError(runErr)
}

// hydrateState loads a saved session, or returns nil to start a new one.
func hydrateState(ctx context.Context, store ports.SessionStore, opts SimulateOptions, flowID string) (*domain.SimulationState, error) {
	if store == nil || opts.SessionID == "" {
		return nil, nil
	}
	if opts.Fresh {
		if err := store.Delete(ctx, opts.SessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return nil, err
		}
		return nil, nil
	}
	state, err := store.Load(ctx, opts.SessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %q: %w", opts.SessionID, err)
	}
	if state.FlowID != "" && state.FlowID != flowID {
		return nil, fmt.Errorf("session %q belongs to flow %q, not %q (use --fresh to discard it)", opts.SessionID, state.FlowID, flowID)
	}
	if state.Status.Terminal() {
		return nil, nil
	}
	return state, nil
}

func newHandler(opts SimulateOptions) runner.IOHandler {
	if opts.JSON {
		return runner.NewJSONHandler(opts.In, opts.Out)
	}
	var handlerOpts []runner.TextHandlerOption
	if f, ok := opts.Out.(*os.File); ok && tui.IsInteractive(f) {
		tui.PrintBanner(opts.Out, triagem.Version)
		if render, err := tui.NewRenderer(0); err == nil {
			handlerOpts = append(handlerOpts, runner.WithTextHandlerRenderer(render))
		}
	}
	return runner.NewTextHandler(opts.In, opts.Out, handlerOpts...)
}

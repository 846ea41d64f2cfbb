package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/aretw0/triagem/pkg/domain"
)

// DefaultTimeout bounds a single handler run.
const DefaultTimeout = 30 * time.Second

// Dispatcher delivers hand-offs by running allow-listed local commands, one
// per action. Hand-off data reaches the command through TRIAGEM_* variables
// and a JSON document on stdin, never as command-line arguments.
type Dispatcher struct {
	registry map[domain.OptionAction]registered
	baseDir  string
	timeout  time.Duration
	logger   *slog.Logger
}

type registered struct {
	Command string
	Args    []string
	Env     map[string]string
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithRegistry registers every handler of a loaded config.
func WithRegistry(handlers map[domain.OptionAction]HandlerConfig) Option {
	return func(d *Dispatcher) {
		for action, h := range handlers {
			d.registry[action] = registered{Command: h.Command, Args: h.Args, Env: h.Environment}
		}
	}
}

// WithBaseDir sets the working directory of the commands.
func WithBaseDir(dir string) Option {
	return func(d *Dispatcher) {
		d.baseDir = dir
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: make(map[domain.OptionAction]registered),
		timeout:  DefaultTimeout,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds a trusted command for action.
func (d *Dispatcher) Register(action domain.OptionAction, command string, args ...string) {
	d.registry[action] = registered{Command: command, Args: args}
}

// Handles reports whether a command is registered for action.
func (d *Dispatcher) Handles(action domain.OptionAction) bool {
	_, ok := d.registry[action]
	return ok
}

type payload struct {
	SessionID string         `json:"sessionId"`
	Handoff   domain.Handoff `json:"handoff"`
}

// Dispatch runs the command registered for the hand-off's action. Actions
// without a command are skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, h domain.Handoff) error {
	proc, ok := d.registry[h.Action]
	if !ok {
		d.logger.Debug("no handler for hand-off", "session_id", sessionID, "action", h.Action)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	input, err := json.Marshal(payload{SessionID: sessionID, Handoff: h})
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = d.baseDir
	cmd.Stdin = bytes.NewReader(input)
	cmd.Env = append(cmd.Environ(),
		"TRIAGEM_SESSION_ID="+sessionID,
		"TRIAGEM_ACTION="+string(h.Action),
		"TRIAGEM_NUCLEUS_ID="+h.NucleusID,
		"TRIAGEM_DEPARTMENT_ID="+h.DepartmentID,
		"TRIAGEM_STEP_ID="+h.StepID,
	)
	for k, v := range proc.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	start := time.Now()
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("hand-off %s for session %s: %w: %s", h.Action, sessionID, err, strings.TrimSpace(stderr.String()))
	}
	d.logger.Info("hand-off dispatched", "session_id", sessionID, "action", h.Action, "command", proc.Command, "duration", time.Since(start))
	return nil
}

package validator

import (
	"io"
	"log/slog"

	"github.com/aretw0/triagem/pkg/domain"
	"github.com/aretw0/triagem/pkg/expression"
)

// Option configures the checks in this package.
type Option func(*config)

type config struct {
	logger    *slog.Logger
	evaluator *expression.Evaluator
}

// WithLogger sets the logger used to report auto-fix decisions.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEvaluator sets the evaluator used to resolve guarded option targets.
func WithEvaluator(e *expression.Evaluator) Option {
	return func(c *config) {
		if e != nil {
			c.evaluator = e
		}
	}
}

func newConfig(opts []Option) *config {
	c := &config{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		evaluator: expression.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// targets lists the successors of a step in traversal order: next, each
// option's resolved target, each condition, each guarded transition.
// Option guards are resolved against the flow's initial context.
func (c *config) targets(flow *domain.Flow, step *domain.Step) []string {
	pred := c.evaluator.Predicate(flow.InitialContext)

	var out []string
	if step.NextStepID != "" {
		out = append(out, step.NextStepID)
	}
	for _, opt := range step.Options {
		if t := opt.ResolveTarget(pred); t != "" {
			out = append(out, t)
		}
	}
	for _, cond := range step.Conditions {
		if cond.NextStepID != "" {
			out = append(out, cond.NextStepID)
		}
	}
	for _, cn := range step.ConditionalNext {
		if cn.ThenStepID != "" {
			out = append(out, cn.ThenStepID)
		}
	}
	return out
}

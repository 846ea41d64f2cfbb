package expression

import (
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aretw0/triagem/pkg/domain"
)

// ContextPrefix is the optional namespace written in front of context paths.
const ContextPrefix = "contexto."

// clauseOperators is ordered so "===" is never mis-split as "==".
var clauseOperators = []string{"===", "!==", "==", "!="}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

// Evaluator evaluates expressions and renders templates against a context.
// It is stateless and safe for concurrent use.
type Evaluator struct {
	logger *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used to report clauses that could not be evaluated.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEvaluator = New()

// Evaluate reports whether expr holds against ctx using a silent evaluator.
func Evaluate(expr string, ctx map[string]any) bool {
	return defaultEvaluator.Evaluate(expr, ctx)
}

// EvaluateCondition reports whether a structured condition holds using a silent evaluator.
func EvaluateCondition(c domain.Condition, ctx map[string]any) bool {
	return defaultEvaluator.EvaluateCondition(c, ctx)
}

// Render substitutes placeholders using a silent evaluator.
func Render(template string, ctx map[string]any) string {
	return defaultEvaluator.Render(template, ctx)
}

// Resolve looks up a context path, accepting the optional "contexto." prefix.
// Missing paths yield Undefined.
func Resolve(ctx map[string]any, path string) any {
	path = strings.TrimPrefix(strings.TrimSpace(path), ContextPrefix)
	v, ok := domain.Lookup(ctx, path)
	if !ok {
		return Undefined
	}
	return v
}

// Predicate binds the evaluator to one context snapshot.
func (e *Evaluator) Predicate(ctx map[string]any) domain.Predicate {
	return func(expr string) bool { return e.Evaluate(expr, ctx) }
}

// Evaluate splits expr into "||" groups of "&&" clauses. The expression is
// true if every clause of some group is true. Empty input is false.
func (e *Evaluator) Evaluate(expr string, ctx map[string]any) (result bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("expression evaluation panicked", "expression", expr, "panic", r)
			result = false
		}
	}()

	if strings.TrimSpace(expr) == "" {
		return false
	}

	groups := nonEmpty(strings.Split(expr, "||"))
	if len(groups) == 0 {
		return e.evaluateClause(expr, ctx)
	}
	for _, group := range groups {
		clauses := nonEmpty(strings.Split(group, "&&"))
		if len(clauses) == 0 {
			continue
		}
		all := true
		for _, clause := range clauses {
			if !e.evaluateClause(clause, ctx) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func (e *Evaluator) evaluateClause(clause string, ctx map[string]any) bool {
	clause = strings.TrimSpace(clause)
	for _, op := range clauseOperators {
		idx := strings.Index(clause, op)
		if idx < 0 {
			continue
		}
		lhs := strings.TrimSpace(clause[:idx])
		rhs := strings.TrimSpace(clause[idx+len(op):])
		if lhs == "" {
			e.logger.Debug("clause without left operand", "clause", clause)
			return false
		}

		actual := Resolve(ctx, lhs)
		expected := parseLiteral(rhs)
		switch op {
		case "===":
			return strictEqual(actual, expected)
		case "!==":
			return !strictEqual(actual, expected)
		case "==":
			return looseEqual(actual, expected)
		default:
			return !looseEqual(actual, expected)
		}
	}
	e.logger.Debug("clause without comparison operator", "clause", clause)
	return false
}

// EvaluateCondition checks a structured condition. A raw expression takes
// precedence over the field/operator/value form.
func (e *Evaluator) EvaluateCondition(c domain.Condition, ctx map[string]any) (result bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("condition evaluation panicked", "field", c.Field, "panic", r)
			result = false
		}
	}()

	if c.Expression != "" {
		return e.Evaluate(c.Expression, ctx)
	}
	if strings.TrimSpace(c.Field) == "" {
		return false
	}

	actual := Resolve(ctx, c.Field)
	switch c.Operator {
	case domain.OpEqual:
		return strictEqual(actual, c.Value)
	case domain.OpNotEqual:
		return !strictEqual(actual, c.Value)
	case domain.OpContains:
		a, ok1 := actual.(string)
		b, ok2 := c.Value.(string)
		return ok1 && ok2 && strings.Contains(strings.ToLower(a), strings.ToLower(b))
	case domain.OpGreaterThan:
		return toNumber(actual) > toNumber(c.Value)
	case domain.OpLessThan:
		return toNumber(actual) < toNumber(c.Value)
	case domain.OpExists:
		return present(actual)
	case domain.OpNotExists:
		return !present(actual)
	}
	e.logger.Debug("unknown condition operator", "field", c.Field, "operator", c.Operator)
	return false
}

func present(v any) bool {
	switch kindOf(v) {
	case kindUndefined, kindNull:
		return false
	case kindString:
		return v.(string) != ""
	}
	return true
}

// Render replaces every {{ path }} with the stringified context value.
// Missing or null values render empty; containers render as JSON.
func (e *Evaluator) Render(template string, ctx map[string]any) string {
	if template == "" {
		return ""
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		sub := placeholderPattern.FindStringSubmatch(match)
		if len(sub) < 2 {
			return ""
		}
		return stringify(Resolve(ctx, sub[1]))
	})
}

// Stringify formats a context value for display.
func Stringify(v any) string {
	return stringify(v)
}

func nonEmpty(parts []string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

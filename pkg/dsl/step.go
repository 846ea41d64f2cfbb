package dsl

import (
	"fmt"
	"strconv"

	"github.com/aretw0/triagem/pkg/domain"
)

// StepBuilder provides a fluent API for configuring a step.
type StepBuilder struct {
	step    domain.Step
	builder *Builder
}

// Text marks the step as a plain message.
func (s *StepBuilder) Text(message string) *StepBuilder {
	s.step.Kind = domain.KindMessage
	s.step.Message = message
	return s
}

// Menu marks the step as a menu with the given prompt.
func (s *StepBuilder) Menu(message string) *StepBuilder {
	s.step.Kind = domain.KindMenu
	s.step.Message = message
	return s
}

// Question marks the step as a free-text question.
func (s *StepBuilder) Question(message string) *StepBuilder {
	s.step.Kind = domain.KindQuestion
	s.step.Message = message
	return s
}

// Conditional marks the step as a conditional router.
func (s *StepBuilder) Conditional(message string) *StepBuilder {
	s.step.Kind = domain.KindConditional
	s.step.Message = message
	return s
}

// Action marks the step as a hand-off step.
func (s *StepBuilder) Action(message string, action domain.OptionAction, nucleusID, departmentID string) *StepBuilder {
	s.step.Kind = domain.KindAction
	s.step.Message = message
	s.step.Action = action
	s.step.NucleusID = nucleusID
	s.step.DepartmentID = departmentID
	return s
}

// Name sets the display name.
func (s *StepBuilder) Name(name string) *StepBuilder {
	s.step.Name = name
	return s
}

// Go sets the direct successor.
func (s *StepBuilder) Go(target string) *StepBuilder {
	s.step.NextStepID = target
	return s
}

// Auto makes the step advance to its successor without waiting.
func (s *StepBuilder) Auto() *StepBuilder {
	s.step.AutoAdvance = true
	return s
}

// Branch adds a guarded transition evaluated before any other rule.
func (s *StepBuilder) Branch(expression, target string) *StepBuilder {
	s.step.ConditionalNext = append(s.step.ConditionalNext, domain.ConditionalNext{
		Expression: expression,
		ThenStepID: target,
	})
	return s
}

// SaveTo sets the context path a question answer is stored under.
func (s *StepBuilder) SaveTo(path string) *StepBuilder {
	s.step.VariableName = path
	return s
}

// Terminal marks the step as the end of the flow.
func (s *StepBuilder) Terminal() *StepBuilder {
	s.step.Kind = domain.KindTerminate
	return s
}

// Option appends a menu option. Value defaults to the 1-based position.
func (s *StepBuilder) Option(label, target string) *StepBuilder {
	s.step.Options = append(s.step.Options, domain.Option{
		Value:      strconv.Itoa(len(s.step.Options) + 1),
		Label:      label,
		Action:     domain.ActionAdvance,
		NextStepID: target,
	})
	return s
}

// Value overrides the value of the last option.
func (s *StepBuilder) Value(v string) *StepBuilder {
	s.lastOption().Value = v
	return s
}

// OptionBranch adds a guarded target to the last option.
func (s *StepBuilder) OptionBranch(expression, target string) *StepBuilder {
	opt := s.lastOption()
	opt.ConditionalNext = append(opt.ConditionalNext, domain.ConditionalNext{
		Expression: expression,
		ThenStepID: target,
	})
	return s
}

// Bind records a context binding applied when the last option is chosen.
func (s *StepBuilder) Bind(path string, value any) *StepBuilder {
	opt := s.lastOption()
	if opt.ContextBindings == nil {
		opt.ContextBindings = make(map[string]any)
	}
	opt.ContextBindings[path] = value
	return s
}

// Handoff sets the action of the last option.
func (s *StepBuilder) Handoff(action domain.OptionAction, nucleusID, departmentID string) *StepBuilder {
	opt := s.lastOption()
	opt.Action = action
	opt.NucleusID = nucleusID
	opt.DepartmentID = departmentID
	return s
}

// When adds a structured condition.
func (s *StepBuilder) When(field string, op domain.Operator, value any, target string) *StepBuilder {
	s.step.Conditions = append(s.step.Conditions, domain.Condition{
		Field:      field,
		Operator:   op,
		Value:      value,
		NextStepID: target,
	})
	return s
}

// If adds a condition written as an expression.
func (s *StepBuilder) If(expression, target string) *StepBuilder {
	s.step.Conditions = append(s.step.Conditions, domain.Condition{
		Expression: expression,
		NextStepID: target,
	})
	return s
}

// Build returns a copy of the underlying step.
func (s *StepBuilder) Build() *domain.Step {
	return s.step.Clone()
}

func (s *StepBuilder) lastOption() *domain.Option {
	if len(s.step.Options) == 0 {
		panic(fmt.Sprintf("dsl: step %q has no option to configure", s.step.ID))
	}
	return &s.step.Options[len(s.step.Options)-1]
}

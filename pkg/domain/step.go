package domain

import (
	"fmt"
	"strings"
)

// StepKind is the closed set of step behaviors understood by the interpreter.
type StepKind string

const (
	KindMessage     StepKind = "message"
	KindMenu        StepKind = "menu"
	KindQuestion    StepKind = "question"
	KindConditional StepKind = "conditional"
	KindAction      StepKind = "action"
	KindTerminate   StepKind = "terminate"
)

// Valid reports whether k is one of the known kinds.
func (k StepKind) Valid() bool {
	switch k {
	case KindMessage, KindMenu, KindQuestion, KindConditional, KindAction, KindTerminate:
		return true
	}
	return false
}

// Interactive reports whether a step of this kind always waits for user input.
func (k StepKind) Interactive() bool {
	return k == KindMenu || k == KindQuestion
}

// OptionAction is what happens when an option is chosen.
type OptionAction string

const (
	ActionAdvance             OptionAction = "advance"
	ActionTransferToNucleus   OptionAction = "transferToNucleus"
	ActionTransferToAttendant OptionAction = "transferToAttendant"
	ActionCreateTicket        OptionAction = "createTicket"
	ActionTerminate           OptionAction = "terminate"
)

// IsHandoff reports whether the action hands the conversation to the host application.
func (a OptionAction) IsHandoff() bool {
	return a == ActionTransferToNucleus || a == ActionTransferToAttendant || a == ActionCreateTicket
}

// Operator compares a context field against a value in structured conditions.
type Operator string

const (
	OpEqual       Operator = "equal"
	OpNotEqual    Operator = "notEqual"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greaterThan"
	OpLessThan    Operator = "lessThan"
	OpExists      Operator = "exists"
	OpNotExists   Operator = "notExists"
)

// ConditionalNext is a guarded transition evaluated before the default one.
type ConditionalNext struct {
	Expression string `json:"expression"`
	ThenStepID string `json:"thenStepId"`
}

// Predicate evaluates a boolean expression against some context.
type Predicate func(expression string) bool

// FirstMatch returns the target of the first entry whose expression holds.
func FirstMatch(entries []ConditionalNext, pred Predicate) (string, bool) {
	if pred == nil {
		return "", false
	}
	for _, c := range entries {
		if c.ThenStepID != "" && pred(c.Expression) {
			return c.ThenStepID, true
		}
	}
	return "", false
}

// Option is a selectable entry of a menu or action step.
type Option struct {
	Value           string            `json:"value"`
	Label           string            `json:"label"`
	Action          OptionAction      `json:"action,omitempty"`
	NucleusID       string            `json:"nucleusId,omitempty"`
	DepartmentID    string            `json:"departmentId,omitempty"`
	NextStepID      string            `json:"nextStepId,omitempty"`
	ConditionalNext []ConditionalNext `json:"conditionalNext,omitempty"`
	ContextBindings map[string]any    `json:"contextBindings,omitempty"`

	// Extra holds document fields this version does not understand.
	Extra map[string]any `json:"-"`
}

// ResolveTarget returns the option's successor, trying its conditional
// transitions before the plain NextStepID.
func (o Option) ResolveTarget(pred Predicate) string {
	if target, ok := FirstMatch(o.ConditionalNext, pred); ok {
		return target
	}
	return o.NextStepID
}

func (o Option) MarshalJSON() ([]byte, error) {
	type plain Option
	return marshalWithExtra(plain(o), o.Extra)
}

func (o *Option) UnmarshalJSON(data []byte) error {
	type plain Option
	var p plain
	extra, err := unmarshalWithExtra(data, &p)
	if err != nil {
		return err
	}
	*o = Option(p)
	o.Extra = extra
	return nil
}

// Condition routes a conditional step. When Expression is set it takes
// precedence over the Field/Operator/Value triple.
type Condition struct {
	Field      string   `json:"field,omitempty"`
	Operator   Operator `json:"operator,omitempty"`
	Value      any      `json:"value,omitempty"`
	Expression string   `json:"expression,omitempty"`
	NextStepID string   `json:"nextStepId,omitempty"`

	Extra map[string]any `json:"-"`
}

// Describe renders a short human label, used for edges and manual resolution.
func (c Condition) Describe() string {
	if c.Expression != "" {
		return c.Expression
	}
	switch c.Operator {
	case OpExists, OpNotExists:
		return strings.TrimSpace(fmt.Sprintf("%s %s", c.Field, c.Operator))
	}
	if c.Value == nil {
		return strings.TrimSpace(fmt.Sprintf("%s %s", c.Field, c.Operator))
	}
	return fmt.Sprintf("%s %s %v", c.Field, c.Operator, c.Value)
}

func (c Condition) MarshalJSON() ([]byte, error) {
	type plain Condition
	return marshalWithExtra(plain(c), c.Extra)
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	type plain Condition
	var p plain
	extra, err := unmarshalWithExtra(data, &p)
	if err != nil {
		return err
	}
	*c = Condition(p)
	c.Extra = extra
	return nil
}

// Step is one node of the flow graph.
type Step struct {
	ID              string            `json:"id"`
	Kind            StepKind          `json:"kind"`
	Name            string            `json:"name,omitempty"`
	Message         string            `json:"message,omitempty"`
	Options         []Option          `json:"options,omitempty"`
	Conditions      []Condition       `json:"conditions,omitempty"`
	NextStepID      string            `json:"nextStepId,omitempty"`
	ConditionalNext []ConditionalNext `json:"conditionalNext,omitempty"`
	AutoAdvance     bool              `json:"autoAdvance,omitempty"`
	VariableName    string            `json:"variableName,omitempty"`

	// Action steps carry their hand-off directly.
	Action       OptionAction `json:"action,omitempty"`
	NucleusID    string       `json:"nucleusId,omitempty"`
	DepartmentID string       `json:"departmentId,omitempty"`

	Extra map[string]any `json:"-"`
}

// DisplayText is the message shown for the step, falling back to its name and id.
func (s *Step) DisplayText() string {
	if s.Message != "" {
		return s.Message
	}
	if s.Name != "" {
		return s.Name
	}
	return "Step " + s.ID
}

// Clone returns a deep copy of the step.
func (s *Step) Clone() *Step {
	if s == nil {
		return nil
	}
	out := *s
	if s.Options != nil {
		out.Options = make([]Option, len(s.Options))
		for i, o := range s.Options {
			out.Options[i] = o.Clone()
		}
	}
	if s.Conditions != nil {
		out.Conditions = make([]Condition, len(s.Conditions))
		for i, c := range s.Conditions {
			c.Value = CloneValue(c.Value)
			c.Extra = cloneExtra(c.Extra)
			out.Conditions[i] = c
		}
	}
	out.ConditionalNext = append([]ConditionalNext(nil), s.ConditionalNext...)
	out.Extra = cloneExtra(s.Extra)
	return &out
}

// Clone returns a deep copy of the option.
func (o Option) Clone() Option {
	o.ConditionalNext = append([]ConditionalNext(nil), o.ConditionalNext...)
	if o.ContextBindings != nil {
		o.ContextBindings = CloneMap(o.ContextBindings)
	}
	o.Extra = cloneExtra(o.Extra)
	return o
}

func cloneExtra(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return CloneMap(m)
}

func (s Step) MarshalJSON() ([]byte, error) {
	type plain Step
	return marshalWithExtra(plain(s), s.Extra)
}

func (s *Step) UnmarshalJSON(data []byte) error {
	type plain Step
	var p plain
	extra, err := unmarshalWithExtra(data, &p)
	if err != nil {
		return err
	}
	*s = Step(p)
	s.Extra = extra
	return nil
}

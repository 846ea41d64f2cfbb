package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/triagem/pkg/domain"
)

// Severity grades an issue. Only errors make a report invalid.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one structural problem found in a flow.
type Issue struct {
	StepID   string   `json:"stepId,omitempty"`
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (i Issue) String() string {
	if i.StepID == "" {
		return i.Message
	}
	return fmt.Sprintf("%s: %s", i.StepID, i.Message)
}

// Report collects the structural issues and cycles of a flow.
type Report struct {
	Issues []Issue     `json:"issues"`
	Cycles []CyclePath `json:"cycles"`
}

// Valid reports whether the flow has no errors and no cycles.
func (r *Report) Valid() bool {
	return len(r.Errors()) == 0 && len(r.Cycles) == 0
}

// Errors returns the issues with error severity.
func (r *Report) Errors() []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

// Messages flattens errors and cycles into human-readable lines.
func (r *Report) Messages() []string {
	var out []string
	for _, i := range r.Errors() {
		out = append(out, i.String())
	}
	for _, c := range r.Cycles {
		out = append(out, "loop detected: "+c.String())
	}
	return out
}

// Err returns nil for a valid report and an *Error otherwise.
func (r *Report) Err() error {
	if r.Valid() {
		return nil
	}
	return &Error{Messages: r.Messages()}
}

// Error aggregates the blocking problems of a report.
type Error struct {
	Messages []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("found %d errors:\n- %s", len(e.Messages), strings.Join(e.Messages, "\n- "))
}

// Validate checks the flow for structural problems and cycles.
func Validate(flow *domain.Flow, opts ...Option) *Report {
	r := &Report{}
	if flow == nil {
		r.Issues = append(r.Issues, Issue{Message: "flow document is empty", Severity: SeverityError})
		return r
	}

	errorf := func(stepID, field, format string, args ...any) {
		r.Issues = append(r.Issues, Issue{StepID: stepID, Field: field, Message: fmt.Sprintf(format, args...), Severity: SeverityError})
	}
	exists := func(id string) bool {
		_, ok := flow.Step(id)
		return ok
	}

	switch {
	case flow.EntryStepID == "":
		errorf("", "entryStepId", "flow has no entry step")
	case !exists(flow.EntryStepID):
		errorf("", "entryStepId", "entry step %q does not exist", flow.EntryStepID)
	}

	for _, id := range flow.StepIDs() {
		step, ok := flow.Step(id)
		if !ok {
			errorf(id, "", "step is empty")
			continue
		}
		if !step.Kind.Valid() {
			errorf(id, "kind", "unknown step kind %q", step.Kind)
		}
		if step.NextStepID != "" && !exists(step.NextStepID) {
			errorf(id, "nextStepId", "next step %q does not exist", step.NextStepID)
		}
		for i, cn := range step.ConditionalNext {
			if cn.ThenStepID != "" && !exists(cn.ThenStepID) {
				errorf(id, fmt.Sprintf("conditionalNext[%d]", i), "conditional target %q does not exist", cn.ThenStepID)
			}
		}
		for i, opt := range step.Options {
			if opt.NextStepID != "" && !exists(opt.NextStepID) {
				errorf(id, fmt.Sprintf("options[%d]", i), "option %q targets missing step %q", opt.Label, opt.NextStepID)
			}
			for j, cn := range opt.ConditionalNext {
				if cn.ThenStepID != "" && !exists(cn.ThenStepID) {
					errorf(id, fmt.Sprintf("options[%d].conditionalNext[%d]", i, j), "option %q conditional target %q does not exist", opt.Label, cn.ThenStepID)
				}
			}
		}
		for i, c := range step.Conditions {
			if c.NextStepID != "" && !exists(c.NextStepID) {
				errorf(id, fmt.Sprintf("conditions[%d]", i), "condition target %q does not exist", c.NextStepID)
			}
		}

		switch step.Kind {
		case domain.KindMenu:
			if len(step.Options) == 0 {
				errorf(id, "options", "menu step has no options")
			}
		case domain.KindQuestion:
			if strings.TrimSpace(step.Message) == "" {
				errorf(id, "message", "question step has no message")
			}
		case domain.KindConditional:
			if len(step.Conditions) == 0 && len(step.ConditionalNext) == 0 {
				errorf(id, "conditions", "conditional step has no conditions")
			}
		}
	}

	if exists(flow.EntryStepID) {
		reachable := Reachable(flow)
		for _, id := range flow.StepIDs() {
			if !reachable[id] {
				r.Issues = append(r.Issues, Issue{StepID: id, Message: "step is unreachable from the entry step", Severity: SeverityWarning})
			}
		}
	}

	r.Cycles = DetectCycles(flow, opts...)
	return r
}

// Reachable returns the set of steps reachable from the entry step, following
// every edge including all guarded targets.
func Reachable(flow *domain.Flow) map[string]bool {
	visited := make(map[string]bool)
	if flow == nil {
		return visited
	}

	queue := []string{flow.EntryStepID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		step, ok := flow.Step(id)
		if !ok {
			continue
		}
		visited[id] = true

		for _, l := range allTargets(step) {
			if !visited[l] {
				queue = append(queue, l)
			}
		}
	}
	return visited
}

func allTargets(step *domain.Step) []string {
	var out []string
	add := func(id string) {
		if id != "" {
			out = append(out, id)
		}
	}
	add(step.NextStepID)
	for _, cn := range step.ConditionalNext {
		add(cn.ThenStepID)
	}
	for _, opt := range step.Options {
		add(opt.NextStepID)
		for _, cn := range opt.ConditionalNext {
			add(cn.ThenStepID)
		}
	}
	for _, c := range step.Conditions {
		add(c.NextStepID)
	}
	return out
}

package runtime

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/triagem/pkg/domain"
)

func (e *Engine) resumeMenu(ctx context.Context, state *domain.SimulationState, input string) (*domain.SimulationState, error) {
	opt, ok := MatchOption(state.PendingOptions, input)
	if !ok {
		return nil, fmt.Errorf("menu choice %q at step %q: %w", input, state.CurrentStepID, domain.ErrInvalidChoice)
	}
	stepID := state.CurrentStepID
	answer := opt.Label
	if answer == "" {
		answer = opt.Value
	}
	e.appendHistory(state, domain.OriginUser, answer, stepID)
	state.ClearPending()

	state.Context = applyBindings(state.Context, opt.ContextBindings, answer)

	if opt.Action.IsHandoff() {
		e.handoff(ctx, state, opt.Action, opt.NucleusID, opt.DepartmentID, stepID)
	}
	if opt.Action == domain.ActionTerminate {
		e.finish(ctx, state, "")
		return state, nil
	}

	target := opt.ResolveTarget(e.evaluator.Predicate(state.Context))
	if target == "" {
		e.finish(ctx, state, "")
		return state, nil
	}
	return e.run(ctx, state, target), nil
}

// resumeText ignores blank answers, leaving the run where it was.
func (e *Engine) resumeText(ctx context.Context, state *domain.SimulationState, input string) *domain.SimulationState {
	answer := strings.TrimSpace(input)
	if answer == "" {
		return state
	}
	stepID := state.CurrentStepID
	variable := state.VariableName
	e.appendHistory(state, domain.OriginUser, answer, stepID)
	state.ClearPending()

	if variable != "" {
		path := strings.TrimPrefix(variable, "contexto.")
		state.Context = domain.SetPath(state.Context, path, answer)
	}

	next := ""
	if step, ok := e.flow.Step(stepID); ok {
		next = step.NextStepID
	}
	if next == "" {
		e.finish(ctx, state, "")
		return state
	}
	return e.run(ctx, state, next)
}

// resumeCondition resolves a conditional step by hand. The input is the
// 1-based position of the condition or its target step ID.
func (e *Engine) resumeCondition(ctx context.Context, state *domain.SimulationState, input string) (*domain.SimulationState, error) {
	choice := strings.TrimSpace(input)
	idx := -1
	if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(state.PendingConditions) {
		idx = n - 1
	} else if choice != "" {
		for i, c := range state.PendingConditions {
			if c.NextStepID == choice {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("condition choice %q at step %q: %w", input, state.CurrentStepID, domain.ErrInvalidChoice)
	}

	cond := state.PendingConditions[idx]
	stepID := state.CurrentStepID
	state.ClearPending()
	if cond.NextStepID == "" {
		e.fail(ctx, state, domain.StatusFinished, stepID, "Condition selected without a next step configured.")
		return state, nil
	}
	return e.run(ctx, state, cond.NextStepID), nil
}

func (e *Engine) resumeContinue(ctx context.Context, state *domain.SimulationState) *domain.SimulationState {
	target := state.ContinueTarget
	state.ClearPending()
	if target == "" {
		e.finish(ctx, state, "")
		return state
	}
	return e.run(ctx, state, target)
}

// handoff records a transfer or ticket request and tells the transcript about it.
func (e *Engine) handoff(ctx context.Context, state *domain.SimulationState, action domain.OptionAction, nucleusID, departmentID, stepID string) {
	h := domain.Handoff{
		Action:       action,
		NucleusID:    nucleusID,
		DepartmentID: departmentID,
		StepID:       stepID,
	}
	state.Handoffs = append(state.Handoffs, h)
	e.appendHistory(state, domain.OriginSystem, describeHandoff(h), stepID)
	if e.hooks.OnHandoff != nil {
		e.hooks.OnHandoff(ctx, &domain.HandoffEvent{
			EventBase: e.eventBase(state, domain.EventHandoff),
			Handoff:   h,
		})
	}
}

func describeHandoff(h domain.Handoff) string {
	switch h.Action {
	case domain.ActionTransferToNucleus:
		if h.NucleusID != "" {
			return fmt.Sprintf("Transfer to nucleus %s requested.", h.NucleusID)
		}
		return "Transfer to nucleus requested."
	case domain.ActionTransferToAttendant:
		if h.DepartmentID != "" {
			return fmt.Sprintf("Transfer to an attendant of department %s requested.", h.DepartmentID)
		}
		return "Transfer to an attendant requested."
	case domain.ActionCreateTicket:
		return "Ticket creation requested."
	}
	return fmt.Sprintf("Action %s requested.", h.Action)
}

// MatchOption finds the option a user picked. Input is compared with the
// option value, then its 1-based position, then its label ignoring case.
func MatchOption(options []domain.Option, input string) (domain.Option, bool) {
	choice := strings.TrimSpace(input)
	if choice == "" {
		return domain.Option{}, false
	}
	for _, o := range options {
		if o.Value == choice {
			return o, true
		}
	}
	if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(options) {
		return options[n-1], true
	}
	for _, o := range options {
		if strings.EqualFold(strings.TrimSpace(o.Label), choice) {
			return o, true
		}
	}
	return domain.Option{}, false
}

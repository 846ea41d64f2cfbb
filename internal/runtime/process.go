package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/triagem/pkg/domain"
)

// run drives an automatic-advance chain starting at stepID. The visited set
// lives only for this call, so a user may loop through the same steps across
// turns while a silent loop inside one turn is cut.
func (e *Engine) run(ctx context.Context, state *domain.SimulationState, stepID string) (out *domain.SimulationState) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("step processing panicked", "step_id", state.CurrentStepID, "panic", r)
			e.fail(ctx, state, domain.StatusFinished, state.CurrentStepID, fmt.Sprintf("Internal error while processing step: %v", r))
			out = state
		}
	}()

	visited := make(map[string]struct{})
	next := stepID
	for next != "" {
		next = e.process(ctx, state, next, visited)
	}
	return state
}

// process handles a single step and returns the step to enter next within
// the same chain, or "" when the run suspended or ended.
func (e *Engine) process(ctx context.Context, state *domain.SimulationState, stepID string, visited map[string]struct{}) string {
	step, ok := e.flow.Step(stepID)
	if !ok {
		e.fail(ctx, state, domain.StatusFinished, stepID, fmt.Sprintf("Step %q not found in flow.", stepID))
		return ""
	}

	visited[stepID] = struct{}{}
	state.ClearPending()
	state.CurrentStepID = stepID
	e.emitStepEnter(ctx, state, stepID, step.Kind)

	text := e.evaluator.Render(step.DisplayText(), state.Context)
	e.appendHistory(state, domain.OriginBot, text, stepID)

	if step.Kind == domain.KindAction && step.Action.IsHandoff() {
		e.handoff(ctx, state, step.Action, step.NucleusID, step.DepartmentID, stepID)
	}

	if target, ok := domain.FirstMatch(step.ConditionalNext, e.evaluator.Predicate(state.Context)); ok {
		return e.advance(ctx, state, stepID, target, visited, "evaluating conditional next")
	}

	if step.Kind == domain.KindTerminate || (step.Kind == domain.KindAction && step.Action == domain.ActionTerminate) {
		e.finish(ctx, state, "")
		return ""
	}

	if step.AutoAdvance && step.NextStepID != "" {
		return e.advance(ctx, state, stepID, step.NextStepID, visited, "auto-advancing")
	}

	switch {
	case step.Kind == domain.KindMenu && len(step.Options) > 0:
		state.Prompt = text
		state.PendingOptions = make([]domain.Option, len(step.Options))
		for i, o := range step.Options {
			state.PendingOptions[i] = o.Clone()
		}
		e.suspend(ctx, state, domain.StatusAwaitingMenuChoice)
		return ""

	case step.Kind == domain.KindQuestion:
		state.Prompt = text
		state.VariableName = step.VariableName
		e.suspend(ctx, state, domain.StatusAwaitingFreeText)
		return ""

	case step.Kind == domain.KindConditional && len(step.Conditions) > 0:
		for _, c := range step.Conditions {
			if !e.evaluator.EvaluateCondition(c, state.Context) {
				continue
			}
			if c.NextStepID != "" {
				return e.advance(ctx, state, stepID, c.NextStepID, visited, "resolving condition")
			}
			break
		}
		state.Prompt = text
		state.PendingConditions = append([]domain.Condition(nil), step.Conditions...)
		e.suspend(ctx, state, domain.StatusAwaitingConditionChoice)
		return ""

	case step.NextStepID != "":
		state.Prompt = text
		state.ContinueTarget = step.NextStepID
		e.suspend(ctx, state, domain.StatusAwaitingManualContinue)
		return ""
	}

	e.finish(ctx, state, "")
	return ""
}

// advance follows an automatic transition unless it closes a loop in the
// current chain, in which case the run ends with a diagnostic.
func (e *Engine) advance(ctx context.Context, state *domain.SimulationState, from, target string, visited map[string]struct{}, while string) string {
	if _, seen := visited[target]; seen {
		e.logger.Warn("runtime loop detected", "step_id", from, "target", target)
		e.fail(ctx, state, domain.StatusFinished, from, fmt.Sprintf("Loop detected while %s of step %q.", while, from))
		return ""
	}
	return target
}

func (e *Engine) suspend(ctx context.Context, state *domain.SimulationState, status domain.Status) {
	state.Status = status
	e.logger.Debug("run suspended", "session_id", state.SessionID, "step_id", state.CurrentStepID, "status", status)
	if e.hooks.OnSuspend != nil {
		e.hooks.OnSuspend(ctx, &domain.RunEvent{
			EventBase: e.eventBase(state, domain.EventSuspend),
			StepID:    state.CurrentStepID,
			Status:    status,
		})
	}
}

func (e *Engine) finish(ctx context.Context, state *domain.SimulationState, reason string) {
	stepID := state.CurrentStepID
	state.ClearPending()
	state.Status = domain.StatusFinished
	state.CurrentStepID = ""
	if e.hooks.OnFinish != nil {
		e.hooks.OnFinish(ctx, &domain.RunEvent{
			EventBase: e.eventBase(state, domain.EventFinish),
			StepID:    stepID,
			Status:    domain.StatusFinished,
			Reason:    reason,
		})
	}
}

// fail records a system message and ends the run with the given status.
func (e *Engine) fail(ctx context.Context, state *domain.SimulationState, status domain.Status, stepID, message string) {
	e.logger.Warn("run ended with diagnostic", "session_id", state.SessionID, "step_id", stepID, "reason", message)
	e.appendHistory(state, domain.OriginSystem, message, stepID)
	state.Diagnostic = message
	if e.hooks.OnDiagnostic != nil {
		e.hooks.OnDiagnostic(ctx, &domain.RunEvent{
			EventBase: e.eventBase(state, domain.EventDiagnostic),
			StepID:    stepID,
			Status:    status,
			Reason:    message,
		})
	}
	if status == domain.StatusError {
		state.ClearPending()
		state.Status = domain.StatusError
		state.CurrentStepID = ""
		return
	}
	e.finish(ctx, state, message)
}

func (e *Engine) appendHistory(state *domain.SimulationState, origin domain.Origin, text, stepID string) {
	state.History = append(state.History, domain.HistoryEntry{
		ID:        e.newID(),
		Origin:    origin,
		Text:      text,
		StepID:    stepID,
		Timestamp: e.now(),
	})
}

func (e *Engine) emitStepEnter(ctx context.Context, state *domain.SimulationState, stepID string, kind domain.StepKind) {
	if e.hooks.OnStepEnter == nil {
		return
	}
	e.hooks.OnStepEnter(ctx, &domain.StepEvent{
		EventBase: e.eventBase(state, domain.EventStepEnter),
		StepID:    stepID,
		StepKind:  kind,
	})
}

func (e *Engine) eventBase(state *domain.SimulationState, t domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp: e.now(),
		Type:      t,
		SessionID: state.SessionID,
	}
}

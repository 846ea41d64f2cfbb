package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/triagem/pkg/domain"
)

// LogHooks writes one structured line per lifecycle event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step_enter", "session_id", e.SessionID, "step_id", e.StepID, "kind", e.StepKind)
		},
		OnSuspend: func(ctx context.Context, e *domain.RunEvent) {
			logger.DebugContext(ctx, "suspend", "session_id", e.SessionID, "step_id", e.StepID, "status", e.Status)
		},
		OnFinish: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "finish", "session_id", e.SessionID, "step_id", e.StepID)
		},
		OnDiagnostic: func(ctx context.Context, e *domain.RunEvent) {
			logger.WarnContext(ctx, "diagnostic", "session_id", e.SessionID, "step_id", e.StepID, "reason", e.Reason)
		},
		OnHandoff: func(ctx context.Context, e *domain.HandoffEvent) {
			logger.InfoContext(ctx, "handoff",
				"session_id", e.SessionID,
				"step_id", e.Handoff.StepID,
				"action", e.Handoff.Action,
				"nucleus_id", e.Handoff.NucleusID,
				"department_id", e.Handoff.DepartmentID,
			)
		},
	}
}

// Combine fans every event out to each set of hooks in order.
func Combine(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range hooks {
		out.OnStepEnter = chain(out.OnStepEnter, h.OnStepEnter)
		out.OnSuspend = chain(out.OnSuspend, h.OnSuspend)
		out.OnFinish = chain(out.OnFinish, h.OnFinish)
		out.OnDiagnostic = chain(out.OnDiagnostic, h.OnDiagnostic)
		out.OnHandoff = chain(out.OnHandoff, h.OnHandoff)
	}
	return out
}

func chain[E any](first, second func(context.Context, E)) func(context.Context, E) {
	switch {
	case first == nil:
		return second
	case second == nil:
		return first
	}
	return func(ctx context.Context, e E) {
		first(ctx, e)
		second(ctx, e)
	}
}

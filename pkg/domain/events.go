package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepEnter  EventType = "step_enter"
	EventSuspend    EventType = "suspend"
	EventFinish     EventType = "finish"
	EventDiagnostic EventType = "diagnostic"
	EventHandoff    EventType = "handoff"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
}

// StepEvent is emitted each time the interpreter processes a step.
type StepEvent struct {
	EventBase
	StepID   string   `json:"step_id"`
	StepKind StepKind `json:"step_kind"`
}

// RunEvent describes a suspension, the end of a run, or a runtime diagnostic.
type RunEvent struct {
	EventBase
	StepID string `json:"step_id,omitempty"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// HandoffEvent is emitted when an option or action step requests a transfer or ticket.
type HandoffEvent struct {
	EventBase
	Handoff Handoff `json:"handoff"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnStepEnter  func(context.Context, *StepEvent)
	OnSuspend    func(context.Context, *RunEvent)
	OnFinish     func(context.Context, *RunEvent)
	OnDiagnostic func(context.Context, *RunEvent)
	OnHandoff    func(context.Context, *HandoffEvent)
}

package domain

// Status is the suspension kind of a simulation.
type Status string

const (
	StatusIdle                    Status = "idle"
	StatusAwaitingMenuChoice      Status = "awaiting_menu_choice"
	StatusAwaitingFreeText        Status = "awaiting_free_text"
	StatusAwaitingConditionChoice Status = "awaiting_condition_choice"
	StatusAwaitingManualContinue  Status = "awaiting_manual_continue"
	StatusFinished                Status = "finished"
	StatusError                   Status = "error"
)

// Suspended reports whether the run is halted waiting for external input.
func (s Status) Suspended() bool {
	switch s {
	case StatusAwaitingMenuChoice, StatusAwaitingFreeText,
		StatusAwaitingConditionChoice, StatusAwaitingManualContinue:
		return true
	}
	return false
}

// Terminal reports whether the run has ended.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusError
}

// Handoff records a transfer or ticket request raised by an option or action step.
// The ids are opaque to the engine; the host resolves them.
type Handoff struct {
	Action       OptionAction `json:"action"`
	NucleusID    string       `json:"nucleusId,omitempty"`
	DepartmentID string       `json:"departmentId,omitempty"`
	StepID       string       `json:"stepId,omitempty"`
}

// SimulationState is the snapshot returned after every interpreter call.
// Callers treat it as read-only; the engine always returns a fresh copy.
type SimulationState struct {
	SessionID     string `json:"sessionId,omitempty"`
	FlowID        string `json:"flowId,omitempty"`
	Status        Status `json:"status"`
	CurrentStepID string `json:"currentStepId,omitempty"`

	// Prompt is the rendered message of the step the run is suspended on.
	Prompt string `json:"prompt,omitempty"`

	PendingOptions    []Option    `json:"pendingOptions,omitempty"`
	PendingConditions []Condition `json:"pendingConditions,omitempty"`
	VariableName      string      `json:"variableName,omitempty"`
	ContinueTarget    string      `json:"continueTarget,omitempty"`

	Handoffs []Handoff `json:"handoffs,omitempty"`

	Context map[string]any `json:"context"`
	History []HistoryEntry `json:"history"`

	// Diagnostic explains why a run ended abnormally.
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Clone returns a deep copy of the state.
func (s *SimulationState) Clone() *SimulationState {
	if s == nil {
		return nil
	}
	out := *s
	out.Context = CloneMap(s.Context)
	out.History = append([]HistoryEntry(nil), s.History...)
	out.Handoffs = append([]Handoff(nil), s.Handoffs...)
	if s.PendingOptions != nil {
		out.PendingOptions = make([]Option, len(s.PendingOptions))
		for i, o := range s.PendingOptions {
			out.PendingOptions[i] = o.Clone()
		}
	}
	out.PendingConditions = append([]Condition(nil), s.PendingConditions...)
	return &out
}

// ClearPending drops every field that describes the previous suspension.
func (s *SimulationState) ClearPending() {
	s.Prompt = ""
	s.PendingOptions = nil
	s.PendingConditions = nil
	s.VariableName = ""
	s.ContinueTarget = ""
}

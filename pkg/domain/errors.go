package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrFlowNotFound is returned when a flow ID cannot be found in a repository.
var ErrFlowNotFound = errors.New("flow not found")

// ErrNilFlow is returned when an operation receives no flow document.
var ErrNilFlow = errors.New("flow is nil")

// ErrNotSuspended is returned when input is submitted to a run that is not waiting for any.
var ErrNotSuspended = errors.New("simulation is not awaiting input")

// ErrInvalidChoice is returned when a menu or condition choice matches none of the pending entries.
var ErrInvalidChoice = errors.New("invalid choice")

package domain

import "time"

// Origin tells who produced a history entry.
type Origin string

const (
	OriginBot    Origin = "bot"
	OriginUser   Origin = "user"
	OriginSystem Origin = "system"
)

// HistoryEntry is one immutable line of the conversation transcript.
type HistoryEntry struct {
	ID        string    `json:"id"`
	Origin    Origin    `json:"origin"`
	Text      string    `json:"text"`
	StepID    string    `json:"stepId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

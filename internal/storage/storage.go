package storage

import "time"

// Event records one image-generation request and its cost.
// Events are appended in chronological order; the log is an audit
// trail for usage reporting, never consulted by quota admission.
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	UserID        int64     `json:"user_id"`
	Username      string    `json:"username,omitempty"`
	InteractionID string    `json:"interaction_id"`
	Prompt        string    `json:"prompt"`
	Model         string    `json:"model,omitempty"`
	PromptTokens  int       `json:"prompt_tokens"`
	OutputTokens  int       `json:"output_tokens"`
	Images        int       `json:"images"`
}

// Recorder abstracts persistence of generation events.
// Implementations can be file-based, database, etc.
// LoadGenerations should return events in chronological order.
// AppendGeneration should atomically append a new event.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendGeneration(event Event) error
	LoadGenerations() ([]Event, error)
}

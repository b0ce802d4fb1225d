package persist

import "time"

type Kind string

const (
	KindRequestPending Kind = "request-pending"
	KindResultsBrowser Kind = "results-browser"
)

// MaxOutputs bounds the browsable history per interaction. Appending past
// the cap evicts the oldest record; the caller removes its artifact.
const MaxOutputs = 50

// OutputRecord is one generated result in an interaction's history.
type OutputRecord struct {
	ImagePath  string    `json:"image_path"`
	Filename   string    `json:"filename"`
	PromptUsed string    `json:"prompt_used"`
	Timestamp  time.Time `json:"timestamp"`
}

// InteractionState is the durable snapshot of one workflow instance.
// The JSON field set is a stable on-disk contract; unknown fields in
// older or newer snapshots are ignored on load.
type InteractionState struct {
	ID              string         `json:"interaction_id"`
	Kind            Kind           `json:"interaction_type"`
	CreatedAt       time.Time      `json:"created_at"`
	OriginalText    string         `json:"original_text"`
	InputImagePaths []string       `json:"original_image_paths"`
	Outputs         []OutputRecord `json:"outputs"`
	CurrentIndex    int            `json:"current_index"`
	UserID          int64          `json:"user_id"`
	ChannelID       int64          `json:"channel_id"`
	MessageID       int            `json:"message_id"`
}

// CurrentOutput returns the record under the navigation cursor.
func (s *InteractionState) CurrentOutput() (OutputRecord, bool) {
	if len(s.Outputs) == 0 {
		return OutputRecord{}, false
	}
	idx := s.CurrentIndex
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s.Outputs) {
		idx = len(s.Outputs) - 1
	}
	return s.Outputs[idx], true
}

// AddOutput appends a record, moves the cursor to it and enforces the
// retention cap. Evicted records are returned so the caller can remove
// their artifact files.
func (s *InteractionState) AddOutput(rec OutputRecord) []OutputRecord {
	s.Outputs = append(s.Outputs, rec)
	var evicted []OutputRecord
	if n := len(s.Outputs) - MaxOutputs; n > 0 {
		evicted = append(evicted, s.Outputs[:n]...)
		s.Outputs = s.Outputs[n:]
	}
	s.CurrentIndex = len(s.Outputs) - 1
	return evicted
}

// NavPrev moves the cursor one step back. Returns false at the left edge.
func (s *InteractionState) NavPrev() bool {
	if len(s.Outputs) == 0 || s.CurrentIndex <= 0 {
		return false
	}
	s.CurrentIndex--
	return true
}

// NavNext moves the cursor one step forward. Returns false at the right edge.
func (s *InteractionState) NavNext() bool {
	if len(s.Outputs) == 0 || s.CurrentIndex >= len(s.Outputs)-1 {
		return false
	}
	s.CurrentIndex++
	return true
}

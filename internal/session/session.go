package session

import "time"

// Phase is the lifecycle state of a suggestion session
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseRequesting     Phase = "requesting"
	PhaseStreaming      Phase = "streaming"
	PhaseSettledSuccess Phase = "settled-success"
	PhaseSettledError   Phase = "settled-error"
)

// InFlight reports whether a request is currently outstanding
func (p Phase) InFlight() bool {
	return p == PhaseRequesting || p == PhaseStreaming
}

// Settled reports whether the phase is terminal for a session
func (p Phase) Settled() bool {
	return p == PhaseSettledSuccess || p == PhaseSettledError
}

// Session represents one suggestion request/response cycle
type Session struct {
	ID        string    `json:"id"`
	PostID    int64     `json:"post_id"`
	Type      string    `json:"type"`
	Tone      string    `json:"tone"`
	Prompt    string    `json:"prompt"`
	Retry     bool      `json:"retry"`
	Phase     Phase     `json:"phase"`
	Content   string    `json:"content"`
	Error     string    `json:"error,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Duration returns how long the session took to settle
func (s Session) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

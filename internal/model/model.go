package model

import (
	"io"
	"time"
)

// SessionState represents the state of a grading workflow session.
type SessionState string

const (
	StateAwaitingKey       SessionState = "awaiting_key"
	StateAwaitingResponses SessionState = "awaiting_responses"
	StateGrading           SessionState = "grading"
	StateReady             SessionState = "ready"
	StateFailed            SessionState = "failed"
)

// Terminal reports whether no further transition is possible.
func (s SessionState) Terminal() bool {
	return s == StateReady || s == StateFailed
}

// UploadStatus tracks which inputs the grading service has accepted.
// StudentResponsesAccepted only becomes true while AnswerKeyAccepted is true.
type UploadStatus struct {
	AnswerKeyAccepted        bool `json:"answer_key_accepted"`
	StudentResponsesAccepted bool `json:"student_responses_accepted"`
}

// Upload is a file handed to the grading service unchanged.
type Upload struct {
	Name    string
	Content io.Reader
}

// Tier is a performance band derived from a percentage.
type Tier struct {
	Label string `json:"label"`
	Class string `json:"class"`
}

// Stats holds class-wide statistics derived from a result set.
// All values are percentages rounded to one decimal place.
type Stats struct {
	Students    int            `json:"students"`
	Average     float64        `json:"average"`
	Highest     float64        `json:"highest"`
	Lowest      float64        `json:"lowest"`
	PassingRate float64        `json:"passing_rate"`
	Tiers       map[string]int `json:"tiers"`
}

// SessionSnapshot is a point-in-time view of a workflow session.
type SessionSnapshot struct {
	ID        string       `json:"id"`
	State     SessionState `json:"state"`
	Uploads   UploadStatus `json:"uploads"`
	Attempts  int          `json:"poll_attempts"`
	StartedAt time.Time    `json:"started_at"`
	Err       error        `json:"-"`
	Results   *ResultSet   `json:"-"`
	Stats     *Stats       `json:"stats,omitempty"`
}

// PollConfig holds the result polling policy set via CLI flags.
type PollConfig struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxInterval  time.Duration // cap for exponential growth
	Multiplier   float64       // 1 means fixed delay
	MaxAttempts  int           // 0 means no attempt limit
	Timeout      time.Duration // 0 means no deadline
}

// AppConfig holds runtime parameters shared by the commands.
type AppConfig struct {
	ServiceURL     string
	HTTPTimeout    time.Duration
	Poll           PollConfig
	Lang           string
	SummaryVariant string
}

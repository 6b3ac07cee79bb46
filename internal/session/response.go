package session

import (
	"strings"
	"time"
)

// Action is what the learner did with a presented card.
type Action string

const (
	ActionSubmit Action = "submit_answer"
	ActionSkip   Action = "skip_card"
)

// Response is a learner response delivered from the frontend.
type Response struct {
	CorrelationID string    `json:"correlation_id"`
	Action        Action    `json:"action"`
	ResponseText  string    `json:"response_text,omitempty"`
	// ReceivedAt is stamped by the engine on delivery.
	ReceivedAt time.Time `json:"received_at"`
}

// Normalize applies the permissive parsing rule: any action other than
// submit_answer that carries response text is treated as a submission, and
// an empty action with text is a submission too.
func (r Response) Normalize() Response {
	r.CorrelationID = strings.TrimSpace(r.CorrelationID)
	if r.Action != ActionSubmit && strings.TrimSpace(r.ResponseText) != "" {
		r.Action = ActionSubmit
	}
	if r.Action == "" {
		r.Action = ActionSkip
	}
	return r
}

// IsSkip reports whether the response skips the card without an answer.
func (r Response) IsSkip() bool {
	return r.Action != ActionSubmit
}

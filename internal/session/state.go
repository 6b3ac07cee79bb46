package session

import (
	"time"

	"github.com/abhisek/lessonloop/internal/lesson"
)

// Stage is the workflow state a session is in.
type Stage string

const (
	StageDesign        Stage = "design"         // selecting and preparing the next card
	StageAwaitResponse Stage = "await_response" // suspended until the learner answers
	StageMark          Stage = "mark"           // evaluating the response
	StageProgress      Stage = "progress"       // advancing to the next card
	StageDone          Stage = "done"           // terminal
)

// EndReason records why a session reached StageDone.
type EndReason string

const (
	EndCompleted EndReason = "completed"
	EndCancelled EndReason = "cancelled"
	EndExpired   EndReason = "expired"
	EndFailed    EndReason = "failed"
)

// PendingRequest is the single presentation request awaiting an answer.
type PendingRequest struct {
	CorrelationID string    `json:"correlation_id"`
	CardID        string    `json:"card_id"`
	CardIndex     int       `json:"card_index"`
	Attempt       int       `json:"attempt"`
	IssuedAt      time.Time `json:"issued_at"`
}

// EvidenceEntry is the immutable record of one graded attempt.
type EvidenceEntry struct {
	Timestamp          time.Time `json:"timestamp"`
	CardID             string    `json:"card_id"`
	CFUID              string    `json:"cfu_id"`
	Response           string    `json:"response"`
	IsCorrect          bool      `json:"is_correct"`
	Confidence         float64   `json:"confidence"`
	PartialCredit      *float64  `json:"partial_credit,omitempty"`
	Attempt            int       `json:"attempt"`
	MaxAttemptsReached bool      `json:"max_attempts_reached"`
}

// MasteryUpdate is a raw per-outcome score emitted for one graded attempt.
type MasteryUpdate struct {
	OutcomeID string    `json:"outcome_id"`
	CardID    string    `json:"card_id"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// Feedback is what the learner sees after a response is marked.
type Feedback struct {
	CardID         string `json:"card_id"`
	Attempt        int    `json:"attempt"`
	IsCorrect      bool   `json:"is_correct"`
	ShouldProgress bool   `json:"should_progress"`
	Text           string `json:"text"`
	Reasoning      string `json:"reasoning,omitempty"`
	Explanation    string `json:"explanation,omitempty"`
	Skipped        bool   `json:"skipped,omitempty"`
}

// Session is one learner's run through one lesson. The workflow engine is
// the only writer; every other package treats it as a value.
type Session struct {
	ID        string        `json:"id"`
	StudentID string        `json:"student_id"`
	Lesson    lesson.Lesson `json:"lesson"`
	Config    Config        `json:"config"`

	Stage            Stage    `json:"stage"`
	CurrentCardIndex int      `json:"current_card_index"`
	CardsCompleted   []string `json:"cards_completed"`
	SkippedCards     []string `json:"skipped_cards,omitempty"`
	Attempts         int      `json:"attempts"`
	MaxAttempts      int      `json:"max_attempts"`

	Pending *PendingRequest `json:"pending,omitempty"`

	// Inbox holds delivered responses keyed by correlation id.
	Inbox map[string]Response `json:"inbox,omitempty"`

	// ResponseLog is the append-only delivery log used when Config.LegacyScan
	// is set.
	ResponseLog []Response `json:"response_log,omitempty"`

	Evidence       []EvidenceEntry `json:"evidence"`
	MasteryUpdates []MasteryUpdate `json:"mastery_updates"`

	// RevealRequested is set by the attempt governor when the budget ran out
	// on an incorrect answer.
	RevealRequested bool      `json:"reveal_requested,omitempty"`
	LastFeedback    *Feedback `json:"last_feedback,omitempty"`

	Done      bool      `json:"done"`
	EndReason EndReason `json:"end_reason,omitempty"`
	Error     string    `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version is the optimistic-concurrency token maintained by the store.
	Version int64 `json:"version"`
}

// New creates a session positioned at the first card in StageDesign.
func New(id, studentID string, l lesson.Lesson, cfg Config, now time.Time) *Session {
	cfg = cfg.WithDefaults()
	return &Session{
		ID:             id,
		StudentID:      studentID,
		Lesson:         l,
		Config:         cfg,
		Stage:          StageDesign,
		MaxAttempts:    cfg.MaxAttempts,
		CardsCompleted: []string{},
		Inbox:          map[string]Response{},
		Evidence:       []EvidenceEntry{},
		MasteryUpdates: []MasteryUpdate{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Sequencer returns a card sequencer positioned at the current card.
func (s *Session) Sequencer() *lesson.Sequencer {
	return lesson.NewSequencer(&s.Lesson, s.CurrentCardIndex)
}

// CurrentCard returns the card at CurrentCardIndex.
func (s *Session) CurrentCard() (lesson.Card, bool) {
	return s.Sequencer().Current()
}

// Finish moves the session to its terminal state. Finishing an already
// finished session keeps the original reason.
func (s *Session) Finish(reason EndReason, now time.Time) {
	if s.Done {
		return
	}
	s.Done = true
	s.Stage = StageDone
	s.EndReason = reason
	s.Pending = nil
	s.UpdatedAt = now
}

// Clone returns a deep copy. The engine mutates clones and only commits them
// once a transition has fully succeeded.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Lesson = cloneLesson(s.Lesson)
	c.CardsCompleted = append([]string{}, s.CardsCompleted...)
	c.SkippedCards = append([]string(nil), s.SkippedCards...)
	c.ResponseLog = append([]Response(nil), s.ResponseLog...)
	c.Evidence = append([]EvidenceEntry{}, s.Evidence...)
	c.MasteryUpdates = append([]MasteryUpdate{}, s.MasteryUpdates...)

	if s.Pending != nil {
		p := *s.Pending
		c.Pending = &p
	}
	if s.LastFeedback != nil {
		f := *s.LastFeedback
		c.LastFeedback = &f
	}
	c.Inbox = make(map[string]Response, len(s.Inbox))
	for k, v := range s.Inbox {
		c.Inbox[k] = v
	}
	return &c
}

func cloneLesson(l lesson.Lesson) lesson.Lesson {
	out := l
	out.OutcomeRefs = append([]string(nil), l.OutcomeRefs...)
	out.Cards = make([]lesson.Card, len(l.Cards))
	for i, c := range l.Cards {
		cc := c
		cc.Examples = append([]string(nil), c.Examples...)
		cc.OutcomeRefs = append([]string(nil), c.OutcomeRefs...)
		cc.CFU.Options = append([]string(nil), c.CFU.Options...)
		out.Cards[i] = cc
	}
	return out
}

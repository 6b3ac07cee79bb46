package store

import (
	"context"
	"errors"
	"time"

	"github.com/abhisek/lessonloop/internal/session"
)

var (
	// ErrSessionNotFound is returned when no session exists for an id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrConflict is returned when a write lost an optimistic-concurrency
	// race, or when creating a session whose id is already taken.
	ErrConflict = errors.New("session was modified concurrently")

	// ErrCorrupted is returned when a persisted session cannot be decoded.
	// It is fatal for that session only.
	ErrCorrupted = errors.New("persisted session is corrupted")
)

// SessionRepo is the durable keyed storage for session snapshots. Every
// write is a compare-and-swap on Session.Version.
type SessionRepo interface {
	// Create stores a new session and sets its Version to 1.
	Create(ctx context.Context, s *session.Session) error

	// Get loads the session with the given id.
	Get(ctx context.Context, id string) (*session.Session, error)

	// Update replaces the stored session if its version still equals
	// s.Version, then increments s.Version. Returns ErrConflict otherwise.
	Update(ctx context.Context, s *session.Session) error

	// ListAwaiting returns the ids of sessions suspended in await_response.
	ListAwaiting(ctx context.Context) ([]string, error)
}

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// EvidenceEventData is one graded attempt as written to the event log.
type EvidenceEventData struct {
	SessionID string
	StudentID string
	LessonID  string
	Entry     session.EvidenceEntry
}

// EvidenceRecord is a persisted evidence event.
type EvidenceRecord struct {
	ID        int
	Sequence  int64
	SessionID string
	StudentID string
	LessonID  string
	session.EvidenceEntry
}

// MasteryEventData is one per-outcome mastery score as written to the
// event log.
type MasteryEventData struct {
	SessionID string
	StudentID string
	LessonID  string
	Update    session.MasteryUpdate
}

// MasteryRecord is a persisted mastery event.
type MasteryRecord struct {
	ID        int
	Sequence  int64
	SessionID string
	StudentID string
	LessonID  string
	session.MasteryUpdate
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	SessionID    string
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEventRecord is a persisted LLM request event.
type LLMEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMEventFilter narrows QueryLLMEvents. Empty fields match everything.
type LLMEventFilter struct {
	QueryOpts
	SessionID  string
	Purpose    string
	FailedOnly bool
}

// LLMUsageStat aggregates LLM usage for one purpose.
type LLMUsageStat struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// LLMModelUsage aggregates LLM usage for one model.
type LLMModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// EventRepo provides append and query access to the event log.
type EventRepo interface {
	AppendEvidence(ctx context.Context, data EvidenceEventData) error
	AppendMastery(ctx context.Context, data MasteryEventData) error

	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	QueryEvidence(ctx context.Context, sessionID string, opts QueryOpts) ([]EvidenceRecord, error)
	QueryMastery(ctx context.Context, studentID string, opts QueryOpts) ([]MasteryRecord, error)

	QueryLLMEvents(ctx context.Context, filter LLMEventFilter) ([]LLMEventRecord, error)
	GetLLMEvent(ctx context.Context, id int) (*LLMEventRecord, error)
	LLMUsageByPurpose(ctx context.Context) ([]LLMUsageStat, error)
	LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error)
}

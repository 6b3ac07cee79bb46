// Package correlation pairs outgoing presentation requests with the
// responses that eventually unblock them.
package correlation

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/abhisek/lessonloop/internal/session"
)

// Namespace seeds the name-based UUIDs used as correlation ids.
var Namespace = uuid.MustParse("6f1c3a52-8d4e-4b8e-9a67-2f0b5c1d7e39")

// Protocol derives correlation ids for one session.
type Protocol struct {
	sessionID string
}

// New returns a protocol bound to sessionID.
func New(sessionID string) *Protocol {
	return &Protocol{sessionID: sessionID}
}

// Register returns the correlation id for presenting the card at cardIndex
// for the given attempt. The id is a SHA-1 name UUID over
// (session, card index, attempt), so re-deriving it after a restart yields
// the same value while a retry of the same card gets a fresh one.
func (p *Protocol) Register(cardIndex, attempt int) string {
	name := fmt.Sprintf("%s:%d:%d", p.sessionID, cardIndex, attempt)
	return uuid.NewSHA1(Namespace, []byte(name)).String()
}

// Verify reports whether id is the one Register would produce for the
// session's pending request. It guards against forged or corrupted
// pending records.
func (p *Protocol) Verify(pending *session.PendingRequest) bool {
	if pending == nil {
		return false
	}
	return p.Register(pending.CardIndex, pending.Attempt) == pending.CorrelationID
}

// FindResponse scans log from the most recent entry backwards, looking at
// no more than window entries, and returns the first response carrying id.
// Entries for any other id are ignored. A window <= 0 scans the whole log.
func FindResponse(id string, log []session.Response, window int) (session.Response, bool) {
	if id == "" {
		return session.Response{}, false
	}
	stop := 0
	if window > 0 && len(log) > window {
		stop = len(log) - window
	}
	for i := len(log) - 1; i >= stop; i-- {
		if log[i].CorrelationID == id {
			return log[i], true
		}
	}
	return session.Response{}, false
}

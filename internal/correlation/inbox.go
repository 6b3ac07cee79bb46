package correlation

import "github.com/abhisek/lessonloop/internal/session"

// Matches reports whether id names the session's currently pending request.
func Matches(s *session.Session, id string) bool {
	return s.Pending != nil && id != "" && s.Pending.CorrelationID == id
}

// Lookup returns the delivered response for the session's pending request,
// if one has arrived. It never mutates the session.
func Lookup(s *session.Session) (session.Response, bool) {
	if s.Pending == nil {
		return session.Response{}, false
	}
	id := s.Pending.CorrelationID
	if s.Config.LegacyScan {
		return FindResponse(id, s.ResponseLog, s.Config.ScanWindow)
	}
	r, ok := s.Inbox[id]
	return r, ok
}

// Record stores a delivered response on the session. The first delivery
// for an id wins; duplicates are dropped and Record returns false.
func Record(s *session.Session, r session.Response) bool {
	if s.Config.LegacyScan {
		if _, ok := FindResponse(r.CorrelationID, s.ResponseLog, s.Config.ScanWindow); ok {
			return false
		}
		s.ResponseLog = append(s.ResponseLog, r)
		if w := s.Config.ScanWindow; w > 0 && len(s.ResponseLog) > w {
			s.ResponseLog = append([]session.Response(nil), s.ResponseLog[len(s.ResponseLog)-w:]...)
		}
		return true
	}

	if s.Inbox == nil {
		s.Inbox = map[string]session.Response{}
	}
	if _, ok := s.Inbox[r.CorrelationID]; ok {
		return false
	}
	s.Inbox[r.CorrelationID] = r
	return true
}

// Consume removes a response from the inbox once it has been marked. In
// legacy mode the log is left intact; the next pending id will not match it.
func Consume(s *session.Session, id string) {
	if !s.Config.LegacyScan {
		delete(s.Inbox, id)
	}
}

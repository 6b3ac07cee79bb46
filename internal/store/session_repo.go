package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/lessonloop/internal/session"
)

// sqliteSessionRepo implements SessionRepo on the sessions table. The full
// session is stored as a JSON document; the indexed columns exist for
// listing and inspection.
type sqliteSessionRepo struct {
	db *sql.DB
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func pendingID(s *session.Session) string {
	if s.Pending == nil {
		return ""
	}
	return s.Pending.CorrelationID
}

func (r *sqliteSessionRepo) Create(ctx context.Context, s *session.Session) error {
	s.Version = 1
	state, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	query, args := builder().Insert(tableSessions).
		Columns("id", "student_id", "lesson_id", "stage", "done",
			"pending_correlation_id", "state", "version", "created_at", "updated_at").
		Values(s.ID, s.StudentID, s.Lesson.ID, string(s.Stage), s.Done,
			pendingID(s), state, s.Version, s.CreatedAt, s.UpdatedAt).
		OnConflict(entsql.ConflictColumns("id"), entsql.DoNothing()).
		Query()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %q already exists: %w", s.ID, ErrConflict)
	}
	return nil
}

func (r *sqliteSessionRepo) Get(ctx context.Context, id string) (*session.Session, error) {
	query, args := builder().Select("state", "version").
		From(entsql.Table(tableSessions)).
		Where(entsql.EQ("id", id)).
		Query()

	var (
		state   []byte
		version int64
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&state, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	return decodeSession(id, state, version)
}

func (r *sqliteSessionRepo) Update(ctx context.Context, s *session.Session) error {
	next := s.Version + 1
	snapshot := *s
	snapshot.Version = next
	state, err := json.Marshal(&snapshot)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	query, args := builder().Update(tableSessions).
		Set("stage", string(s.Stage)).
		Set("done", s.Done).
		Set("pending_correlation_id", pendingID(s)).
		Set("state", state).
		Set("version", next).
		Set("updated_at", s.UpdatedAt).
		Where(entsql.And(entsql.EQ("id", s.ID), entsql.EQ("version", s.Version))).
		Query()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		if _, err := r.Get(ctx, s.ID); errors.Is(err, ErrSessionNotFound) {
			return err
		}
		return fmt.Errorf("session %q at version %d: %w", s.ID, s.Version, ErrConflict)
	}

	s.Version = next
	return nil
}

func (r *sqliteSessionRepo) ListAwaiting(ctx context.Context) ([]string, error) {
	query, args := builder().Select("id").
		From(entsql.Table(tableSessions)).
		Where(entsql.And(
			entsql.EQ("stage", string(session.StageAwaitResponse)),
			entsql.EQ("done", false),
		)).
		OrderBy("updated_at").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list awaiting sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// decodeSession unmarshals a stored document and checks it is internally
// consistent. Any failure is reported as ErrCorrupted.
func decodeSession(id string, state []byte, version int64) (*session.Session, error) {
	var s session.Session
	if err := json.Unmarshal(state, &s); err != nil {
		return nil, fmt.Errorf("session %q: %w: %v", id, ErrCorrupted, err)
	}
	if s.ID != id {
		return nil, fmt.Errorf("session %q: %w: stored id %q", id, ErrCorrupted, s.ID)
	}
	if err := session.CheckInvariants(&s); err != nil {
		return nil, fmt.Errorf("session %q: %w: %v", id, ErrCorrupted, err)
	}
	if s.Inbox == nil {
		s.Inbox = map[string]session.Response{}
	}
	s.Version = version
	return &s, nil
}

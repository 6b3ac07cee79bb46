package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// eventRepo implements EventRepo on the event tables and the global
// sequence counter.
type eventRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

func (r *eventRepo) AppendEvidence(ctx context.Context, data EvidenceEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	e := data.Entry
	var partial any
	if e.PartialCredit != nil {
		partial = *e.PartialCredit
	}

	query, args := builder().Insert(tableEvidence).
		Columns("sequence", "timestamp", "session_id", "student_id", "lesson_id", "card_id",
			"cfu_id", "response", "is_correct", "confidence", "partial_credit", "attempt",
			"max_attempts_reached").
		Values(seqNum, timestampOrNow(e.Timestamp), data.SessionID, data.StudentID, data.LessonID, e.CardID,
			e.CFUID, e.Response, e.IsCorrect, e.Confidence, partial, e.Attempt,
			e.MaxAttemptsReached).
		Query()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save evidence event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryEvidence(ctx context.Context, sessionID string, opts QueryOpts) ([]EvidenceRecord, error) {
	sel := builder().Select("id", "sequence", "timestamp", "session_id", "student_id", "lesson_id",
		"card_id", "cfu_id", "response", "is_correct", "confidence", "partial_credit", "attempt",
		"max_attempts_reached").
		From(entsql.Table(tableEvidence)).
		OrderBy("sequence")

	preds := opts.predicates()
	if sessionID != "" {
		preds = append(preds, entsql.EQ("session_id", sessionID))
	}
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query evidence events: %w", err)
	}
	defer rows.Close()

	var out []EvidenceRecord
	for rows.Next() {
		var (
			rec     EvidenceRecord
			partial sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &rec.Sequence, &rec.Timestamp, &rec.SessionID, &rec.StudentID,
			&rec.LessonID, &rec.CardID, &rec.CFUID, &rec.Response, &rec.IsCorrect, &rec.Confidence,
			&partial, &rec.Attempt, &rec.MaxAttemptsReached); err != nil {
			return nil, fmt.Errorf("scan evidence event: %w", err)
		}
		if partial.Valid {
			v := partial.Float64
			rec.PartialCredit = &v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// predicates translates the sequence and time window into SQL predicates.
func (o QueryOpts) predicates() []*entsql.Predicate {
	var preds []*entsql.Predicate
	if o.After > 0 {
		preds = append(preds, entsql.GT("sequence", o.After))
	}
	if o.Before > 0 {
		preds = append(preds, entsql.LT("sequence", o.Before))
	}
	if !o.From.IsZero() {
		preds = append(preds, entsql.GTE("timestamp", o.From))
	}
	if !o.To.IsZero() {
		preds = append(preds, entsql.LTE("timestamp", o.To))
	}
	return preds
}

func timestampOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

func (r *eventRepo) AppendMastery(ctx context.Context, data MasteryEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	u := data.Update
	query, args := builder().Insert(tableMastery).
		Columns("sequence", "timestamp", "session_id", "student_id", "lesson_id",
			"card_id", "outcome_id", "score").
		Values(seqNum, timestampOrNow(u.Timestamp), data.SessionID, data.StudentID, data.LessonID,
			u.CardID, u.OutcomeID, u.Score).
		Query()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save mastery event: %w", err)
	}
	return nil
}

// QueryMastery returns mastery events for a student in sequence order. An
// empty studentID returns events for everyone.
func (r *eventRepo) QueryMastery(ctx context.Context, studentID string, opts QueryOpts) ([]MasteryRecord, error) {
	sel := builder().Select("id", "sequence", "timestamp", "session_id", "student_id",
		"lesson_id", "card_id", "outcome_id", "score").
		From(entsql.Table(tableMastery)).
		OrderBy("sequence")

	preds := opts.predicates()
	if studentID != "" {
		preds = append(preds, entsql.EQ("student_id", studentID))
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
		return nil, fmt.Errorf("query mastery events: %w", err)
	}
	defer rows.Close()

	var out []MasteryRecord
	for rows.Next() {
		var rec MasteryRecord
		if err := rows.Scan(&rec.ID, &rec.Sequence, &rec.Timestamp, &rec.SessionID, &rec.StudentID,
			&rec.LessonID, &rec.CardID, &rec.OutcomeID, &rec.Score); err != nil {
			return nil, fmt.Errorf("scan mastery event: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

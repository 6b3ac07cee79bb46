package store

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table and column names shared by the repositories.
const (
	tableSessions    = "sessions"
	tableEvidence    = "evidence_events"
	tableMastery     = "mastery_events"
	tableLLMRequests = "llm_request_events"
	tableSequence    = "global_sequence"
)

var (
	sessionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 64},
		{Name: "student_id", Type: field.TypeString},
		{Name: "lesson_id", Type: field.TypeString},
		{Name: "stage", Type: field.TypeString},
		{Name: "done", Type: field.TypeBool, Default: false},
		{Name: "pending_correlation_id", Type: field.TypeString, Default: ""},
		{Name: "state", Type: field.TypeJSON},
		{Name: "version", Type: field.TypeInt64, Default: 1},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	sessionsTable = &schema.Table{
		Name:       tableSessions,
		Columns:    sessionsColumns,
		PrimaryKey: []*schema.Column{sessionsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "session_student_id", Columns: []*schema.Column{sessionsColumns[1]}},
			{Name: "session_stage", Columns: []*schema.Column{sessionsColumns[3]}},
		},
	}

	// eventColumns returns the id, sequence and timestamp columns every
	// event table starts with.
	eventColumns = func(extra ...*schema.Column) []*schema.Column {
		return append([]*schema.Column{
			{Name: "id", Type: field.TypeInt, Increment: true},
			{Name: "sequence", Type: field.TypeInt64, Unique: true},
			{Name: "timestamp", Type: field.TypeTime},
		}, extra...)
	}

	evidenceColumns = eventColumns(
		&schema.Column{Name: "session_id", Type: field.TypeString},
		&schema.Column{Name: "student_id", Type: field.TypeString},
		&schema.Column{Name: "lesson_id", Type: field.TypeString},
		&schema.Column{Name: "card_id", Type: field.TypeString},
		&schema.Column{Name: "cfu_id", Type: field.TypeString},
		&schema.Column{Name: "response", Type: field.TypeString, Size: 2147483647},
		&schema.Column{Name: "is_correct", Type: field.TypeBool},
		&schema.Column{Name: "confidence", Type: field.TypeFloat64},
		&schema.Column{Name: "partial_credit", Type: field.TypeFloat64, Nullable: true},
		&schema.Column{Name: "attempt", Type: field.TypeInt},
		&schema.Column{Name: "max_attempts_reached", Type: field.TypeBool},
	)
	evidenceTable = &schema.Table{
		Name:       tableEvidence,
		Columns:    evidenceColumns,
		PrimaryKey: []*schema.Column{evidenceColumns[0]},
		Indexes: []*schema.Index{
			{Name: "evidence_session_id", Columns: []*schema.Column{evidenceColumns[3]}},
			{Name: "evidence_student_id", Columns: []*schema.Column{evidenceColumns[4]}},
		},
	}

	masteryColumns = eventColumns(
		&schema.Column{Name: "session_id", Type: field.TypeString},
		&schema.Column{Name: "student_id", Type: field.TypeString},
		&schema.Column{Name: "lesson_id", Type: field.TypeString},
		&schema.Column{Name: "card_id", Type: field.TypeString},
		&schema.Column{Name: "outcome_id", Type: field.TypeString},
		&schema.Column{Name: "score", Type: field.TypeFloat64},
	)
	masteryTable = &schema.Table{
		Name:       tableMastery,
		Columns:    masteryColumns,
		PrimaryKey: []*schema.Column{masteryColumns[0]},
		Indexes: []*schema.Index{
			{Name: "mastery_session_id", Columns: []*schema.Column{masteryColumns[3]}},
			{Name: "mastery_student_outcome", Columns: []*schema.Column{masteryColumns[4], masteryColumns[7]}},
		},
	}

	llmColumns = eventColumns(
		&schema.Column{Name: "session_id", Type: field.TypeString, Default: ""},
		&schema.Column{Name: "provider", Type: field.TypeString},
		&schema.Column{Name: "model", Type: field.TypeString},
		&schema.Column{Name: "purpose", Type: field.TypeString},
		&schema.Column{Name: "input_tokens", Type: field.TypeInt, Default: 0},
		&schema.Column{Name: "output_tokens", Type: field.TypeInt, Default: 0},
		&schema.Column{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
		&schema.Column{Name: "success", Type: field.TypeBool},
		&schema.Column{Name: "error_message", Type: field.TypeString, Default: ""},
		&schema.Column{Name: "request_body", Type: field.TypeString, Size: 2147483647, Default: ""},
		&schema.Column{Name: "response_body", Type: field.TypeString, Size: 2147483647, Default: ""},
	)
	llmTable = &schema.Table{
		Name:       tableLLMRequests,
		Columns:    llmColumns,
		PrimaryKey: []*schema.Column{llmColumns[0]},
		Indexes: []*schema.Index{
			{Name: "llm_purpose", Columns: []*schema.Column{llmColumns[6]}},
			{Name: "llm_success", Columns: []*schema.Column{llmColumns[10]}},
		},
	}

	sequenceColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt},
		{Name: "next_val", Type: field.TypeInt64, Default: 1},
	}
	sequenceTable = &schema.Table{
		Name:       tableSequence,
		Columns:    sequenceColumns,
		PrimaryKey: []*schema.Column{sequenceColumns[0]},
	}

	// tables lists everything the migrator manages.
	tables = []*schema.Table{sessionsTable, evidenceTable, masteryTable, llmTable, sequenceTable}
)

// migrate creates or upgrades all tables.
func migrate(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("new migrate: %w", err)
	}
	if err := m.Create(ctx, tables...); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

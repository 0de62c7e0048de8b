// Package compliance keeps an append-only audit trail of doctor commands and
// partially committed operations.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

const (
	// EventDoctorCommand is logged for every authorized doctor-only command.
	EventDoctorCommand AuditEventType = "doctor.command"
	// EventReconciliationGap is logged when a commit succeeded on one
	// collaborator but not the other.
	EventReconciliationGap AuditEventType = "reconciliation.gap"
)

// AuditEvent represents an immutable audit record.
type AuditEvent struct {
	ID        string          `json:"id"`
	EventType AuditEventType  `json:"event_type"`
	SenderID  string          `json:"sender_id"`
	MessageID string          `json:"message_id,omitempty"`
	Intent    string          `json:"intent,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditDetails contains event-specific details.
type AuditDetails struct {
	// For doctor commands
	Outcome string `json:"outcome,omitempty"`

	// For reconciliation gaps
	Operation       string `json:"operation,omitempty"`
	AppointmentRef  string `json:"appointment_ref,omitempty"`
	CalendarEventID string `json:"calendar_event_id,omitempty"`
	Error           string `json:"error,omitempty"`
}

// AuditService writes and reads audit events.
type AuditService struct {
	db *sql.DB
}

func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// LogEvent records an audit event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO clinic_audit_events (
			id, event_type, sender_id, message_id, intent, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.SenderID,
		nullString(event.MessageID),
		nullString(event.Intent),
		event.Details,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}
	return nil
}

// LogDoctorCommand records an authorized doctor command and how it ended.
func (s *AuditService) LogDoctorCommand(ctx context.Context, senderID, messageID, intent, outcome string) error {
	detailsJSON, _ := json.Marshal(AuditDetails{Outcome: outcome})
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventDoctorCommand,
		SenderID:  senderID,
		MessageID: messageID,
		Intent:    intent,
		Details:   detailsJSON,
	})
}

// LogReconciliationGap records a partial commit for manual follow-up.
func (s *AuditService) LogReconciliationGap(ctx context.Context, senderID, messageID string, details AuditDetails) error {
	detailsJSON, _ := json.Marshal(details)
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventReconciliationGap,
		SenderID:  senderID,
		MessageID: messageID,
		Intent:    details.Operation,
		Details:   detailsJSON,
	})
}

// QueryEvents retrieves audit events with filters, newest first.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT id, event_type, sender_id, message_id, intent, details, created_at
		FROM clinic_audit_events
		WHERE 1 = 1
	`
	var args []interface{}
	argIdx := 1

	if filter.SenderID != "" {
		query += fmt.Sprintf(" AND sender_id = $%d", argIdx)
		args = append(args, filter.SenderID)
		argIdx++
	}
	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, filter.EventType)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var messageID, intent sql.NullString
		if err := rows.Scan(&e.ID, &e.EventType, &e.SenderID, &messageID, &intent, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		e.MessageID = messageID.String
		e.Intent = intent.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("compliance: failed to read audit events: %w", err)
	}
	return events, nil
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	SenderID  string
	EventType AuditEventType
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_LogDoctorCommand(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuditService(db)
	details, _ := json.Marshal(AuditDetails{Outcome: "paused from 2025-03-01 to 2025-03-05"})

	mock.ExpectExec("INSERT INTO clinic_audit_events").
		WithArgs(sqlmock.AnyArg(), EventDoctorCommand, "+15550100", sql.NullString{String: "SM1", Valid: true},
			sql.NullString{String: "pause_bookings", Valid: true}, json.RawMessage(details), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = service.LogDoctorCommand(context.Background(), "+15550100", "SM1", "pause_bookings", "paused from 2025-03-01 to 2025-03-05")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_LogReconciliationGap(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuditService(db)

	mock.ExpectExec("INSERT INTO clinic_audit_events").
		WithArgs(sqlmock.AnyArg(), EventReconciliationGap, "+15550001", sql.NullString{},
			sql.NullString{String: "book", Valid: true}, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	err = service.LogReconciliationGap(context.Background(), "+15550001", "", AuditDetails{
		Operation:       "book",
		CalendarEventID: "evt-1",
		Error:           "sheet write failed",
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_QueryEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuditService(db)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "event_type", "sender_id", "message_id", "intent", "details", "created_at"}).
		AddRow("evt-1", "reconciliation.gap", "+15550001", nil, "book", []byte(`{"operation":"book"}`), now)
	mock.ExpectQuery("SELECT id, event_type").
		WithArgs(EventReconciliationGap).
		WillReturnRows(rows)

	events, err := service.QueryEvents(context.Background(), AuditFilter{EventType: EventReconciliationGap, Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "book", events[0].Intent)
	assert.Empty(t, events[0].MessageID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

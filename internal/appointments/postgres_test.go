package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestPostgresStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newPostgresStoreWithQuerier(mock)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), "Ana", "+15550001", "2026-03-10", "10:00", "checkup", 60, "booked", "evt-1").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	saved, err := store.Append(context.Background(), Appointment{
		PatientName:     "Ana",
		PhoneNumber:     "+15550001",
		Date:            "2026-03-10",
		Time:            "10:00",
		Reason:          "checkup",
		Status:          StatusBooked,
		CalendarEventID: "evt-1",
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if _, err := uuid.Parse(saved.Ref); err != nil {
		t.Fatalf("expected uuid ref, got %q", saved.Ref)
	}
	if !saved.CreatedAt.Equal(now) {
		t.Fatalf("unexpected created_at %v", saved.CreatedAt)
	}

	id := uuid.MustParse(saved.Ref)
	rows := pgxmock.NewRows([]string{
		"id", "patient_name", "phone_number", "appointment_date", "appointment_time", "reason",
		"duration_minutes", "status", "calendar_event_id", "created_at", "updated_at",
	}).AddRow(id, "Ana", "+15550001", "2026-03-10", "10:00", "checkup", 60, "booked", "evt-1", now, now)
	mock.ExpectQuery("SELECT id").
		WithArgs("2026-03-10", []string{"booked", "pending_confirmation", "rescheduled"}).
		WillReturnRows(rows)

	got, err := store.Query(context.Background(), Filter{Date: "2026-03-10", Statuses: ActiveStatuses()})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 1 || got[0].Ref != saved.Ref || got[0].Status != StatusBooked {
		t.Fatalf("unexpected rows: %#v", got)
	}

	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs("cancelled", id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := store.Update(context.Background(), saved.Ref, StatusPatch(StatusCancelled)); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreUpdateMissingRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newPostgresStoreWithQuerier(mock)
	id := uuid.New()
	date, clock := "2026-03-11", "14:00"

	mock.ExpectExec("UPDATE appointments SET appointment_date").
		WithArgs(date, clock, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.Update(context.Background(), id.String(), Patch{Date: &date, Time: &clock})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Update(context.Background(), "row-7", StatusPatch(StatusCancelled)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed ref, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newPostgresStoreWithQuerier(mock)
	mock.ExpectQuery("SELECT id").WithArgs("ana").WillReturnError(errors.New("connection reset"))

	if _, err := store.Query(context.Background(), Filter{PatientName: " ana "}); err == nil {
		t.Fatal("expected query error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

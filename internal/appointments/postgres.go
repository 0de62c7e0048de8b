package appointments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var postgresTracer = otel.Tracer("clinic.internal.appointments.postgres")

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps appointments in the appointments table.
type PostgresStore struct {
	pool pgxQuerier
}

// NewPostgresStore creates a store backed by a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

func newPostgresStoreWithQuerier(q pgxQuerier) *PostgresStore {
	if q == nil {
		panic("appointments: querier required")
	}
	return &PostgresStore{pool: q}
}

var _ Store = (*PostgresStore)(nil)

const appointmentColumns = `id, patient_name, phone_number, appointment_date, appointment_time, reason,
		duration_minutes, status, calendar_event_id, created_at, updated_at`

func (s *PostgresStore) Append(ctx context.Context, a Appointment) (Appointment, error) {
	ctx, span := postgresTracer.Start(ctx, "appointments.append")
	defer span.End()

	if a.DurationMinutes <= 0 {
		a.DurationMinutes = DefaultDurationMinutes
	}
	id := uuid.New()
	query := `
		INSERT INTO appointments (
			id, patient_name, phone_number, appointment_date, appointment_time, reason,
			duration_minutes, status, calendar_event_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		id, a.PatientName, a.PhoneNumber, a.Date, a.Time, a.Reason,
		a.DurationMinutes, string(a.Status), a.CalendarEventID,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return Appointment{}, fmt.Errorf("appointments: insert: %w", err)
	}
	a.Ref = id.String()
	span.SetAttributes(attribute.String("clinic.appointment_ref", a.Ref))
	return a, nil
}

func (s *PostgresStore) Query(ctx context.Context, f Filter) ([]Appointment, error) {
	ctx, span := postgresTracer.Start(ctx, "appointments.query")
	defer span.End()

	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.Date != "" {
		add("appointment_date = $%d", f.Date)
	}
	if f.PatientName != "" {
		add("lower(patient_name) = lower($%d)", strings.TrimSpace(f.PatientName))
	}
	if f.PhoneNumber != "" {
		add("phone_number = $%d", f.PhoneNumber)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		add("status = ANY($%d)", statuses)
	}

	query := "SELECT " + appointmentColumns + " FROM appointments"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY appointment_date, appointment_time"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: query: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		var (
			a      Appointment
			id     uuid.UUID
			status string
		)
		if err := rows.Scan(&id, &a.PatientName, &a.PhoneNumber, &a.Date, &a.Time, &a.Reason,
			&a.DurationMinutes, &status, &a.CalendarEventID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		a.Ref = id.String()
		a.Status = Status(status)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, ref string, p Patch) error {
	ctx, span := postgresTracer.Start(ctx, "appointments.update")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.appointment_ref", ref))

	id, err := uuid.Parse(ref)
	if err != nil {
		return fmt.Errorf("%w: bad ref %q", ErrNotFound, ref)
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, arg any) {
		args = append(args, arg)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if p.Date != nil {
		set("appointment_date", *p.Date)
	}
	if p.Time != nil {
		set("appointment_time", *p.Time)
	}
	if p.Status != nil {
		set("status", string(*p.Status))
	}
	if p.CalendarEventID != nil {
		set("calendar_event_id", *p.CalendarEventID)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE appointments SET %s, updated_at = now() WHERE id = $%d",
		strings.Join(sets, ", "), len(args))

	ct, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("appointments: update: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

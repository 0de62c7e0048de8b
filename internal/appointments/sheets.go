package appointments

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var sheetsTracer = otel.Tracer("clinic.internal.appointments.sheets")

// Column order of the appointments sheet.
var sheetHeader = []string{
	"id", "patient_name", "phone_number", "date", "time", "reason",
	"duration_minutes", "status", "calendar_event_id", "created_at",
}

var updatedRowPattern = regexp.MustCompile(`![A-Z]+(\d+)`)

// SheetsStore keeps one appointment per spreadsheet row. Refs are row numbers.
type SheetsStore struct {
	values  *sheets.SpreadsheetsValuesService
	sheetID string
	tab     string
	now     func() time.Time
}

// NewSheetsStore builds a store from client options (credentials file,
// endpoint override, HTTP client).
func NewSheetsStore(ctx context.Context, sheetID, rangeA1 string, opts ...option.ClientOption) (*SheetsStore, error) {
	if strings.TrimSpace(sheetID) == "" {
		return nil, fmt.Errorf("appointments: sheet id is required")
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("appointments: create sheets client: %w", err)
	}
	tab := "Appointments"
	if i := strings.Index(rangeA1, "!"); i > 0 {
		tab = rangeA1[:i]
	}
	return &SheetsStore{
		values:  sheets.NewSpreadsheetsValuesService(svc),
		sheetID: sheetID,
		tab:     tab,
		now:     time.Now,
	}, nil
}

var _ Store = (*SheetsStore)(nil)

func (s *SheetsStore) fullRange() string {
	return fmt.Sprintf("%s!A:%s", s.tab, lastColumn())
}

func (s *SheetsStore) rowRange(row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", s.tab, row, lastColumn(), row)
}

func lastColumn() string {
	return string(rune('A' + len(sheetHeader) - 1))
}

func (s *SheetsStore) Append(ctx context.Context, a Appointment) (Appointment, error) {
	ctx, span := sheetsTracer.Start(ctx, "appointments.sheets.append")
	defer span.End()

	if a.DurationMinutes <= 0 {
		a.DurationMinutes = DefaultDurationMinutes
	}
	now := s.now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now

	vr := &sheets.ValueRange{Values: [][]interface{}{toRow(uuid.NewString(), a)}}
	resp, err := s.values.Append(s.sheetID, s.fullRange(), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		span.RecordError(err)
		return Appointment{}, fmt.Errorf("appointments: append row: %w", err)
	}
	if resp.Updates == nil {
		return Appointment{}, fmt.Errorf("appointments: append returned no updated range")
	}
	m := updatedRowPattern.FindStringSubmatch(resp.Updates.UpdatedRange)
	if m == nil {
		return Appointment{}, fmt.Errorf("appointments: unexpected updated range %q", resp.Updates.UpdatedRange)
	}
	a.Ref = m[1]
	span.SetAttributes(attribute.String("clinic.appointment_ref", a.Ref))
	return a, nil
}

func (s *SheetsStore) Query(ctx context.Context, f Filter) ([]Appointment, error) {
	ctx, span := sheetsTracer.Start(ctx, "appointments.sheets.query")
	defer span.End()

	rows, err := s.readAll(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	var out []Appointment
	for i, row := range rows {
		if i == 0 && isHeader(row) {
			continue
		}
		a := fromRow(row)
		a.Ref = strconv.Itoa(i + 1)
		if f.Matches(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *SheetsStore) Update(ctx context.Context, ref string, p Patch) error {
	ctx, span := sheetsTracer.Start(ctx, "appointments.sheets.update")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.appointment_ref", ref))

	row, err := strconv.Atoi(ref)
	if err != nil || row < 1 {
		return fmt.Errorf("%w: bad ref %q", ErrNotFound, ref)
	}
	current, err := s.values.Get(s.sheetID, s.rowRange(row)).Context(ctx).Do()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("appointments: read row %d: %w", row, err)
	}
	if len(current.Values) == 0 || isHeader(current.Values[0]) {
		return ErrNotFound
	}
	a := fromRow(current.Values[0])
	p.Apply(&a)

	vr := &sheets.ValueRange{Values: [][]interface{}{toRow(cell(current.Values[0], 0), a)}}
	if _, err := s.values.Update(s.sheetID, s.rowRange(row), vr).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("appointments: update row %d: %w", row, err)
	}
	return nil
}

func (s *SheetsStore) readAll(ctx context.Context) ([][]interface{}, error) {
	resp, err := s.values.Get(s.sheetID, s.fullRange()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("appointments: read sheet: %w", err)
	}
	return resp.Values, nil
}

func toRow(id string, a Appointment) []interface{} {
	return []interface{}{
		id, a.PatientName, a.PhoneNumber, a.Date, a.Time, a.Reason,
		strconv.Itoa(a.DurationMinutes), string(a.Status), a.CalendarEventID,
		a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func fromRow(row []interface{}) Appointment {
	a := Appointment{
		PatientName:     cell(row, 1),
		PhoneNumber:     cell(row, 2),
		Date:            cell(row, 3),
		Time:            cell(row, 4),
		Reason:          cell(row, 5),
		Status:          Status(strings.ToLower(cell(row, 7))),
		CalendarEventID: cell(row, 8),
	}
	a.DurationMinutes, _ = strconv.Atoi(cell(row, 6))
	if a.DurationMinutes <= 0 {
		a.DurationMinutes = DefaultDurationMinutes
	}
	if ts, err := time.Parse(time.RFC3339, cell(row, 9)); err == nil {
		a.CreatedAt = ts
	}
	return a
}

func cell(row []interface{}, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}

func isHeader(row []interface{}) bool {
	return strings.EqualFold(cell(row, 0), sheetHeader[0])
}

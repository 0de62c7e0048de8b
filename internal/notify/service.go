package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// SMSSender sends text messages to the doctor.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// ReconciliationGap describes a commit that reached one collaborator but not
// the other.
type ReconciliationGap struct {
	Operation       string
	SenderID        string
	PatientName     string
	Date            string
	Time            string
	AppointmentRef  string
	CalendarEventID string
	Err             error
	OccurredAt      time.Time
}

// Service sends operator alerts and doctor notices. Every channel is optional.
type Service struct {
	email      EmailSender
	sms        SMSSender
	opsEmail   string
	doctorID   string
	clinicName string
	logger     *logging.Logger
}

// Config names the recipients.
type Config struct {
	OpsEmail   string
	DoctorID   string
	ClinicName string
}

func NewService(email EmailSender, sms SMSSender, cfg Config, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ClinicName == "" {
		cfg.ClinicName = "the clinic"
	}
	return &Service{
		email:      email,
		sms:        sms,
		opsEmail:   cfg.OpsEmail,
		doctorID:   cfg.DoctorID,
		clinicName: cfg.ClinicName,
		logger:     logger,
	}
}

// NotifyReconciliationGap emails the operator about a partial commit.
func (s *Service) NotifyReconciliationGap(ctx context.Context, gap ReconciliationGap) error {
	if s == nil || s.email == nil || s.opsEmail == "" {
		return nil
	}
	if gap.OccurredAt.IsZero() {
		gap.OccurredAt = time.Now().UTC()
	}

	err := s.email.Send(ctx, reconciliationEmail(s.opsEmail, s.clinicName, gap))
	if err != nil {
		s.logger.Error("notify: reconciliation alert failed", "error", err, "operation", gap.Operation)
		return fmt.Errorf("notify: reconciliation alert: %w", err)
	}
	return nil
}

// NotifyDoctor texts the doctor about a patient-initiated change.
func (s *Service) NotifyDoctor(ctx context.Context, body string) error {
	if s == nil || s.sms == nil || s.doctorID == "" {
		return nil
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("notify: empty doctor notice")
	}
	if err := s.sms.SendSMS(ctx, s.doctorID, body); err != nil {
		s.logger.Warn("notify: doctor notice failed", "error", err)
		return fmt.Errorf("notify: doctor notice: %w", err)
	}
	return nil
}

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/turnosalud/booking-platform/internal/schedule"
	"github.com/turnosalud/booking-platform/pkg/logging"
)

// BookingDetails carries everything an appointment email needs. CancelURL is
// the signed self-service cancellation link; it may be empty for cancelled
// notices.
type BookingDetails struct {
	Appointment  schedule.Appointment
	Professional schedule.Professional
	PatientEmail string
	PatientName  string
	CancelURL    string
}

// Service composes and sends booking emails. Notification failures are
// logged, never surfaced to the booking flow; a lost email must not undo a
// confirmed appointment.
type Service struct {
	email  EmailSender
	clock  *schedule.Clock
	logger *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, clock *schedule.Clock, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, clock: clock, logger: logger}
}

// AppointmentConfirmed emails the patient their confirmed appointment with
// the cancellation link.
func (s *Service) AppointmentConfirmed(ctx context.Context, d BookingDetails) {
	if s.email == nil || d.PatientEmail == "" {
		s.logger.Debug("notify: no email destination, skipping confirmation", "appointment_id", d.Appointment.ID)
		return
	}

	when := s.formatLocal(d.Appointment.StartAt)
	body := fmt.Sprintf(
		"Hola %s,\n\nTu turno con %s quedó confirmado para el %s.\n",
		displayName(d.PatientName), d.Professional.DisplayName, when)
	if d.CancelURL != "" {
		body += fmt.Sprintf("\nSi necesitás cancelarlo, usá este enlace: %s\n", d.CancelURL)
	}

	msg := EmailMessage{
		To:      d.PatientEmail,
		ToName:  d.PatientName,
		Subject: fmt.Sprintf("Turno confirmado con %s", d.Professional.DisplayName),
		Body:    body,
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notify: confirmation email failed", "error", err, "appointment_id", d.Appointment.ID)
	}
}

// AppointmentCancelled emails the patient that their appointment was
// cancelled.
func (s *Service) AppointmentCancelled(ctx context.Context, d BookingDetails) {
	if s.email == nil || d.PatientEmail == "" {
		s.logger.Debug("notify: no email destination, skipping cancellation notice", "appointment_id", d.Appointment.ID)
		return
	}

	when := s.formatLocal(d.Appointment.StartAt)
	msg := EmailMessage{
		To:      d.PatientEmail,
		ToName:  d.PatientName,
		Subject: fmt.Sprintf("Turno cancelado con %s", d.Professional.DisplayName),
		Body: fmt.Sprintf(
			"Hola %s,\n\nTu turno con %s del %s fue cancelado.\nSi querés reprogramar, reservá un nuevo horario desde la agenda.\n",
			displayName(d.PatientName), d.Professional.DisplayName, when),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notify: cancellation email failed", "error", err, "appointment_id", d.Appointment.ID)
	}
}

func (s *Service) formatLocal(t time.Time) string {
	return t.In(s.clock.Location()).Format("02/01/2006 15:04")
}

func displayName(name string) string {
	if name == "" {
		return "paciente"
	}
	return name
}

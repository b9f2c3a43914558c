// Package booking runs the hold, confirm and cancel flow on top of the
// availability engine.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/turnosalud/booking-platform/internal/auth"
	"github.com/turnosalud/booking-platform/internal/notify"
	"github.com/turnosalud/booking-platform/internal/observability/metrics"
	"github.com/turnosalud/booking-platform/internal/schedule"
	"github.com/turnosalud/booking-platform/pkg/logging"
)

// Store is the persistence surface the booking flow writes through.
type Store interface {
	CreateHold(ctx context.Context, hold schedule.SlotHold) (schedule.SlotHold, error)
	ConfirmHold(ctx context.Context, holdID, patientID uuid.UUID) (schedule.Appointment, error)
	GetAppointment(ctx context.Context, appointmentID uuid.UUID) (schedule.Appointment, error)
	ConfirmAppointment(ctx context.Context, appointmentID uuid.UUID) error
	CancelAppointment(ctx context.Context, appointmentID uuid.UUID, cancelledBy, reason string) error
}

// ProfessionalLookup loads professionals for notification content.
type ProfessionalLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (schedule.Professional, error)
}

// Service coordinates holds, confirmations and cancellations.
type Service struct {
	store         Store
	professionals ProfessionalLookup
	policy        *schedule.CancellationPolicy
	tokens        *auth.CancelTokenIssuer
	notifier      *notify.Service
	cache         schedule.CacheInvalidator
	metrics       *metrics.BookingMetrics
	logger        *logging.Logger
	holdTTL       time.Duration
	cancelBaseURL string
	now           func() time.Time
}

// Config wires a booking service. Notifier, cache and metrics may be nil.
type Config struct {
	Store         Store
	Professionals ProfessionalLookup
	Policy        *schedule.CancellationPolicy
	Tokens        *auth.CancelTokenIssuer
	Notifier      *notify.Service
	Cache         schedule.CacheInvalidator
	Metrics       *metrics.BookingMetrics
	Logger        *logging.Logger
	HoldTTL       time.Duration
	CancelBaseURL string
	Now           func() time.Time
}

// NewService creates the booking service.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = 15 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:         cfg.Store,
		professionals: cfg.Professionals,
		policy:        cfg.Policy,
		tokens:        cfg.Tokens,
		notifier:      cfg.Notifier,
		cache:         cfg.Cache,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		holdTTL:       cfg.HoldTTL,
		cancelBaseURL: cfg.CancelBaseURL,
		now:           cfg.Now,
	}
}

// HoldSlot reserves a slot for a patient. The hold expires after the
// configured TTL unless confirmed.
func (s *Service) HoldSlot(ctx context.Context, professionalID, patientID uuid.UUID, startAt, endAt time.Time) (schedule.SlotHold, error) {
	now := s.now()
	if !startAt.After(now) {
		return schedule.SlotHold{}, schedule.NewValidationError("slot start must be in the future")
	}

	hold, err := s.store.CreateHold(ctx, schedule.SlotHold{
		ProfessionalID: professionalID,
		PatientID:      patientID,
		StartAt:        startAt,
		EndAt:          endAt,
		ExpiresAt:      now.Add(s.holdTTL),
	})
	if err != nil {
		if errors.Is(err, schedule.ErrConflict) {
			s.metrics.ObserveHold("conflict")
		}
		return schedule.SlotHold{}, err
	}

	s.metrics.ObserveHold("created")
	s.invalidate(ctx, professionalID)
	s.logger.Info("slot held",
		"hold_id", hold.ID,
		"professional_id", professionalID,
		"start_at", startAt,
		"expires_at", hold.ExpiresAt,
	)
	return hold, nil
}

// ConfirmResult is a confirmed booking plus its self-service cancel link.
type ConfirmResult struct {
	Appointment schedule.Appointment `json:"appointment"`
	CancelURL   string               `json:"cancel_url,omitempty"`
}

// Confirm turns a live hold into a confirmed appointment, issues the cancel
// token and emails the patient.
func (s *Service) Confirm(ctx context.Context, holdID, patientID uuid.UUID, patientEmail, patientName string) (ConfirmResult, error) {
	appt, err := s.store.ConfirmHold(ctx, holdID, patientID)
	if err != nil {
		return ConfirmResult{}, err
	}
	if err := s.store.ConfirmAppointment(ctx, appt.ID); err != nil {
		return ConfirmResult{}, fmt.Errorf("booking: confirm appointment: %w", err)
	}
	appt.Status = schedule.AppointmentStatusConfirmed

	result := ConfirmResult{Appointment: appt}
	if s.tokens != nil {
		token, err := s.tokens.Issue(appt.ID, s.now())
		if err != nil {
			s.logger.Error("cancel token issue failed", "appointment_id", appt.ID, "error", err)
		} else if s.cancelBaseURL != "" {
			result.CancelURL = fmt.Sprintf("%s?token=%s", s.cancelBaseURL, token)
		}
	}

	s.metrics.ObserveAppointment("confirm", appt.Status)
	s.invalidate(ctx, appt.ProfessionalID)
	s.notifyConfirmed(ctx, appt, patientEmail, patientName, result.CancelURL)
	s.logger.Info("appointment confirmed", "appointment_id", appt.ID, "professional_id", appt.ProfessionalID)
	return result, nil
}

// CancelDecision reports whether a cancellation is allowed and why.
type CancelDecision = schedule.CancellationDecision

// CheckCancel evaluates the cancellation window without cancelling.
func (s *Service) CheckCancel(ctx context.Context, appointmentID uuid.UUID) (schedule.Appointment, CancelDecision, error) {
	appt, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return schedule.Appointment{}, CancelDecision{}, err
	}
	decision := s.policy.Check(appt.StartAt, s.now())
	return appt, decision, nil
}

// ErrTooLate flags a cancellation attempt inside the minimum notice window.
var ErrTooLate = errors.New("booking: cancellation window closed")

// Cancel cancels an appointment on the patient's behalf when enough
// business-hours notice remains. A closed window returns ErrTooLate with the
// decision describing the shortfall.
func (s *Service) Cancel(ctx context.Context, appointmentID uuid.UUID, cancelledBy, reason, patientEmail, patientName string) (CancelDecision, error) {
	appt, decision, err := s.CheckCancel(ctx, appointmentID)
	if err != nil {
		return CancelDecision{}, err
	}
	if appt.Status == schedule.AppointmentStatusCancelled {
		return decision, schedule.ErrNotFound
	}
	// Clinic staff may cancel at any time; patients only inside the window.
	if cancelledBy == "patient" && !decision.Allowed {
		s.metrics.ObserveAppointment("cancel", "rejected")
		return decision, ErrTooLate
	}

	if err := s.store.CancelAppointment(ctx, appointmentID, cancelledBy, reason); err != nil {
		return decision, err
	}

	s.metrics.ObserveAppointment("cancel", schedule.AppointmentStatusCancelled)
	s.invalidate(ctx, appt.ProfessionalID)
	s.notifyCancelled(ctx, appt, patientEmail, patientName)
	s.logger.Info("appointment cancelled",
		"appointment_id", appointmentID,
		"cancelled_by", cancelledBy,
		"business_hours_remaining", decision.BusinessHoursRemaining,
	)
	return decision, nil
}

func (s *Service) invalidate(ctx context.Context, professionalID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, professionalID)
	}
}

func (s *Service) notifyConfirmed(ctx context.Context, appt schedule.Appointment, email, name, cancelURL string) {
	if s.notifier == nil {
		return
	}
	professional, err := s.lookupProfessional(ctx, appt.ProfessionalID)
	if err != nil {
		s.logger.Error("professional lookup for notification failed", "error", err)
		return
	}
	s.notifier.AppointmentConfirmed(ctx, notify.BookingDetails{
		Appointment:  appt,
		Professional: professional,
		PatientEmail: email,
		PatientName:  name,
		CancelURL:    cancelURL,
	})
}

func (s *Service) notifyCancelled(ctx context.Context, appt schedule.Appointment, email, name string) {
	if s.notifier == nil {
		return
	}
	professional, err := s.lookupProfessional(ctx, appt.ProfessionalID)
	if err != nil {
		s.logger.Error("professional lookup for notification failed", "error", err)
		return
	}
	s.notifier.AppointmentCancelled(ctx, notify.BookingDetails{
		Appointment:  appt,
		Professional: professional,
		PatientEmail: email,
		PatientName:  name,
	})
}

func (s *Service) lookupProfessional(ctx context.Context, id uuid.UUID) (schedule.Professional, error) {
	if s.professionals == nil {
		return schedule.Professional{}, nil
	}
	return s.professionals.GetByID(ctx, id)
}

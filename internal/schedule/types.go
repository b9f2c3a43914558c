// Package schedule implements the availability engine: recurring weekly
// rules, date overrides, exception blackouts, holds and appointments are
// merged into the list of bookable slots for a professional.
package schedule

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RecurringRule is a weekly repeating availability window. Several rules may
// exist for the same professional and weekday (split morning/afternoon).
type RecurringRule struct {
	ID             uuid.UUID `json:"id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	Weekday        int       `json:"weekday"` // 0=Sunday .. 6=Saturday
	StartTime      string    `json:"start_time"` // "09:00" in 24-hour format
	EndTime        string    `json:"end_time"`   // "18:00" in 24-hour format
	SlotMinutes    int       `json:"slot_minutes"`
	BufferMinutes  int       `json:"buffer_minutes"`
	Modality       string    `json:"modality,omitempty"`
	LocationLabel  string    `json:"location_label,omitempty"`
}

// Validate rejects malformed rules before they reach storage or generation.
func (r RecurringRule) Validate() error {
	if r.Weekday < 0 || r.Weekday > 6 {
		return NewValidationError("weekday must be 0..6, got %d", r.Weekday)
	}
	if r.SlotMinutes <= 0 {
		return NewValidationError("slot_minutes must be positive, got %d", r.SlotMinutes)
	}
	if r.BufferMinutes < 0 {
		return NewValidationError("buffer_minutes must not be negative, got %d", r.BufferMinutes)
	}
	return validateWindow(r.StartTime, r.EndTime)
}

// OverrideRange is one availability window inside a DateOverride day.
type OverrideRange struct {
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Modality      string `json:"modality,omitempty"`
	LocationLabel string `json:"location_label,omitempty"`
}

// DateOverride fully replaces the recurring schedule for a single local
// calendar date. At most one override exists per professional and date;
// creating a new one replaces the previous override and its ranges.
type DateOverride struct {
	ID             uuid.UUID       `json:"id"`
	ProfessionalID uuid.UUID       `json:"professional_id"`
	Date           time.Time       `json:"date"` // local midnight stored as UTC instant
	Unavailable    bool            `json:"unavailable"`
	SlotMinutes    *int            `json:"slot_minutes,omitempty"`   // nil = engine default
	BufferMinutes  *int            `json:"buffer_minutes,omitempty"` // nil = engine default
	Ranges         []OverrideRange `json:"ranges"`
}

// Validate enforces the unavailable/ranges contradiction rule.
func (o DateOverride) Validate() error {
	if o.Unavailable {
		if len(o.Ranges) != 0 {
			return NewValidationError("unavailable override must not carry ranges")
		}
		return nil
	}
	if len(o.Ranges) == 0 {
		return NewValidationError("available override requires at least one range")
	}
	if o.SlotMinutes != nil && *o.SlotMinutes <= 0 {
		return NewValidationError("slot_minutes must be positive, got %d", *o.SlotMinutes)
	}
	if o.BufferMinutes != nil && *o.BufferMinutes < 0 {
		return NewValidationError("buffer_minutes must not be negative, got %d", *o.BufferMinutes)
	}
	for _, rng := range o.Ranges {
		if err := validateWindow(rng.StartTime, rng.EndTime); err != nil {
			return err
		}
	}
	return nil
}

// ExceptionDate is the legacy blackout marker. A full-day exception
// suppresses all availability; a partial one (Unavailable=false with a
// sub-range) layers in as an extra busy interval regardless of which
// schedule source governs the day.
type ExceptionDate struct {
	ID             uuid.UUID `json:"id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	Date           time.Time `json:"date"`
	Unavailable    bool      `json:"unavailable"`
	StartTime      string    `json:"start_time,omitempty"`
	EndTime        string    `json:"end_time,omitempty"`
	Note           string    `json:"note,omitempty"`
}

// Partial reports whether the exception blocks only a sub-range of its day.
func (e ExceptionDate) Partial() bool {
	return !e.Unavailable && e.StartTime != "" && e.EndTime != ""
}

// Validate checks the optional sub-range.
func (e ExceptionDate) Validate() error {
	if e.Unavailable || (e.StartTime == "" && e.EndTime == "") {
		return nil
	}
	return validateWindow(e.StartTime, e.EndTime)
}

// HoldStatus values for SlotHold.
const (
	HoldStatusHold      = "HOLD"
	HoldStatusConfirmed = "CONFIRMED"
)

// SlotHold is a temporary reservation of an interval. Only HOLD-status
// holds count as busy; confirmed ones are superseded by an appointment row.
type SlotHold struct {
	ID             uuid.UUID `json:"id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	StartAt        time.Time `json:"start_at"`
	EndAt          time.Time `json:"end_at"`
	Status         string    `json:"status"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Appointment statuses.
const (
	AppointmentStatusPending   = "PENDING_CONFIRMATION"
	AppointmentStatusConfirmed = "CONFIRMED"
	AppointmentStatusCancelled = "CANCELLED"
)

// Appointment is a booked interval. Any non-CANCELLED appointment occupies
// its interval as busy.
type Appointment struct {
	ID                 uuid.UUID  `json:"id"`
	ProfessionalID     uuid.UUID  `json:"professional_id"`
	PatientID          uuid.UUID  `json:"patient_id"`
	StartAt            time.Time  `json:"start_at"`
	EndAt              time.Time  `json:"end_at"`
	Status             string     `json:"status"`
	CancelledBy        string     `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
}

// Professional is the schedule owner. Inactive professionals yield no
// availability.
type Professional struct {
	ID          uuid.UUID `json:"id"`
	Slug        string    `json:"slug"`
	DisplayName string    `json:"display_name"`
	Specialty   string    `json:"specialty,omitempty"`
	Active      bool      `json:"active"`
}

// Interval is a half-open [Start, End) instant range.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two half-open intervals intersect. Touching
// endpoints are not a conflict.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Slot is a discrete bookable interval, tagged with the modality and
// location inherited from its governing range.
type Slot struct {
	StartAt       time.Time `json:"startAt"`
	EndAt         time.Time `json:"endAt"`
	Modality      string    `json:"modality"`
	LocationLabel string    `json:"locationLabel"`
}

// slotJSON is the wire shape: untagged modality/location are explicit
// nulls, never absent keys or empty strings.
type slotJSON struct {
	StartAt       time.Time `json:"startAt"`
	EndAt         time.Time `json:"endAt"`
	Modality      *string   `json:"modality"`
	LocationLabel *string   `json:"locationLabel"`
}

func (s Slot) MarshalJSON() ([]byte, error) {
	out := slotJSON{StartAt: s.StartAt, EndAt: s.EndAt}
	if s.Modality != "" {
		out.Modality = &s.Modality
	}
	if s.LocationLabel != "" {
		out.LocationLabel = &s.LocationLabel
	}
	return json.Marshal(out)
}

func (s *Slot) UnmarshalJSON(data []byte) error {
	var in slotJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = Slot{StartAt: in.StartAt, EndAt: in.EndAt}
	if in.Modality != nil {
		s.Modality = *in.Modality
	}
	if in.LocationLabel != nil {
		s.LocationLabel = *in.LocationLabel
	}
	return nil
}

// parseTimeOfDay parses "HH:MM" (or "H:MM") into hour and minute.
func parseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("schedule: invalid time format: %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("schedule: invalid time %q: %w", s, err)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("schedule: invalid time %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("schedule: invalid time: %q", s)
	}
	return hour, minute, nil
}

func minutesOfDay(s string) (int, error) {
	h, m, err := parseTimeOfDay(s)
	if err != nil {
		return 0, err
	}
	return h*60 + m, nil
}

func validateWindow(start, end string) error {
	startMins, err := minutesOfDay(start)
	if err != nil {
		return NewValidationError("invalid start_time %q", start)
	}
	endMins, err := minutesOfDay(end)
	if err != nil {
		return NewValidationError("invalid end_time %q", end)
	}
	if startMins >= endMins {
		return NewValidationError("start_time %s must precede end_time %s", start, end)
	}
	return nil
}

// Package postgres implements the schedule rule store on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/turnosalud/booking-platform/internal/schedule"
)

// DB is the subset of pgxpool.Pool the store uses; pgxmock satisfies it in
// tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store provides persistence for schedule rules, overrides, exceptions,
// holds and appointments. Date columns hold calendar dates; the clock
// anchors them to the clinic day on the way in and out, since pgx decodes
// a DATE as midnight UTC.
type Store struct {
	db    DB
	clock *schedule.Clock
}

// NewStore creates a store backed by a pgx pool (or mock).
func NewStore(db DB, clock *schedule.Clock) *Store {
	if db == nil {
		panic("postgres: db required")
	}
	if clock == nil {
		panic("postgres: clock required")
	}
	return &Store{db: db, clock: clock}
}

// dateBounds converts an instant window to local calendar-date bounds,
// inclusive start and exclusive end. A mid-day exclusive instant still
// covers its own day.
func (s *Store) dateBounds(from, to time.Time) (string, string) {
	end := s.clock.DayOf(to)
	if to.After(end) {
		end = s.clock.NextDay(to)
	}
	return s.clock.DayOf(from).Format("2006-01-02"), end.Format("2006-01-02")
}

// ListRecurringRules returns every recurring rule for a professional in
// weekday/start order.
func (s *Store) ListRecurringRules(ctx context.Context, professionalID uuid.UUID) ([]schedule.RecurringRule, error) {
	query := `
		SELECT id, professional_id, weekday, start_time, end_time, slot_minutes, buffer_minutes, modality, location_label
		FROM recurring_rules
		WHERE professional_id = $1
		ORDER BY weekday, start_time
	`
	rows, err := s.db.Query(ctx, query, professionalID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recurring rules: %w", err)
	}
	defer rows.Close()

	var rules []schedule.RecurringRule
	for rows.Next() {
		var r schedule.RecurringRule
		if err := rows.Scan(&r.ID, &r.ProfessionalID, &r.Weekday, &r.StartTime, &r.EndTime,
			&r.SlotMinutes, &r.BufferMinutes, &r.Modality, &r.LocationLabel); err != nil {
			return nil, fmt.Errorf("postgres: scan recurring rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// ListOverrides returns the overrides whose date falls in [from, to),
// including their ranges.
func (s *Store) ListOverrides(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]schedule.DateOverride, error) {
	query := `
		SELECT id, professional_id, date, unavailable, slot_minutes, buffer_minutes
		FROM date_overrides
		WHERE professional_id = $1 AND date >= $2 AND date < $3
		ORDER BY date
	`
	fromDate, toDate := s.dateBounds(from, to)
	rows, err := s.db.Query(ctx, query, professionalID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("postgres: list overrides: %w", err)
	}
	defer rows.Close()

	var overrides []schedule.DateOverride
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var o schedule.DateOverride
		if err := rows.Scan(&o.ID, &o.ProfessionalID, &o.Date, &o.Unavailable, &o.SlotMinutes, &o.BufferMinutes); err != nil {
			return nil, fmt.Errorf("postgres: scan override: %w", err)
		}
		o.Date = s.clock.LocalDate(o.Date)
		overrides = append(overrides, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(overrides) == 0 {
		return overrides, nil
	}

	rangeQuery := `
		SELECT override_id, start_time, end_time, modality, location_label
		FROM override_ranges
		WHERE override_id = ANY($1)
		ORDER BY override_id, start_time
	`
	rangeRows, err := s.db.Query(ctx, rangeQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: list override ranges: %w", err)
	}
	defer rangeRows.Close()

	byID := make(map[uuid.UUID]*schedule.DateOverride, len(overrides))
	for i := range overrides {
		byID[overrides[i].ID] = &overrides[i]
	}
	for rangeRows.Next() {
		var overrideID uuid.UUID
		var rng schedule.OverrideRange
		if err := rangeRows.Scan(&overrideID, &rng.StartTime, &rng.EndTime, &rng.Modality, &rng.LocationLabel); err != nil {
			return nil, fmt.Errorf("postgres: scan override range: %w", err)
		}
		if o, ok := byID[overrideID]; ok {
			o.Ranges = append(o.Ranges, rng)
		}
	}
	return overrides, rangeRows.Err()
}

// ListExceptions returns exception dates in [from, to).
func (s *Store) ListExceptions(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]schedule.ExceptionDate, error) {
	query := `
		SELECT id, professional_id, date, unavailable, COALESCE(start_time, ''), COALESCE(end_time, ''), COALESCE(note, '')
		FROM exception_dates
		WHERE professional_id = $1 AND date >= $2 AND date < $3
		ORDER BY date
	`
	fromDate, toDate := s.dateBounds(from, to)
	rows, err := s.db.Query(ctx, query, professionalID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("postgres: list exceptions: %w", err)
	}
	defer rows.Close()

	var exceptions []schedule.ExceptionDate
	for rows.Next() {
		var e schedule.ExceptionDate
		if err := rows.Scan(&e.ID, &e.ProfessionalID, &e.Date, &e.Unavailable, &e.StartTime, &e.EndTime, &e.Note); err != nil {
			return nil, fmt.Errorf("postgres: scan exception: %w", err)
		}
		e.Date = s.clock.LocalDate(e.Date)
		exceptions = append(exceptions, e)
	}
	return exceptions, rows.Err()
}

// ListBusyIntervals unions non-cancelled appointments and live holds
// overlapping [from, to).
func (s *Store) ListBusyIntervals(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]schedule.Interval, error) {
	query := `
		SELECT start_at, end_at FROM appointments
		WHERE professional_id = $1 AND status <> 'CANCELLED' AND start_at < $3 AND end_at > $2
		UNION ALL
		SELECT start_at, end_at FROM slot_holds
		WHERE professional_id = $1 AND status = 'HOLD' AND expires_at > now() AND start_at < $3 AND end_at > $2
		ORDER BY start_at
	`
	rows, err := s.db.Query(ctx, query, professionalID, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: list busy intervals: %w", err)
	}
	defer rows.Close()

	var intervals []schedule.Interval
	for rows.Next() {
		var iv schedule.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, fmt.Errorf("postgres: scan busy interval: %w", err)
		}
		intervals = append(intervals, iv)
	}
	return intervals, rows.Err()
}

var _ schedule.RuleStore = (*Store)(nil)

// CreateRecurringRule inserts a rule and returns it with its id assigned.
func (s *Store) CreateRecurringRule(ctx context.Context, rule schedule.RecurringRule) (schedule.RecurringRule, error) {
	if err := rule.Validate(); err != nil {
		return schedule.RecurringRule{}, err
	}
	rule.ID = uuid.New()
	query := `
		INSERT INTO recurring_rules (id, professional_id, weekday, start_time, end_time, slot_minutes, buffer_minutes, modality, location_label)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := s.db.Exec(ctx, query, rule.ID, rule.ProfessionalID, rule.Weekday, rule.StartTime, rule.EndTime,
		rule.SlotMinutes, rule.BufferMinutes, rule.Modality, rule.LocationLabel); err != nil {
		return schedule.RecurringRule{}, fmt.Errorf("postgres: insert recurring rule: %w", err)
	}
	return rule, nil
}

// UpdateRecurringRule replaces a rule's fields, scoped to the professional.
func (s *Store) UpdateRecurringRule(ctx context.Context, rule schedule.RecurringRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	query := `
		UPDATE recurring_rules
		SET weekday = $3, start_time = $4, end_time = $5, slot_minutes = $6, buffer_minutes = $7, modality = $8, location_label = $9
		WHERE id = $1 AND professional_id = $2
	`
	ct, err := s.db.Exec(ctx, query, rule.ID, rule.ProfessionalID, rule.Weekday, rule.StartTime, rule.EndTime,
		rule.SlotMinutes, rule.BufferMinutes, rule.Modality, rule.LocationLabel)
	if err != nil {
		return fmt.Errorf("postgres: update recurring rule: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

// DeleteRecurringRule removes a rule, scoped to the professional.
func (s *Store) DeleteRecurringRule(ctx context.Context, professionalID, ruleID uuid.UUID) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM recurring_rules WHERE id = $1 AND professional_id = $2`, ruleID, professionalID)
	if err != nil {
		return fmt.Errorf("postgres: delete recurring rule: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

// ReplaceOverride installs an override for its date, deleting any prior
// override (and its ranges) for the same professional and date.
func (s *Store) ReplaceOverride(ctx context.Context, override schedule.DateOverride) (schedule.DateOverride, error) {
	if err := override.Validate(); err != nil {
		return schedule.DateOverride{}, err
	}
	override.ID = uuid.New()
	override.Date = s.clock.LocalDate(override.Date)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return schedule.DateOverride{}, fmt.Errorf("postgres: begin replace override: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM date_overrides WHERE professional_id = $1 AND date = $2`,
		override.ProfessionalID, override.Date); err != nil {
		return schedule.DateOverride{}, fmt.Errorf("postgres: delete prior override: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO date_overrides (id, professional_id, date, unavailable, slot_minutes, buffer_minutes)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		override.ID, override.ProfessionalID, override.Date, override.Unavailable,
		override.SlotMinutes, override.BufferMinutes); err != nil {
		return schedule.DateOverride{}, fmt.Errorf("postgres: insert override: %w", err)
	}

	for _, rng := range override.Ranges {
		if _, err := tx.Exec(ctx,
			`INSERT INTO override_ranges (id, override_id, start_time, end_time, modality, location_label)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), override.ID, rng.StartTime, rng.EndTime, rng.Modality, rng.LocationLabel); err != nil {
			return schedule.DateOverride{}, fmt.Errorf("postgres: insert override range: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return schedule.DateOverride{}, fmt.Errorf("postgres: commit replace override: %w", err)
	}
	return override, nil
}

// DeleteOverride removes an override; its ranges cascade.
func (s *Store) DeleteOverride(ctx context.Context, professionalID, overrideID uuid.UUID) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM date_overrides WHERE id = $1 AND professional_id = $2`, overrideID, professionalID)
	if err != nil {
		return fmt.Errorf("postgres: delete override: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

// CreateException inserts an exception date.
func (s *Store) CreateException(ctx context.Context, exc schedule.ExceptionDate) (schedule.ExceptionDate, error) {
	if err := exc.Validate(); err != nil {
		return schedule.ExceptionDate{}, err
	}
	exc.ID = uuid.New()
	exc.Date = s.clock.LocalDate(exc.Date)
	query := `
		INSERT INTO exception_dates (id, professional_id, date, unavailable, start_time, end_time, note)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''))
	`
	if _, err := s.db.Exec(ctx, query, exc.ID, exc.ProfessionalID, exc.Date, exc.Unavailable,
		exc.StartTime, exc.EndTime, exc.Note); err != nil {
		return schedule.ExceptionDate{}, fmt.Errorf("postgres: insert exception: %w", err)
	}
	return exc, nil
}

// DeleteException removes an exception date.
func (s *Store) DeleteException(ctx context.Context, professionalID, exceptionID uuid.UUID) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM exception_dates WHERE id = $1 AND professional_id = $2`, exceptionID, professionalID)
	if err != nil {
		return fmt.Errorf("postgres: delete exception: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

// overlapExistsQuery re-checks for conflicts inside the booking
// transaction. The exclusion constraint in the schema is the hard guarantee;
// this check turns most races into a clean ErrConflict instead of a
// constraint violation.
const overlapExistsQuery = `
	SELECT EXISTS (
		SELECT 1 FROM appointments
		WHERE professional_id = $1 AND status <> 'CANCELLED' AND start_at < $3 AND end_at > $2
	) OR EXISTS (
		SELECT 1 FROM slot_holds
		WHERE professional_id = $1 AND status = 'HOLD' AND expires_at > now() AND start_at < $3 AND end_at > $2
	)
`

// CreateHold reserves an interval. Hold writes are serialized
// per-professional with an advisory transaction lock so concurrent holds on
// the same interval cannot both pass the overlap check.
func (s *Store) CreateHold(ctx context.Context, hold schedule.SlotHold) (schedule.SlotHold, error) {
	if !hold.EndAt.After(hold.StartAt) {
		return schedule.SlotHold{}, schedule.NewValidationError("hold start must precede end")
	}
	hold.ID = uuid.New()
	hold.Status = schedule.HoldStatusHold

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return schedule.SlotHold{}, fmt.Errorf("postgres: begin create hold: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text))`, hold.ProfessionalID); err != nil {
		return schedule.SlotHold{}, fmt.Errorf("postgres: acquire booking lock: %w", err)
	}

	var conflict bool
	if err := tx.QueryRow(ctx, overlapExistsQuery, hold.ProfessionalID, hold.StartAt, hold.EndAt).Scan(&conflict); err != nil {
		return schedule.SlotHold{}, fmt.Errorf("postgres: check hold conflict: %w", err)
	}
	if conflict {
		return schedule.SlotHold{}, schedule.ErrConflict
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO slot_holds (id, professional_id, patient_id, start_at, end_at, status, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		hold.ID, hold.ProfessionalID, hold.PatientID, hold.StartAt, hold.EndAt, hold.Status, hold.ExpiresAt); err != nil {
		return schedule.SlotHold{}, fmt.Errorf("postgres: insert hold: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return schedule.SlotHold{}, fmt.Errorf("postgres: commit create hold: %w", err)
	}
	return hold, nil
}

// ConfirmHold converts a live hold into a pending appointment.
func (s *Store) ConfirmHold(ctx context.Context, holdID, patientID uuid.UUID) (schedule.Appointment, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return schedule.Appointment{}, fmt.Errorf("postgres: begin confirm hold: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var hold schedule.SlotHold
	err = tx.QueryRow(ctx,
		`SELECT id, professional_id, patient_id, start_at, end_at, status, expires_at
		 FROM slot_holds
		 WHERE id = $1 AND patient_id = $2 AND status = 'HOLD' AND expires_at > now()
		 FOR UPDATE`,
		holdID, patientID).Scan(&hold.ID, &hold.ProfessionalID, &hold.PatientID,
		&hold.StartAt, &hold.EndAt, &hold.Status, &hold.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.Appointment{}, schedule.ErrNotFound
	}
	if err != nil {
		return schedule.Appointment{}, fmt.Errorf("postgres: load hold: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE slot_holds SET status = 'CONFIRMED' WHERE id = $1`, hold.ID); err != nil {
		return schedule.Appointment{}, fmt.Errorf("postgres: confirm hold: %w", err)
	}

	appt := schedule.Appointment{
		ID:             uuid.New(),
		ProfessionalID: hold.ProfessionalID,
		PatientID:      hold.PatientID,
		StartAt:        hold.StartAt,
		EndAt:          hold.EndAt,
		Status:         schedule.AppointmentStatusPending,
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO appointments (id, professional_id, patient_id, start_at, end_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		appt.ID, appt.ProfessionalID, appt.PatientID, appt.StartAt, appt.EndAt, appt.Status); err != nil {
		return schedule.Appointment{}, fmt.Errorf("postgres: insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return schedule.Appointment{}, fmt.Errorf("postgres: commit confirm hold: %w", err)
	}
	return appt, nil
}

// GetAppointment loads one appointment.
func (s *Store) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (schedule.Appointment, error) {
	var a schedule.Appointment
	err := s.db.QueryRow(ctx,
		`SELECT id, professional_id, patient_id, start_at, end_at, status,
		        COALESCE(cancelled_by, ''), cancelled_at, COALESCE(cancellation_reason, '')
		 FROM appointments WHERE id = $1`,
		appointmentID).Scan(&a.ID, &a.ProfessionalID, &a.PatientID, &a.StartAt, &a.EndAt, &a.Status,
		&a.CancelledBy, &a.CancelledAt, &a.CancellationReason)
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.Appointment{}, schedule.ErrNotFound
	}
	if err != nil {
		return schedule.Appointment{}, fmt.Errorf("postgres: get appointment: %w", err)
	}
	return a, nil
}

// ConfirmAppointment moves a pending appointment to CONFIRMED.
func (s *Store) ConfirmAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE appointments SET status = 'CONFIRMED' WHERE id = $1 AND status = 'PENDING_CONFIRMATION'`,
		appointmentID)
	if err != nil {
		return fmt.Errorf("postgres: confirm appointment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

// CancelAppointment cancels a non-cancelled appointment and records who,
// when and why.
func (s *Store) CancelAppointment(ctx context.Context, appointmentID uuid.UUID, cancelledBy, reason string) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE appointments
		 SET status = 'CANCELLED', cancelled_by = $2, cancelled_at = now(), cancellation_reason = NULLIF($3, '')
		 WHERE id = $1 AND status <> 'CANCELLED'`,
		appointmentID, cancelledBy, reason)
	if err != nil {
		return fmt.Errorf("postgres: cancel appointment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

package schedule

import "time"

// Business hours used for the cancellation window: Monday-Friday, 09:00
// inclusive to 18:00 exclusive, clinic local time.
const (
	businessOpenHour  = 9
	businessCloseHour = 18
)

// CancellationPolicy gates client-initiated cancellations on a
// business-hours count instead of raw elapsed hours, so a weekend does not
// eat the notice window.
type CancellationPolicy struct {
	clock            *Clock
	MinBusinessHours int
}

// NewCancellationPolicy builds a policy with the given minimum notice.
func NewCancellationPolicy(clock *Clock, minBusinessHours int) *CancellationPolicy {
	if minBusinessHours <= 0 {
		minBusinessHours = 24
	}
	return &CancellationPolicy{clock: clock, MinBusinessHours: minBusinessHours}
}

// CancellationDecision carries the outcome plus the compared instants for
// caller diagnostics.
type CancellationDecision struct {
	Allowed                bool      `json:"allowed"`
	BusinessHoursRemaining int       `json:"businessHoursRemaining"`
	Now                    time.Time `json:"now"`
	AppointmentStart       time.Time `json:"appointmentStart"`
}

// Check counts business hours between now and the appointment start and
// compares them against the policy minimum.
func (p *CancellationPolicy) Check(appointmentStart, now time.Time) CancellationDecision {
	remaining := p.businessHoursBetween(now, appointmentStart)
	return CancellationDecision{
		Allowed:                remaining >= p.MinBusinessHours,
		BusinessHoursRemaining: remaining,
		Now:                    now,
		AppointmentStart:       appointmentStart,
	}
}

// businessHoursBetween walks hour-by-hour from the next full local hour
// after now up to (not including) the appointment start, counting hours
// that fall on Monday-Friday between 09:00 and 18:00.
func (p *CancellationPolicy) businessHoursBetween(now, until time.Time) int {
	loc := p.clock.Location()
	local := now.In(loc)
	cursor := time.Date(local.Year(), local.Month(), local.Day(), local.Hour()+1, 0, 0, 0, loc)

	count := 0
	for cursor.Before(until) {
		weekday := cursor.Weekday()
		hour := cursor.Hour()
		if weekday != time.Saturday && weekday != time.Sunday &&
			hour >= businessOpenHour && hour < businessCloseHour {
			count++
		}
		cursor = cursor.Add(time.Hour)
	}
	return count
}

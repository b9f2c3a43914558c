package schedule

import "time"

// SlotRange is one expandable availability window on a concrete local day,
// produced by the day resolver from a recurring rule or an override range.
type SlotRange struct {
	Day           time.Time // local midnight of the day being expanded
	StartTime     string
	EndTime       string
	SlotMinutes   int
	BufferMinutes int
	Modality      string
	LocationLabel string
}

// ExpandRanges tiles every range into discrete slots, dropping past slots
// and slots that overlap a busy interval. Ranges are expanded independently
// and concatenated; overlapping ranges may double-offer a time when the
// schedule is misconfigured, which is the schedule owner's responsibility.
func ExpandRanges(clock *Clock, ranges []SlotRange, now time.Time, busy []Interval) ([]Slot, error) {
	slots := make([]Slot, 0)
	for _, r := range ranges {
		expanded, err := expandRange(clock, r, now, busy)
		if err != nil {
			return nil, err
		}
		slots = append(slots, expanded...)
	}
	return slots, nil
}

// expandRange walks a cursor from the range start, carving slots of
// SlotMinutes and advancing by SlotMinutes+BufferMinutes. A slot is accepted
// only while slotEnd <= rangeEnd; a trailing remainder shorter than a full
// slot is left unused.
func expandRange(clock *Clock, r SlotRange, now time.Time, busy []Interval) ([]Slot, error) {
	if r.SlotMinutes <= 0 {
		return nil, NewValidationError("slot_minutes must be positive, got %d", r.SlotMinutes)
	}
	if r.BufferMinutes < 0 {
		return nil, NewValidationError("buffer_minutes must not be negative, got %d", r.BufferMinutes)
	}
	start, err := clock.At(r.Day, r.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := clock.At(r.Day, r.EndTime)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, NewValidationError("range start %s must precede end %s", r.StartTime, r.EndTime)
	}

	slotDur := time.Duration(r.SlotMinutes) * time.Minute
	stepDur := slotDur + time.Duration(r.BufferMinutes)*time.Minute

	var slots []Slot
	for cursor := start; !cursor.Add(slotDur).After(end); cursor = cursor.Add(stepDur) {
		slotEnd := cursor.Add(slotDur)
		// No past or present-instant slots.
		if !cursor.After(now) {
			continue
		}
		if overlapsAny(cursor, slotEnd, busy) {
			continue
		}
		slots = append(slots, Slot{
			StartAt:       cursor,
			EndAt:         slotEnd,
			Modality:      r.Modality,
			LocationLabel: r.LocationLabel,
		})
	}
	return slots, nil
}

// overlapsAny tests [start, end) against each busy interval. Half-open
// semantics: touching endpoints do not conflict.
func overlapsAny(start, end time.Time, busy []Interval) bool {
	candidate := Interval{Start: start, End: end}
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

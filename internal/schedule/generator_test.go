package schedule

import (
	"testing"
	"time"
)

// Monday 2026-03-02 in the clinic zone.
func testDay(clock *Clock) time.Time {
	return time.Date(2026, 3, 2, 0, 0, 0, 0, clock.Location())
}

func expand(t *testing.T, clock *Clock, r SlotRange, now time.Time, busy []Interval) []Slot {
	t.Helper()
	slots, err := ExpandRanges(clock, []SlotRange{r}, now, busy)
	if err != nil {
		t.Fatalf("ExpandRanges: %v", err)
	}
	return slots
}

func TestExpandFullBusinessDay(t *testing.T) {
	clock := buenosAires(t)
	day := testDay(clock)
	now := day.Add(-24 * time.Hour)

	slots := expand(t, clock, SlotRange{
		Day: day, StartTime: "09:00", EndTime: "18:00",
		SlotMinutes: 50, BufferMinutes: 10,
	}, now, nil)

	if len(slots) != 9 {
		t.Fatalf("got %d slots, want 9", len(slots))
	}
	for i, slot := range slots {
		wantStart, _ := clock.At(day, "09:00")
		wantStart = wantStart.Add(time.Duration(i) * time.Hour)
		if !slot.StartAt.Equal(wantStart) {
			t.Errorf("slot[%d].StartAt = %v, want %v", i, slot.StartAt, wantStart)
		}
		if got := slot.EndAt.Sub(slot.StartAt); got != 50*time.Minute {
			t.Errorf("slot[%d] duration = %v, want 50m", i, got)
		}
	}
	// Last slot is 17:00-17:50; no 18:00 slot is attempted.
	last := slots[len(slots)-1]
	if last.StartAt.In(clock.Location()).Hour() != 17 {
		t.Errorf("last slot starts %v, want 17:00 local", last.StartAt)
	}
}

func TestExpandThreeHourRange(t *testing.T) {
	clock := buenosAires(t)
	day := testDay(clock)
	slots := expand(t, clock, SlotRange{
		Day: day, StartTime: "09:00", EndTime: "12:00",
		SlotMinutes: 50, BufferMinutes: 10,
	}, day.Add(-time.Hour), nil)
	if len(slots) != 3 {
		t.Fatalf("got %d slots, want 3", len(slots))
	}
}

func TestExpandDropsTrailingRemainder(t *testing.T) {
	clock := buenosAires(t)
	day := testDay(clock)
	slots := expand(t, clock, SlotRange{
		Day: day, StartTime: "14:00", EndTime: "15:00",
		SlotMinutes: 50, BufferMinutes: 10,
	}, day.Add(-time.Hour), nil)
	if len(slots) != 1 {
		t.Fatalf("got %d slots, want 1", len(slots))
	}
	wantEnd, _ := clock.At(day, "14:50")
	if !slots[0].EndAt.Equal(wantEnd) {
		t.Errorf("slot end = %v, want 14:50 local", slots[0].EndAt)
	}
}

func TestExpandBoundarySlotAcceptedAtRangeEnd(t *testing.T) {
	clock := buenosAires(t)
	day := testDay(clock)

	// 10:00-11:00 with a 60-minute slot: slotEnd == rangeEnd is accepted.
	slots := expand(t, clock, SlotRange{
		Day: day, StartTime: "10:00", EndTime: "11:00",
		SlotMinutes: 60, BufferMinutes: 0,
	}, day.Add(-time.Hour), nil)
	if len(slots) != 1 {
		t.Fatalf("got %d slots, want 1 boundary slot", len(slots))
	}

	// One minute longer no longer fits.
	slots = expand(t, clock, SlotRange{
		Day: day, StartTime: "10:00", EndTime: "11:00",
		SlotMinutes: 61, BufferMinutes: 0,
	}, day.Add(-time.Hour), nil)
	if len(slots) != 0 {
		t.Fatalf("got %d slots, want 0", len(slots))
	}
}

func TestExpandFiltersPastAndPresentSlots(t *testing.T) {
	clock := buenosAires(t)
	day := testDay(clock)

	// now exactly at 11:00: the 11:00 slot must not be offered either.
	now, _ := clock.At(day, "11:00")
	slots := expand(t, clock, SlotRange{
		Day: day, StartTime: "09:00", EndTime: "18:00",
		SlotMinutes: 50, BufferMinutes: 10,
	}, now, nil)

	if len(slots) != 6 {
		t.Fatalf("got %d slots, want 6 (12:00..17:00)", len(slots))
	}
	for _, slot := range slots {
		if !slot.StartAt.After(now) {
			t.Errorf("slot %v is not strictly after now %v", slot.StartAt, now)
		}
	}
}

func TestExpandExcludesBusyOverlaps(t *testing.T) {
	clock := buenosAires(t)
	day := testDay(clock)
	now := day.Add(-time.Hour)

	busyStart, _ := clock.At(day, "10:00")
	busyEnd, _ := clock.At(day, "10:50")
	busy := []Interval{{Start: busyStart, End: busyEnd}}

	slots := expand(t, clock, SlotRange{
		Day: day, StartTime: "09:00", EndTime: "12:00",
		SlotMinutes: 50, BufferMinutes: 10,
	}, now, busy)

	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2 (09:00 and 11:00)", len(slots))
	}
	for _, slot := range slots {
		for _, b := range busy {
			if slot.StartAt.Before(b.End) && b.Start.Before(slot.EndAt) {
				t.Errorf("slot %v-%v overlaps busy %v-%v", slot.StartAt, slot.EndAt, b.Start, b.End)
			}
		}
	}
}

func TestExpandTouchingBusyEndpointIsNotConflict(t *testing.T) {
	clock := buenosAires(t)
	day := testDay(clock)
	now := day.Add(-time.Hour)

	// Busy 08:10-09:00 touches the 09:00 slot start exactly.
	busyStart, _ := clock.At(day, "08:10")
	busyEnd, _ := clock.At(day, "09:00")

	slots := expand(t, clock, SlotRange{
		Day: day, StartTime: "09:00", EndTime: "10:00",
		SlotMinutes: 50, BufferMinutes: 10,
	}, now, []Interval{{Start: busyStart, End: busyEnd}})

	if len(slots) != 1 {
		t.Fatalf("got %d slots, want 1; touching endpoints are not conflicts", len(slots))
	}
}

func TestExpandMultipleRangesConcatenated(t *testing.T) {
	clock := buenosAires(t)
	day := testDay(clock)
	now := day.Add(-time.Hour)

	slots, err := ExpandRanges(clock, []SlotRange{
		{Day: day, StartTime: "09:00", EndTime: "12:00", SlotMinutes: 50, BufferMinutes: 10},
		{Day: day, StartTime: "14:00", EndTime: "17:00", SlotMinutes: 50, BufferMinutes: 10},
	}, now, nil)
	if err != nil {
		t.Fatalf("ExpandRanges: %v", err)
	}
	if len(slots) != 6 {
		t.Fatalf("got %d slots, want 6", len(slots))
	}
}

func TestExpandOverlappingRangesMayDoubleOffer(t *testing.T) {
	clock := buenosAires(t)
	day := testDay(clock)
	now := day.Add(-time.Hour)

	slots, err := ExpandRanges(clock, []SlotRange{
		{Day: day, StartTime: "09:00", EndTime: "10:00", SlotMinutes: 60, BufferMinutes: 0},
		{Day: day, StartTime: "09:00", EndTime: "10:00", SlotMinutes: 60, BufferMinutes: 0},
	}, now, nil)
	if err != nil {
		t.Fatalf("ExpandRanges: %v", err)
	}
	// Ranges are not merged or deduplicated.
	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2", len(slots))
	}
}

func TestExpandRejectsInvalidGeometry(t *testing.T) {
	clock := buenosAires(t)
	day := testDay(clock)

	cases := []SlotRange{
		{Day: day, StartTime: "12:00", EndTime: "09:00", SlotMinutes: 50, BufferMinutes: 10},
		{Day: day, StartTime: "09:00", EndTime: "12:00", SlotMinutes: 0, BufferMinutes: 10},
		{Day: day, StartTime: "09:00", EndTime: "12:00", SlotMinutes: 50, BufferMinutes: -1},
		{Day: day, StartTime: "bogus", EndTime: "12:00", SlotMinutes: 50, BufferMinutes: 10},
	}
	for i, r := range cases {
		if _, err := ExpandRanges(clock, []SlotRange{r}, day, nil); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

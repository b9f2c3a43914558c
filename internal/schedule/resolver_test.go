package schedule

import (
	"testing"

	"github.com/google/uuid"
)

func intPtr(v int) *int { return &v }

func mondayRules(professionalID uuid.UUID) []RecurringRule {
	return []RecurringRule{
		{
			ID: uuid.New(), ProfessionalID: professionalID,
			Weekday: 1, StartTime: "09:00", EndTime: "12:00",
			SlotMinutes: 50, BufferMinutes: 10, Modality: "in_person", LocationLabel: "Consultorio 1",
		},
		{
			ID: uuid.New(), ProfessionalID: professionalID,
			Weekday: 1, StartTime: "14:00", EndTime: "17:00",
			SlotMinutes: 30, BufferMinutes: 0, Modality: "virtual",
		},
		{
			ID: uuid.New(), ProfessionalID: professionalID,
			Weekday: 3, StartTime: "09:00", EndTime: "12:00",
			SlotMinutes: 50, BufferMinutes: 10,
		},
	}
}

func TestResolveDayRecurringRulesMatchWeekday(t *testing.T) {
	clock := buenosAires(t)
	professionalID := uuid.New()
	day := testDay(clock) // Monday

	plan, err := ResolveDay(clock, DaySources{
		Day:   day,
		Rules: mondayRules(professionalID),
	}, Defaults{SlotMinutes: 50, BufferMinutes: 10})
	if err != nil {
		t.Fatalf("ResolveDay: %v", err)
	}

	if len(plan.Ranges) != 2 {
		t.Fatalf("got %d ranges, want 2 Monday rules", len(plan.Ranges))
	}
	if plan.Ranges[0].Modality != "in_person" || plan.Ranges[1].Modality != "virtual" {
		t.Errorf("modalities not inherited: %#v", plan.Ranges)
	}
	if plan.Ranges[1].SlotMinutes != 30 || plan.Ranges[1].BufferMinutes != 0 {
		t.Errorf("rule geometry not carried: %#v", plan.Ranges[1])
	}
}

func TestResolveDayOverrideReplacesRules(t *testing.T) {
	clock := buenosAires(t)
	professionalID := uuid.New()
	day := testDay(clock)

	override := &DateOverride{
		ID: uuid.New(), ProfessionalID: professionalID, Date: day,
		Ranges: []OverrideRange{{StartTime: "10:00", EndTime: "13:00", Modality: "virtual"}},
	}

	plan, err := ResolveDay(clock, DaySources{
		Day:      day,
		Override: override,
		Rules:    mondayRules(professionalID),
	}, Defaults{SlotMinutes: 50, BufferMinutes: 10})
	if err != nil {
		t.Fatalf("ResolveDay: %v", err)
	}

	if len(plan.Ranges) != 1 {
		t.Fatalf("got %d ranges, want 1 override range", len(plan.Ranges))
	}
	r := plan.Ranges[0]
	if r.StartTime != "10:00" || r.EndTime != "13:00" {
		t.Errorf("override range not used: %#v", r)
	}
	// Defaults apply when the override carries no geometry.
	if r.SlotMinutes != 50 || r.BufferMinutes != 10 {
		t.Errorf("defaults not applied: %#v", r)
	}
}

func TestResolveDayOverrideGeometryWins(t *testing.T) {
	clock := buenosAires(t)
	day := testDay(clock)

	override := &DateOverride{
		ID: uuid.New(), Date: day,
		SlotMinutes:   intPtr(20),
		BufferMinutes: intPtr(5),
		Ranges:        []OverrideRange{{StartTime: "09:00", EndTime: "10:00"}},
	}

	plan, err := ResolveDay(clock, DaySources{Day: day, Override: override}, Defaults{SlotMinutes: 50, BufferMinutes: 10})
	if err != nil {
		t.Fatalf("ResolveDay: %v", err)
	}
	if plan.Ranges[0].SlotMinutes != 20 || plan.Ranges[0].BufferMinutes != 5 {
		t.Errorf("override geometry not applied: %#v", plan.Ranges[0])
	}
}

func TestResolveDayUnavailableOverrideBlanksDay(t *testing.T) {
	clock := buenosAires(t)
	day := testDay(clock)

	plan, err := ResolveDay(clock, DaySources{
		Day:      day,
		Override: &DateOverride{ID: uuid.New(), Date: day, Unavailable: true},
		Rules:    mondayRules(uuid.New()),
	}, Defaults{SlotMinutes: 50, BufferMinutes: 10})
	if err != nil {
		t.Fatalf("ResolveDay: %v", err)
	}
	if len(plan.Ranges) != 0 {
		t.Fatalf("got %d ranges, want 0", len(plan.Ranges))
	}
}

func TestResolveDayFullDayExceptionBlanksDay(t *testing.T) {
	clock := buenosAires(t)
	day := testDay(clock)

	plan, err := ResolveDay(clock, DaySources{
		Day:        day,
		Exceptions: []ExceptionDate{{ID: uuid.New(), Date: day, Unavailable: true, Note: "feriado"}},
		Rules:      mondayRules(uuid.New()),
	}, Defaults{SlotMinutes: 50, BufferMinutes: 10})
	if err != nil {
		t.Fatalf("ResolveDay: %v", err)
	}
	if len(plan.Ranges) != 0 {
		t.Fatalf("got %d ranges, want 0", len(plan.Ranges))
	}
}

func TestResolveDayOverrideBeatsException(t *testing.T) {
	clock := buenosAires(t)
	day := testDay(clock)

	// Override and full-day exception on the same date: the override wins,
	// first authoritative match, no fallthrough.
	plan, err := ResolveDay(clock, DaySources{
		Day: day,
		Override: &DateOverride{
			ID: uuid.New(), Date: day,
			Ranges: []OverrideRange{{StartTime: "09:00", EndTime: "11:00"}},
		},
		Exceptions: []ExceptionDate{{ID: uuid.New(), Date: day, Unavailable: true}},
	}, Defaults{SlotMinutes: 50, BufferMinutes: 10})
	if err != nil {
		t.Fatalf("ResolveDay: %v", err)
	}
	if len(plan.Ranges) != 1 {
		t.Fatalf("got %d ranges, want override range to win", len(plan.Ranges))
	}
}

func TestResolveDayPartialExceptionLayersAsExclusion(t *testing.T) {
	clock := buenosAires(t)
	day := testDay(clock)

	plan, err := ResolveDay(clock, DaySources{
		Day: day,
		Exceptions: []ExceptionDate{
			{ID: uuid.New(), Date: day, StartTime: "10:00", EndTime: "11:00"},
		},
		Rules: mondayRules(uuid.New()),
	}, Defaults{SlotMinutes: 50, BufferMinutes: 10})
	if err != nil {
		t.Fatalf("ResolveDay: %v", err)
	}

	// Rules still govern the day; the exception becomes a busy interval.
	if len(plan.Ranges) != 2 {
		t.Fatalf("got %d ranges, want 2", len(plan.Ranges))
	}
	if len(plan.Exclusions) != 1 {
		t.Fatalf("got %d exclusions, want 1", len(plan.Exclusions))
	}
	wantStart, _ := clock.At(day, "10:00")
	if !plan.Exclusions[0].Start.Equal(wantStart) {
		t.Errorf("exclusion start = %v, want 10:00 local", plan.Exclusions[0].Start)
	}
}

func TestResolveDayPartialExceptionLayersUnderOverride(t *testing.T) {
	clock := buenosAires(t)
	day := testDay(clock)

	plan, err := ResolveDay(clock, DaySources{
		Day: day,
		Override: &DateOverride{
			ID: uuid.New(), Date: day,
			Ranges: []OverrideRange{{StartTime: "09:00", EndTime: "13:00"}},
		},
		Exceptions: []ExceptionDate{
			{ID: uuid.New(), Date: day, StartTime: "09:00", EndTime: "10:00"},
		},
	}, Defaults{SlotMinutes: 50, BufferMinutes: 10})
	if err != nil {
		t.Fatalf("ResolveDay: %v", err)
	}
	// The exclusion applies even though the override was authoritative.
	if len(plan.Ranges) != 1 || len(plan.Exclusions) != 1 {
		t.Fatalf("ranges=%d exclusions=%d, want 1/1", len(plan.Ranges), len(plan.Exclusions))
	}
}

func TestResolveDayEmptyIsValid(t *testing.T) {
	clock := buenosAires(t)
	day := testDay(clock)

	plan, err := ResolveDay(clock, DaySources{Day: day}, Defaults{SlotMinutes: 50, BufferMinutes: 10})
	if err != nil {
		t.Fatalf("ResolveDay: %v", err)
	}
	if len(plan.Ranges) != 0 || len(plan.Exclusions) != 0 {
		t.Errorf("expected empty plan, got %#v", plan)
	}
}

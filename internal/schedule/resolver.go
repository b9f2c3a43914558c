package schedule

import "time"

// Defaults supplies slot geometry for override ranges that do not carry
// their own.
type Defaults struct {
	SlotMinutes   int
	BufferMinutes int
}

// DaySources holds every schedule record that can govern one local day.
type DaySources struct {
	Day        time.Time // local midnight
	Override   *DateOverride
	Exceptions []ExceptionDate
	Rules      []RecurringRule // rules already filtered to the professional
}

// DayPlan is the resolved schedule for one local day: the windows to expand
// plus the extra exclusions layered in by partial exceptions.
type DayPlan struct {
	Ranges     []SlotRange
	Exclusions []Interval
}

// dayStrategy resolves the governing ranges for a day. It returns
// authoritative=true when its source owns the day and later strategies must
// not run, even if it resolved zero ranges.
type dayStrategy func(clock *Clock, src DaySources, defaults Defaults) (ranges []SlotRange, authoritative bool, err error)

// Resolution precedence, first authoritative match wins, no fallthrough:
// override replaces everything for its date, a full-day exception blanks the
// day, otherwise recurring rules matching the weekday apply.
var dayStrategies = []dayStrategy{
	resolveOverride,
	resolveFullDayException,
	resolveRecurringRules,
}

// ResolveDay picks the governing schedule source for one local day and
// collects partial-exception exclusions, which always apply regardless of
// which source won. A day with zero ranges is a valid empty plan.
func ResolveDay(clock *Clock, src DaySources, defaults Defaults) (DayPlan, error) {
	plan := DayPlan{Ranges: []SlotRange{}}

	for _, strategy := range dayStrategies {
		ranges, authoritative, err := strategy(clock, src, defaults)
		if err != nil {
			return DayPlan{}, err
		}
		if authoritative {
			plan.Ranges = ranges
			break
		}
	}

	for _, exc := range src.Exceptions {
		if !exc.Partial() {
			continue
		}
		start, err := clock.At(src.Day, exc.StartTime)
		if err != nil {
			return DayPlan{}, err
		}
		end, err := clock.At(src.Day, exc.EndTime)
		if err != nil {
			return DayPlan{}, err
		}
		plan.Exclusions = append(plan.Exclusions, Interval{Start: start, End: end})
	}

	return plan, nil
}

func resolveOverride(clock *Clock, src DaySources, defaults Defaults) ([]SlotRange, bool, error) {
	if src.Override == nil {
		return nil, false, nil
	}
	if src.Override.Unavailable {
		return nil, true, nil
	}

	slotMinutes := defaults.SlotMinutes
	if src.Override.SlotMinutes != nil {
		slotMinutes = *src.Override.SlotMinutes
	}
	bufferMinutes := defaults.BufferMinutes
	if src.Override.BufferMinutes != nil {
		bufferMinutes = *src.Override.BufferMinutes
	}

	ranges := make([]SlotRange, 0, len(src.Override.Ranges))
	for _, rng := range src.Override.Ranges {
		ranges = append(ranges, SlotRange{
			Day:           src.Day,
			StartTime:     rng.StartTime,
			EndTime:       rng.EndTime,
			SlotMinutes:   slotMinutes,
			BufferMinutes: bufferMinutes,
			Modality:      rng.Modality,
			LocationLabel: rng.LocationLabel,
		})
	}
	return ranges, true, nil
}

func resolveFullDayException(_ *Clock, src DaySources, _ Defaults) ([]SlotRange, bool, error) {
	for _, exc := range src.Exceptions {
		if exc.Unavailable {
			return nil, true, nil
		}
	}
	return nil, false, nil
}

func resolveRecurringRules(clock *Clock, src DaySources, _ Defaults) ([]SlotRange, bool, error) {
	weekday := clock.Weekday(src.Day)
	var ranges []SlotRange
	for _, rule := range src.Rules {
		if rule.Weekday != weekday {
			continue
		}
		ranges = append(ranges, SlotRange{
			Day:           src.Day,
			StartTime:     rule.StartTime,
			EndTime:       rule.EndTime,
			SlotMinutes:   rule.SlotMinutes,
			BufferMinutes: rule.BufferMinutes,
			Modality:      rule.Modality,
			LocationLabel: rule.LocationLabel,
		})
	}
	return ranges, true, nil
}

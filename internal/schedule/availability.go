package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/turnosalud/booking-platform/internal/observability/metrics"
	"github.com/turnosalud/booking-platform/pkg/logging"
)

// RuleStore is the read-side collaborator the availability engine consumes.
// Failures propagate unmodified; the engine never returns partial results.
type RuleStore interface {
	ListRecurringRules(ctx context.Context, professionalID uuid.UUID) ([]RecurringRule, error)
	ListOverrides(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]DateOverride, error)
	ListExceptions(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]ExceptionDate, error)
	ListBusyIntervals(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]Interval, error)
}

// AvailabilityCache is an optional read-through cache for computed windows.
type AvailabilityCache interface {
	Get(ctx context.Context, professionalID uuid.UUID, from, to time.Time, modality string) ([]Slot, bool)
	Set(ctx context.Context, professionalID uuid.UUID, from, to time.Time, modality string, slots []Slot)
}

// Service computes bookable slots. Every computation is a pure, read-only
// function of its inputs; the service carries no mutable state and is safe
// for unlimited concurrent use.
type Service struct {
	store    RuleStore
	clock    *Clock
	cache    AvailabilityCache
	metrics  *metrics.AvailabilityMetrics
	logger   *logging.Logger
	defaults Defaults
	now      func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithCache attaches a slot cache.
func WithCache(cache AvailabilityCache) ServiceOption {
	return func(s *Service) { s.cache = cache }
}

// WithMetrics attaches availability metrics.
func WithMetrics(m *metrics.AvailabilityMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithDefaults overrides the 50/10 slot geometry applied to override ranges
// that carry none of their own.
func WithDefaults(d Defaults) ServiceOption {
	return func(s *Service) { s.defaults = d }
}

// WithNow injects the time source, for tests.
func WithNow(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates the availability service.
func NewService(store RuleStore, clock *Clock, logger *logging.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		store:    store,
		clock:    clock,
		logger:   logger,
		defaults: Defaults{SlotMinutes: 50, BufferMinutes: 10},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AvailableSlots returns every future bookable slot for the professional in
// [from, to), in chronological order. modality optionally restricts the
// result; slots without a modality tag match any filter. Days with no
// resolved ranges contribute nothing, which is a valid empty result.
func (s *Service) AvailableSlots(ctx context.Context, professionalID uuid.UUID, from, to time.Time, modality string) ([]Slot, error) {
	started := time.Now()
	if !to.After(from) {
		return nil, NewValidationError("from %s must precede to %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	if s.cache != nil {
		if slots, ok := s.cache.Get(ctx, professionalID, from, to, modality); ok {
			s.metrics.ObserveCache(true)
			s.logger.Debug("availability cache hit", "professional_id", professionalID, "slots", len(slots))
			return slots, nil
		}
		s.metrics.ObserveCache(false)
	}

	slots, err := s.compute(ctx, professionalID, from, to, modality)
	if err != nil {
		s.metrics.ObserveRequest("error", 0, time.Since(started))
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, professionalID, from, to, modality, slots)
	}
	s.metrics.ObserveRequest("ok", len(slots), time.Since(started))
	return slots, nil
}

func (s *Service) compute(ctx context.Context, professionalID uuid.UUID, from, to time.Time, modality string) ([]Slot, error) {
	rules, err := s.store.ListRecurringRules(ctx, professionalID)
	if err != nil {
		return nil, fmt.Errorf("schedule: list recurring rules: %w", err)
	}
	overrides, err := s.store.ListOverrides(ctx, professionalID, from, to)
	if err != nil {
		return nil, fmt.Errorf("schedule: list overrides: %w", err)
	}
	exceptions, err := s.store.ListExceptions(ctx, professionalID, from, to)
	if err != nil {
		return nil, fmt.Errorf("schedule: list exceptions: %w", err)
	}
	busy, err := s.store.ListBusyIntervals(ctx, professionalID, from, to)
	if err != nil {
		return nil, fmt.Errorf("schedule: list busy intervals: %w", err)
	}

	// Override and exception dates are calendar dates, not instants; bucket
	// by the written date so a value decoded at UTC midnight still governs
	// the clinic day it names.
	overrideByDay := make(map[time.Time]*DateOverride, len(overrides))
	for i := range overrides {
		overrideByDay[s.clock.LocalDate(overrides[i].Date)] = &overrides[i]
	}
	exceptionsByDay := make(map[time.Time][]ExceptionDate, len(exceptions))
	for _, exc := range exceptions {
		day := s.clock.LocalDate(exc.Date)
		exceptionsByDay[day] = append(exceptionsByDay[day], exc)
	}

	now := s.now()
	slots := make([]Slot, 0)

	for day := s.clock.DayOf(from); day.Before(to); day = s.clock.NextDay(day) {
		plan, err := ResolveDay(s.clock, DaySources{
			Day:        day,
			Override:   overrideByDay[day],
			Exceptions: exceptionsByDay[day],
			Rules:      rules,
		}, s.defaults)
		if err != nil {
			return nil, err
		}
		if len(plan.Ranges) == 0 {
			continue
		}

		dayBusy := busy
		if len(plan.Exclusions) > 0 {
			dayBusy = append(append([]Interval{}, busy...), plan.Exclusions...)
		}

		daySlots, err := ExpandRanges(s.clock, plan.Ranges, now, dayBusy)
		if err != nil {
			return nil, err
		}
		slots = append(slots, daySlots...)
	}

	filtered := slots[:0]
	for _, slot := range slots {
		if slot.StartAt.Before(from) || !slot.StartAt.Before(to) {
			continue
		}
		if modality != "" && slot.Modality != "" && slot.Modality != modality {
			continue
		}
		filtered = append(filtered, slot)
	}
	slots = filtered

	sort.Slice(slots, func(i, j int) bool {
		return slots[i].StartAt.Before(slots[j].StartAt)
	})
	return slots, nil
}

// Package handlers holds the public patient-facing HTTP endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/turnosalud/booking-platform/internal/schedule"
	"github.com/turnosalud/booking-platform/pkg/logging"
)

// ProfessionalDirectory resolves public slugs to professionals.
type ProfessionalDirectory interface {
	GetBySlug(ctx context.Context, slug string) (schedule.Professional, error)
	List(ctx context.Context) ([]schedule.Professional, error)
}

// SlotFinder computes bookable slots for a window.
type SlotFinder interface {
	AvailableSlots(ctx context.Context, professionalID uuid.UUID, from, to time.Time, modality string) ([]schedule.Slot, error)
}

// AvailabilityHandler serves the public slot listing.
type AvailabilityHandler struct {
	directory  ProfessionalDirectory
	slots      SlotFinder
	clock      *schedule.Clock
	windowDays int
	logger     *logging.Logger
}

// NewAvailabilityHandler creates the handler. windowDays bounds the default
// search window when the request carries no explicit range.
func NewAvailabilityHandler(directory ProfessionalDirectory, slots SlotFinder, clock *schedule.Clock, windowDays int, logger *logging.Logger) *AvailabilityHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if windowDays <= 0 {
		windowDays = 21
	}
	return &AvailabilityHandler{
		directory:  directory,
		slots:      slots,
		clock:      clock,
		windowDays: windowDays,
		logger:     logger,
	}
}

// Routes returns the public professional routes.
func (h *AvailabilityHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListProfessionals)
	r.Get("/{slug}/slots", h.GetSlots)
	return r
}

// ListProfessionals returns the active professionals patients can book with.
// GET /api/professionals
func (h *AvailabilityHandler) ListProfessionals(w http.ResponseWriter, r *http.Request) {
	list, err := h.directory.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list professionals", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"professionals": list})
}

// slotsResponse is the payload for the public slot listing.
type slotsResponse struct {
	Professional schedule.Professional `json:"professional"`
	From         time.Time             `json:"from"`
	To           time.Time             `json:"to"`
	Slots        []schedule.Slot       `json:"slots"`
}

// GetSlots lists bookable slots for a professional.
// GET /api/professionals/{slug}/slots?from=...&to=...&modality=...
func (h *AvailabilityHandler) GetSlots(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		http.Error(w, `{"error": "slug required"}`, http.StatusBadRequest)
		return
	}

	professional, err := h.directory.GetBySlug(r.Context(), slug)
	if errors.Is(err, schedule.ErrNotFound) {
		http.Error(w, `{"error": "professional not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load professional", "slug", slug, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	from, to, err := h.parseWindow(r)
	if err != nil {
		http.Error(w, `{"error": "`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	// An unpublished professional keeps a valid page with an empty agenda.
	if !professional.Active {
		writeJSON(w, h.logger, http.StatusOK, slotsResponse{
			Professional: professional,
			From:         from,
			To:           to,
			Slots:        []schedule.Slot{},
		})
		return
	}

	modality := r.URL.Query().Get("modality")
	slots, err := h.slots.AvailableSlots(r.Context(), professional.ID, from, to, modality)
	if err != nil {
		if schedule.IsValidation(err) {
			http.Error(w, `{"error": "`+err.Error()+`"}`, http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to compute availability", "slug", slug, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if slots == nil {
		slots = []schedule.Slot{}
	}

	writeJSON(w, h.logger, http.StatusOK, slotsResponse{
		Professional: professional,
		From:         from,
		To:           to,
		Slots:        slots,
	})
}

// parseWindow reads from/to query params as RFC 3339 instants or plain
// YYYY-MM-DD dates read in the clinic zone. A date-only from starts at that
// day's local midnight; a date-only to is inclusive, covering its whole
// day. Absent params default to the start of the current clinic day and
// windowDays later.
func (h *AvailabilityHandler) parseWindow(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	from := h.clock.DayOf(time.Now())
	to := from.AddDate(0, 0, h.windowDays)

	if raw := q.Get("from"); raw != "" {
		parsed, _, err := h.parseInstant(raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid from, expected RFC 3339 or YYYY-MM-DD")
		}
		from = parsed
		to = from.AddDate(0, 0, h.windowDays)
	}
	if raw := q.Get("to"); raw != "" {
		parsed, dateOnly, err := h.parseInstant(raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid to, expected RFC 3339 or YYYY-MM-DD")
		}
		if dateOnly {
			parsed = parsed.AddDate(0, 0, 1)
		}
		to = parsed
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("from must precede to")
	}
	return from, to, nil
}

func (h *AvailabilityHandler) parseInstant(raw string) (time.Time, bool, error) {
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, false, nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", raw, h.clock.Location())
	if err != nil {
		return time.Time{}, false, err
	}
	return parsed, true, nil
}

func writeJSON(w http.ResponseWriter, logger *logging.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/turnosalud/booking-platform/pkg/logging"
)

// AdminStore is the write-side persistence the schedule admin API needs.
type AdminStore interface {
	ListRecurringRules(ctx context.Context, professionalID uuid.UUID) ([]RecurringRule, error)
	CreateRecurringRule(ctx context.Context, rule RecurringRule) (RecurringRule, error)
	UpdateRecurringRule(ctx context.Context, rule RecurringRule) error
	DeleteRecurringRule(ctx context.Context, professionalID, ruleID uuid.UUID) error
	ReplaceOverride(ctx context.Context, override DateOverride) (DateOverride, error)
	DeleteOverride(ctx context.Context, professionalID, overrideID uuid.UUID) error
	CreateException(ctx context.Context, exc ExceptionDate) (ExceptionDate, error)
	DeleteException(ctx context.Context, professionalID, exceptionID uuid.UUID) error
}

// CacheInvalidator drops cached availability after a schedule write.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, professionalID uuid.UUID)
}

// Handler provides the schedule administration HTTP endpoints.
type Handler struct {
	store  AdminStore
	cache  CacheInvalidator
	clock  *Clock
	logger *logging.Logger
}

// NewHandler creates a schedule admin handler. cache may be nil.
func NewHandler(store AdminStore, cache CacheInvalidator, clock *Clock, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, cache: cache, clock: clock, logger: logger}
}

// Routes returns the admin schedule routes, mounted per professional.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/{professionalID}", func(r chi.Router) {
		r.Get("/rules", h.ListRules)
		r.Post("/rules", h.CreateRule)
		r.Put("/rules/{ruleID}", h.UpdateRule)
		r.Delete("/rules/{ruleID}", h.DeleteRule)
		r.Put("/overrides", h.PutOverride)
		r.Delete("/overrides/{overrideID}", h.DeleteOverride)
		r.Post("/exceptions", h.CreateException)
		r.Delete("/exceptions/{exceptionID}", h.DeleteException)
	})
	return r
}

// ListRules returns every recurring rule for a professional.
// GET /admin/schedules/{professionalID}/rules
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := h.professionalID(w, r)
	if !ok {
		return
	}
	rules, err := h.store.ListRecurringRules(r.Context(), professionalID)
	if err != nil {
		h.logger.Error("failed to list rules", "professional_id", professionalID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if rules == nil {
		rules = []RecurringRule{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

// ruleRequest is the body for creating or updating a recurring rule.
type ruleRequest struct {
	Weekday       int    `json:"weekday"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	SlotMinutes   int    `json:"slot_minutes"`
	BufferMinutes int    `json:"buffer_minutes"`
	Modality      string `json:"modality"`
	LocationLabel string `json:"location_label"`
}

// CreateRule adds a recurring rule.
// POST /admin/schedules/{professionalID}/rules
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := h.professionalID(w, r)
	if !ok {
		return
	}
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	rule, err := h.store.CreateRecurringRule(r.Context(), RecurringRule{
		ProfessionalID: professionalID,
		Weekday:        req.Weekday,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		SlotMinutes:    req.SlotMinutes,
		BufferMinutes:  req.BufferMinutes,
		Modality:       req.Modality,
		LocationLabel:  req.LocationLabel,
	})
	if err != nil {
		h.writeStoreError(w, r, "create rule", professionalID, err)
		return
	}
	h.invalidate(r.Context(), professionalID)
	h.writeJSON(w, http.StatusCreated, rule)
}

// UpdateRule replaces a rule's definition.
// PUT /admin/schedules/{professionalID}/rules/{ruleID}
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := h.professionalID(w, r)
	if !ok {
		return
	}
	ruleID, err := uuid.Parse(chi.URLParam(r, "ruleID"))
	if err != nil {
		http.Error(w, `{"error": "invalid rule id"}`, http.StatusBadRequest)
		return
	}
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	rule := RecurringRule{
		ID:             ruleID,
		ProfessionalID: professionalID,
		Weekday:        req.Weekday,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		SlotMinutes:    req.SlotMinutes,
		BufferMinutes:  req.BufferMinutes,
		Modality:       req.Modality,
		LocationLabel:  req.LocationLabel,
	}
	if err := h.store.UpdateRecurringRule(r.Context(), rule); err != nil {
		h.writeStoreError(w, r, "update rule", professionalID, err)
		return
	}
	h.invalidate(r.Context(), professionalID)
	h.writeJSON(w, http.StatusOK, rule)
}

// DeleteRule removes a recurring rule.
// DELETE /admin/schedules/{professionalID}/rules/{ruleID}
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := h.professionalID(w, r)
	if !ok {
		return
	}
	ruleID, err := uuid.Parse(chi.URLParam(r, "ruleID"))
	if err != nil {
		http.Error(w, `{"error": "invalid rule id"}`, http.StatusBadRequest)
		return
	}
	if err := h.store.DeleteRecurringRule(r.Context(), professionalID, ruleID); err != nil {
		h.writeStoreError(w, r, "delete rule", professionalID, err)
		return
	}
	h.invalidate(r.Context(), professionalID)
	w.WriteHeader(http.StatusNoContent)
}

// overrideRequest is the body for installing a date override.
type overrideRequest struct {
	Date          string          `json:"date"` // YYYY-MM-DD, clinic zone
	Unavailable   bool            `json:"unavailable"`
	SlotMinutes   *int            `json:"slot_minutes,omitempty"`
	BufferMinutes *int            `json:"buffer_minutes,omitempty"`
	Ranges        []OverrideRange `json:"ranges"`
}

// PutOverride installs an override for a date, replacing any prior one.
// PUT /admin/schedules/{professionalID}/overrides
func (h *Handler) PutOverride(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := h.professionalID(w, r)
	if !ok {
		return
	}
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	date, err := h.parseDate(req.Date)
	if err != nil {
		http.Error(w, `{"error": "invalid date, expected YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}
	override, err := h.store.ReplaceOverride(r.Context(), DateOverride{
		ProfessionalID: professionalID,
		Date:           date,
		Unavailable:    req.Unavailable,
		SlotMinutes:    req.SlotMinutes,
		BufferMinutes:  req.BufferMinutes,
		Ranges:         req.Ranges,
	})
	if err != nil {
		h.writeStoreError(w, r, "replace override", professionalID, err)
		return
	}
	h.invalidate(r.Context(), professionalID)
	h.writeJSON(w, http.StatusOK, override)
}

// DeleteOverride removes an override and its ranges.
// DELETE /admin/schedules/{professionalID}/overrides/{overrideID}
func (h *Handler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := h.professionalID(w, r)
	if !ok {
		return
	}
	overrideID, err := uuid.Parse(chi.URLParam(r, "overrideID"))
	if err != nil {
		http.Error(w, `{"error": "invalid override id"}`, http.StatusBadRequest)
		return
	}
	if err := h.store.DeleteOverride(r.Context(), professionalID, overrideID); err != nil {
		h.writeStoreError(w, r, "delete override", professionalID, err)
		return
	}
	h.invalidate(r.Context(), professionalID)
	w.WriteHeader(http.StatusNoContent)
}

// exceptionRequest is the body for blocking out a date or part of one.
type exceptionRequest struct {
	Date        string `json:"date"` // YYYY-MM-DD, clinic zone
	Unavailable bool   `json:"unavailable"`
	StartTime   string `json:"start_time,omitempty"`
	EndTime     string `json:"end_time,omitempty"`
	Note        string `json:"note,omitempty"`
}

// CreateException blocks a full day or a window within one.
// POST /admin/schedules/{professionalID}/exceptions
func (h *Handler) CreateException(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := h.professionalID(w, r)
	if !ok {
		return
	}
	var req exceptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	date, err := h.parseDate(req.Date)
	if err != nil {
		http.Error(w, `{"error": "invalid date, expected YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}
	exc, err := h.store.CreateException(r.Context(), ExceptionDate{
		ProfessionalID: professionalID,
		Date:           date,
		Unavailable:    req.Unavailable,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Note:           req.Note,
	})
	if err != nil {
		h.writeStoreError(w, r, "create exception", professionalID, err)
		return
	}
	h.invalidate(r.Context(), professionalID)
	h.writeJSON(w, http.StatusCreated, exc)
}

// DeleteException removes an exception date.
// DELETE /admin/schedules/{professionalID}/exceptions/{exceptionID}
func (h *Handler) DeleteException(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := h.professionalID(w, r)
	if !ok {
		return
	}
	exceptionID, err := uuid.Parse(chi.URLParam(r, "exceptionID"))
	if err != nil {
		http.Error(w, `{"error": "invalid exception id"}`, http.StatusBadRequest)
		return
	}
	if err := h.store.DeleteException(r.Context(), professionalID, exceptionID); err != nil {
		h.writeStoreError(w, r, "delete exception", professionalID, err)
		return
	}
	h.invalidate(r.Context(), professionalID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) professionalID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "professionalID"))
	if err != nil {
		http.Error(w, `{"error": "invalid professional id"}`, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) parseDate(raw string) (time.Time, error) {
	parsed, err := time.ParseInLocation("2006-01-02", raw, h.clock.Location())
	if err != nil {
		return time.Time{}, err
	}
	return parsed, nil
}

func (h *Handler) invalidate(ctx context.Context, professionalID uuid.UUID) {
	if h.cache != nil {
		h.cache.Invalidate(ctx, professionalID)
	}
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, action string, professionalID uuid.UUID, err error) {
	switch {
	case IsValidation(err):
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrNotFound):
		http.Error(w, `{"error": "not found"}`, http.StatusNotFound)
	default:
		h.logger.Error("schedule admin "+action+" failed", "professional_id", professionalID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

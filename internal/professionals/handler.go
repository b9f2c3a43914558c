package professionals

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/turnosalud/booking-platform/internal/schedule"
	"github.com/turnosalud/booking-platform/pkg/logging"
)

// Directory is the store surface the admin handler needs.
type Directory interface {
	List(ctx context.Context) ([]schedule.Professional, error)
	Create(ctx context.Context, p schedule.Professional) (schedule.Professional, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// Handler provides the admin endpoints for managing professionals.
type Handler struct {
	store  Directory
	logger *logging.Logger
}

// NewHandler creates the professionals admin handler.
func NewHandler(store Directory, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Routes returns the admin professional routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Patch("/{professionalID}/active", h.SetActive)
	return r
}

// List returns active professionals.
// GET /admin/professionals
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list professionals", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []schedule.Professional{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"professionals": list})
}

// createRequest is the body for registering a professional.
type createRequest struct {
	Slug        string `json:"slug"`
	DisplayName string `json:"display_name"`
	Specialty   string `json:"specialty,omitempty"`
}

// Create registers a professional.
// POST /admin/professionals
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	p, err := h.store.Create(r.Context(), schedule.Professional{
		Slug:        req.Slug,
		DisplayName: req.DisplayName,
		Specialty:   req.Specialty,
		Active:      true,
	})
	if err != nil {
		switch {
		case schedule.IsValidation(err):
			h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		case errors.Is(err, schedule.ErrConflict):
			http.Error(w, `{"error": "slug already in use"}`, http.StatusConflict)
		default:
			h.logger.Error("failed to create professional", "slug", req.Slug, "error", err)
			http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, p)
}

// activeRequest is the body for publishing or unpublishing a professional.
type activeRequest struct {
	Active bool `json:"active"`
}

// SetActive publishes or unpublishes a professional's agenda.
// PATCH /admin/professionals/{professionalID}/active
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "professionalID"))
	if err != nil {
		http.Error(w, `{"error": "invalid professional id"}`, http.StatusBadRequest)
		return
	}
	var req activeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if err := h.store.SetActive(r.Context(), id, req.Active); err != nil {
		if errors.Is(err, schedule.ErrNotFound) {
			http.Error(w, `{"error": "not found"}`, http.StatusNotFound)
			return
		}
		h.logger.Error("failed to update professional", "professional_id", id, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

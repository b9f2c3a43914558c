package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/turnosalud/booking-platform/internal/auth"
	"github.com/turnosalud/booking-platform/internal/schedule"
	"github.com/turnosalud/booking-platform/pkg/logging"
)

// Handler exposes the hold and appointment endpoints.
type Handler struct {
	service *Service
	tokens  *auth.CancelTokenIssuer
	logger  *logging.Logger
}

// NewHandler creates the booking HTTP handler.
func NewHandler(service *Service, tokens *auth.CancelTokenIssuer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, tokens: tokens, logger: logger}
}

// Routes returns the booking routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/holds", h.CreateHold)
	r.Post("/holds/{holdID}/confirm", h.ConfirmHold)
	r.Get("/appointments/{appointmentID}/cancellation", h.CheckCancellation)
	r.Post("/appointments/cancel", h.CancelWithToken)
	r.Post("/appointments/{appointmentID}/cancel", h.CancelByStaff)
	return r
}

// holdRequest is the body for reserving a slot.
type holdRequest struct {
	ProfessionalID uuid.UUID `json:"professional_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	StartAt        time.Time `json:"start_at"`
	EndAt          time.Time `json:"end_at"`
}

// CreateHold reserves a slot for a patient.
// POST /api/bookings/holds
func (h *Handler) CreateHold(w http.ResponseWriter, r *http.Request) {
	var req holdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if req.ProfessionalID == uuid.Nil || req.PatientID == uuid.Nil {
		http.Error(w, `{"error": "professional_id and patient_id required"}`, http.StatusBadRequest)
		return
	}

	hold, err := h.service.HoldSlot(r.Context(), req.ProfessionalID, req.PatientID, req.StartAt, req.EndAt)
	if err != nil {
		h.writeError(w, "create hold", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, hold)
}

// confirmRequest carries the patient contact used for the confirmation email.
type confirmRequest struct {
	PatientID    uuid.UUID `json:"patient_id"`
	PatientEmail string    `json:"patient_email"`
	PatientName  string    `json:"patient_name"`
}

// ConfirmHold converts a hold into a confirmed appointment.
// POST /api/bookings/holds/{holdID}/confirm
func (h *Handler) ConfirmHold(w http.ResponseWriter, r *http.Request) {
	holdID, err := uuid.Parse(chi.URLParam(r, "holdID"))
	if err != nil {
		http.Error(w, `{"error": "invalid hold id"}`, http.StatusBadRequest)
		return
	}
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if req.PatientID == uuid.Nil {
		http.Error(w, `{"error": "patient_id required"}`, http.StatusBadRequest)
		return
	}

	result, err := h.service.Confirm(r.Context(), holdID, req.PatientID, req.PatientEmail, req.PatientName)
	if err != nil {
		h.writeError(w, "confirm hold", err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// CheckCancellation reports whether the appointment can still be cancelled.
// GET /api/bookings/appointments/{appointmentID}/cancellation
func (h *Handler) CheckCancellation(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, `{"error": "invalid appointment id"}`, http.StatusBadRequest)
		return
	}
	_, decision, err := h.service.CheckCancel(r.Context(), appointmentID)
	if err != nil {
		h.writeError(w, "check cancellation", err)
		return
	}
	h.writeJSON(w, http.StatusOK, decision)
}

// cancelTokenRequest is the body for the patient self-service cancel.
type cancelTokenRequest struct {
	Token        string `json:"token"`
	Reason       string `json:"reason,omitempty"`
	PatientEmail string `json:"patient_email,omitempty"`
	PatientName  string `json:"patient_name,omitempty"`
}

// CancelWithToken cancels an appointment using the emailed cancel token.
// POST /api/bookings/appointments/cancel
func (h *Handler) CancelWithToken(w http.ResponseWriter, r *http.Request) {
	var req cancelTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if h.tokens == nil {
		http.Error(w, `{"error": "cancellation tokens not configured"}`, http.StatusServiceUnavailable)
		return
	}
	appointmentID, err := h.tokens.Verify(req.Token)
	if err != nil {
		http.Error(w, `{"error": "invalid or expired token"}`, http.StatusUnauthorized)
		return
	}

	decision, err := h.service.Cancel(r.Context(), appointmentID, "patient", req.Reason, req.PatientEmail, req.PatientName)
	if err != nil {
		if errors.Is(err, ErrTooLate) {
			h.writeJSON(w, http.StatusConflict, map[string]any{
				"error":    "cancellation window closed",
				"decision": decision,
			})
			return
		}
		h.writeError(w, "cancel with token", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"cancelled": true, "decision": decision})
}

// staffCancelRequest is the body for an admin-side cancellation.
type staffCancelRequest struct {
	Reason       string `json:"reason,omitempty"`
	PatientEmail string `json:"patient_email,omitempty"`
	PatientName  string `json:"patient_name,omitempty"`
}

// CancelByStaff cancels regardless of the notice window. Mounted behind the
// admin auth middleware.
// POST /admin/bookings/appointments/{appointmentID}/cancel
func (h *Handler) CancelByStaff(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, `{"error": "invalid appointment id"}`, http.StatusBadRequest)
		return
	}
	var req staffCancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	decision, err := h.service.Cancel(r.Context(), appointmentID, "staff", req.Reason, req.PatientEmail, req.PatientName)
	if err != nil {
		h.writeError(w, "cancel by staff", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"cancelled": true, "decision": decision})
}

func (h *Handler) writeError(w http.ResponseWriter, action string, err error) {
	switch {
	case schedule.IsValidation(err):
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, schedule.ErrConflict):
		http.Error(w, `{"error": "slot no longer available"}`, http.StatusConflict)
	case errors.Is(err, schedule.ErrNotFound):
		http.Error(w, `{"error": "not found"}`, http.StatusNotFound)
	default:
		h.logger.Error("booking "+action+" failed", "error", err)
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

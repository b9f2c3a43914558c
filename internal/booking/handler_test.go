package booking

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnosalud/booking-platform/internal/auth"
	"github.com/turnosalud/booking-platform/internal/schedule"
)

func newTestHandler(t *testing.T, store *stubStore) *Handler {
	t.Helper()
	svc := newTestService(t, store, nil)
	tokens, err := auth.NewCancelTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	return NewHandler(svc, tokens, nil)
}

func TestCreateHoldEndpoint(t *testing.T) {
	store := &stubStore{}
	h := newTestHandler(t, store)

	body, _ := json.Marshal(holdRequest{
		ProfessionalID: uuid.New(),
		PatientID:      uuid.New(),
		StartAt:        mondayMorning.Add(2 * time.Hour),
		EndAt:          mondayMorning.Add(2*time.Hour + 50*time.Minute),
	})
	req := httptest.NewRequest(http.MethodPost, "/holds", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var hold schedule.SlotHold
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hold))
	assert.Equal(t, schedule.HoldStatusHold, hold.Status)
}

func TestCreateHoldConflictReturns409(t *testing.T) {
	h := newTestHandler(t, &stubStore{holdErr: schedule.ErrConflict})

	body, _ := json.Marshal(holdRequest{
		ProfessionalID: uuid.New(),
		PatientID:      uuid.New(),
		StartAt:        mondayMorning.Add(2 * time.Hour),
		EndAt:          mondayMorning.Add(2*time.Hour + 50*time.Minute),
	})
	req := httptest.NewRequest(http.MethodPost, "/holds", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateHoldMissingIDs(t *testing.T) {
	h := newTestHandler(t, &stubStore{})

	req := httptest.NewRequest(http.MethodPost, "/holds", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmHoldEndpoint(t *testing.T) {
	store := &stubStore{appointment: schedule.Appointment{
		ID:             uuid.New(),
		ProfessionalID: uuid.New(),
		StartAt:        mondayMorning.AddDate(0, 0, 7),
		EndAt:          mondayMorning.AddDate(0, 0, 7).Add(50 * time.Minute),
		Status:         schedule.AppointmentStatusPending,
	}}
	h := newTestHandler(t, store)

	body, _ := json.Marshal(confirmRequest{PatientID: uuid.New(), PatientEmail: "p@example.com"})
	req := httptest.NewRequest(http.MethodPost, "/holds/"+uuid.NewString()+"/confirm", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result ConfirmResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, schedule.AppointmentStatusConfirmed, result.Appointment.Status)
	assert.NotEmpty(t, result.CancelURL)
}

func TestConfirmExpiredHoldReturns404(t *testing.T) {
	h := newTestHandler(t, &stubStore{getErr: schedule.ErrNotFound})

	body, _ := json.Marshal(confirmRequest{PatientID: uuid.New()})
	req := httptest.NewRequest(http.MethodPost, "/holds/"+uuid.NewString()+"/confirm", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelWithTokenTooLateReturns409(t *testing.T) {
	apptID := uuid.New()
	store := &stubStore{appointment: schedule.Appointment{
		ID:      apptID,
		StartAt: mondayMorning.AddDate(0, 0, 1),
		Status:  schedule.AppointmentStatusConfirmed,
	}}
	h := newTestHandler(t, store)

	tokens, err := auth.NewCancelTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	token, err := tokens.Issue(apptID, time.Now())
	require.NoError(t, err)

	body, _ := json.Marshal(cancelTokenRequest{Token: token})
	req := httptest.NewRequest(http.MethodPost, "/appointments/cancel", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "businessHoursRemaining")
	assert.Empty(t, store.cancelled)
}

func TestCancelWithTokenSucceeds(t *testing.T) {
	apptID := uuid.New()
	store := &stubStore{appointment: schedule.Appointment{
		ID:      apptID,
		StartAt: mondayMorning.AddDate(0, 0, 7),
		Status:  schedule.AppointmentStatusConfirmed,
	}}
	h := newTestHandler(t, store)

	tokens, err := auth.NewCancelTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	token, err := tokens.Issue(apptID, time.Now())
	require.NoError(t, err)

	body, _ := json.Marshal(cancelTokenRequest{Token: token, Reason: "viaje"})
	req := httptest.NewRequest(http.MethodPost, "/appointments/cancel", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"patient:viaje"}, store.cancelled)
}

func TestCancelWithBadTokenReturns401(t *testing.T) {
	h := newTestHandler(t, &stubStore{})

	body, _ := json.Marshal(cancelTokenRequest{Token: "garbage"})
	req := httptest.NewRequest(http.MethodPost, "/appointments/cancel", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStaffCancelBypassesWindow(t *testing.T) {
	apptID := uuid.New()
	store := &stubStore{appointment: schedule.Appointment{
		ID:      apptID,
		StartAt: mondayMorning.AddDate(0, 0, 1),
		Status:  schedule.AppointmentStatusConfirmed,
	}}
	h := newTestHandler(t, store)

	body, _ := json.Marshal(staffCancelRequest{Reason: "licencia"})
	req := httptest.NewRequest(http.MethodPost, "/appointments/"+apptID.String()+"/cancel", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"staff:licencia"}, store.cancelled)
}

func TestCheckCancellationEndpoint(t *testing.T) {
	apptID := uuid.New()
	store := &stubStore{appointment: schedule.Appointment{
		ID:      apptID,
		StartAt: mondayMorning.AddDate(0, 0, 1),
		Status:  schedule.AppointmentStatusConfirmed,
	}}
	h := newTestHandler(t, store)

	req := httptest.NewRequest(http.MethodGet, "/appointments/"+apptID.String()+"/cancellation", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var decision CancelDecision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.False(t, decision.Allowed)
	assert.Equal(t, 8, decision.BusinessHoursRemaining)
}

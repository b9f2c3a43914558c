package notify

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnosalud/booking-platform/internal/schedule"
)

type recordingSender struct {
	sent []EmailMessage
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg EmailMessage) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func testClock(t *testing.T) *schedule.Clock {
	t.Helper()
	clock, err := schedule.NewClock("America/Argentina/Buenos_Aires")
	require.NoError(t, err)
	return clock
}

func testDetails() BookingDetails {
	return BookingDetails{
		Appointment: schedule.Appointment{
			ID: uuid.New(),
			// 13:00 UTC is 10:00 in Buenos Aires
			StartAt: time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC),
			EndAt:   time.Date(2026, 3, 2, 13, 50, 0, 0, time.UTC),
			Status:  schedule.AppointmentStatusConfirmed,
		},
		Professional: schedule.Professional{DisplayName: "Dra. García"},
		PatientEmail: "paciente@example.com",
		PatientName:  "Juan",
		CancelURL:    "https://turnos.example.com/cancel?token=abc",
	}
}

func TestAppointmentConfirmed(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, testClock(t), nil)

	svc.AppointmentConfirmed(context.Background(), testDetails())

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "paciente@example.com", msg.To)
	assert.Contains(t, msg.Subject, "Dra. García")
	assert.Contains(t, msg.Body, "02/03/2026 10:00")
	assert.Contains(t, msg.Body, "https://turnos.example.com/cancel?token=abc")
}

func TestAppointmentCancelled(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, testClock(t), nil)

	d := testDetails()
	d.CancelURL = ""
	svc.AppointmentCancelled(context.Background(), d)

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Subject, "cancelado")
	assert.Contains(t, sender.sent[0].Body, "02/03/2026 10:00")
}

func TestSkipsWhenNoEmailDestination(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, testClock(t), nil)

	d := testDetails()
	d.PatientEmail = ""
	svc.AppointmentConfirmed(context.Background(), d)
	svc.AppointmentCancelled(context.Background(), d)

	assert.Empty(t, sender.sent)
}

func TestSendFailureDoesNotPanic(t *testing.T) {
	sender := &recordingSender{err: assert.AnError}
	svc := NewService(sender, testClock(t), nil)

	svc.AppointmentConfirmed(context.Background(), testDetails())
	require.Len(t, sender.sent, 1)
}

func TestStubEmailSender(t *testing.T) {
	stub := NewStubEmailSender(nil)
	err := stub.Send(context.Background(), EmailMessage{To: "x@example.com", Subject: "hola"})
	assert.NoError(t, err)
}

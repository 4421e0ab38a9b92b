package notify

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docadesk/booking-ai-platform/internal/booking"
	"github.com/docadesk/booking-ai-platform/internal/clinic"
	"github.com/docadesk/booking-ai-platform/pkg/logging"
)

type captureSender struct {
	sent []EmailMessage
}

func (c *captureSender) Send(_ context.Context, msg EmailMessage) error {
	c.sent = append(c.sent, msg)
	return nil
}

type fixedDoctors struct {
	doctor *clinic.Doctor
}

func (f *fixedDoctors) GetDoctor(context.Context, uuid.UUID) (*clinic.Doctor, error) {
	return f.doctor, nil
}

func sampleAppointment() *booking.Appointment {
	return &booking.Appointment{
		ID:           uuid.New(),
		DoctorID:     uuid.New(),
		PatientName:  "Rita Mehta",
		PatientPhone: "+12125550123",
		Symptoms:     "persistent cough",
		Date:         "2026-09-07",
		Time:         "09:00",
		Status:       booking.StatusConfirmed,
		BookingCode:  "APT-AABBCCDD",
	}
}

func TestAppointmentBookedEmail(t *testing.T) {
	sender := &captureSender{}
	doctors := &fixedDoctors{doctor: &clinic.Doctor{Name: "Dr. Asha Rao"}}
	svc := NewService(sender, doctors, "frontdesk@clinic.example", logging.Default())

	require.NoError(t, svc.AppointmentBooked(context.Background(), sampleAppointment()))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, "frontdesk@clinic.example", msg.To)
	assert.Contains(t, msg.Subject, "APT-AABBCCDD")
	assert.Contains(t, msg.Body, "Dr. Asha Rao")
	assert.Contains(t, msg.Body, "persistent cough")
}

func TestAppointmentStatusChangedEmail(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, nil, "frontdesk@clinic.example", logging.Default())

	appt := sampleAppointment()
	appt.Status = booking.StatusCancelled

	require.NoError(t, svc.AppointmentStatusChanged(context.Background(), appt, booking.StatusConfirmed, "patient request"))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "confirmed to cancelled")
	assert.Contains(t, sender.sent[0].Body, "patient request")
}

func TestAppointmentRescheduledEmail(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, nil, "frontdesk@clinic.example", logging.Default())

	appt := sampleAppointment()
	appt.Date = "2026-09-08"
	appt.Time = "10:00"

	require.NoError(t, svc.AppointmentRescheduled(context.Background(), appt, "2026-09-07 09:00", "doctor request"))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Contains(t, msg.Subject, "rescheduled")
	// Both the old and the new slot appear in the body.
	assert.Contains(t, msg.Body, "2026-09-07 09:00")
	assert.Contains(t, msg.Body, "2026-09-08 10:00")
	assert.Contains(t, msg.Body, "doctor request")
}

func TestDeliveryDisabledWithoutSender(t *testing.T) {
	svc := NewService(nil, nil, "", logging.Default())
	assert.NoError(t, svc.AppointmentBooked(context.Background(), sampleAppointment()))
}

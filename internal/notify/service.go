package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/docadesk/booking-ai-platform/internal/booking"
	"github.com/docadesk/booking-ai-platform/internal/clinic"
	"github.com/docadesk/booking-ai-platform/pkg/logging"
)

// DoctorSource resolves doctor details for notification bodies.
type DoctorSource interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*clinic.Doctor, error)
}

// Service sends clinic-facing notifications for booking lifecycle
// events. It implements booking.Notifier.
type Service struct {
	email       EmailSender
	doctors     DoctorSource
	clinicEmail string
	logger      *logging.Logger
}

// NewService creates a notification service. A nil email sender
// disables delivery; events are still logged.
func NewService(email EmailSender, doctors DoctorSource, clinicEmail string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:       email,
		doctors:     doctors,
		clinicEmail: clinicEmail,
		logger:      logger,
	}
}

var _ booking.Notifier = (*Service)(nil)

// AppointmentBooked notifies the clinic about a newly confirmed booking.
func (s *Service) AppointmentBooked(ctx context.Context, appt *booking.Appointment) error {
	doctorName := s.doctorName(ctx, appt.DoctorID)

	subject := fmt.Sprintf("New appointment %s - %s", appt.BookingCode, appt.PatientName)
	body := fmt.Sprintf(`A new appointment has been booked.

Booking code: %s
Patient: %s
Phone: %s
Doctor: %s
Date: %s
Time: %s
Symptoms: %s
`, appt.BookingCode, appt.PatientName, appt.PatientPhone, doctorName,
		appt.Date, appt.Time, orDash(appt.Symptoms))

	return s.deliver(ctx, subject, body, appt.BookingCode)
}

// AppointmentStatusChanged notifies the clinic about a cancellation,
// completion, or no-show.
func (s *Service) AppointmentStatusChanged(ctx context.Context, appt *booking.Appointment, old booking.Status, reason string) error {
	doctorName := s.doctorName(ctx, appt.DoctorID)

	subject := fmt.Sprintf("Appointment %s %s", appt.BookingCode, appt.Status)
	body := fmt.Sprintf(`Appointment %s changed from %s to %s.

Patient: %s
Phone: %s
Doctor: %s
Date: %s
Time: %s
Reason: %s
`, appt.BookingCode, old, appt.Status, appt.PatientName, appt.PatientPhone,
		doctorName, appt.Date, appt.Time, orDash(reason))

	return s.deliver(ctx, subject, body, appt.BookingCode)
}

// AppointmentRescheduled notifies the clinic that a booking moved to a
// new slot. The body names both the old and the new date and time.
func (s *Service) AppointmentRescheduled(ctx context.Context, appt *booking.Appointment, oldDateTime, reason string) error {
	doctorName := s.doctorName(ctx, appt.DoctorID)

	subject := fmt.Sprintf("Appointment %s rescheduled", appt.BookingCode)
	body := fmt.Sprintf(`Appointment %s moved from %s to %s %s.

Patient: %s
Phone: %s
Doctor: %s
Reason: %s
`, appt.BookingCode, oldDateTime, appt.Date, appt.Time,
		appt.PatientName, appt.PatientPhone, doctorName, orDash(reason))

	return s.deliver(ctx, subject, body, appt.BookingCode)
}

func (s *Service) deliver(ctx context.Context, subject, body, code string) error {
	if s.email == nil || s.clinicEmail == "" {
		s.logger.Debug("notify: email delivery disabled", "subject", subject)
		return nil
	}
	err := s.email.Send(ctx, EmailMessage{
		To:      s.clinicEmail,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		return fmt.Errorf("notify: deliver %s: %w", code, err)
	}
	return nil
}

func (s *Service) doctorName(ctx context.Context, id uuid.UUID) string {
	if s.doctors == nil {
		return id.String()
	}
	doctor, err := s.doctors.GetDoctor(ctx, id)
	if err != nil {
		s.logger.Error("notify: resolve doctor failed", "error", err, "doctor_id", id)
		return id.String()
	}
	return doctor.Name
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

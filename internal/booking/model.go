// Package booking creates and transitions appointment records. Creation
// commits the appointment row and its audit event as one atomic unit.
package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// CanTransitionTo enforces the status machine:
// pending → confirmed → completed; confirmed → cancelled | no_show.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCompleted || next == StatusCancelled || next == StatusNoShow
	}
	return false
}

// Appointment is a booked (doctor, date, time) unit with patient fields.
// Status transitions are the only mutation after creation.
type Appointment struct {
	ID           uuid.UUID `json:"id"`
	DoctorID     uuid.UUID `json:"doctor_id"`
	PatientName  string    `json:"patient_name"`
	PatientPhone string    `json:"patient_phone"`
	Symptoms     string    `json:"symptoms,omitempty"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	Status       Status    `json:"status"`
	BookingCode  string    `json:"booking_code"`
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StartsAt returns the appointment's start instant.
func (a *Appointment) StartsAt() (time.Time, error) {
	return time.Parse("2006-01-02 15:04", a.Date+" "+a.Time)
}

// ErrSlotConflict indicates the slot was taken between selection and
// commit. Recoverable: the caller re-queries availability and re-prompts.
var ErrSlotConflict = errors.New("booking: slot no longer available")

// ErrNotFound indicates the appointment does not exist.
var ErrNotFound = errors.New("booking: appointment not found")

// ValidationError is malformed or out-of-policy input. Recoverable as a
// conversational re-prompt, never a hard failure.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("booking: %s", e.Reason)
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

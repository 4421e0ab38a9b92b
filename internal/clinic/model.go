package clinic

import (
	"time"

	"github.com/google/uuid"
)

// Doctor is a bookable practitioner.
type Doctor struct {
	ID              uuid.UUID
	Name            string
	Specialization  string
	Active          bool
	ExperienceYears int
	// ConsultationFeeCents breaks ranking ties between equally
	// experienced doctors (lower fee first).
	ConsultationFeeCents int
}

// ScheduleRule defines a recurring working window for a doctor.
// Times are clinic-local "15:04" strings; a doctor may have several
// rules per weekday.
type ScheduleRule struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	Weekday     time.Weekday
	StartTime   string
	EndTime     string
	SlotMinutes int
}

// LeavePeriod blocks a doctor's schedule for an inclusive date range.
// Dates are "2006-01-02" strings.
type LeavePeriod struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	StartDate string
	EndDate   string
}

// Covers reports whether the leave period includes the given date.
// Date strings in ISO form compare correctly as strings.
func (l LeavePeriod) Covers(date string) bool {
	return l.StartDate <= date && date <= l.EndDate
}

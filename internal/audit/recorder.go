// Package audit reads the append-only history of appointment state
// transitions. The booking repository writes events inside the same
// transaction as the state change; this package serves history display
// and dispute resolution.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Action classifies an appointment event.
type Action string

const (
	ActionCreation     Action = "creation"
	ActionStatusChange Action = "status_change"
	ActionReschedule   Action = "reschedule"
	ActionCancellation Action = "cancellation"
)

// Event is an immutable appointment audit record.
type Event struct {
	ID            string    `json:"id"`
	AppointmentID string    `json:"appointment_id"`
	Action        Action    `json:"action"`
	Actor         string    `json:"actor"`
	OldValue      string    `json:"old_value,omitempty"`
	NewValue      string    `json:"new_value,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Recorder reads appointment events.
type Recorder struct {
	db *sql.DB
}

// NewRecorder creates a recorder over the given database handle.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// ListForAppointment returns the full event history for an appointment,
// oldest first.
func (r *Recorder) ListForAppointment(ctx context.Context, appointmentID string) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, appointment_id, action, actor,
			   COALESCE(old_value, ''), COALESCE(new_value, ''),
			   COALESCE(reason, ''), created_at
		FROM appointment_events
		WHERE appointment_id = $1
		ORDER BY created_at ASC
	`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.AppointmentID, &e.Action, &e.Actor,
			&e.OldValue, &e.NewValue, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

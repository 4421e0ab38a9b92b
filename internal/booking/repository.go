package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// slotUniqueConstraint is the partial unique index over
// (doctor_id, date, time) for non-cancelled appointments. A violation
// means another session won the slot.
const slotUniqueConstraint = "appointments_active_slot_idx"

// DB is the subset of pgxpool.Pool the repository needs. Satisfied by
// pgxmock in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository provides appointment persistence.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting mocks for tests.
func NewRepositoryWithDB(db DB) *Repository {
	return &Repository{db: db}
}

const appointmentColumns = `id, doctor_id, patient_name, patient_phone, symptoms,
	   date, time, status, booking_code, session_id, created_at, updated_at`

// BookedTimes returns the times already taken for a doctor on a date,
// excluding cancelled appointments. Implements the availability
// calculator's booking lookup.
func (r *Repository) BookedTimes(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT time FROM appointments
		WHERE doctor_id = $1 AND date = $2 AND status <> 'cancelled'
		ORDER BY time ASC
	`, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("booking: load booked times: %w", err)
	}
	defer rows.Close()

	var times []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("booking: scan booked time: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// GetByID returns an appointment by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments WHERE id = $1
	`, id)
	return scanAppointment(row)
}

// GetByCode returns an appointment by its booking code.
func (r *Repository) GetByCode(ctx context.Context, code string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments WHERE booking_code = $1
	`, code)
	return scanAppointment(row)
}

// FindBySession returns the non-cancelled appointment created by a
// session, if any. Used for idempotent re-entry of a confirmed booking.
func (r *Repository) FindBySession(ctx context.Context, sessionID string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE session_id = $1 AND status <> 'cancelled'
		ORDER BY created_at DESC
		LIMIT 1
	`, sessionID)
	return scanAppointment(row)
}

// CreateWithEvent inserts the appointment and its creation audit event
// in one transaction. A slot-uniqueness violation maps to ErrSlotConflict.
func (r *Repository) CreateWithEvent(ctx context.Context, appt *Appointment) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("booking: begin create: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (
			id, doctor_id, patient_name, patient_phone, symptoms,
			date, time, status, booking_code, session_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, appt.ID, appt.DoctorID, appt.PatientName, appt.PatientPhone, appt.Symptoms,
		appt.Date, appt.Time, appt.Status, appt.BookingCode, appt.SessionID,
		appt.CreatedAt, appt.UpdatedAt)
	if err != nil {
		if isSlotConflict(err) {
			return ErrSlotConflict
		}
		return fmt.Errorf("booking: insert appointment: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointment_events (
			id, appointment_id, action, actor, new_value, created_at
		) VALUES ($1, $2, 'creation', $3, $4, $5)
	`, uuid.New(), appt.ID, "session:"+appt.SessionID,
		appt.Date+" "+appt.Time, appt.CreatedAt)
	if err != nil {
		return fmt.Errorf("booking: insert creation event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("booking: commit create: %w", err)
	}
	return nil
}

// UpdateStatusWithEvent moves an appointment to a new status and
// appends the matching audit event in the same transaction. The old
// status is part of the update predicate so concurrent transitions
// cannot double-apply.
func (r *Repository) UpdateStatusWithEvent(ctx context.Context, id uuid.UUID, from, to Status, actor, reason string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("booking: begin transition: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE appointments SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, to, time.Now().UTC(), id, from)
	if err != nil {
		return fmt.Errorf("booking: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	action := "status_change"
	if to == StatusCancelled {
		action = "cancellation"
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO appointment_events (
			id, appointment_id, action, actor, old_value, new_value, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
	`, uuid.New(), id, action, actor, string(from), string(to), reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("booking: insert transition event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("booking: commit transition: %w", err)
	}
	return nil
}

// UpdateScheduleWithEvent moves an appointment to a new date and time
// and appends the reschedule audit event in the same transaction. A
// slot-uniqueness violation maps to ErrSlotConflict.
func (r *Repository) UpdateScheduleWithEvent(ctx context.Context, id uuid.UUID, date, timeStr, actor, oldDateTime, reason string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("booking: begin reschedule: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE appointments SET date = $1, time = $2, updated_at = $3
		WHERE id = $4 AND status <> 'cancelled'
	`, date, timeStr, time.Now().UTC(), id)
	if err != nil {
		if isSlotConflict(err) {
			return ErrSlotConflict
		}
		return fmt.Errorf("booking: update schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointment_events (
			id, appointment_id, action, actor, old_value, new_value, reason, created_at
		) VALUES ($1, $2, 'reschedule', $3, $4, $5, NULLIF($6, ''), $7)
	`, uuid.New(), id, actor, oldDateTime, date+" "+timeStr, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("booking: insert reschedule event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("booking: commit reschedule: %w", err)
	}
	return nil
}

func isSlotConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == slotUniqueConstraint
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.DoctorID, &a.PatientName, &a.PatientPhone, &a.Symptoms,
		&a.Date, &a.Time, &a.Status, &a.BookingCode, &a.SessionID,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("booking: scan appointment: %w", err)
	}
	return &a, nil
}

package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAppointment() *Appointment {
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	return &Appointment{
		ID:           uuid.New(),
		DoctorID:     uuid.New(),
		PatientName:  "Rita Mehta",
		PatientPhone: "+12125550123",
		Date:         "2026-09-07",
		Time:         "09:00",
		Status:       StatusConfirmed,
		BookingCode:  "APT-AABBCCDD",
		SessionID:    "sess-1",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestBookedTimes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepositoryWithDB(mock)
	doctorID := uuid.New()

	mock.ExpectQuery("SELECT time FROM appointments").
		WithArgs(doctorID, "2026-09-07").
		WillReturnRows(pgxmock.NewRows([]string{"time"}).AddRow("09:00").AddRow("10:30"))

	times, err := repo.BookedTimes(context.Background(), doctorID, "2026-09-07")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:30"}, times)
}

func TestCreateWithEventCommitsBothInserts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepositoryWithDB(mock)
	appt := testAppointment()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(anyArgs(12)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO appointment_events").
		WithArgs(anyArgs(5)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateWithEvent(context.Background(), appt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithEventSlotConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepositoryWithDB(mock)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(anyArgs(12)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: slotUniqueConstraint})
	mock.ExpectRollback()

	err = repo.CreateWithEvent(context.Background(), testAppointment())
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestGetByCodeNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepositoryWithDB(mock)

	mock.ExpectQuery("FROM appointments").
		WithArgs("APT-00000000").
		WillReturnRows(pgxmock.NewRows(appointmentColumnsList()))

	_, err = repo.GetByCode(context.Background(), "APT-00000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatusWithEventStalePredicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepositoryWithDB(mock)
	id := uuid.New()

	// Another actor already moved the row off the expected status; no
	// event is written and the transaction rolls back.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE appointments").
		WithArgs(anyArgs(4)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err = repo.UpdateStatusWithEvent(context.Background(), id, StatusConfirmed, StatusCancelled, "patient", "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateScheduleWithEventSlotConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepositoryWithDB(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE appointments").
		WithArgs(anyArgs(4)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: slotUniqueConstraint})
	mock.ExpectRollback()

	err = repo.UpdateScheduleWithEvent(context.Background(), id, "2026-09-08", "10:00", "clinic", "2026-09-07 09:00", "")
	assert.ErrorIs(t, err, ErrSlotConflict)
}

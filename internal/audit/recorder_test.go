package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListForAppointment(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	recorder := NewRecorder(db)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "appointment_id", "action", "actor", "old_value", "new_value", "reason", "created_at"}).
		AddRow(uuid.NewString(), "apt-1", string(ActionCreation), "session:abc", "", "2026-09-07 09:00", "", now.Add(-time.Hour)).
		AddRow(uuid.NewString(), "apt-1", string(ActionStatusChange), "clinic", "confirmed", "completed", "", now)

	mock.ExpectQuery("FROM appointment_events").
		WithArgs("apt-1").
		WillReturnRows(rows)

	events, err := recorder.ListForAppointment(context.Background(), "apt-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ActionCreation, events[0].Action)
	assert.Equal(t, ActionStatusChange, events[1].Action)
}

func TestListForAppointmentEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	recorder := NewRecorder(db)

	mock.ExpectQuery("FROM appointment_events").
		WithArgs("apt-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "appointment_id", "action", "actor", "old_value", "new_value", "reason", "created_at"}))

	events, err := recorder.ListForAppointment(context.Background(), "apt-2")
	require.NoError(t, err)
	assert.Empty(t, events)
}

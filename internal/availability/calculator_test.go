package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docadesk/booking-ai-platform/internal/clinic"
)

type fakeSchedule struct {
	doctors map[uuid.UUID]clinic.Doctor
	rules   map[uuid.UUID][]clinic.ScheduleRule
	leaves  map[uuid.UUID][]clinic.LeavePeriod
}

func newFakeSchedule() *fakeSchedule {
	return &fakeSchedule{
		doctors: make(map[uuid.UUID]clinic.Doctor),
		rules:   make(map[uuid.UUID][]clinic.ScheduleRule),
		leaves:  make(map[uuid.UUID][]clinic.LeavePeriod),
	}
}

func (f *fakeSchedule) GetDoctor(_ context.Context, id uuid.UUID) (*clinic.Doctor, error) {
	d, ok := f.doctors[id]
	if !ok {
		return nil, clinic.ErrDoctorNotFound
	}
	return &d, nil
}

func (f *fakeSchedule) FindBySpecialization(_ context.Context, spec string) ([]clinic.Doctor, error) {
	var out []clinic.Doctor
	for _, d := range f.doctors {
		if d.Active && d.Specialization == spec {
			out = append(out, d)
		}
	}
	// Rank like the repository does: experience desc, fee asc.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			a, b := out[i], out[j]
			if b.ExperienceYears > a.ExperienceYears ||
				(b.ExperienceYears == a.ExperienceYears && b.ConsultationFeeCents < a.ConsultationFeeCents) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeSchedule) RulesForDay(_ context.Context, doctorID uuid.UUID, weekday time.Weekday) ([]clinic.ScheduleRule, error) {
	var out []clinic.ScheduleRule
	for _, r := range f.rules[doctorID] {
		if r.Weekday == weekday {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSchedule) LeavesOn(_ context.Context, doctorID uuid.UUID, date string) ([]clinic.LeavePeriod, error) {
	var out []clinic.LeavePeriod
	for _, l := range f.leaves[doctorID] {
		if l.Covers(date) {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeBookings struct {
	booked map[string][]string // doctorID|date -> times
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{booked: make(map[string][]string)}
}

func (f *fakeBookings) book(doctorID uuid.UUID, date, t string) {
	key := doctorID.String() + "|" + date
	f.booked[key] = append(f.booked[key], t)
}

func (f *fakeBookings) BookedTimes(_ context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	return f.booked[doctorID.String()+"|"+date], nil
}

// 2026-09-07 is a Monday.
const monday = "2026-09-07"

func mondayRule(doctorID uuid.UUID, start, end string, minutes int) clinic.ScheduleRule {
	return clinic.ScheduleRule{
		ID:          uuid.New(),
		DoctorID:    doctorID,
		Weekday:     time.Monday,
		StartTime:   start,
		EndTime:     end,
		SlotMinutes: minutes,
	}
}

func TestSlotsForDateGeneratesWalk(t *testing.T) {
	schedule := newFakeSchedule()
	bookings := newFakeBookings()
	doctorID := uuid.New()
	schedule.rules[doctorID] = []clinic.ScheduleRule{mondayRule(doctorID, "09:00", "10:00", 30)}

	calc := NewCalculator(schedule, bookings)
	slots, err := calc.SlotsForDate(context.Background(), doctorID, monday)
	require.NoError(t, err)

	times := make([]string, len(slots))
	for i, s := range slots {
		times[i] = s.Time
	}
	assert.Equal(t, []string{"09:00", "09:30"}, times)
}

func TestSlotsForDateNoRules(t *testing.T) {
	calc := NewCalculator(newFakeSchedule(), newFakeBookings())
	slots, err := calc.SlotsForDate(context.Background(), uuid.New(), monday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSlotsForDateLeaveRemovesDay(t *testing.T) {
	schedule := newFakeSchedule()
	doctorID := uuid.New()
	schedule.rules[doctorID] = []clinic.ScheduleRule{mondayRule(doctorID, "09:00", "12:00", 30)}
	schedule.leaves[doctorID] = []clinic.LeavePeriod{{
		DoctorID:  doctorID,
		StartDate: "2026-09-01",
		EndDate:   "2026-09-10",
	}}

	calc := NewCalculator(schedule, newFakeBookings())
	slots, err := calc.SlotsForDate(context.Background(), doctorID, monday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSlotsForDateExcludesBooked(t *testing.T) {
	schedule := newFakeSchedule()
	bookings := newFakeBookings()
	doctorID := uuid.New()
	schedule.rules[doctorID] = []clinic.ScheduleRule{mondayRule(doctorID, "09:00", "10:00", 30)}
	bookings.book(doctorID, monday, "09:00")

	calc := NewCalculator(schedule, bookings)
	slots, err := calc.SlotsForDate(context.Background(), doctorID, monday)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "09:30", slots[0].Time)
}

func TestIsSlotFree(t *testing.T) {
	schedule := newFakeSchedule()
	bookings := newFakeBookings()
	doctorID := uuid.New()
	schedule.rules[doctorID] = []clinic.ScheduleRule{mondayRule(doctorID, "09:00", "10:00", 30)}
	bookings.book(doctorID, monday, "09:30")

	calc := NewCalculator(schedule, bookings)

	free, err := calc.IsSlotFree(context.Background(), doctorID, monday, "09:00")
	require.NoError(t, err)
	assert.True(t, free)

	free, err = calc.IsSlotFree(context.Background(), doctorID, monday, "09:30")
	require.NoError(t, err)
	assert.False(t, free)

	// Off-grid times are never free.
	free, err = calc.IsSlotFree(context.Background(), doctorID, monday, "09:15")
	require.NoError(t, err)
	assert.False(t, free)
}

func TestNextAvailableFindsFollowingMonday(t *testing.T) {
	schedule := newFakeSchedule()
	bookings := newFakeBookings()
	doctorID := uuid.New()
	schedule.rules[doctorID] = []clinic.ScheduleRule{mondayRule(doctorID, "09:00", "10:00", 30)}

	// Fully book the requested Monday; the following Monday stays open.
	bookings.book(doctorID, monday, "09:00")
	bookings.book(doctorID, monday, "09:30")

	calc := NewCalculator(schedule, bookings)
	date, slots, err := calc.NextAvailable(context.Background(), doctorID, monday)
	require.NoError(t, err)
	assert.Equal(t, "2026-09-14", date)
	require.NotEmpty(t, slots)
	assert.Equal(t, "09:00", slots[0].Time)
}

func TestNextAvailableRespectsHorizon(t *testing.T) {
	schedule := newFakeSchedule()
	doctorID := uuid.New()
	// No rules at all: nothing is ever available.
	calc := NewCalculator(schedule, newFakeBookings(), WithHorizonDays(10))

	date, slots, err := calc.NextAvailable(context.Background(), doctorID, monday)
	require.NoError(t, err)
	assert.Empty(t, date)
	assert.Empty(t, slots)
}

func TestQueryReturnsAlternatesRanked(t *testing.T) {
	schedule := newFakeSchedule()
	bookings := newFakeBookings()

	primary := uuid.New()
	senior := uuid.New()
	junior := uuid.New()
	schedule.doctors[primary] = clinic.Doctor{ID: primary, Name: "Dr. Primary", Specialization: "cardiology", Active: true, ExperienceYears: 8}
	schedule.doctors[senior] = clinic.Doctor{ID: senior, Name: "Dr. Senior", Specialization: "cardiology", Active: true, ExperienceYears: 20, ConsultationFeeCents: 200000}
	schedule.doctors[junior] = clinic.Doctor{ID: junior, Name: "Dr. Junior", Specialization: "cardiology", Active: true, ExperienceYears: 5, ConsultationFeeCents: 90000}

	schedule.rules[primary] = []clinic.ScheduleRule{mondayRule(primary, "09:00", "10:00", 30)}
	schedule.rules[senior] = []clinic.ScheduleRule{mondayRule(senior, "09:00", "10:00", 30)}
	schedule.rules[junior] = []clinic.ScheduleRule{mondayRule(junior, "09:00", "10:00", 30)}

	bookings.book(primary, monday, "09:00")
	bookings.book(primary, monday, "09:30")

	calc := NewCalculator(schedule, bookings)
	res, err := calc.Query(context.Background(), primary, monday)
	require.NoError(t, err)

	assert.Empty(t, res.Slots)
	assert.Equal(t, "2026-09-14", res.NextDate)
	require.Len(t, res.Alternates, 2)
	assert.Equal(t, "Dr. Senior", res.Alternates[0].Doctor.Name)
	assert.Equal(t, "Dr. Junior", res.Alternates[1].Doctor.Name)
}

func TestQueryDeterministicOrdering(t *testing.T) {
	schedule := newFakeSchedule()
	bookings := newFakeBookings()
	doctorID := uuid.New()
	schedule.rules[doctorID] = []clinic.ScheduleRule{
		mondayRule(doctorID, "14:00", "15:00", 30),
		mondayRule(doctorID, "09:00", "10:00", 30),
	}

	calc := NewCalculator(schedule, bookings)
	for i := 0; i < 3; i++ {
		slots, err := calc.SlotsForDate(context.Background(), doctorID, monday)
		require.NoError(t, err)
		times := make([]string, len(slots))
		for j, s := range slots {
			times[j] = s.Time
		}
		assert.Equal(t, []string{"09:00", "09:30", "14:00", "14:30"}, times)
	}
}

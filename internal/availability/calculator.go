// Package availability derives bookable slots from schedule rules,
// leave periods, and existing appointments.
package availability

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/docadesk/booking-ai-platform/internal/clinic"
)

var tracer = otel.Tracer("docadesk.internal.availability")

// DateLayout is the wire format for dates.
const DateLayout = "2006-01-02"

// TimeLayout is the wire format for slot times (minute granularity).
const TimeLayout = "15:04"

// defaultHorizonDays bounds the forward day-by-day search.
const defaultHorizonDays = 90

// Slot is a discrete bookable (doctor, date, time) unit.
type Slot struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
	Minutes  int       `json:"minutes"`
}

// DoctorOption is an alternate doctor with open slots on the requested date.
type DoctorOption struct {
	Doctor clinic.Doctor `json:"doctor"`
	Slots  []Slot        `json:"slots"`
}

// Result wraps the output of a combined availability query.
type Result struct {
	// Slots for the requested date, chronological. Empty when the day is full.
	Slots []Slot
	// NextDate is the first later date with open slots, when Slots is empty.
	NextDate string
	// NextSlots are the open slots on NextDate.
	NextSlots []Slot
	// Alternates are other doctors of the same specialization with open
	// slots on the requested date, ranked by experience desc then fee asc.
	Alternates []DoctorOption
}

// ScheduleSource supplies doctors, schedule rules, and leave periods.
type ScheduleSource interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*clinic.Doctor, error)
	FindBySpecialization(ctx context.Context, specialization string) ([]clinic.Doctor, error)
	RulesForDay(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) ([]clinic.ScheduleRule, error)
	LeavesOn(ctx context.Context, doctorID uuid.UUID, date string) ([]clinic.LeavePeriod, error)
}

// BookingLookup reports already-booked times for a doctor and date,
// excluding cancelled appointments.
type BookingLookup interface {
	BookedTimes(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error)
}

// Calculator computes free slots.
type Calculator struct {
	schedule    ScheduleSource
	bookings    BookingLookup
	horizonDays int
}

// Option configures the calculator.
type Option func(*Calculator)

// WithHorizonDays overrides the forward search horizon.
func WithHorizonDays(days int) Option {
	return func(c *Calculator) {
		if days > 0 {
			c.horizonDays = days
		}
	}
}

// NewCalculator constructs a Calculator.
func NewCalculator(schedule ScheduleSource, bookings BookingLookup, opts ...Option) *Calculator {
	if schedule == nil {
		panic("availability: schedule source required")
	}
	if bookings == nil {
		panic("availability: booking lookup required")
	}
	c := &Calculator{
		schedule:    schedule,
		bookings:    bookings,
		horizonDays: defaultHorizonDays,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SlotsForDate returns the open slots for a doctor on a single date,
// in chronological order.
func (c *Calculator) SlotsForDate(ctx context.Context, doctorID uuid.UUID, date string) ([]Slot, error) {
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("availability: invalid date %q: %w", date, err)
	}

	rules, err := c.schedule.RulesForDay(ctx, doctorID, day.Weekday())
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}

	leaves, err := c.schedule.LeavesOn(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	for _, leave := range leaves {
		if leave.Covers(date) {
			// A leave day removes every slot.
			return nil, nil
		}
	}

	booked, err := c.bookings.BookedTimes(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]struct{}, len(booked))
	for _, t := range booked {
		taken[t] = struct{}{}
	}

	var slots []Slot
	for _, rule := range rules {
		starts, err := walkRule(rule)
		if err != nil {
			return nil, err
		}
		for _, start := range starts {
			if _, ok := taken[start]; ok {
				continue
			}
			slots = append(slots, Slot{
				DoctorID: doctorID,
				Date:     date,
				Time:     start,
				Minutes:  rule.SlotMinutes,
			})
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Time < slots[j].Time })
	return slots, nil
}

// IsSlotFree re-validates a single (doctor, date, time) choice. Used by
// the booking commit path to guard against selection-to-confirmation races.
func (c *Calculator) IsSlotFree(ctx context.Context, doctorID uuid.UUID, date, timeStr string) (bool, error) {
	slots, err := c.SlotsForDate(ctx, doctorID, date)
	if err != nil {
		return false, err
	}
	for _, s := range slots {
		if s.Time == timeStr {
			return true, nil
		}
	}
	return false, nil
}

// NextAvailable walks forward day by day from the date after `from`,
// returning the first date with at least one open slot.
func (c *Calculator) NextAvailable(ctx context.Context, doctorID uuid.UUID, from string) (string, []Slot, error) {
	start, err := time.Parse(DateLayout, from)
	if err != nil {
		return "", nil, fmt.Errorf("availability: invalid date %q: %w", from, err)
	}

	for i := 1; i <= c.horizonDays; i++ {
		date := start.AddDate(0, 0, i).Format(DateLayout)
		slots, err := c.SlotsForDate(ctx, doctorID, date)
		if err != nil {
			return "", nil, err
		}
		if len(slots) > 0 {
			return date, slots, nil
		}
	}
	return "", nil, nil
}

// Alternates finds other active doctors sharing the specialization with
// open slots on the requested date. Ranking comes from the schedule
// source (experience desc, fee asc, id asc) so identical inputs always
// produce identical ordering.
func (c *Calculator) Alternates(ctx context.Context, doctorID uuid.UUID, date string) ([]DoctorOption, error) {
	doctor, err := c.schedule.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	peers, err := c.schedule.FindBySpecialization(ctx, doctor.Specialization)
	if err != nil {
		return nil, err
	}

	var options []DoctorOption
	for _, peer := range peers {
		if peer.ID == doctorID {
			continue
		}
		slots, err := c.SlotsForDate(ctx, peer.ID, date)
		if err != nil {
			return nil, err
		}
		if len(slots) > 0 {
			options = append(options, DoctorOption{Doctor: peer, Slots: slots})
		}
	}
	return options, nil
}

// Query computes availability for a doctor and date. When the requested
// date is fully booked, the forward search and the alternate-doctor
// lookup run concurrently.
func (c *Calculator) Query(ctx context.Context, doctorID uuid.UUID, date string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "availability.query")
	defer span.End()
	span.SetAttributes(
		attribute.String("docadesk.doctor_id", doctorID.String()),
		attribute.String("docadesk.date", date),
	)

	slots, err := c.SlotsForDate(ctx, doctorID, date)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(slots) > 0 {
		return &Result{Slots: slots}, nil
	}

	res := &Result{}
	var (
		wg      sync.WaitGroup
		nextErr error
		altErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		res.NextDate, res.NextSlots, nextErr = c.NextAvailable(ctx, doctorID, date)
	}()
	go func() {
		defer wg.Done()
		res.Alternates, altErr = c.Alternates(ctx, doctorID, date)
	}()
	wg.Wait()

	if nextErr != nil {
		span.RecordError(nextErr)
		return nil, nextErr
	}
	if altErr != nil {
		span.RecordError(altErr)
		return nil, altErr
	}
	return res, nil
}

// walkRule generates slot start times from rule start to end in
// slot-duration increments. A slot must end on or before the rule end.
func walkRule(rule clinic.ScheduleRule) ([]string, error) {
	start, err := time.Parse(TimeLayout, rule.StartTime)
	if err != nil {
		return nil, fmt.Errorf("availability: invalid rule start %q: %w", rule.StartTime, err)
	}
	end, err := time.Parse(TimeLayout, rule.EndTime)
	if err != nil {
		return nil, fmt.Errorf("availability: invalid rule end %q: %w", rule.EndTime, err)
	}
	if rule.SlotMinutes <= 0 {
		return nil, fmt.Errorf("availability: rule %s has non-positive slot duration", rule.ID)
	}

	step := time.Duration(rule.SlotMinutes) * time.Minute
	var starts []string
	for t := start; !t.Add(step).After(end); t = t.Add(step) {
		starts = append(starts, t.Format(TimeLayout))
	}
	return starts, nil
}

package booking

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/docadesk/booking-ai-platform/pkg/logging"
)

var tracer = otel.Tracer("docadesk.internal.booking")

// ActorPatient marks transitions initiated by the patient; these are
// subject to the minimum-notice window.
const ActorPatient = "patient"

// SlotChecker re-validates a chosen slot against schedule rules, leave
// periods, and existing bookings.
type SlotChecker interface {
	IsSlotFree(ctx context.Context, doctorID uuid.UUID, date, timeStr string) (bool, error)
}

// Notifier delivers best-effort outbound notifications. Failures are
// logged and never reverse a committed booking.
type Notifier interface {
	AppointmentBooked(ctx context.Context, appt *Appointment) error
	AppointmentStatusChanged(ctx context.Context, appt *Appointment, old Status, reason string) error
	AppointmentRescheduled(ctx context.Context, appt *Appointment, oldDateTime, reason string) error
}

// CreateRequest carries the session's collected fields into the
// transaction manager.
type CreateRequest struct {
	DoctorID     uuid.UUID
	PatientName  string
	PatientPhone string
	Symptoms     string
	Date         string
	Time         string
	SessionID    string
}

// Manager is the booking transaction manager. It owns appointment
// creation and every status transition.
type Manager struct {
	repo     *Repository
	slots    SlotChecker
	notifier Notifier
	logger   *logging.Logger

	now          func() time.Time
	noticeWindow time.Duration
}

// ManagerOption configures the manager.
type ManagerOption func(*Manager)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithNoticeWindow overrides the minimum notice for patient-initiated
// cancellation and reschedule.
func WithNoticeWindow(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d >= 0 {
			m.noticeWindow = d
		}
	}
}

// NewManager constructs the booking transaction manager.
func NewManager(repo *Repository, slots SlotChecker, notifier Notifier, logger *logging.Logger, opts ...ManagerOption) *Manager {
	if repo == nil {
		panic("booking: repository required")
	}
	if slots == nil {
		panic("booking: slot checker required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	m := &Manager{
		repo:         repo,
		slots:        slots,
		notifier:     notifier,
		logger:       logger,
		now:          time.Now,
		noticeWindow: 2 * time.Hour,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateAppointment commits the booking. Steps: idempotency check,
// slot re-validation, then a single transaction inserting the
// appointment and its creation audit event. Returns ErrSlotConflict
// when another session won the slot; the caller must re-query
// availability and re-prompt, never silently pick a different slot.
func (m *Manager) CreateAppointment(ctx context.Context, req CreateRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "booking.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("docadesk.doctor_id", req.DoctorID.String()),
		attribute.String("docadesk.date", req.Date),
		attribute.String("docadesk.time", req.Time),
	)

	if err := validateCreate(req); err != nil {
		return nil, err
	}

	// Re-submitting the same confirmed booking must not create a second
	// appointment.
	existing, err := m.repo.FindBySession(ctx, req.SessionID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		return nil, err
	}
	if existing != nil && existing.DoctorID == req.DoctorID &&
		existing.Date == req.Date && existing.Time == req.Time {
		return existing, nil
	}

	free, err := m.slots.IsSlotFree(ctx, req.DoctorID, req.Date, req.Time)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !free {
		return nil, ErrSlotConflict
	}

	now := m.now().UTC()
	appt := &Appointment{
		ID:           uuid.New(),
		DoctorID:     req.DoctorID,
		PatientName:  strings.TrimSpace(req.PatientName),
		PatientPhone: strings.TrimSpace(req.PatientPhone),
		Symptoms:     strings.TrimSpace(req.Symptoms),
		Date:         req.Date,
		Time:         req.Time,
		Status:       StatusConfirmed,
		BookingCode:  newBookingCode(),
		SessionID:    req.SessionID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := m.repo.CreateWithEvent(ctx, appt); err != nil {
		span.RecordError(err)
		return nil, err
	}

	m.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"doctor_id", appt.DoctorID,
		"date", appt.Date,
		"time", appt.Time,
		"booking_code", appt.BookingCode,
	)
	m.dispatchBooked(appt)
	return appt, nil
}

// Transition moves an appointment through the status machine. The
// status update and its audit event commit in one transaction, then
// notification is attempted best-effort. Patient-initiated cancellation
// must satisfy the notice window.
func (m *Manager) Transition(ctx context.Context, id uuid.UUID, to Status, actor, reason string) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "booking.transition")
	defer span.End()

	appt, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !appt.Status.CanTransitionTo(to) {
		return nil, validationErrorf("cannot move appointment from %s to %s", appt.Status, to)
	}

	if to == StatusCancelled && actor == ActorPatient {
		if err := m.checkNotice(appt); err != nil {
			return nil, err
		}
	}

	old := appt.Status
	if err := m.repo.UpdateStatusWithEvent(ctx, id, old, to, actor, reason); err != nil {
		span.RecordError(err)
		return nil, err
	}
	appt.Status = to

	m.logger.Info("appointment status changed",
		"appointment_id", id,
		"from", old,
		"to", to,
		"actor", actor,
	)
	m.dispatchStatusChange(appt, old, reason)
	return appt, nil
}

// Reschedule moves a confirmed appointment to a new slot. The new slot
// is re-validated; patient-initiated reschedules respect the notice
// window against the original start time.
func (m *Manager) Reschedule(ctx context.Context, id uuid.UUID, date, timeStr, actor, reason string) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "booking.reschedule")
	defer span.End()

	appt, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusConfirmed && appt.Status != StatusPending {
		return nil, validationErrorf("cannot reschedule a %s appointment", appt.Status)
	}
	if actor == ActorPatient {
		if err := m.checkNotice(appt); err != nil {
			return nil, err
		}
	}

	free, err := m.slots.IsSlotFree(ctx, appt.DoctorID, date, timeStr)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !free {
		return nil, ErrSlotConflict
	}

	oldDateTime := appt.Date + " " + appt.Time
	if err := m.repo.UpdateScheduleWithEvent(ctx, id, date, timeStr, actor, oldDateTime, reason); err != nil {
		span.RecordError(err)
		return nil, err
	}
	appt.Date = date
	appt.Time = timeStr

	m.logger.Info("appointment rescheduled",
		"appointment_id", id,
		"from", oldDateTime,
		"to", date+" "+timeStr,
	)
	m.dispatchRescheduled(appt, oldDateTime, reason)
	return appt, nil
}

// GetByCode loads an appointment by booking code.
func (m *Manager) GetByCode(ctx context.Context, code string) (*Appointment, error) {
	return m.repo.GetByCode(ctx, code)
}

func (m *Manager) checkNotice(appt *Appointment) error {
	starts, err := appt.StartsAt()
	if err != nil {
		return validationErrorf("appointment has malformed schedule: %v", err)
	}
	if starts.Sub(m.now().UTC()) < m.noticeWindow {
		return validationErrorf("changes require at least %s notice before the appointment", m.noticeWindow)
	}
	return nil
}

// dispatchBooked fires confirmation delivery without blocking or
// affecting the booking outcome.
func (m *Manager) dispatchBooked(appt *Appointment) {
	if m.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := m.notifier.AppointmentBooked(ctx, appt); err != nil {
			m.logger.Error("booking confirmation notification failed",
				"appointment_id", appt.ID,
				"error", err,
			)
		}
	}()
}

func (m *Manager) dispatchStatusChange(appt *Appointment, old Status, reason string) {
	if m.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := m.notifier.AppointmentStatusChanged(ctx, appt, old, reason); err != nil {
			m.logger.Error("status change notification failed",
				"appointment_id", appt.ID,
				"error", err,
			)
		}
	}()
}

func (m *Manager) dispatchRescheduled(appt *Appointment, oldDateTime, reason string) {
	if m.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := m.notifier.AppointmentRescheduled(ctx, appt, oldDateTime, reason); err != nil {
			m.logger.Error("reschedule notification failed",
				"appointment_id", appt.ID,
				"error", err,
			)
		}
	}()
}

func validateCreate(req CreateRequest) error {
	if req.DoctorID == uuid.Nil {
		return validationErrorf("doctor is required")
	}
	if strings.TrimSpace(req.PatientName) == "" {
		return validationErrorf("patient name is required")
	}
	if strings.TrimSpace(req.PatientPhone) == "" {
		return validationErrorf("patient phone is required")
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return validationErrorf("invalid date %q", req.Date)
	}
	if _, err := time.Parse("15:04", req.Time); err != nil {
		return validationErrorf("invalid time %q", req.Time)
	}
	if req.SessionID == "" {
		return validationErrorf("originating session is required")
	}
	return nil
}

// newBookingCode derives a short immutable patient-facing code.
func newBookingCode() string {
	id := uuid.New()
	return "APT-" + strings.ToUpper(hex.EncodeToString(id[:4]))
}

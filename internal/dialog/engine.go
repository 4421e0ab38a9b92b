package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/docadesk/booking-ai-platform/internal/availability"
	"github.com/docadesk/booking-ai-platform/internal/booking"
	"github.com/docadesk/booking-ai-platform/internal/clinic"
	"github.com/docadesk/booking-ai-platform/internal/nlu"
	"github.com/docadesk/booking-ai-platform/internal/observability/metrics"
	"github.com/docadesk/booking-ai-platform/internal/session"
	"github.com/docadesk/booking-ai-platform/pkg/logging"
)

var tracer = otel.Tracer("docadesk.internal.dialog")

// SessionStore persists conversation state between turns.
type SessionStore interface {
	Create(ctx context.Context) (*session.Session, error)
	Load(ctx context.Context, id string) (*session.Session, error)
	Save(ctx context.Context, sess *session.Session) error
}

// DoctorDirectory resolves doctors for selection.
type DoctorDirectory interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*clinic.Doctor, error)
	FindBySpecialization(ctx context.Context, specialization string) ([]clinic.Doctor, error)
	SearchByName(ctx context.Context, name string) ([]clinic.Doctor, error)
}

// Availability answers slot questions.
type Availability interface {
	SlotsForDate(ctx context.Context, doctorID uuid.UUID, date string) ([]availability.Slot, error)
	Query(ctx context.Context, doctorID uuid.UUID, date string) (*availability.Result, error)
}

// Booker commits appointments.
type Booker interface {
	CreateAppointment(ctx context.Context, req booking.CreateRequest) (*booking.Appointment, error)
}

// Engine is the stage machine driving a booking conversation. One
// instance serves all sessions; per-conversation state lives in the
// session store.
type Engine struct {
	sessions SessionStore
	doctors  DoctorDirectory
	slots    Availability
	bookings Booker
	nlu      nlu.Client
	metrics  *metrics.ConversationMetrics
	logger   *logging.Logger
	now      func() time.Time

	// locks serializes turns per session id so two concurrent requests
	// cannot interleave their load-modify-save cycles.
	locks sync.Map
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithMetrics attaches conversation metrics.
func WithMetrics(m *metrics.ConversationMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithEngineClock overrides the time source for tests.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine wires the conversation engine.
func NewEngine(sessions SessionStore, doctors DoctorDirectory, slots Availability, bookings Booker, client nlu.Client, logger *logging.Logger, opts ...EngineOption) *Engine {
	if sessions == nil {
		panic("dialog: session store required")
	}
	if doctors == nil {
		panic("dialog: doctor directory required")
	}
	if slots == nil {
		panic("dialog: availability required")
	}
	if bookings == nil {
		panic("dialog: booker required")
	}
	if client == nil {
		panic("dialog: nlu client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		sessions: sessions,
		doctors:  doctors,
		slots:    slots,
		bookings: bookings,
		nlu:      client,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ Service = (*Engine)(nil)

// StartConversation creates a session and greets the user.
func (e *Engine) StartConversation(ctx context.Context, req StartRequest) (*Response, error) {
	ctx, span := tracer.Start(ctx, "dialog.start")
	defer span.End()

	sess, err := e.sessions.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("dialog: create session: %w", err)
	}

	reply := e.say(ctx, sess.Stage, "greeting", "")
	sess.Stage = session.StageSymptomsOrDoctor
	sess.Append("assistant", reply, e.now())

	if err := e.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("dialog: save session: %w", err)
	}

	e.logger.Info("conversation started", "session_id", sess.ID, "channel", req.Channel)
	span.SetAttributes(attribute.String("session.id", sess.ID))
	return &Response{SessionID: sess.ID, Stage: sess.Stage, Reply: reply}, nil
}

// ProcessMessage runs one turn: classify intent, route, advance the
// stage machine, persist the session. Turns carrying the same session
// id run one at a time.
func (e *Engine) ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error) {
	ctx, span := tracer.Start(ctx, "dialog.turn")
	defer span.End()
	started := e.now()

	if req.SessionID != "" {
		mu := e.sessionLock(req.SessionID)
		mu.Lock()
		defer mu.Unlock()
	}

	sess, err := e.loadOrStart(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("session.id", sess.ID),
		attribute.String("session.stage", string(sess.Stage)),
	)

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return e.respond(sess, e.say(ctx, sess.Stage, "reprompt", ""), nil), nil
	}

	if sess.Stage.Terminal() {
		return e.terminalReply(ctx, sess), nil
	}

	stageBefore := sess.Stage
	sess.Append("user", text, e.now())

	intent := nlu.IntentProceed
	if res, err := e.nlu.DetectIntent(ctx, text, string(sess.Stage), sess.Fields); err != nil {
		e.logger.Error("intent detection failed", "error", err, "session_id", sess.ID)
		intent = nlu.IntentClarify
	} else {
		intent = res.Intent
	}

	resp := e.route(ctx, sess, text, intent)
	sess.Append("assistant", resp.Reply, e.now())

	if err := e.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("dialog: save session: %w", err)
	}

	e.metrics.ObserveTurn(string(stageBefore), string(intent))
	e.metrics.ObserveTurnLatency(string(stageBefore), e.now().Sub(started).Seconds())
	return resp, nil
}

// loadOrStart recovers the session for id. A missing or expired id is
// not a dead end: the turn proceeds on a fresh session and the caller
// learns the new id from the response.
func (e *Engine) loadOrStart(ctx context.Context, id string) (*session.Session, error) {
	if id != "" {
		sess, err := e.sessions.Load(ctx, id)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			return nil, err
		}
		e.logger.Info("session not found, starting fresh", "session_id", id)
	}
	sess, err := e.sessions.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("dialog: create session: %w", err)
	}
	return sess, nil
}

// sessionLock returns the mutex guarding one session's turns.
func (e *Engine) sessionLock(id string) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// route applies intent interception before the stage handler runs.
func (e *Engine) route(ctx context.Context, sess *session.Session, text string, intent nlu.Intent) *Response {
	switch intent {
	case nlu.IntentCancel:
		// Drop collected patient details; the abandoned session lives on
		// in Redis until its TTL and should not retain them.
		sess.ResetBooking()
		sess.Stage = session.StageCancelled
		e.metrics.ObserveBookingOutcome("abandoned")
		return e.respond(sess, e.say(ctx, sess.Stage, "cancelled", ""), nil)

	case nlu.IntentGoBack:
		e.goBack(sess)
		reply, choices := e.promptFor(ctx, sess)
		return e.respond(sess, reply, choices)

	case nlu.IntentChangeDoctor:
		sess.Clear(session.FieldDoctorID, session.FieldDoctorName, session.FieldDate, session.FieldTime)
		if sess.Get(session.FieldSpecialization) != "" {
			sess.Stage = session.StageDoctorSelection
		} else {
			sess.Stage = session.StageSymptomsOrDoctor
		}
		reply, choices := e.promptFor(ctx, sess)
		return e.respond(sess, reply, choices)

	case nlu.IntentChangeDate:
		sess.Clear(session.FieldDate, session.FieldTime)
		sess.Stage = session.StageDateSelection
		reply, choices := e.promptFor(ctx, sess)
		return e.respond(sess, reply, choices)

	case nlu.IntentChangeTime:
		sess.Clear(session.FieldTime)
		sess.Stage = session.StageTimeSelection
		reply, choices := e.promptFor(ctx, sess)
		return e.respond(sess, reply, choices)

	case nlu.IntentChangePhone:
		sess.Clear(session.FieldPatientPhone)
		sess.Stage = session.StagePatientDetails
		return e.respond(sess, e.say(ctx, sess.Stage, "ask_details", "What phone number should I use?"), nil)

	case nlu.IntentChangeName:
		sess.Clear(session.FieldPatientName)
		sess.Stage = session.StagePatientDetails
		return e.respond(sess, e.say(ctx, sess.Stage, "ask_details", "What name should I use?"), nil)

	case nlu.IntentClarify:
		prompt, choices := e.promptFor(ctx, sess)
		return e.respond(sess, e.say(ctx, sess.Stage, "clarify", prompt), choices)

	case nlu.IntentConfirm:
		if sess.Stage == session.StageConfirmation {
			return e.finalize(ctx, sess)
		}
		return e.advance(ctx, sess, text)

	default: // IntentProceed
		return e.advance(ctx, sess, text)
	}
}

func (e *Engine) advance(ctx context.Context, sess *session.Session, text string) *Response {
	switch sess.Stage {
	case session.StageGreeting, session.StageSymptomsOrDoctor:
		return e.handleSymptomsOrDoctor(ctx, sess, text)
	case session.StageDoctorSelection:
		return e.handleDoctorSelection(ctx, sess, text)
	case session.StageDateSelection:
		return e.handleDateSelection(ctx, sess, text)
	case session.StageTimeSelection:
		return e.handleTimeSelection(ctx, sess, text)
	case session.StagePatientDetails:
		return e.handlePatientDetails(ctx, sess, text)
	case session.StageConfirmation:
		return e.handleConfirmation(ctx, sess, text)
	default:
		return e.respond(sess, e.say(ctx, sess.Stage, "reprompt", ""), nil)
	}
}

// handleSymptomsOrDoctor resolves either a named doctor or a symptom
// description into a doctor shortlist.
func (e *Engine) handleSymptomsOrDoctor(ctx context.Context, sess *session.Session, text string) *Response {
	if ext, err := e.nlu.ExtractField(ctx, text, nlu.FieldDoctorName); err == nil && ext.Value != "" {
		found, err := e.doctors.SearchByName(ctx, ext.Value)
		if err != nil {
			e.logger.Error("doctor search failed", "error", err, "session_id", sess.ID)
		} else if len(found) == 1 {
			e.selectDoctor(sess, found[0])
			return e.respond(sess, e.say(ctx, sess.Stage, "ask_date", ""), nil)
		} else if len(found) > 1 {
			sess.Set(session.FieldSpecialization, found[0].Specialization)
			sess.Stage = session.StageDoctorSelection
			return e.respond(sess, e.say(ctx, sess.Stage, "ask_doctor", ""), doctorChoices(found))
		}
	}

	analysis, err := e.nlu.AnalyzeSymptoms(ctx, text)
	if err != nil {
		e.logger.Error("symptom analysis failed", "error", err, "session_id", sess.ID)
		return e.respond(sess, e.say(ctx, sess.Stage, "reprompt", "What symptoms are you experiencing?"), nil)
	}

	sess.Set(session.FieldSymptoms, text)
	sess.Set(session.FieldSpecialization, analysis.Specialization)

	found, err := e.doctors.FindBySpecialization(ctx, analysis.Specialization)
	if err != nil {
		e.logger.Error("doctor lookup failed", "error", err, "session_id", sess.ID)
		return e.respond(sess, e.say(ctx, sess.Stage, "retry", ""), nil)
	}
	if len(found) == 0 {
		detail := fmt.Sprintf("We don't currently have a %s doctor available. Could you describe the symptoms differently?", analysis.Specialization)
		return e.respond(sess, e.say(ctx, sess.Stage, "reprompt", detail), nil)
	}

	sess.Stage = session.StageDoctorSelection
	return e.respond(sess, e.say(ctx, sess.Stage, "ask_doctor", ""), doctorChoices(found))
}

func (e *Engine) handleDoctorSelection(ctx context.Context, sess *session.Session, text string) *Response {
	// Direct choice by id from a presented list.
	if id, err := uuid.Parse(strings.TrimSpace(text)); err == nil {
		doctor, err := e.doctors.GetDoctor(ctx, id)
		if err == nil {
			e.selectDoctor(sess, *doctor)
			return e.respond(sess, e.say(ctx, sess.Stage, "ask_date", ""), nil)
		}
	}

	candidates, err := e.candidateDoctors(ctx, sess, text)
	if err != nil {
		e.logger.Error("doctor lookup failed", "error", err, "session_id", sess.ID)
		return e.respond(sess, e.say(ctx, sess.Stage, "retry", ""), nil)
	}

	name := text
	if ext, err := e.nlu.ExtractField(ctx, text, nlu.FieldDoctorName); err == nil && ext.Value != "" {
		name = ext.Value
	}

	matched := matchDoctors(candidates, name)
	switch len(matched) {
	case 1:
		e.selectDoctor(sess, matched[0])
		return e.respond(sess, e.say(ctx, sess.Stage, "ask_date", ""), nil)
	case 0:
		return e.respond(sess, e.say(ctx, sess.Stage, "clarify", "I couldn't match that to a doctor on the list."), doctorChoices(candidates))
	default:
		return e.respond(sess, e.say(ctx, sess.Stage, "clarify", "A few doctors match. Which one?"), doctorChoices(matched))
	}
}

func (e *Engine) handleDateSelection(ctx context.Context, sess *session.Session, text string) *Response {
	// Picking an alternate doctor while choosing a date restarts the
	// date step with the new doctor.
	if id, err := uuid.Parse(strings.TrimSpace(text)); err == nil {
		if doctor, derr := e.doctors.GetDoctor(ctx, id); derr == nil {
			e.selectDoctor(sess, *doctor)
			return e.respond(sess, e.say(ctx, sess.Stage, "ask_date", ""), nil)
		}
	}

	ext, err := e.nlu.ExtractField(ctx, text, nlu.FieldDate)
	if err != nil || ext.Value == "" {
		return e.respond(sess, e.say(ctx, sess.Stage, "reprompt", "Which date would you like? You can say something like 'next Monday' or 2026-09-14."), nil)
	}

	date := ext.Value
	when, perr := time.Parse(availability.DateLayout, date)
	if perr != nil {
		return e.respond(sess, e.say(ctx, sess.Stage, "reprompt", "I couldn't read that date."), nil)
	}
	if when.Before(e.today()) {
		return e.respond(sess, e.say(ctx, sess.Stage, "reprompt", "That date has already passed. Which upcoming date works?"), nil)
	}

	doctorID, ok := e.doctorID(sess)
	if !ok {
		sess.Stage = session.StageSymptomsOrDoctor
		reply, choices := e.promptFor(ctx, sess)
		return e.respond(sess, reply, choices)
	}

	res, err := e.slots.Query(ctx, doctorID, date)
	if err != nil {
		e.logger.Error("availability query failed", "error", err, "session_id", sess.ID)
		return e.respond(sess, e.say(ctx, sess.Stage, "retry", ""), nil)
	}

	if len(res.Slots) > 0 {
		sess.Set(session.FieldDate, date)
		sess.Stage = session.StageTimeSelection
		return e.respond(sess, e.say(ctx, sess.Stage, "ask_time", ""), slotChoices(res.Slots))
	}

	detail, choices := describeAlternatives(sess.Get(session.FieldDoctorName), res)
	return e.respond(sess, e.say(ctx, sess.Stage, "no_slots", detail), choices)
}

func (e *Engine) handleTimeSelection(ctx context.Context, sess *session.Session, text string) *Response {
	ext, err := e.nlu.ExtractField(ctx, text, nlu.FieldTime)
	if err != nil || ext.Value == "" {
		reply, choices := e.promptFor(ctx, sess)
		return e.respond(sess, e.say(ctx, sess.Stage, "reprompt", reply), choices)
	}

	doctorID, ok := e.doctorID(sess)
	if !ok {
		sess.Stage = session.StageSymptomsOrDoctor
		reply, choices := e.promptFor(ctx, sess)
		return e.respond(sess, reply, choices)
	}

	date := sess.Get(session.FieldDate)
	slots, err := e.slots.SlotsForDate(ctx, doctorID, date)
	if err != nil {
		e.logger.Error("slot lookup failed", "error", err, "session_id", sess.ID)
		return e.respond(sess, e.say(ctx, sess.Stage, "retry", ""), nil)
	}

	if !slotAvailable(slots, ext.Value) {
		return e.respond(sess, e.say(ctx, sess.Stage, "slot_taken", ""), slotChoices(slots))
	}

	sess.Set(session.FieldTime, ext.Value)
	sess.Stage = session.StagePatientDetails
	return e.respond(sess, e.say(ctx, sess.Stage, "ask_details", ""), nil)
}

func (e *Engine) handlePatientDetails(ctx context.Context, sess *session.Session, text string) *Response {
	if sess.Get(session.FieldPatientName) == "" {
		if ext, err := e.nlu.ExtractField(ctx, text, nlu.FieldName); err == nil && ext.Value != "" {
			sess.Set(session.FieldPatientName, ext.Value)
		}
	}
	if sess.Get(session.FieldPatientPhone) == "" {
		if ext, err := e.nlu.ExtractField(ctx, text, nlu.FieldPhone); err == nil && ext.Value != "" {
			sess.Set(session.FieldPatientPhone, ext.Value)
		}
	}

	switch {
	case sess.Get(session.FieldPatientName) == "":
		return e.respond(sess, e.say(ctx, sess.Stage, "ask_details", "What is the patient's full name?"), nil)
	case sess.Get(session.FieldPatientPhone) == "":
		return e.respond(sess, e.say(ctx, sess.Stage, "ask_details", "And a phone number we can reach you on?"), nil)
	}

	sess.Stage = session.StageConfirmation
	return e.respond(sess, e.say(ctx, sess.Stage, "confirm", e.summary(sess)), confirmChoices())
}

// handleConfirmation handles non-confirm text at the confirmation
// stage by re-showing the summary. An explicit yes arrives as
// IntentConfirm and is finalized in route.
func (e *Engine) handleConfirmation(ctx context.Context, sess *session.Session, _ string) *Response {
	return e.respond(sess, e.say(ctx, sess.Stage, "confirm", e.summary(sess)), confirmChoices())
}

// finalize commits the booking. Slot conflicts re-enter time selection
// with fresh alternatives.
func (e *Engine) finalize(ctx context.Context, sess *session.Session) *Response {
	doctorID, ok := e.doctorID(sess)
	if !ok {
		sess.Stage = session.StageSymptomsOrDoctor
		reply, choices := e.promptFor(ctx, sess)
		return e.respond(sess, reply, choices)
	}

	appt, err := e.bookings.CreateAppointment(ctx, booking.CreateRequest{
		DoctorID:     doctorID,
		PatientName:  sess.Get(session.FieldPatientName),
		PatientPhone: sess.Get(session.FieldPatientPhone),
		Symptoms:     sess.Get(session.FieldSymptoms),
		Date:         sess.Get(session.FieldDate),
		Time:         sess.Get(session.FieldTime),
		SessionID:    sess.ID,
	})

	switch {
	case errors.Is(err, booking.ErrSlotConflict):
		sess.Clear(session.FieldTime)
		sess.Stage = session.StageTimeSelection
		e.metrics.ObserveBookingOutcome("slot_conflict")
		slots, serr := e.slots.SlotsForDate(ctx, doctorID, sess.Get(session.FieldDate))
		if serr != nil {
			e.logger.Error("slot lookup failed", "error", serr, "session_id", sess.ID)
			return e.respond(sess, e.say(ctx, sess.Stage, "slot_taken", ""), nil)
		}
		return e.respond(sess, e.say(ctx, sess.Stage, "slot_taken", ""), slotChoices(slots))

	case err != nil:
		var verr *booking.ValidationError
		if errors.As(err, &verr) {
			return e.respond(sess, e.say(ctx, sess.Stage, "reprompt", verr.Reason), nil)
		}
		e.logger.Error("booking failed", "error", err, "session_id", sess.ID)
		return e.respond(sess, e.say(ctx, sess.Stage, "retry", ""), nil)
	}

	sess.Set(session.FieldBookingCode, appt.BookingCode)
	sess.Stage = session.StageCompleted
	e.metrics.ObserveBookingOutcome("confirmed")
	e.logger.Info("booking confirmed",
		"session_id", sess.ID, "booking_code", appt.BookingCode,
		"doctor_id", appt.DoctorID, "date", appt.Date, "time", appt.Time)

	detail := fmt.Sprintf("Your booking code is %s. %s on %s at %s.",
		appt.BookingCode, sess.Get(session.FieldDoctorName), appt.Date, appt.Time)
	resp := e.respond(sess, e.say(ctx, sess.Stage, "booked", detail), nil)
	resp.Booking = &BookingResult{
		BookingCode: appt.BookingCode,
		DoctorName:  sess.Get(session.FieldDoctorName),
		Date:        appt.Date,
		Time:        appt.Time,
	}
	return resp
}

// terminalReply answers turns arriving after the conversation ended.
// Completed sessions repeat the confirmation rather than re-booking.
func (e *Engine) terminalReply(ctx context.Context, sess *session.Session) *Response {
	if sess.Stage == session.StageCompleted {
		detail := fmt.Sprintf("Your booking code is %s. %s on %s at %s.",
			sess.Get(session.FieldBookingCode), sess.Get(session.FieldDoctorName),
			sess.Get(session.FieldDate), sess.Get(session.FieldTime))
		resp := e.respond(sess, e.say(ctx, sess.Stage, "booked", detail), nil)
		resp.Booking = &BookingResult{
			BookingCode: sess.Get(session.FieldBookingCode),
			DoctorName:  sess.Get(session.FieldDoctorName),
			Date:        sess.Get(session.FieldDate),
			Time:        sess.Get(session.FieldTime),
		}
		return resp
	}
	return e.respond(sess, e.say(ctx, sess.Stage, "cancelled", "Start a new conversation to book an appointment."), nil)
}

// goBack steps to the previous stage. Collected answers stay in place;
// re-answering the stage overwrites them, while change_* intents are the
// path for discarding a choice outright.
func (e *Engine) goBack(sess *session.Session) {
	switch sess.Stage {
	case session.StageConfirmation:
		sess.Stage = session.StagePatientDetails
	case session.StagePatientDetails:
		sess.Stage = session.StageTimeSelection
	case session.StageTimeSelection:
		sess.Stage = session.StageDateSelection
	case session.StageDateSelection:
		sess.Stage = session.StageDoctorSelection
	case session.StageDoctorSelection:
		sess.Stage = session.StageSymptomsOrDoctor
	}
}

// promptFor re-issues the question for the current stage.
func (e *Engine) promptFor(ctx context.Context, sess *session.Session) (string, []Choice) {
	switch sess.Stage {
	case session.StageSymptomsOrDoctor:
		return e.say(ctx, sess.Stage, "greeting", ""), nil
	case session.StageDoctorSelection:
		spec := sess.Get(session.FieldSpecialization)
		found, err := e.doctors.FindBySpecialization(ctx, spec)
		if err != nil || len(found) == 0 {
			return e.say(ctx, sess.Stage, "ask_doctor", ""), nil
		}
		return e.say(ctx, sess.Stage, "ask_doctor", ""), doctorChoices(found)
	case session.StageDateSelection:
		return e.say(ctx, sess.Stage, "ask_date", ""), nil
	case session.StageTimeSelection:
		if doctorID, ok := e.doctorID(sess); ok {
			if slots, err := e.slots.SlotsForDate(ctx, doctorID, sess.Get(session.FieldDate)); err == nil {
				return e.say(ctx, sess.Stage, "ask_time", ""), slotChoices(slots)
			}
		}
		return e.say(ctx, sess.Stage, "ask_time", ""), nil
	case session.StagePatientDetails:
		return e.say(ctx, sess.Stage, "ask_details", ""), nil
	case session.StageConfirmation:
		return e.say(ctx, sess.Stage, "confirm", e.summary(sess)), confirmChoices()
	default:
		return e.say(ctx, sess.Stage, "reprompt", ""), nil
	}
}

func (e *Engine) candidateDoctors(ctx context.Context, sess *session.Session, text string) ([]clinic.Doctor, error) {
	if spec := sess.Get(session.FieldSpecialization); spec != "" {
		return e.doctors.FindBySpecialization(ctx, spec)
	}
	return e.doctors.SearchByName(ctx, text)
}

func (e *Engine) selectDoctor(sess *session.Session, d clinic.Doctor) {
	sess.Set(session.FieldDoctorID, d.ID.String())
	sess.Set(session.FieldDoctorName, d.Name)
	sess.Set(session.FieldSpecialization, d.Specialization)
	sess.Clear(session.FieldDate, session.FieldTime)
	sess.Stage = session.StageDateSelection
}

func (e *Engine) doctorID(sess *session.Session) (uuid.UUID, bool) {
	id, err := uuid.Parse(sess.Get(session.FieldDoctorID))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (e *Engine) summary(sess *session.Session) string {
	return fmt.Sprintf("%s on %s at %s for %s (%s). Reply 'yes' to confirm.",
		sess.Get(session.FieldDoctorName), sess.Get(session.FieldDate), sess.Get(session.FieldTime),
		sess.Get(session.FieldPatientName), sess.Get(session.FieldPatientPhone))
}

func (e *Engine) say(ctx context.Context, stage session.Stage, purpose, detail string) string {
	reply, err := e.nlu.GenerateResponse(ctx, nlu.ResponseContext{
		Stage:   string(stage),
		Purpose: purpose,
		Detail:  detail,
	})
	if err != nil || reply == "" {
		e.logger.Error("response generation failed", "error", err, "purpose", purpose)
		if detail != "" {
			return detail
		}
		return "Could you tell me a bit more?"
	}
	return reply
}

func (e *Engine) respond(sess *session.Session, reply string, choices []Choice) *Response {
	return &Response{
		SessionID: sess.ID,
		Stage:     sess.Stage,
		Reply:     reply,
		Choices:   choices,
	}
}

func (e *Engine) today() time.Time {
	now := e.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func doctorChoices(doctors []clinic.Doctor) []Choice {
	choices := make([]Choice, 0, len(doctors))
	for _, d := range doctors {
		label := fmt.Sprintf("%s (%s, %d yrs, $%.2f)",
			d.Name, d.Specialization, d.ExperienceYears, float64(d.ConsultationFeeCents)/100)
		choices = append(choices, Choice{ID: d.ID.String(), Label: label})
	}
	return choices
}

func slotChoices(slots []availability.Slot) []Choice {
	choices := make([]Choice, 0, len(slots))
	for _, s := range slots {
		choices = append(choices, Choice{ID: s.Time, Label: s.Time})
	}
	return choices
}

func confirmChoices() []Choice {
	return []Choice{{ID: "yes", Label: "Yes, book it"}, {ID: "no", Label: "No, go back"}}
}

func matchDoctors(candidates []clinic.Doctor, name string) []clinic.Doctor {
	needle := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "Dr.")))
	needle = strings.TrimSpace(strings.TrimPrefix(needle, "dr "))
	if needle == "" {
		return nil
	}
	var matched []clinic.Doctor
	for _, d := range candidates {
		if strings.Contains(strings.ToLower(d.Name), needle) {
			matched = append(matched, d)
		}
	}
	return matched
}

func slotAvailable(slots []availability.Slot, timeStr string) bool {
	for _, s := range slots {
		if s.Time == timeStr {
			return true
		}
	}
	return false
}

func describeAlternatives(doctorName string, res *availability.Result) (string, []Choice) {
	var parts []string
	var choices []Choice

	if res.NextDate != "" {
		parts = append(parts, fmt.Sprintf("%s is next available on %s.", doctorName, res.NextDate))
		choices = append(choices, Choice{ID: res.NextDate, Label: "Book " + res.NextDate})
	}
	for _, alt := range res.Alternates {
		parts = append(parts, fmt.Sprintf("%s (%s) has openings that day.", alt.Doctor.Name, alt.Doctor.Specialization))
		choices = append(choices, Choice{ID: alt.Doctor.ID.String(), Label: "Switch to " + alt.Doctor.Name})
	}
	if len(parts) == 0 {
		return "Could you pick a different date?", nil
	}
	return strings.Join(parts, " "), choices
}

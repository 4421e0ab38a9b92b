package booking

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/docadesk/booking-ai-platform/internal/audit"
	"github.com/docadesk/booking-ai-platform/pkg/logging"
)

// Handler exposes appointment status operations over HTTP. The
// conversational flow creates appointments; this surface looks them up,
// cancels or reschedules them, and lists their history.
type Handler struct {
	manager *Manager
	audit   *audit.Recorder
	logger  *logging.Logger
}

// NewHandler creates an appointment handler.
func NewHandler(manager *Manager, recorder *audit.Recorder, logger *logging.Logger) *Handler {
	if manager == nil {
		panic("booking: manager cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		manager: manager,
		audit:   recorder,
		logger:  logger,
	}
}

// Routes mounts the appointment endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{code}", h.Get)
	r.Post("/{code}/cancel", h.Cancel)
	r.Post("/{code}/reschedule", h.Reschedule)
	r.Get("/{code}/history", h.History)
	return r
}

// Get handles GET /appointments/{code}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, appt)
}

type cancelRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// Cancel handles POST /appointments/{code}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req cancelRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	if req.Actor == "" {
		req.Actor = ActorPatient
	}

	updated, err := h.manager.Transition(r.Context(), appt.ID, StatusCancelled, req.Actor, req.Reason)
	if err != nil {
		h.writeTransitionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

type rescheduleRequest struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// Reschedule handles POST /appointments/{code}/reschedule.
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Date == "" || req.Time == "" {
		http.Error(w, "date and time are required", http.StatusBadRequest)
		return
	}
	if req.Actor == "" {
		req.Actor = ActorPatient
	}

	updated, err := h.manager.Reschedule(r.Context(), appt.ID, req.Date, req.Time, req.Actor, req.Reason)
	if err != nil {
		h.writeTransitionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

// History handles GET /appointments/{code}/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		http.Error(w, "History not available", http.StatusNotImplemented)
		return
	}
	appt, ok := h.lookup(w, r)
	if !ok {
		return
	}

	events, err := h.audit.ListForAppointment(r.Context(), appt.ID.String())
	if err != nil {
		h.logger.Error("failed to list appointment events", "error", err, "appointment_id", appt.ID)
		http.Error(w, "Failed to load history", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"booking_code": appt.BookingCode,
		"events":       events,
	})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*Appointment, bool) {
	code := chi.URLParam(r, "code")
	if code == "" {
		http.Error(w, "Booking code is required", http.StatusBadRequest)
		return nil, false
	}

	appt, err := h.manager.GetByCode(r.Context(), code)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "Appointment not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.logger.Error("failed to load appointment", "error", err, "code", code)
		http.Error(w, "Failed to load appointment", http.StatusInternalServerError)
		return nil, false
	}
	return appt, true
}

func (h *Handler) writeTransitionError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		http.Error(w, verr.Reason, http.StatusConflict)
	case errors.Is(err, ErrSlotConflict):
		http.Error(w, "That slot is no longer available", http.StatusConflict)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "Appointment not found", http.StatusNotFound)
	default:
		h.logger.Error("appointment update failed", "error", err)
		http.Error(w, "Failed to update appointment", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

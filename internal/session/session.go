// Package session persists per-conversation booking state.
package session

import "time"

// Stage is a named step in the booking conversation.
type Stage string

const (
	StageGreeting         Stage = "greeting"
	StageSymptomsOrDoctor Stage = "symptoms_or_doctor"
	StageDoctorSelection  Stage = "doctor_selection"
	StageDateSelection    Stage = "date_selection"
	StageTimeSelection    Stage = "time_selection"
	StagePatientDetails   Stage = "patient_details"
	StageConfirmation     Stage = "confirmation"
	StageCompleted        Stage = "completed"
	StageCancelled        Stage = "cancelled"
)

// Terminal reports whether the conversation has ended.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageCancelled
}

// Collected-field keys. A session holds at most one in-progress booking;
// starting a new booking clears all of these.
const (
	FieldPatientName    = "patient_name"
	FieldPatientPhone   = "patient_phone"
	FieldSymptoms       = "symptoms"
	FieldSpecialization = "specialization"
	FieldDoctorID       = "doctor_id"
	FieldDoctorName     = "doctor_name"
	FieldDate           = "date"
	FieldTime           = "time"
	FieldBookingCode    = "booking_code"
)

// Message is one turn of the conversation transcript.
type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Session is the per-conversation state. It is owned by the store and
// mutated only by the dialogue orchestrator during a single in-flight
// request.
type Session struct {
	ID        string            `json:"id"`
	Stage     Stage             `json:"stage"`
	Fields    map[string]string `json:"fields"`
	History   []Message         `json:"history"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Get returns a collected field value, or "" when unset.
func (s *Session) Get(key string) string {
	if s.Fields == nil {
		return ""
	}
	return s.Fields[key]
}

// Set writes a collected field value.
func (s *Session) Set(key, value string) {
	if s.Fields == nil {
		s.Fields = make(map[string]string)
	}
	s.Fields[key] = value
}

// Clear removes collected field values.
func (s *Session) Clear(keys ...string) {
	for _, k := range keys {
		delete(s.Fields, k)
	}
}

// Append records a transcript message.
func (s *Session) Append(role, content string, at time.Time) {
	s.History = append(s.History, Message{Role: role, Content: content, At: at})
}

// ResetBooking clears every collected field, keeping the transcript.
func (s *Session) ResetBooking() {
	s.Fields = make(map[string]string)
}

// Package dialog runs the deterministic booking conversation. The stage
// machine owns all control flow; language understanding only classifies
// and extracts.
package dialog

import (
	"context"

	"github.com/docadesk/booking-ai-platform/internal/session"
)

// StartRequest opens a new conversation.
type StartRequest struct {
	// Channel is an optional origin tag (web, sms) used for logging only.
	Channel string `json:"channel,omitempty"`
}

// MessageRequest is one user turn in an existing conversation.
type MessageRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// Choice is a selectable option presented to the user.
type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// BookingResult summarises a confirmed appointment.
type BookingResult struct {
	BookingCode string `json:"booking_code"`
	DoctorName  string `json:"doctor_name"`
	Date        string `json:"date"`
	Time        string `json:"time"`
}

// Response is what a conversation turn returns to the caller.
type Response struct {
	SessionID string         `json:"session_id"`
	Stage     session.Stage  `json:"stage"`
	Reply     string         `json:"reply"`
	Choices   []Choice       `json:"choices,omitempty"`
	Booking   *BookingResult `json:"booking,omitempty"`
}

// Service is the conversation surface exposed to transports. Both the
// engine and the queue-backed dispatcher implement it.
type Service interface {
	StartConversation(ctx context.Context, req StartRequest) (*Response, error)
	ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error)
}

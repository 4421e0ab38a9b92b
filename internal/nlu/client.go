// Package nlu wraps the external language-understanding service behind
// an interface with a deterministic fallback. The service is advisory:
// it classifies and extracts, it never makes business decisions.
package nlu

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the external NLU service timed out or failed.
var ErrUnavailable = errors.New("nlu: unavailable")

// Intent is the classified purpose behind a user message.
type Intent string

const (
	IntentProceed      Intent = "proceed"
	IntentChangeDoctor Intent = "change_doctor"
	IntentChangeDate   Intent = "change_date"
	IntentChangeTime   Intent = "change_time"
	IntentChangePhone  Intent = "change_phone"
	IntentChangeName   Intent = "change_name"
	IntentGoBack       Intent = "go_back"
	IntentClarify      Intent = "clarify"
	IntentCancel       Intent = "cancel"
	IntentConfirm      Intent = "confirm"
)

// Known reports whether the intent is part of the closed set.
func (i Intent) Known() bool {
	switch i {
	case IntentProceed, IntentChangeDoctor, IntentChangeDate, IntentChangeTime,
		IntentChangePhone, IntentChangeName, IntentGoBack, IntentClarify,
		IntentCancel, IntentConfirm:
		return true
	}
	return false
}

// Field names a value the extraction operation can pull from free text.
type Field string

const (
	FieldName       Field = "name"
	FieldPhone      Field = "phone"
	FieldDate       Field = "date"
	FieldTime       Field = "time"
	FieldDoctorName Field = "doctor_name"
)

// SymptomAnalysis is the result of mapping symptom text to a specialization.
type SymptomAnalysis struct {
	Specialization string  `json:"specialization"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
}

// IntentResult is an intent classification with its confidence.
type IntentResult struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Extraction is a field value pulled from free text. Value is empty when
// nothing was found.
type Extraction struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ResponseContext carries what the phrasing operation needs. It is used
// for conversational wording only, never for control flow.
type ResponseContext struct {
	Stage   string
	Purpose string
	Detail  string
}

// Client is the NLU capability surface. Implementations are stateless
// per call; all context arrives explicitly.
type Client interface {
	AnalyzeSymptoms(ctx context.Context, text string) (*SymptomAnalysis, error)
	DetectIntent(ctx context.Context, text string, stage string, fields map[string]string) (*IntentResult, error)
	ExtractField(ctx context.Context, text string, field Field) (*Extraction, error)
	GenerateResponse(ctx context.Context, rc ResponseContext) (string, error)
}

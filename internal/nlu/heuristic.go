package nlu

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
)

// HeuristicClient is the deterministic fallback used when the external
// NLU service is unavailable or low-confidence. Keyword lists for
// specialization, regex for phone/date/time. Identical inputs always
// produce identical outputs.
type HeuristicClient struct {
	now    func() time.Time
	region string
}

// NewHeuristicClient creates the fallback client. region is the ISO
// country code for phone parsing; now may be overridden in tests.
func NewHeuristicClient(region string, now func() time.Time) *HeuristicClient {
	if region == "" {
		region = "US"
	}
	if now == nil {
		now = time.Now
	}
	return &HeuristicClient{now: now, region: region}
}

// specializationKeywords maps symptom keywords to specializations.
// Ordered slice so matching is deterministic.
var specializationKeywords = []struct {
	specialization string
	keywords       []string
}{
	{"cardiology", []string{"chest", "heart", "palpitation", "blood pressure"}},
	{"dermatology", []string{"skin", "rash", "acne", "itch", "eczema"}},
	{"orthopedics", []string{"bone", "joint", "knee", "back pain", "fracture", "shoulder"}},
	{"neurology", []string{"headache", "migraine", "dizzy", "seizure", "numb"}},
	{"gastroenterology", []string{"stomach", "abdomen", "nausea", "diarrhea", "constipation"}},
	{"ent", []string{"ear", "nose", "throat", "sinus", "hearing"}},
	{"ophthalmology", []string{"eye", "vision", "blurry"}},
	{"pediatrics", []string{"child", "baby", "infant"}},
	{"pulmonology", []string{"cough", "breathing", "asthma", "wheez"}},
}

// AnalyzeSymptoms matches symptom keywords against a fixed table.
func (h *HeuristicClient) AnalyzeSymptoms(_ context.Context, text string) (*SymptomAnalysis, error) {
	lower := strings.ToLower(text)
	for _, entry := range specializationKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return &SymptomAnalysis{
					Specialization: entry.specialization,
					Confidence:     0.7,
					Reasoning:      fmt.Sprintf("keyword match: %q", kw),
				}, nil
			}
		}
	}
	return &SymptomAnalysis{
		Specialization: "general medicine",
		Confidence:     0.5,
		Reasoning:      "no specific keyword matched",
	}, nil
}

// intentPatterns are checked in order; the first match wins.
var intentPatterns = []struct {
	intent   Intent
	keywords []string
}{
	{IntentCancel, []string{"cancel", "never mind", "nevermind", "forget it", "stop booking"}},
	{IntentGoBack, []string{"go back", "previous step", "back up"}},
	{IntentChangeDoctor, []string{"different doctor", "another doctor", "change doctor", "other doctor", "someone else"}},
	{IntentChangeDate, []string{"different date", "another date", "change date", "different day", "another day", "change the date"}},
	{IntentChangeTime, []string{"different time", "another time", "change time", "earlier time", "later time"}},
	{IntentChangePhone, []string{"wrong number", "change phone", "change my phone", "different number"}},
	{IntentChangeName, []string{"wrong name", "change name", "change my name"}},
	{IntentClarify, []string{"help", "what do you mean", "don't understand", "confused"}},
}

var confirmWords = []string{"yes", "yep", "yeah", "confirm", "sure", "ok", "okay", "correct", "sounds good", "book it"}

// DetectIntent classifies by keyword lists. The current stage only
// matters for distinguishing confirm from proceed.
func (h *HeuristicClient) DetectIntent(_ context.Context, text string, stage string, _ map[string]string) (*IntentResult, error) {
	lower := strings.ToLower(strings.TrimSpace(text))

	// A lone question mark carries no answer. Question-phrased answers
	// ("can I come Monday?") still flow to the stage handler below.
	if lower == "?" {
		return &IntentResult{Intent: IntentClarify, Confidence: 0.8}, nil
	}

	for _, p := range intentPatterns {
		for _, kw := range p.keywords {
			if strings.Contains(lower, kw) {
				return &IntentResult{Intent: p.intent, Confidence: 0.8}, nil
			}
		}
	}

	for _, w := range confirmWords {
		if lower == w || strings.HasPrefix(lower, w+" ") || strings.HasPrefix(lower, w+",") {
			if stage == "confirmation" {
				return &IntentResult{Intent: IntentConfirm, Confidence: 0.85}, nil
			}
			return &IntentResult{Intent: IntentProceed, Confidence: 0.8}, nil
		}
	}

	// Anything else is treated as an answer to the current stage's
	// question so the fallback never stalls the conversation.
	return &IntentResult{Intent: IntentProceed, Confidence: 0.7}, nil
}

var (
	isoDateRe   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}))?\b`)
	timeRe      = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm|AM|PM)?\b`)
	nameRe      = regexp.MustCompile(`(?i)(?:my name is|i am|i'm|this is)\s+([A-Za-z][A-Za-z .'-]{1,60})`)
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

// ExtractField applies regex/keyword extraction for the requested field.
func (h *HeuristicClient) ExtractField(_ context.Context, text string, field Field) (*Extraction, error) {
	switch field {
	case FieldPhone:
		return h.extractPhone(text), nil
	case FieldDate:
		return h.extractDate(text), nil
	case FieldTime:
		return extractTime(text), nil
	case FieldName:
		return extractName(text), nil
	case FieldDoctorName:
		return extractDoctorName(text), nil
	default:
		return &Extraction{}, nil
	}
}

var phoneCandidateRe = regexp.MustCompile(`\+?\d[\d\s().-]{6,}\d`)

func (h *HeuristicClient) extractPhone(text string) *Extraction {
	candidate := phoneCandidateRe.FindString(text)
	if candidate == "" {
		return &Extraction{}
	}
	num, err := phonenumbers.Parse(candidate, h.region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return &Extraction{}
	}
	return &Extraction{
		Value:      phonenumbers.Format(num, phonenumbers.E164),
		Confidence: 0.9,
	}
}

func (h *HeuristicClient) extractDate(text string) *Extraction {
	lower := strings.ToLower(text)
	today := h.now().UTC().Truncate(24 * time.Hour)

	if m := isoDateRe.FindString(text); m != "" {
		if _, err := time.Parse("2006-01-02", m); err == nil {
			return &Extraction{Value: m, Confidence: 0.95}
		}
	}

	if strings.Contains(lower, "day after tomorrow") {
		return &Extraction{Value: today.AddDate(0, 0, 2).Format("2006-01-02"), Confidence: 0.9}
	}
	if strings.Contains(lower, "tomorrow") {
		return &Extraction{Value: today.AddDate(0, 0, 1).Format("2006-01-02"), Confidence: 0.9}
	}
	if strings.Contains(lower, "today") {
		return &Extraction{Value: today.Format("2006-01-02"), Confidence: 0.9}
	}

	for name, wd := range weekdays {
		if !strings.Contains(lower, name) {
			continue
		}
		// Next occurrence strictly after today.
		days := (int(wd) - int(today.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return &Extraction{Value: today.AddDate(0, 0, days).Format("2006-01-02"), Confidence: 0.8}
	}

	if m := slashDateRe.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year := today.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}
		candidate := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if candidate.Month() == time.Month(month) && candidate.Day() == day {
			if m[3] == "" && candidate.Before(today) {
				candidate = candidate.AddDate(1, 0, 0)
			}
			return &Extraction{Value: candidate.Format("2006-01-02"), Confidence: 0.7}
		}
	}

	return &Extraction{}
}

func extractTime(text string) *Extraction {
	m := timeRe.FindStringSubmatch(text)
	if m == nil {
		return &Extraction{}
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	meridiem := strings.ToLower(m[3])

	// A bare small number without minutes or am/pm is too ambiguous.
	if m[2] == "" && meridiem == "" {
		return &Extraction{}
	}

	switch meridiem {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return &Extraction{}
	}
	return &Extraction{
		Value:      fmt.Sprintf("%02d:%02d", hour, minute),
		Confidence: 0.85,
	}
}

func extractName(text string) *Extraction {
	if m := nameRe.FindStringSubmatch(text); m != nil {
		return &Extraction{Value: strings.TrimSpace(m[1]), Confidence: 0.85}
	}
	// A short message of plain words is probably just the name itself.
	trimmed := strings.TrimSpace(text)
	words := strings.Fields(trimmed)
	if len(words) >= 1 && len(words) <= 4 && regexp.MustCompile(`^[A-Za-z .'-]+$`).MatchString(trimmed) {
		return &Extraction{Value: trimmed, Confidence: 0.6}
	}
	return &Extraction{}
}

var doctorRe = regexp.MustCompile(`(?i)(?:dr\.?|doctor)\s+([A-Za-z][A-Za-z .'-]{1,60})`)

func extractDoctorName(text string) *Extraction {
	if m := doctorRe.FindStringSubmatch(text); m != nil {
		return &Extraction{Value: strings.TrimSpace(m[1]), Confidence: 0.85}
	}
	return extractName(text)
}

// GenerateResponse returns fixed phrasing keyed on purpose. The detail
// string is appended verbatim when present.
func (h *HeuristicClient) GenerateResponse(_ context.Context, rc ResponseContext) (string, error) {
	base := cannedResponses[rc.Purpose]
	if base == "" {
		base = "Could you tell me a bit more?"
	}
	if rc.Detail != "" {
		return base + " " + rc.Detail, nil
	}
	return base, nil
}

var cannedResponses = map[string]string{
	"greeting":    "Hello! I can help you book a medical appointment. What symptoms are you experiencing, or do you already know which doctor you'd like to see?",
	"ask_doctor":  "Here are the doctors I found. Which one would you like?",
	"ask_date":    "What date works for you?",
	"ask_time":    "Which time would you like?",
	"ask_details": "Almost done. May I have your full name and phone number?",
	"confirm":     "Please confirm your appointment.",
	"booked":      "Your appointment is booked!",
	"cancelled":   "No problem, I've cancelled this booking. Come back any time.",
	"clarify":     "You can answer the question, say 'go back', change an earlier answer, or say 'cancel' to stop.",
	"slot_taken":  "I'm sorry, that time was just taken. Here are some alternatives.",
	"no_slots":    "That day is fully booked.",
	"reprompt":    "Sorry, I didn't catch that.",
	"retry":       "Something went wrong on our side. Please try again.",
}

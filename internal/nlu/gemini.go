package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient implements Client using Google's Gemini API. Every
// operation sends a single JSON-constrained prompt and parses the reply.
type GeminiClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiClient creates a Gemini-backed NLU client.
func NewGeminiClient(ctx context.Context, apiKey, modelID string) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("nlu: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("nlu: failed to create gemini client: %w", err)
	}
	return &GeminiClient{client: client, modelID: modelID}, nil
}

// Close releases the underlying API client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// AnalyzeSymptoms maps free-text symptoms to a medical specialization.
func (c *GeminiClient) AnalyzeSymptoms(ctx context.Context, text string) (*SymptomAnalysis, error) {
	prompt := fmt.Sprintf(`A patient describes their symptoms. Suggest the single most
appropriate medical specialization (lowercase, e.g. "cardiology",
"dermatology", "general medicine").

Symptoms: %q

Reply with ONLY a JSON object:
{"specialization": "...", "confidence": 0.0-1.0, "reasoning": "..."}`, text)

	var out SymptomAnalysis
	if err := c.completeJSON(ctx, prompt, &out); err != nil {
		return nil, err
	}
	out.Specialization = strings.ToLower(strings.TrimSpace(out.Specialization))
	return &out, nil
}

// DetectIntent classifies the purpose of a message given the current
// stage and collected fields.
func (c *GeminiClient) DetectIntent(ctx context.Context, text string, stage string, fields map[string]string) (*IntentResult, error) {
	collected, _ := json.Marshal(fields)
	prompt := fmt.Sprintf(`You classify messages in a medical appointment booking conversation.
Current stage: %s
Collected fields: %s
Message: %q

Intents: proceed, change_doctor, change_date, change_time, change_phone,
change_name, go_back, clarify, cancel, confirm.
"proceed" means the message answers the current stage's question.
"confirm" means explicit agreement to finalize the booking.

Reply with ONLY a JSON object:
{"intent": "...", "confidence": 0.0-1.0}`, stage, collected, text)

	var out IntentResult
	if err := c.completeJSON(ctx, prompt, &out); err != nil {
		return nil, err
	}
	if !out.Intent.Known() {
		out.Intent = IntentClarify
		out.Confidence = 0
	}
	return &out, nil
}

// ExtractField pulls a single field value out of free text.
func (c *GeminiClient) ExtractField(ctx context.Context, text string, field Field) (*Extraction, error) {
	hint := ""
	switch field {
	case FieldDate:
		hint = `Normalize to "2006-01-02" (ISO date).`
	case FieldTime:
		hint = `Normalize to 24h "15:04".`
	case FieldPhone:
		hint = "Return digits with optional leading +."
	}
	prompt := fmt.Sprintf(`Extract the patient's %s from the message, if present. %s
Message: %q

Reply with ONLY a JSON object (empty value when absent):
{"value": "...", "confidence": 0.0-1.0}`, field, hint, text)

	var out Extraction
	if err := c.completeJSON(ctx, prompt, &out); err != nil {
		return nil, err
	}
	out.Value = strings.TrimSpace(out.Value)
	return &out, nil
}

// GenerateResponse produces conversational phrasing for a reply.
func (c *GeminiClient) GenerateResponse(ctx context.Context, rc ResponseContext) (string, error) {
	prompt := fmt.Sprintf(`You are a friendly medical appointment booking assistant.
Stage: %s. Purpose: %s. Details: %s
Write one short, warm message to the patient. Plain text only.`, rc.Stage, rc.Purpose, rc.Detail)

	text, err := c.complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *GeminiClient) complete(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.modelID)
	model.SetTemperature(0.2)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: gemini completion failed: %v", ErrUnavailable, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: gemini returned no candidates", ErrUnavailable)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: gemini returned empty content", ErrUnavailable)
	}
	return sb.String(), nil
}

func (c *GeminiClient) completeJSON(ctx context.Context, prompt string, out any) error {
	text, err := c.complete(ctx, prompt)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), out); err != nil {
		return fmt.Errorf("%w: undecodable gemini reply: %v", ErrUnavailable, err)
	}
	return nil
}

// extractJSON strips markdown fences and surrounding prose from a model
// reply that should contain one JSON object.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

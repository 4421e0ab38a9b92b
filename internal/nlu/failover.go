package nlu

import (
	"context"
	"time"

	"github.com/docadesk/booking-ai-platform/pkg/logging"
)

// FailoverClient wraps a primary NLU client with the deterministic
// heuristic fallback. Every primary call gets a bounded timeout; on
// timeout, error, or confidence below the configured thresholds the
// fallback answer is used so the conversation never stalls.
type FailoverClient struct {
	primary  Client
	fallback Client
	logger   *logging.Logger

	timeout       time.Duration
	intentMin     float64
	extractionMin float64

	// onFallback, when set, is invoked with the operation name each time
	// the fallback path is taken. Used for telemetry.
	onFallback func(operation string)
}

// FailoverOption configures the failover client.
type FailoverOption func(*FailoverClient)

// WithTimeout bounds each primary call.
func WithTimeout(d time.Duration) FailoverOption {
	return func(c *FailoverClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithConfidenceThresholds sets the minimum usable confidences for
// intent classification and field extraction.
func WithConfidenceThresholds(intentMin, extractionMin float64) FailoverOption {
	return func(c *FailoverClient) {
		c.intentMin = intentMin
		c.extractionMin = extractionMin
	}
}

// WithFallbackObserver registers a telemetry hook.
func WithFallbackObserver(fn func(operation string)) FailoverOption {
	return func(c *FailoverClient) {
		c.onFallback = fn
	}
}

// NewFailoverClient creates a failover-enabled NLU client. primary may
// be nil, in which case every call uses the fallback directly.
func NewFailoverClient(primary Client, fallback Client, logger *logging.Logger, opts ...FailoverOption) *FailoverClient {
	if fallback == nil {
		panic("nlu: fallback client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &FailoverClient{
		primary:       primary,
		fallback:      fallback,
		logger:        logger,
		timeout:       8 * time.Second,
		intentMin:     0.6,
		extractionMin: 0.5,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *FailoverClient) fellBack(operation string, err error) {
	if err != nil {
		c.logger.Warn("primary NLU failed, using deterministic fallback",
			"operation", operation,
			"error", err.Error(),
		)
	}
	if c.onFallback != nil {
		c.onFallback(operation)
	}
}

// AnalyzeSymptoms tries the primary, then the keyword table.
func (c *FailoverClient) AnalyzeSymptoms(ctx context.Context, text string) (*SymptomAnalysis, error) {
	if c.primary != nil {
		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		res, err := c.primary.AnalyzeSymptoms(pctx, text)
		cancel()
		if err == nil && res.Specialization != "" {
			return res, nil
		}
		c.fellBack("analyze_symptoms", err)
	} else {
		c.fellBack("analyze_symptoms", nil)
	}
	return c.fallback.AnalyzeSymptoms(ctx, text)
}

// DetectIntent tries the primary; low-confidence classifications are
// reported as clarify rather than silently guessed as proceed.
func (c *FailoverClient) DetectIntent(ctx context.Context, text string, stage string, fields map[string]string) (*IntentResult, error) {
	if c.primary != nil {
		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		res, err := c.primary.DetectIntent(pctx, text, stage, fields)
		cancel()
		if err == nil {
			if res.Confidence < c.intentMin {
				return &IntentResult{Intent: IntentClarify, Confidence: res.Confidence}, nil
			}
			return res, nil
		}
		c.fellBack("detect_intent", err)
	} else {
		c.fellBack("detect_intent", nil)
	}
	return c.fallback.DetectIntent(ctx, text, stage, fields)
}

// ExtractField tries the primary; empty or low-confidence extractions
// fall through to the deterministic parser.
func (c *FailoverClient) ExtractField(ctx context.Context, text string, field Field) (*Extraction, error) {
	if c.primary != nil {
		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		res, err := c.primary.ExtractField(pctx, text, field)
		cancel()
		if err == nil && res.Value != "" && res.Confidence >= c.extractionMin {
			return res, nil
		}
		c.fellBack("extract_field", err)
	} else {
		c.fellBack("extract_field", nil)
	}
	return c.fallback.ExtractField(ctx, text, field)
}

// GenerateResponse tries the primary, then canned phrasing.
func (c *FailoverClient) GenerateResponse(ctx context.Context, rc ResponseContext) (string, error) {
	if c.primary != nil {
		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		text, err := c.primary.GenerateResponse(pctx, rc)
		cancel()
		if err == nil && text != "" {
			return text, nil
		}
		c.fellBack("generate_response", err)
	} else {
		c.fellBack("generate_response", nil)
	}
	return c.fallback.GenerateResponse(ctx, rc)
}

var _ Client = (*FailoverClient)(nil)
var _ Client = (*HeuristicClient)(nil)
var _ Client = (*GeminiClient)(nil)

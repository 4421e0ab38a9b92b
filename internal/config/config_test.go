package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, 90, cfg.SearchHorizonDays)
	assert.Equal(t, 2*time.Hour, cfg.MinNoticeWindow)
	assert.Equal(t, 0.6, cfg.IntentConfidenceMin)
	assert.True(t, cfg.UseMemoryQueue)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("SEARCH_HORIZON_DAYS", "14")
	t.Setenv("USE_MEMORY_QUEUE", "false")
	t.Setenv("INTENT_CONFIDENCE_MIN", "0.75")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 14, cfg.SearchHorizonDays)
	assert.False(t, cfg.UseMemoryQueue)
	assert.Equal(t, 0.75, cfg.IntentConfidenceMin)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SESSION_TTL", "not-a-duration")
	t.Setenv("WORKER_COUNT", "many")

	cfg := Load()

	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, 2, cfg.WorkerCount)
}

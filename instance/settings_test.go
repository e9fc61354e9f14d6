package instance

import "testing"

// Property maps come back from JSON with float64 numbers; the settings
// loader has to coerce them.
func TestFromPropertiesNumericCoercion(t *testing.T) {
	s := FromProperties(map[string]any{
		"max_tokens":          float64(4096),
		"seed":                float64(42),
		"temperature":         0.3,
		"context_memory_days": float64(14),
	})

	if s.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d", s.MaxTokens)
	}
	if s.Seed != 42 {
		t.Errorf("Seed = %d", s.Seed)
	}
	if s.Temperature != 0.3 {
		t.Errorf("Temperature = %v", s.Temperature)
	}
	if s.ContextMemoryDays != 14 {
		t.Errorf("ContextMemoryDays = %d", s.ContextMemoryDays)
	}
}

func TestFromPropertiesDefaults(t *testing.T) {
	s := FromProperties(nil)
	if s.MaxTokens != 4096 || !s.OverrideParameters || s.Temperature != 0.7 {
		t.Errorf("unexpected defaults: %+v", s)
	}
	if s.WebSearchDepth != "standard" || !s.AutoYouTubeTranscripts || s.ContextMemoryDays != 30 {
		t.Errorf("unexpected NanoGPT defaults: %+v", s)
	}
}

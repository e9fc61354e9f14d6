package instance

// Settings holds the generation parameters configured per instance. They are
// persisted as a loose property map in the record store; FromProperties and
// Properties convert between the two shapes.
type Settings struct {
	Name               string
	URL                string
	APIKey             string
	MaxTokens          int64
	OverrideParameters bool
	Temperature        float64
	Seed               int64
	DefaultModel       string
	TitleModel         string

	// NanoGPT extras
	WebSearchDepth         string
	AutoYouTubeTranscripts bool
	ContextMemoryEnabled   bool
	ContextMemoryDays      int
	SystemPrompt           string
}

// DefaultSettings returns the baseline configuration for a new instance.
func DefaultSettings() Settings {
	return Settings{
		MaxTokens:              4096,
		OverrideParameters:     true,
		Temperature:            0.7,
		WebSearchDepth:         "standard",
		AutoYouTubeTranscripts: true,
		ContextMemoryDays:      30,
	}
}

// FromProperties fills the settings from a persisted property map, keeping
// defaults for absent keys.
func FromProperties(props map[string]any) Settings {
	s := DefaultSettings()
	if props == nil {
		return s
	}
	if v, ok := props["name"].(string); ok {
		s.Name = v
	}
	if v, ok := props["url"].(string); ok {
		s.URL = v
	}
	if v, ok := props["api"].(string); ok {
		s.APIKey = v
	}
	if v, ok := asInt64(props["max_tokens"]); ok {
		s.MaxTokens = v
	}
	if v, ok := props["override_parameters"].(bool); ok {
		s.OverrideParameters = v
	}
	if v, ok := asFloat64(props["temperature"]); ok {
		s.Temperature = v
	}
	if v, ok := asInt64(props["seed"]); ok {
		s.Seed = v
	}
	if v, ok := props["default_model"].(string); ok {
		s.DefaultModel = v
	}
	if v, ok := props["title_model"].(string); ok {
		s.TitleModel = v
	}
	if v, ok := props["web_search_depth"].(string); ok {
		s.WebSearchDepth = v
	}
	if v, ok := props["auto_youtube_transcripts"].(bool); ok {
		s.AutoYouTubeTranscripts = v
	}
	if v, ok := props["context_memory_enabled"].(bool); ok {
		s.ContextMemoryEnabled = v
	}
	if v, ok := asInt64(props["context_memory_days"]); ok {
		s.ContextMemoryDays = int(v)
	}
	if v, ok := props["system_prompt"].(string); ok {
		s.SystemPrompt = v
	}
	return s
}

// Properties converts the settings back to the persisted property map.
func (s Settings) Properties() map[string]any {
	return map[string]any{
		"name":                     s.Name,
		"url":                      s.URL,
		"api":                      s.APIKey,
		"max_tokens":               s.MaxTokens,
		"override_parameters":      s.OverrideParameters,
		"temperature":              s.Temperature,
		"seed":                     s.Seed,
		"default_model":            s.DefaultModel,
		"title_model":              s.TitleModel,
		"web_search_depth":         s.WebSearchDepth,
		"auto_youtube_transcripts": s.AutoYouTubeTranscripts,
		"context_memory_enabled":   s.ContextMemoryEnabled,
		"context_memory_days":      s.ContextMemoryDays,
		"system_prompt":            s.SystemPrompt,
	}
}

// asInt64 handles the numeric types a JSON round-trip can produce.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

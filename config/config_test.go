package config

import (
	"testing"

	"github.com/BurntSushi/toml"
)

// The generated template must decode back into UserConfig with every key in
// the table the decoder reads it from; a key under the wrong header is
// silently dropped.
func TestUserConfigTemplateDecodes(t *testing.T) {
	var cfg UserConfig
	if _, err := toml.Decode(GenerateUserConfigTemplate(), &cfg); err != nil {
		t.Fatalf("template does not decode: %v", err)
	}

	if len(cfg.EnabledTools) != 2 || cfg.EnabledTools[0] != "web_search" {
		t.Errorf("EnabledTools = %v, want the template's tool list", cfg.EnabledTools)
	}
	if cfg.Instance.Type != "nanogpt" {
		t.Errorf("Instance.Type = %q", cfg.Instance.Type)
	}
	if cfg.Instance.URL != "https://nano-gpt.com/api/v1" {
		t.Errorf("Instance.URL = %q", cfg.Instance.URL)
	}
}

func TestSystemConfigTemplateDecodes(t *testing.T) {
	var cfg SystemConfig
	if _, err := toml.Decode(GenerateSystemConfigTemplate(), &cfg); err != nil {
		t.Fatalf("template does not decode: %v", err)
	}
	if cfg.DataDirectory == "" {
		t.Error("expected a data directory in the template")
	}
}

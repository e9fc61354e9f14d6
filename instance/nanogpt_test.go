package instance

import (
	"testing"

	"github.com/jcrabapple/Nanopaca/chat"
)

func TestExtractBalance(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want float64
		ok   bool
	}{
		{"usd_balance", map[string]any{"usd_balance": 12.5}, 12.5, true},
		{"balance", map[string]any{"balance": 3.0}, 3, true},
		{"alias priority", map[string]any{"balance": 3.0, "usd_balance": 12.5}, 12.5, true},
		{"string numeric", map[string]any{"credit": "7.25"}, 7.25, true},
		{"nested", map[string]any{"data": map[string]any{"amount": 9.99}}, 9.99, true},
		{"top level beats nested", map[string]any{"balance": 1.0, "data": map[string]any{"usd_balance": 2.0}}, 1, true},
		{"absent", map[string]any{"error": "nope"}, 0, false},
		{"non-numeric", map[string]any{"balance": "unavailable"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractBalance(tt.data)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ExtractBalance() = (%v, %v), want (%v, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestNanoGPTAdjustStream(t *testing.T) {
	s := DefaultSettings()
	s.APIKey = "k"
	s.SystemPrompt = "always answer in haiku"
	s.ContextMemoryEnabled = true
	s.ContextMemoryDays = 14
	n := NewNanoGPT("id", s, nil)

	req := Request{
		Model:    "chatgpt-4o-latest",
		Messages: []chat.Message{textMessage(chat.RoleUser, "hi")},
		Stream:   true,
	}
	n.adjust(&req)

	if req.Model != "chatgpt-4o-latest:memory-14" {
		t.Errorf("Model = %q, want memory suffix", req.Model)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != chat.RoleSystem {
		t.Fatalf("expected prepended system prompt, got %d messages", len(req.Messages))
	}
	if got := req.Messages[0].Text(); got != "always answer in haiku" {
		t.Errorf("system prompt = %q", got)
	}
}

func TestNanoGPTAdjustSkipsNonStream(t *testing.T) {
	s := DefaultSettings()
	s.SystemPrompt = "prompt"
	s.ContextMemoryEnabled = true
	n := NewNanoGPT("id", s, nil)

	req := Request{
		Model:    "chatgpt-4o-latest",
		Messages: []chat.Message{textMessage(chat.RoleUser, "hi")},
		Stream:   false,
	}
	n.adjust(&req)

	if req.Model != "chatgpt-4o-latest" {
		t.Errorf("tool request model rewritten: %q", req.Model)
	}
	if len(req.Messages) != 1 {
		t.Errorf("tool request messages modified: %d", len(req.Messages))
	}
}

func TestNanoGPTDefaultURL(t *testing.T) {
	n := NewNanoGPT("id", DefaultSettings(), nil)
	if n.Settings().URL != DefaultNanoGPTURL {
		t.Errorf("URL = %q, want %q", n.Settings().URL, DefaultNanoGPTURL)
	}
	if n.Type() != "nanogpt" {
		t.Errorf("Type() = %q", n.Type())
	}
}

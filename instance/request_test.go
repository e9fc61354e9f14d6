package instance

import (
	"testing"

	"github.com/jcrabapple/Nanopaca/chat"
)

func textMessage(role, text string) chat.Message {
	return chat.Message{
		Role:   role,
		Blocks: []chat.Block{{Type: chat.BlockText, Text: text}},
	}
}

func TestBuildRequestSystemRewrite(t *testing.T) {
	history := []chat.Message{
		textMessage(chat.RoleSystem, "be brief"),
		textMessage(chat.RoleUser, "hi"),
	}

	req := BuildRequest(DefaultSettings(), CapNoSystemMessages, "m", history, true)
	if req.Messages[0].Role != chat.RoleUser {
		t.Errorf("expected system message rewritten to user, got %q", req.Messages[0].Role)
	}

	// original history is untouched
	if history[0].Role != chat.RoleSystem {
		t.Errorf("input history was mutated: %q", history[0].Role)
	}
}

func TestBuildRequestTextOnly(t *testing.T) {
	history := []chat.Message{
		{
			Role: chat.RoleUser,
			Blocks: []chat.Block{
				{Type: chat.BlockText, Text: "look at "},
				{Type: chat.BlockImage, Data: "aW1n"},
				{Type: chat.BlockText, Text: "this"},
			},
		},
	}

	req := BuildRequest(DefaultSettings(), CapTextOnly, "m", history, true)
	if len(req.Messages[0].Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(req.Messages[0].Blocks))
	}
	blk := req.Messages[0].Blocks[0]
	if blk.Type != chat.BlockText || blk.Text != "look at this" {
		t.Errorf("expected collapsed text block, got %+v", blk)
	}
}

func TestBuildRequestTokenLimits(t *testing.T) {
	history := []chat.Message{textMessage(chat.RoleUser, "hi")}

	tests := []struct {
		name          string
		maxTokens     int64
		caps          Capabilities
		wantMax       int64
		wantCompletes bool
	}{
		{"standard field", 2048, 0, 2048, false},
		{"completion field", 2048, CapMaxCompletionTokens, 2048, true},
		{"zero omits both", 0, CapMaxCompletionTokens, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			s.MaxTokens = tt.maxTokens
			req := BuildRequest(s, tt.caps, "m", history, true)
			if req.MaxTokens != tt.wantMax {
				t.Errorf("MaxTokens = %d, want %d", req.MaxTokens, tt.wantMax)
			}
			if req.UseMaxCompletionTokens != tt.wantCompletes {
				t.Errorf("UseMaxCompletionTokens = %v, want %v", req.UseMaxCompletionTokens, tt.wantCompletes)
			}
		})
	}
}

func TestBuildRequestParameterOverrides(t *testing.T) {
	history := []chat.Message{textMessage(chat.RoleUser, "hi")}

	tests := []struct {
		name     string
		override bool
		seed     int64
		caps     Capabilities
		wantTemp bool
		wantSeed bool
	}{
		{"override with seed", true, 42, 0, true, true},
		{"override zero seed omitted", true, 0, 0, true, false},
		{"no-seed instance omits seed", true, 42, CapNoSeed, true, false},
		{"override off omits both", false, 42, 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			s.OverrideParameters = tt.override
			s.Seed = tt.seed
			req := BuildRequest(s, tt.caps, "m", history, true)
			if (req.Temperature != nil) != tt.wantTemp {
				t.Errorf("Temperature present = %v, want %v", req.Temperature != nil, tt.wantTemp)
			}
			if (req.Seed != nil) != tt.wantSeed {
				t.Errorf("Seed present = %v, want %v", req.Seed != nil, tt.wantSeed)
			}
			if tt.wantSeed && *req.Seed != tt.seed {
				t.Errorf("Seed = %d, want %d", *req.Seed, tt.seed)
			}
		})
	}
}

func TestFilterChatModels(t *testing.T) {
	models := []string{
		"gpt-4o-mini",
		"text-embedding-3-small",
		"davinci-002",
		"dall-e-3",
		"tts-1",
		"whisper-1",
		"stable-image-core",
		"claude-sonnet-4",
	}

	got := FilterChatModels(models)
	want := []string{"gpt-4o-mini", "claude-sonnet-4"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

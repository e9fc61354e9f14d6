// Package instance abstracts the model providers behind a single interface.
// Each variant declares its capability quirks as a bitset; the shared
// request builder applies the corresponding transforms so the rest of the
// application never branches on provider type.
package instance

import (
	"context"
	"errors"
	"strings"

	"github.com/jcrabapple/Nanopaca/chat"
	"github.com/jcrabapple/Nanopaca/tools"
)

// ErrStructuredOutput is returned by GenerateTitled when the provider has no
// structured-output support. Callers fall back to a plain completion.
var ErrStructuredOutput = errors.New("structured output not supported")

// ToolCall is one function call requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON argument object
}

// Completion is the result of a non-streamed request.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// Titled is the structured title-summarizer output.
type Titled struct {
	Title string `json:"title" jsonschema_description:"Short descriptive title for the conversation"`
	Emoji string `json:"emoji" jsonschema_description:"Single emoji representing the conversation"`
}

// Instance is one configured model provider.
type Instance interface {
	Name() string
	Type() string
	Settings() Settings
	Capabilities() Capabilities

	// StreamCompletion generates a completion for the history, calling emit
	// for each text increment. emit returning false stops the stream; a
	// stopped stream is not an error.
	StreamCompletion(ctx context.Context, model string, history []chat.Message, emit func(delta string) bool) error

	// Complete generates without streaming, offering the given tool schemas.
	Complete(ctx context.Context, model string, history []chat.Message, schemas []tools.Schema) (*Completion, error)

	// GenerateText runs a plain one-shot completion at the given temperature.
	GenerateText(ctx context.Context, model string, history []chat.Message, temperature float64) (string, error)

	// GenerateTitled runs a one-shot completion constrained to the Titled
	// schema. Returns ErrStructuredOutput when unsupported.
	GenerateTitled(ctx context.Context, model string, history []chat.Message) (*Titled, error)

	// ListAvailableModels fetches the provider's model list, filtered to
	// chat-capable families.
	ListAvailableModels(ctx context.Context) ([]string, error)

	// DefaultModel resolves the model used for generation, falling back to
	// the first available model when none is configured.
	DefaultModel(ctx context.Context) string

	// TitleModel resolves the model used by the title summarizer, falling
	// back to the default model.
	TitleModel(ctx context.Context) string
}

// nonChatFamilies marks model name substrings that identify non-chat models
// excluded from selector lists.
var nonChatFamilies = []string{"embedding", "davinci", "dall", "tts", "whisper", "image"}

// FilterChatModels drops models whose names identify non-chat families.
func FilterChatModels(models []string) []string {
	var out []string
	for _, m := range models {
		lower := strings.ToLower(m)
		excluded := false
		for _, family := range nonChatFamilies {
			if strings.Contains(lower, family) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, m)
		}
	}
	return out
}

package instance

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jcrabapple/Nanopaca/chat"
	"github.com/jcrabapple/Nanopaca/storage"
	"github.com/jcrabapple/Nanopaca/tools"
)

// anthropicMaxTokens is used when the instance has no token limit set;
// the Anthropic API requires one.
const anthropicMaxTokens = 4096

// Anthropic is the Claude provider. System messages are carried in the
// request's system parameter, so the instance itself has no role quirk, but
// it reports no-seed since the API has no seed parameter.
type Anthropic struct {
	id       string
	settings Settings
	caps     Capabilities
	client   anthropic.Client
	store    *storage.Store
}

// NewAnthropic creates a Claude provider.
func NewAnthropic(id string, s Settings, store *storage.Store) *Anthropic {
	if s.URL == "" {
		s.URL = "https://api.anthropic.com"
	}
	return &Anthropic{
		id:       id,
		settings: s,
		caps:     CapNoSeed,
		client: anthropic.NewClient(
			option.WithBaseURL(s.URL),
			option.WithAPIKey(s.APIKey),
		),
		store: store,
	}
}

func (a *Anthropic) Name() string               { return a.settings.Name }
func (a *Anthropic) Type() string               { return "anthropic" }
func (a *Anthropic) Settings() Settings         { return a.settings }
func (a *Anthropic) Capabilities() Capabilities { return a.caps }

// StreamCompletion implements Instance.StreamCompletion.
func (a *Anthropic) StreamCompletion(ctx context.Context, model string, history []chat.Message, emit func(delta string) bool) error {
	params := a.messageParams(model, history, nil)

	stream := a.client.Messages.NewStreaming(ctx, params)
	for stream.Next() {
		event := stream.Current()
		if deltaEvent, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if textDelta, ok := deltaEvent.Delta.AsAny().(anthropic.TextDelta); ok {
				if !emit(textDelta.Text) {
					return nil
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("anthropic streaming error: %w", err)
	}
	return nil
}

// Complete implements Instance.Complete.
func (a *Anthropic) Complete(ctx context.Context, model string, history []chat.Message, schemas []tools.Schema) (*Completion, error) {
	params := a.messageParams(model, history, schemas)

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic completion error: %w", err)
	}

	completion := &Completion{}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			completion.Content += variant.Text
		case anthropic.ToolUseBlock:
			completion.ToolCalls = append(completion.ToolCalls, ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: string(variant.Input),
			})
		}
	}
	return completion, nil
}

// GenerateText implements Instance.GenerateText.
func (a *Anthropic) GenerateText(ctx context.Context, model string, history []chat.Message, temperature float64) (string, error) {
	params := a.messageParams(model, history, nil)
	params.MaxTokens = titleMaxTokens
	params.Temperature = anthropic.Float(temperature)

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic completion error: %w", err)
	}

	var content string
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += text.Text
		}
	}
	return content, nil
}

// GenerateTitled implements Instance.GenerateTitled. The API has no JSON
// schema response format, so callers use the plain fallback.
func (a *Anthropic) GenerateTitled(ctx context.Context, model string, history []chat.Message) (*Titled, error) {
	return nil, ErrStructuredOutput
}

// ListAvailableModels implements Instance.ListAvailableModels with a curated
// list, since the API exposes no model listing.
func (a *Anthropic) ListAvailableModels(ctx context.Context) ([]string, error) {
	models := []anthropic.Model{
		anthropic.ModelClaudeSonnet4_5_20250929,
		anthropic.ModelClaude3_5Haiku20241022,
		anthropic.ModelClaude_3_Opus_20240229,
		anthropic.ModelClaude_3_Haiku_20240307,
	}
	out := make([]string, 0, len(models))
	for _, m := range models {
		out = append(out, string(m))
	}
	return out, nil
}

// DefaultModel implements Instance.DefaultModel.
func (a *Anthropic) DefaultModel(ctx context.Context) string {
	if a.settings.DefaultModel != "" {
		return a.settings.DefaultModel
	}
	return string(anthropic.ModelClaudeSonnet4_5_20250929)
}

// TitleModel implements Instance.TitleModel.
func (a *Anthropic) TitleModel(ctx context.Context) string {
	return a.settings.TitleModel
}

func (a *Anthropic) messageParams(model string, history []chat.Message, schemas []tools.Schema) anthropic.MessageNewParams {
	req := BuildRequest(a.settings, a.caps, model, history, true)

	var system []anthropic.TextBlockParam
	var messages []anthropic.MessageParam
	for i := range req.Messages {
		msg := &req.Messages[i]
		switch msg.Role {
		case chat.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Text()})
		case chat.RoleAssistant:
			messages = append(messages, assistantAnthropicMessage(msg))
		case chat.RoleTool:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Text(), false),
			))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text())))
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = anthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	for _, s := range schemas {
		schema := anthropic.ToolInputSchemaParam{
			Properties: s.Properties,
			Required:   s.Required,
		}
		tool := anthropic.ToolUnionParamOfTool(schema, s.Name)
		if tool.OfTool != nil {
			tool.OfTool.Description = anthropic.String(s.Description)
		}
		params.Tools = append(params.Tools, tool)
	}
	return params
}

// assistantAnthropicMessage rebuilds an assistant turn, including any tool
// use blocks it requested.
func assistantAnthropicMessage(msg *chat.Message) anthropic.MessageParam {
	var blocks []anthropic.ContentBlockParamUnion
	if text := msg.Text(); text != "" {
		blocks = append(blocks, anthropic.NewTextBlock(text))
	}
	for _, tc := range msg.ToolCalls {
		var input any = map[string]any{}
		_ = json.Unmarshal([]byte(tc.Arguments), &input)
		blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
	}
	if len(blocks) == 0 {
		blocks = append(blocks, anthropic.NewTextBlock(""))
	}
	return anthropic.NewAssistantMessage(blocks...)
}

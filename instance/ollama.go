package instance

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/jcrabapple/Nanopaca/chat"
	"github.com/jcrabapple/Nanopaca/storage"
	"github.com/jcrabapple/Nanopaca/tools"
)

// Ollama is the local-model provider backed by an Ollama server.
type Ollama struct {
	id       string
	settings Settings
	caps     Capabilities
	client   *api.Client
	store    *storage.Store
}

// NewOllama creates a provider for a local Ollama server.
func NewOllama(id string, s Settings, store *storage.Store) (*Ollama, error) {
	if s.URL == "" {
		s.URL = "http://localhost:11434"
	}
	parsedURL, err := url.Parse(s.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &Ollama{
		id:       id,
		settings: s,
		client:   api.NewClient(parsedURL, http.DefaultClient),
		store:    store,
	}, nil
}

func (o *Ollama) Name() string               { return o.settings.Name }
func (o *Ollama) Type() string               { return "ollama" }
func (o *Ollama) Settings() Settings         { return o.settings }
func (o *Ollama) Capabilities() Capabilities { return o.caps }

// StreamCompletion implements Instance.StreamCompletion. A false emit return
// is surfaced to the Ollama client as an error to abort the request, then
// swallowed, since a stopped stream is not a failure.
func (o *Ollama) StreamCompletion(ctx context.Context, model string, history []chat.Message, emit func(delta string) bool) error {
	req := o.chatRequest(model, history, true, nil)

	var stopped bool
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if resp.Message.Content == "" {
			return nil
		}
		if !emit(resp.Message.Content) {
			stopped = true
			return fmt.Errorf("stream stopped")
		}
		return nil
	})
	if err != nil && !stopped {
		return fmt.Errorf("ollama streaming error: %w", err)
	}
	return nil
}

// Complete implements Instance.Complete.
func (o *Ollama) Complete(ctx context.Context, model string, history []chat.Message, schemas []tools.Schema) (*Completion, error) {
	req := o.chatRequest(model, history, false, schemas)

	var completion Completion
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		completion.Content += resp.Message.Content
		for _, call := range resp.Message.ToolCalls {
			args, _ := json.Marshal(call.Function.Arguments)
			completion.ToolCalls = append(completion.ToolCalls, ToolCall{
				// Ollama does not assign call identifiers; synthesize one
				// so results can still be paired with their calls.
				ID:        fmt.Sprintf("call_%d", len(completion.ToolCalls)),
				Name:      call.Function.Name,
				Arguments: string(args),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama completion error: %w", err)
	}
	return &completion, nil
}

// GenerateText implements Instance.GenerateText.
func (o *Ollama) GenerateText(ctx context.Context, model string, history []chat.Message, temperature float64) (string, error) {
	req := o.chatRequest(model, history, false, nil)
	req.Options = map[string]any{"temperature": temperature}

	var content strings.Builder
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama completion error: %w", err)
	}
	return content.String(), nil
}

// GenerateTitled implements Instance.GenerateTitled. Ollama has no
// structured-output path here, so callers always use the plain fallback.
func (o *Ollama) GenerateTitled(ctx context.Context, model string, history []chat.Message) (*Titled, error) {
	return nil, ErrStructuredOutput
}

// ListAvailableModels implements Instance.ListAvailableModels using the
// server's installed model list.
func (o *Ollama) ListAvailableModels(ctx context.Context) ([]string, error) {
	resp, err := o.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ollama models: %w", err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// DefaultModel implements Instance.DefaultModel.
func (o *Ollama) DefaultModel(ctx context.Context) string {
	models, err := o.ListAvailableModels(ctx)
	if err != nil || len(models) == 0 {
		return o.settings.DefaultModel
	}
	if o.settings.DefaultModel == "" || !containsModel(models, o.settings.DefaultModel) {
		o.settings.DefaultModel = models[0]
	}
	return o.settings.DefaultModel
}

// TitleModel implements Instance.TitleModel.
func (o *Ollama) TitleModel(ctx context.Context) string {
	return o.settings.TitleModel
}

func (o *Ollama) chatRequest(model string, history []chat.Message, stream bool, schemas []tools.Schema) *api.ChatRequest {
	req := BuildRequest(o.settings, o.caps, model, history, stream)

	messages := make([]api.Message, 0, len(req.Messages))
	for i := range req.Messages {
		msg := &req.Messages[i]
		m := api.Message{Role: msg.Role, Content: msg.Text()}
		for _, blk := range msg.Blocks {
			if blk.Type != chat.BlockImage {
				continue
			}
			if raw, err := base64.StdEncoding.DecodeString(blk.Data); err == nil {
				m.Images = append(m.Images, api.ImageData(raw))
			}
		}
		messages = append(messages, m)
	}

	out := &api.ChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   &stream,
		Tools:    convertOllamaTools(schemas),
	}

	options := make(map[string]any)
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.Seed != nil {
		options["seed"] = *req.Seed
	}
	if len(options) > 0 {
		out.Options = options
	}
	return out
}

func convertOllamaTools(schemas []tools.Schema) []api.Tool {
	if len(schemas) == 0 {
		return nil
	}
	out := make([]api.Tool, 0, len(schemas))
	for _, s := range schemas {
		properties := make(map[string]api.ToolProperty, len(s.Properties))
		for name, prop := range s.Properties {
			properties[name] = api.ToolProperty{
				Type:        api.PropertyType{prop.Type},
				Description: prop.Description,
			}
		}
		out = append(out, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        s.Name,
				Description: s.Description,
				Parameters: api.ToolFunctionParameters{
					Type:       "object",
					Properties: properties,
					Required:   s.Required,
				},
			},
		})
	}
	return out
}

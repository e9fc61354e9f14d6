package instance

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jcrabapple/Nanopaca/chat"
	"github.com/jcrabapple/Nanopaca/config"
	"github.com/jcrabapple/Nanopaca/storage"
	"github.com/jcrabapple/Nanopaca/tools"
)

const titleMaxTokens = 100

// OpenAICompat is the base provider for any OpenAI-compatible endpoint.
// Variants embed it and declare their capability quirks; NanoGPT additionally
// hooks adjustRequest to rewrite the outgoing request.
type OpenAICompat struct {
	id           string
	instanceType string
	settings     Settings
	caps         Capabilities
	client       openai.Client
	store        *storage.Store

	// adjustRequest rewrites the request in place and returns extra request
	// options. Nil for plain OpenAI-compatible endpoints.
	adjustRequest func(req *Request) []option.RequestOption

	mu        sync.Mutex
	available []string
}

// NewOpenAICompat creates a provider for an OpenAI-compatible endpoint.
func NewOpenAICompat(id string, s Settings, caps Capabilities, store *storage.Store) *OpenAICompat {
	return &OpenAICompat{
		id:           id,
		instanceType: "openai",
		settings:     s,
		caps:         caps,
		store:        store,
		client: openai.NewClient(
			option.WithBaseURL(s.URL),
			option.WithAPIKey(s.APIKey),
		),
	}
}

func (o *OpenAICompat) Name() string               { return o.settings.Name }
func (o *OpenAICompat) Type() string               { return o.instanceType }
func (o *OpenAICompat) Settings() Settings         { return o.settings }
func (o *OpenAICompat) Capabilities() Capabilities { return o.caps }

// StreamCompletion implements Instance.StreamCompletion.
func (o *OpenAICompat) StreamCompletion(ctx context.Context, model string, history []chat.Message, emit func(delta string) bool) error {
	req := BuildRequest(o.settings, o.caps, model, history, true)
	params, opts := o.buildParams(&req, nil)

	stream := o.client.Chat.Completions.NewStreaming(ctx, params, opts...)
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if !emit(delta) {
			return nil
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("%s streaming error: %w", o.instanceType, err)
	}
	return nil
}

// Complete implements Instance.Complete.
func (o *OpenAICompat) Complete(ctx context.Context, model string, history []chat.Message, schemas []tools.Schema) (*Completion, error) {
	req := BuildRequest(o.settings, o.caps, model, history, false)
	params, opts := o.buildParams(&req, schemas)

	resp, err := o.client.Chat.Completions.New(ctx, params, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s completion error: %w", o.instanceType, err)
	}
	if len(resp.Choices) == 0 {
		return &Completion{}, nil
	}

	msg := resp.Choices[0].Message
	completion := &Completion{Content: msg.Content}
	for _, call := range msg.ToolCalls {
		completion.ToolCalls = append(completion.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return completion, nil
}

// GenerateText implements Instance.GenerateText.
func (o *OpenAICompat) GenerateText(ctx context.Context, model string, history []chat.Message, temperature float64) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, o.oneShotParams(model, history, temperature))
	if err != nil {
		return "", fmt.Errorf("%s completion error: %w", o.instanceType, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", o.instanceType)
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateTitled implements Instance.GenerateTitled using a JSON-schema
// constrained response.
func (o *OpenAICompat) GenerateTitled(ctx context.Context, model string, history []chat.Message) (*Titled, error) {
	params := o.oneShotParams(model, history, 0.2)
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:        "chat_title",
				Description: openai.String("Title and emoji for a conversation"),
				Schema:      titledSchema,
				Strict:      openai.Bool(true),
			},
		},
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s title generation error: %w", o.instanceType, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", o.instanceType)
	}

	var titled Titled
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &titled); err != nil {
		return nil, fmt.Errorf("%s title parse error: %w", o.instanceType, err)
	}
	return &titled, nil
}

// ListAvailableModels implements Instance.ListAvailableModels. The result is
// cached for the life of the instance.
func (o *OpenAICompat) ListAvailableModels(ctx context.Context) ([]string, error) {
	o.mu.Lock()
	if len(o.available) > 0 {
		cached := o.available
		o.mu.Unlock()
		return cached, nil
	}
	o.mu.Unlock()

	page, err := o.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s models: %w", o.instanceType, err)
	}

	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	models := FilterChatModels(ids)

	o.mu.Lock()
	o.available = models
	o.mu.Unlock()
	return models, nil
}

// DefaultModel implements Instance.DefaultModel. The configured model is
// kept only while it exists in the user's model list; otherwise the first
// listed model takes over and the settings are repaired in the store.
func (o *OpenAICompat) DefaultModel(ctx context.Context) string {
	models := o.localModels(ctx)
	if len(models) == 0 {
		return o.settings.DefaultModel
	}
	if o.settings.DefaultModel == "" || !containsModel(models, o.settings.DefaultModel) {
		o.settings.DefaultModel = models[0]
		o.persistSettings()
	}
	return o.settings.DefaultModel
}

// TitleModel implements Instance.TitleModel. An empty return means the
// caller should reuse the generation model.
func (o *OpenAICompat) TitleModel(ctx context.Context) string {
	models := o.localModels(ctx)
	if len(models) == 0 {
		return o.settings.TitleModel
	}
	if o.settings.TitleModel != "" && !containsModel(models, o.settings.TitleModel) {
		o.settings.TitleModel = models[0]
		o.persistSettings()
	}
	return o.settings.TitleModel
}

// localModels returns the models the user added to this instance, falling
// back to the provider's full list when none are recorded.
func (o *OpenAICompat) localModels(ctx context.Context) []string {
	if o.store != nil {
		models, err := o.store.GetOnlineInstanceModelList(o.id)
		if err == nil && len(models) > 0 {
			return models
		}
	}
	models, err := o.ListAvailableModels(ctx)
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("model list fetch failed for %s: %v", o.id, err)
		}
		return nil
	}
	return models
}

func (o *OpenAICompat) persistSettings() {
	if o.store == nil {
		return
	}
	if err := o.store.UpdateInstanceProperties(o.id, o.settings.Properties()); err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("failed to persist instance %s: %v", o.id, err)
	}
}

// oneShotParams builds a plain request with a fixed temperature and small
// token budget, as used by the title summarizer. The variant's request hook
// is deliberately skipped, so model suffixes and extra body fields do not
// leak into title generation.
func (o *OpenAICompat) oneShotParams(model string, history []chat.Message, temperature float64) openai.ChatCompletionNewParams {
	req := BuildRequest(o.settings, o.caps, model, history, false)
	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    convertMessages(req.Messages),
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(titleMaxTokens),
	}
}

// buildParams converts the provider-neutral request to SDK parameters,
// applying the variant's adjustRequest hook first.
func (o *OpenAICompat) buildParams(req *Request, schemas []tools.Schema) (openai.ChatCompletionNewParams, []option.RequestOption) {
	var opts []option.RequestOption
	if o.adjustRequest != nil {
		opts = o.adjustRequest(req)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: convertMessages(req.Messages),
	}

	if req.MaxTokens > 0 {
		if req.UseMaxCompletionTokens {
			params.MaxCompletionTokens = openai.Int(req.MaxTokens)
		} else {
			params.MaxTokens = openai.Int(req.MaxTokens)
		}
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.Seed != nil {
		params.Seed = openai.Int(*req.Seed)
	}
	if len(schemas) > 0 {
		params.Tools = convertTools(schemas)
	}
	return params, opts
}

// convertMessages converts conversation messages to the OpenAI wire format.
func convertMessages(messages []chat.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		switch msg.Role {
		case chat.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Text()))
		case chat.RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				result = append(result, assistantToolCallMessage(msg))
				continue
			}
			result = append(result, openai.AssistantMessage(msg.Text()))
		case chat.RoleTool:
			result = append(result, openai.ToolMessage(msg.Text(), msg.ToolCallID))
		default:
			result = append(result, userMessage(msg))
		}
	}
	return result
}

// userMessage builds a user message, using content parts when the message
// carries image blocks.
func userMessage(msg *chat.Message) openai.ChatCompletionMessageParamUnion {
	hasImage := false
	for _, blk := range msg.Blocks {
		if blk.Type == chat.BlockImage {
			hasImage = true
			break
		}
	}
	if !hasImage {
		return openai.UserMessage(msg.Text())
	}

	var parts []openai.ChatCompletionContentPartUnionParam
	for _, blk := range msg.Blocks {
		switch blk.Type {
		case chat.BlockText:
			parts = append(parts, openai.TextContentPart(blk.Text))
		case chat.BlockImage:
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: blk.Data,
			}))
		}
	}
	return openai.UserMessage(parts)
}

// assistantToolCallMessage rebuilds the assistant turn that requested tool
// calls so results can be paired with their requests.
func assistantToolCallMessage(msg *chat.Message) openai.ChatCompletionMessageParamUnion {
	calls := make([]openai.ChatCompletionMessageToolCallUnionParam, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		calls = append(calls, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			},
		})
	}

	assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
	if text := msg.Text(); text != "" {
		assistant.Content.OfString = openai.String(text)
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

// convertTools converts tool schemas to the OpenAI function-tool format.
func convertTools(schemas []tools.Schema) []openai.ChatCompletionToolUnionParam {
	result := make([]openai.ChatCompletionToolUnionParam, 0, len(schemas))
	for _, s := range schemas {
		params := openai.FunctionParameters{
			"type":       "object",
			"properties": s.Properties,
		}
		if len(s.Required) > 0 {
			params["required"] = s.Required
		}
		result = append(result, openai.ChatCompletionFunctionTool(
			openai.FunctionDefinitionParam{
				Name:        s.Name,
				Description: openai.String(s.Description),
				Parameters:  params,
			},
		))
	}
	return result
}

func containsModel(models []string, name string) bool {
	for _, m := range models {
		if m == name {
			return true
		}
	}
	return false
}

// titledSchema is the JSON schema for structured title output.
var titledSchema = generateSchema[Titled]()

func generateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

package instance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jcrabapple/Nanopaca/chat"
	"github.com/jcrabapple/Nanopaca/config"
	"github.com/jcrabapple/Nanopaca/storage"
	"github.com/jcrabapple/Nanopaca/tools"
)

// DefaultNanoGPTURL is the chat-completions endpoint of the NanoGPT service.
const DefaultNanoGPTURL = "https://nano-gpt.com/api/v1"

// NanoGPT is the OpenAI-compatible NanoGPT provider plus its service
// endpoints for web search, scraping, transcription, balance, and image
// generation. It satisfies tools.Backend.
type NanoGPT struct {
	*OpenAICompat
	apiRoot    string
	httpClient *http.Client
}

// NewNanoGPT creates a NanoGPT provider.
func NewNanoGPT(id string, s Settings, store *storage.Store) *NanoGPT {
	if s.URL == "" {
		s.URL = DefaultNanoGPTURL
	}

	n := &NanoGPT{
		apiRoot:    strings.TrimSuffix(s.URL, "/v1"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	n.OpenAICompat = NewOpenAICompat(id, s, 0, store)
	n.OpenAICompat.instanceType = "nanogpt"
	n.OpenAICompat.adjustRequest = n.adjust
	return n
}

// adjust applies the NanoGPT generation extras: per-instance system prompt,
// context memory model suffix, and automatic YouTube transcripts. Tool and
// title requests are left untouched.
func (n *NanoGPT) adjust(req *Request) []option.RequestOption {
	if !req.Stream {
		return nil
	}

	if n.settings.SystemPrompt != "" {
		req.Messages = append([]chat.Message{{
			Role:   chat.RoleSystem,
			Blocks: []chat.Block{{Type: chat.BlockText, Text: n.settings.SystemPrompt}},
		}}, req.Messages...)
	}

	if n.settings.ContextMemoryEnabled {
		req.Model = fmt.Sprintf("%s:memory-%d", req.Model, n.settings.ContextMemoryDays)
	}

	var opts []option.RequestOption
	if n.settings.AutoYouTubeTranscripts {
		opts = append(opts, option.WithJSONSet("youtube_transcripts", true))
	}
	return opts
}

// SubscriptionModel is one model included in a NanoGPT subscription plan.
type SubscriptionModel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListSubscriptionModels fetches the models included in the account's
// subscription plan.
func (n *NanoGPT) ListSubscriptionModels(ctx context.Context) ([]SubscriptionModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		n.apiRoot+"/subscription/v1/models?detailed=true", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+n.settings.APIKey)

	var body struct {
		Data []SubscriptionModel `json:"data"`
	}
	if err := n.do(req, &body); err != nil {
		return nil, fmt.Errorf("failed to fetch subscription models: %w", err)
	}
	return body.Data, nil
}

// WebSearch implements tools.Backend.WebSearch against the sourced-answer
// search endpoint, honoring the configured search depth.
func (n *NanoGPT) WebSearch(ctx context.Context, query string) (string, error) {
	depth := n.settings.WebSearchDepth
	if depth == "" {
		depth = "standard"
	}

	payload := map[string]any{
		"query":      query,
		"depth":      depth,
		"outputType": "sourcedAnswer",
	}
	var body struct {
		Data struct {
			Answer  string `json:"answer"`
			Sources []struct {
				Name string `json:"name"`
				URL  string `json:"url"`
			} `json:"sources"`
		} `json:"data"`
		Metadata struct {
			Cost float64 `json:"cost"`
		} `json:"metadata"`
	}
	if err := n.post(ctx, n.apiRoot+"/web", payload, &body); err != nil {
		return "", err
	}
	if body.Data.Answer == "" {
		return "No results found", nil
	}

	var b strings.Builder
	b.WriteString(body.Data.Answer)
	b.WriteString("\n\n**Sources:**\n")
	for _, src := range body.Data.Sources {
		fmt.Fprintf(&b, "- [%s](%s)\n", src.Name, src.URL)
	}
	fmt.Fprintf(&b, "\n*Search cost: $%.4f*", body.Metadata.Cost)
	return b.String(), nil
}

// ScrapeURL implements tools.Backend.ScrapeURL.
func (n *NanoGPT) ScrapeURL(ctx context.Context, url string) (string, error) {
	var body struct {
		Results []struct {
			Success  bool   `json:"success"`
			Title    string `json:"title"`
			Markdown string `json:"markdown"`
			Error    string `json:"error"`
		} `json:"results"`
		Summary struct {
			TotalCost float64 `json:"totalCost"`
		} `json:"summary"`
	}
	if err := n.post(ctx, n.apiRoot+"/scrape-urls", map[string]any{"urls": []string{url}}, &body); err != nil {
		return "", err
	}
	if len(body.Results) == 0 {
		return "", fmt.Errorf("no results")
	}
	if !body.Results[0].Success {
		return "", fmt.Errorf("%s", body.Results[0].Error)
	}
	return fmt.Sprintf("**%s**\n\n%s\n\n*Cost: $%.4f*",
		body.Results[0].Title, body.Results[0].Markdown, body.Summary.TotalCost), nil
}

// YouTubeTranscript implements tools.Backend.YouTubeTranscript.
func (n *NanoGPT) YouTubeTranscript(ctx context.Context, url string) (string, error) {
	var body struct {
		Transcripts []struct {
			Success    bool   `json:"success"`
			Title      string `json:"title"`
			Transcript string `json:"transcript"`
			Error      string `json:"error"`
		} `json:"transcripts"`
		Summary struct {
			TotalCost float64 `json:"totalCost"`
		} `json:"summary"`
	}
	if err := n.post(ctx, n.apiRoot+"/youtube-transcribe", map[string]any{"urls": []string{url}}, &body); err != nil {
		return "", err
	}
	if len(body.Transcripts) == 0 {
		return "", fmt.Errorf("no transcript")
	}
	if !body.Transcripts[0].Success {
		return "", fmt.Errorf("%s", body.Transcripts[0].Error)
	}
	return fmt.Sprintf("**%s**\n\n%s\n\n*Cost: $%.2f*",
		body.Transcripts[0].Title, body.Transcripts[0].Transcript, body.Summary.TotalCost), nil
}

// CheckBalance implements tools.Backend.CheckBalance.
func (n *NanoGPT) CheckBalance(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.settings.URL+"/check-balance", nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("x-api-key", n.settings.APIKey)

	var body map[string]any
	if err := n.do(req, &body); err != nil {
		return 0, fmt.Errorf("failed to fetch balance: %w", err)
	}
	balance, ok := ExtractBalance(body)
	if !ok {
		return 0, fmt.Errorf("no balance field in response")
	}
	return balance, nil
}

// GenerateImage implements tools.Backend.GenerateImage.
func (n *NanoGPT) GenerateImage(ctx context.Context, prompt, size string) (*tools.GeneratedImage, error) {
	resp, err := n.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Model:   "dall-e-3",
		Prompt:  prompt,
		Size:    openai.ImageGenerateParamsSize(size),
		Quality: openai.ImageGenerateParamsQuality("standard"),
		N:       openai.Int(1),
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("image generation returned no data")
	}
	return &tools.GeneratedImage{
		URL:           resp.Data[0].URL,
		RevisedPrompt: resp.Data[0].RevisedPrompt,
	}, nil
}

// balanceAliases are the field names balance responses have been seen to
// use, in preference order.
var balanceAliases = []string{"usd_balance", "nano_balance", "balance", "credit", "amount"}

// ExtractBalance finds the first present numeric balance field, checking
// top-level aliases before descending one level into nested objects.
func ExtractBalance(data map[string]any) (float64, bool) {
	for _, alias := range balanceAliases {
		if v, ok := numeric(data[alias]); ok {
			return v, true
		}
	}
	for _, alias := range balanceAliases {
		for _, v := range data {
			nested, ok := v.(map[string]any)
			if !ok {
				continue
			}
			if n, ok := numeric(nested[alias]); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// post sends a JSON payload to a NanoGPT service endpoint.
func (n *NanoGPT) post(ctx context.Context, url string, payload, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", n.settings.APIKey)
	return n.do(req, out)
}

func (n *NanoGPT) do(req *http.Request, out any) error {
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		if config.DebugLog != nil {
			config.DebugLog.Printf("nanogpt request %s failed: %d %s", req.URL.Path, resp.StatusCode, raw)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return json.Unmarshal(raw, out)
}

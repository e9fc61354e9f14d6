package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/jcrabapple/Nanopaca/chat"
)

// NoTool and AutoTool are selector-only pseudo-entries. NoTool disables
// tool use for the turn; AutoTool lets the model decide.

type NoTool struct{}

func (NoTool) Descriptor() Descriptor {
	return Descriptor{
		Name:        "no_tool",
		DisplayName: "No Tool",
		Icon:        "cross-large-symbolic",
		Runnable:    false,
	}
}

func (NoTool) Run(context.Context, Invocation) (string, string, error) {
	return "", "", fmt.Errorf("no_tool is not runnable")
}

type AutoTool struct{}

func (AutoTool) Descriptor() Descriptor {
	return Descriptor{
		Name:        "auto_tool",
		DisplayName: "Auto Detect Tool",
		Icon:        "wrench-wide-symbolic",
		Runnable:    false,
	}
}

func (AutoTool) Run(context.Context, Invocation) (string, string, error) {
	return "", "", fmt.Errorf("auto_tool is not runnable")
}

// WebSearch queries the active instance's web search service.
type WebSearch struct{}

func (WebSearch) Descriptor() Descriptor {
	return Descriptor{
		Name:        "web_search",
		DisplayName: "Web Search",
		Icon:        "globe-symbolic",
		Description: "Search the web for current information using NanoGPT API",
		Properties: []Property{
			{
				Name:        "query",
				Description: "The search query, be specific and use keywords",
				Type:        "string",
				Required:    true,
			},
		},
		Runnable:         true,
		RequiredBackends: []string{"nanogpt"},
	}
}

func (WebSearch) Run(ctx context.Context, inv Invocation) (string, string, error) {
	query := strings.TrimSpace(stringArg(inv.Arguments, "query"))
	if query == "" {
		return "Please provide a search query", "Error: No query provided", nil
	}
	if inv.Backend == nil {
		return "Web search requires NanoGPT", "Error: Wrong instance type", nil
	}

	result, err := inv.Backend.WebSearch(ctx, query)
	if err != nil {
		return fmt.Sprintf("Search failed: %v", err), fmt.Sprintf("Error: %v", err), nil
	}
	return "", result, nil
}

// WebScrape extracts a page's content through the scraping service.
type WebScrape struct{}

func (WebScrape) Descriptor() Descriptor {
	return Descriptor{
		Name:        "web_scrape",
		DisplayName: "Web Scrape",
		Icon:        "document-save-symbolic",
		Description: "Extract content from a webpage",
		Properties: []Property{
			{
				Name:        "url",
				Description: "Website URL to scrape",
				Type:        "string",
				Required:    true,
			},
		},
		Runnable:         true,
		RequiredBackends: []string{"nanogpt"},
	}
}

func (WebScrape) Run(ctx context.Context, inv Invocation) (string, string, error) {
	url := strings.TrimSpace(stringArg(inv.Arguments, "url"))
	if url == "" {
		return "Please provide a URL", "Error: No URL provided", nil
	}
	if inv.Backend == nil {
		return "Web scraping requires NanoGPT", "Error: Wrong instance type", nil
	}

	result, err := inv.Backend.ScrapeURL(ctx, url)
	if err != nil {
		return fmt.Sprintf("Scraping failed: %v", err), fmt.Sprintf("Error: %v", err), nil
	}
	return "", result, nil
}

// YouTubeTranscript fetches the transcript of a video.
type YouTubeTranscript struct{}

func (YouTubeTranscript) Descriptor() Descriptor {
	return Descriptor{
		Name:        "youtube_transcript",
		DisplayName: "YouTube Transcript",
		Icon:        "play-symbolic",
		Description: "Get transcript from a YouTube video",
		Properties: []Property{
			{
				Name:        "url",
				Description: "YouTube video URL",
				Type:        "string",
				Required:    true,
			},
		},
		Runnable:         true,
		RequiredBackends: []string{"nanogpt"},
	}
}

func (YouTubeTranscript) Run(ctx context.Context, inv Invocation) (string, string, error) {
	url := strings.TrimSpace(stringArg(inv.Arguments, "url"))
	if url == "" || (!strings.Contains(url, "youtube.com") && !strings.Contains(url, "youtu.be")) {
		return "Please provide a valid YouTube URL", "Error: Invalid URL", nil
	}
	if inv.Backend == nil {
		return "YouTube transcription requires NanoGPT", "Error: Wrong instance type", nil
	}

	result, err := inv.Backend.YouTubeTranscript(ctx, url)
	if err != nil {
		return fmt.Sprintf("Failed to get transcript: %v", err), fmt.Sprintf("Error: %v", err), nil
	}
	return "", result, nil
}

// CheckBalance reports the account balance of the active instance.
type CheckBalance struct{}

func (CheckBalance) Descriptor() Descriptor {
	return Descriptor{
		Name:             "check_balance",
		DisplayName:      "Check Balance",
		Icon:             "wallet-symbolic",
		Description:      "Check your NanoGPT account balance and usage",
		Runnable:         true,
		RequiredBackends: []string{"nanogpt"},
	}
}

func (CheckBalance) Run(ctx context.Context, inv Invocation) (string, string, error) {
	if inv.Backend == nil {
		return "Balance check requires NanoGPT", "Error: Wrong instance type", nil
	}

	balance, err := inv.Backend.CheckBalance(ctx)
	if err != nil {
		return "Failed to check balance", fmt.Sprintf("Error: %v", err), nil
	}
	return "", fmt.Sprintf("**NanoGPT Balance:** $%.2f", balance), nil
}

// ImageGeneration renders an image from a prompt and attaches it to the
// assistant message.
type ImageGeneration struct{}

func (ImageGeneration) Descriptor() Descriptor {
	return Descriptor{
		Name:        "generate_image",
		DisplayName: "Image Generation",
		Icon:        "camera-photo-symbolic",
		Description: "Generate an image from a text description using NanoGPT",
		Properties: []Property{
			{
				Name:        "prompt",
				Description: "Description of the image to generate",
				Type:        "string",
				Required:    true,
			},
			{
				Name:        "size",
				Description: "Image size: 1024x1024, 1024x1792, or 1792x1024",
				Type:        "string",
			},
		},
		Runnable:         true,
		RequiredBackends: []string{"nanogpt"},
	}
}

func (ImageGeneration) Run(ctx context.Context, inv Invocation) (string, string, error) {
	prompt := strings.TrimSpace(stringArg(inv.Arguments, "prompt"))
	size := stringArg(inv.Arguments, "size")
	if size == "" {
		size = "1024x1024"
	}

	if prompt == "" {
		return "Please provide an image description", "Error: No prompt provided", nil
	}
	if inv.Backend == nil {
		return "Image generation requires NanoGPT", "Error: Wrong instance type", nil
	}

	if inv.View != nil && inv.Target != nil {
		inv.View.UpdateMessage("Generating image...\n")
	}

	img, err := inv.Backend.GenerateImage(ctx, prompt, size)
	if err != nil {
		return fmt.Sprintf("Image generation failed: %v", err), fmt.Sprintf("Error: %v", err), nil
	}

	att := chat.NewAttachment("Generated Image", chat.AttachmentImage, img.URL)
	if inv.Target != nil {
		inv.Target.AddAttachment(att)
	}
	if inv.Attach != nil {
		inv.Attach(att)
	}

	revised := img.RevisedPrompt
	if revised == "" {
		revised = prompt
	}
	return "", fmt.Sprintf("**Generated Image**\n\n%s\n\n*Image generated successfully*", revised), nil
}

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

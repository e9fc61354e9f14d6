package engine

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/jcrabapple/Nanopaca/chat"
	"github.com/jcrabapple/Nanopaca/config"
)

const titleTimeout = 30 * time.Second

// titleMaxLength is the longest conversation name shown before truncation.
const titleMaxLength = 30

const titlePrompt = "You generate concise titles for chat conversations. " +
	"Given the user's first message, respond with a short descriptive title " +
	"of at most five words and a single emoji that captures the topic. " +
	"Do not quote or punctuate the title."

var thinkPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// maybeGenerateTitle starts the background title summarizer when the
// conversation has no completed assistant turn yet and still carries the
// placeholder name. It runs detached so titling never delays generation,
// and failures leave the name untouched.
func (e *Engine) maybeGenerateTitle(conv *chat.Conversation, target *chat.Message) {
	if conv.HasAssistantTurn(target) || !conv.HasDefaultName() {
		return
	}

	prompt := lastUserText(conv.HistoryBefore(target))
	if prompt == "" {
		return
	}

	go e.generateTitle(conv, prompt)
}

func (e *Engine) generateTitle(conv *chat.Conversation, prompt string) {
	ctx, cancel := context.WithTimeout(context.Background(), titleTimeout)
	defer cancel()

	model := e.Instance.TitleModel(ctx)
	if model == "" {
		model = e.Instance.DefaultModel(ctx)
	}
	if model == "" {
		return
	}

	history := []chat.Message{
		{Role: chat.RoleSystem, Blocks: []chat.Block{{Type: chat.BlockText, Text: titlePrompt}}},
		{Role: chat.RoleUser, Blocks: []chat.Block{{Type: chat.BlockText, Text: "Generate a title for this prompt:\n" + prompt}}},
	}

	name := conv.Name()
	titled, err := e.Instance.GenerateTitled(ctx, model, history)
	if err == nil {
		emoji := titled.Emoji
		if len([]rune(emoji)) != 1 {
			emoji = ""
		}
		name = strings.TrimSpace(emoji + " " + titled.Title)
	} else {
		text, fallbackErr := e.Instance.GenerateText(ctx, model, history, 0.2)
		if fallbackErr != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("title generation failed for conversation %s: %v", conv.ID, fallbackErr)
			}
			return
		}
		name = text
	}

	name = CleanTitle(name)
	if name == "" {
		return
	}
	conv.SetName(name)
}

// CleanTitle strips reasoning tags from a generated title and truncates it
// to the display length.
func CleanTitle(name string) string {
	name = strings.TrimSpace(thinkPattern.ReplaceAllString(name, ""))
	runes := []rune(name)
	if len(runes) > titleMaxLength {
		name = strings.TrimSpace(string(runes[:titleMaxLength])) + "..."
	}
	return name
}

// lastUserText returns the text of the most recent user message.
func lastUserText(history []chat.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == chat.RoleUser {
			return history[i].Text()
		}
	}
	return ""
}

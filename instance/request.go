package instance

import (
	"strings"

	"github.com/jcrabapple/Nanopaca/chat"
)

// Request is the provider-neutral generation request after capability
// transforms have been applied. Temperature and Seed are nil when parameter
// overriding is off or the value must be omitted.
type Request struct {
	Model    string
	Messages []chat.Message
	Stream   bool

	MaxTokens              int64
	UseMaxCompletionTokens bool
	Temperature            *float64
	Seed                   *int64
}

// BuildRequest applies the instance's capability transforms to the raw
// history in a fixed order: role rewrite, content flattening, token limit
// field selection, then parameter overrides.
func BuildRequest(s Settings, caps Capabilities, model string, history []chat.Message, stream bool) Request {
	messages := make([]chat.Message, len(history))
	copy(messages, history)

	if caps.NoSystemMessages() {
		for i := range messages {
			if messages[i].Role == chat.RoleSystem {
				messages[i].Role = chat.RoleUser
			}
		}
	}

	if caps.TextOnly() {
		for i := range messages {
			messages[i].Blocks = flattenToText(messages[i].Blocks)
		}
	}

	req := Request{
		Model:    model,
		Messages: messages,
		Stream:   stream,
	}

	if s.MaxTokens > 0 {
		req.MaxTokens = s.MaxTokens
		req.UseMaxCompletionTokens = caps.MaxCompletionTokens()
	}

	if s.OverrideParameters {
		temp := s.Temperature
		req.Temperature = &temp
		if s.Seed != 0 && !caps.NoSeed() {
			seed := s.Seed
			req.Seed = &seed
		}
	}

	return req
}

// flattenToText drops non-text blocks and collapses the rest into a single
// text block.
func flattenToText(blocks []chat.Block) []chat.Block {
	var b strings.Builder
	for _, blk := range blocks {
		if blk.Type == chat.BlockText {
			b.WriteString(blk.Text)
		}
	}
	return []chat.Block{{Type: chat.BlockText, Text: b.String()}}
}

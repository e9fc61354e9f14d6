// Package chat holds the provider-agnostic conversation data model.
//
// A Conversation is an ordered sequence of Messages plus a busy flag that
// gates generation: exactly one generation may be in flight per conversation,
// and clearing the flag is the cooperative cancellation signal checked
// between streamed increments.
package chat

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Content block types.
const (
	BlockText  = "text"
	BlockImage = "image"
)

// Attachment types.
const (
	AttachmentTool  = "tool"
	AttachmentImage = "image"
)

// DefaultName is the placeholder given to conversations before the title
// summarizer has produced a real name.
const DefaultName = "New Chat"

// Block is one ordered piece of message content.
type Block struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Data string `json:"data,omitempty"` // base64 or URL for image blocks
}

// Attachment is a persisted artifact associated with one message: a tool
// result, an argument table, or a generated image.
type Attachment struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ToolCallRef records one function call an assistant message requested, kept
// on the message so follow-up requests can pair results with their calls.
type ToolCallRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// NewAttachment assigns the attachment its identifier before it is persisted.
func NewAttachment(name, attachmentType, content string) Attachment {
	return Attachment{
		ID:      uuid.New().String(),
		Name:    name,
		Type:    attachmentType,
		Content: content,
	}
}

// Message is one conversational turn. A message is immutable once appended,
// except the in-progress assistant message which accumulates streamed text
// through AppendText until Finish is called.
type Message struct {
	ID          string        `json:"id"`
	Role        string        `json:"role"`
	Blocks      []Block       `json:"blocks"`
	Attachments []Attachment  `json:"attachments,omitempty"`
	ToolCalls   []ToolCallRef `json:"tool_calls,omitempty"`
	ToolCallID  string        `json:"tool_call_id,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`

	mu       sync.Mutex
	finished bool
}

// NewMessage creates a message with a single text block.
func NewMessage(role, text string) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Role:      role,
		Blocks:    []Block{{Type: BlockText, Text: text}},
		Timestamp: time.Now(),
	}
}

// NewToolMessage creates a role=tool message carrying the originating
// call's identifier, pairing the result with its request.
func NewToolMessage(toolCallID, content string) *Message {
	msg := NewMessage(RoleTool, content)
	msg.ToolCallID = toolCallID
	return msg
}

// AppendText appends a streamed increment to the message's last text block.
func (m *Message) AppendText(delta string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished {
		return
	}
	if n := len(m.Blocks); n > 0 && m.Blocks[n-1].Type == BlockText {
		m.Blocks[n-1].Text += delta
		return
	}
	m.Blocks = append(m.Blocks, Block{Type: BlockText, Text: delta})
}

// SetText replaces the message's visible content with a single text block.
// Used when a tool summary becomes the final answer.
func (m *Message) SetText(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished {
		return
	}
	m.Blocks = []Block{{Type: BlockText, Text: text}}
}

// Finish transitions the message to its terminal state. Further appends are
// ignored; calling Finish twice is harmless.
func (m *Message) Finish() {
	m.mu.Lock()
	m.finished = true
	m.mu.Unlock()
}

// Finished reports whether the message reached its terminal state.
func (m *Message) Finished() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished
}

// Text returns the concatenated text blocks of the message.
func (m *Message) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var b strings.Builder
	for _, blk := range m.Blocks {
		if blk.Type == BlockText {
			b.WriteString(blk.Text)
		}
	}
	return b.String()
}

// Snapshot returns a detached copy of the message suitable for building
// request histories.
func (m *Message) Snapshot() Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Message{
		ID:         m.ID,
		Role:       m.Role,
		Blocks:     append([]Block(nil), m.Blocks...),
		ToolCalls:  append([]ToolCallRef(nil), m.ToolCalls...),
		ToolCallID: m.ToolCallID,
		Timestamp:  m.Timestamp,
	}
}

// AddAttachment records an attachment on the message.
func (m *Message) AddAttachment(att Attachment) {
	m.mu.Lock()
	m.Attachments = append(m.Attachments, att)
	m.mu.Unlock()
}

// Conversation is an ordered sequence of messages. The name is written by
// the background title summarizer while generation streams into a message,
// so both fields carry their own synchronization.
type Conversation struct {
	ID string

	mu       sync.Mutex
	name     string
	messages []*Message

	busy atomic.Bool
}

// NewConversation creates a conversation with the placeholder name.
func NewConversation() *Conversation {
	return &Conversation{
		ID:   uuid.New().String(),
		name: DefaultName,
	}
}

// Name returns the conversation's human-readable name.
func (c *Conversation) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// SetName applies a new name. Safe to call from the title goroutine.
func (c *Conversation) SetName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

// HasDefaultName reports whether the conversation still carries the
// "New Chat" placeholder, the title summarizer's trigger condition.
func (c *Conversation) HasDefaultName() bool {
	return strings.HasPrefix(c.Name(), DefaultName)
}

// Busy reports whether a generation is in flight.
func (c *Conversation) Busy() bool { return c.busy.Load() }

// SetBusy sets the busy flag. Clearing it mid-generation is the cooperative
// cancellation signal.
func (c *Conversation) SetBusy(busy bool) { c.busy.Store(busy) }

// TryAcquire atomically sets busy if no generation is in flight. A false
// return means a second send attempt must be rejected.
func (c *Conversation) TryAcquire() bool {
	return c.busy.CompareAndSwap(false, true)
}

// Append adds a message to the conversation.
func (c *Conversation) Append(msg *Message) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
}

// InsertBefore places msg immediately before target, used by the tool
// dispatch loop to slot call and result messages ahead of the assistant
// message still being generated. Falls back to Append when target is absent.
func (c *Conversation) InsertBefore(target, msg *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range c.messages {
		if m == target {
			c.messages = append(c.messages[:i], append([]*Message{msg}, c.messages[i:]...)...)
			return
		}
	}
	c.messages = append(c.messages, msg)
}

// Messages returns a snapshot of the conversation's messages.
func (c *Conversation) Messages() []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// HistoryBefore returns copies of all messages preceding target, the
// transcript a generation request is built from.
func (c *Conversation) HistoryBefore(target *Message) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var history []Message
	for _, m := range c.messages {
		if m == target {
			break
		}
		history = append(history, Message{
			ID:         m.ID,
			Role:       m.Role,
			Blocks:     append([]Block(nil), m.Blocks...),
			ToolCalls:  append([]ToolCallRef(nil), m.ToolCalls...),
			ToolCallID: m.ToolCallID,
			Timestamp:  m.Timestamp,
		})
	}
	return history
}

// HasAssistantTurn reports whether any completed assistant message exists.
// The title summarizer runs only on conversations without one.
func (c *Conversation) HasAssistantTurn(before *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.messages {
		if m == before {
			break
		}
		if m.Role == RoleAssistant {
			return true
		}
	}
	return false
}

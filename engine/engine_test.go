package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jcrabapple/Nanopaca/chat"
	"github.com/jcrabapple/Nanopaca/instance"
	"github.com/jcrabapple/Nanopaca/tools"
)

type fakeInstance struct {
	mu              sync.Mutex
	deltas          []string
	streamErr       error
	onEmit          func(i int)
	streamCalls     int
	streamHistories [][]chat.Message

	completion  *instance.Completion
	completeErr error

	titled    *instance.Titled
	titledErr error
	text      string
	textErr   error
}

func newFakeInstance() *fakeInstance {
	return &fakeInstance{
		titledErr: instance.ErrStructuredOutput,
		textErr:   errors.New("no plain completion configured"),
	}
}

func (f *fakeInstance) Name() string                            { return "fake" }
func (f *fakeInstance) Type() string                            { return "fake" }
func (f *fakeInstance) Settings() instance.Settings             { return instance.DefaultSettings() }
func (f *fakeInstance) Capabilities() instance.Capabilities     { return 0 }
func (f *fakeInstance) DefaultModel(ctx context.Context) string { return "fake-model" }
func (f *fakeInstance) TitleModel(ctx context.Context) string   { return "" }

func (f *fakeInstance) ListAvailableModels(ctx context.Context) ([]string, error) {
	return []string{"fake-model"}, nil
}

func (f *fakeInstance) StreamCompletion(ctx context.Context, model string, history []chat.Message, emit func(string) bool) error {
	f.mu.Lock()
	f.streamCalls++
	f.streamHistories = append(f.streamHistories, history)
	deltas := f.deltas
	onEmit := f.onEmit
	streamErr := f.streamErr
	f.mu.Unlock()

	for i, d := range deltas {
		if onEmit != nil {
			onEmit(i)
		}
		if !emit(d) {
			return nil
		}
	}
	return streamErr
}

func (f *fakeInstance) Complete(ctx context.Context, model string, history []chat.Message, schemas []tools.Schema) (*instance.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completion, f.completeErr
}

func (f *fakeInstance) GenerateText(ctx context.Context, model string, history []chat.Message, temperature float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, f.textErr
}

func (f *fakeInstance) GenerateTitled(ctx context.Context, model string, history []chat.Message) (*instance.Titled, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.titled, f.titledErr
}

func (f *fakeInstance) streamCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamCalls
}

func (f *fakeInstance) streamedHistory(i int) []chat.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamHistories[i]
}

type echoTool struct {
	name    string
	summary string
	detail  string
	err     error
	calls   int
}

func (t *echoTool) Descriptor() tools.Descriptor {
	return tools.Descriptor{Name: t.name, Runnable: true}
}

func (t *echoTool) Run(ctx context.Context, inv tools.Invocation) (string, string, error) {
	t.calls++
	return t.summary, t.detail, t.err
}

func newConversation(userText string) (*chat.Conversation, *chat.Message) {
	conv := chat.NewConversation()
	conv.SetName("Already Titled")
	conv.Append(chat.NewMessage(chat.RoleUser, userText))
	target := chat.NewMessage(chat.RoleAssistant, "")
	conv.Append(target)
	return conv, target
}

func TestGenerateStreamsToTarget(t *testing.T) {
	fake := newFakeInstance()
	fake.deltas = []string{"Hel", "lo"}
	eng := New(fake, tools.NewRegistry(), nil, nil)

	conv, target := newConversation("say hello")
	if err := eng.Generate(context.Background(), conv, target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := target.Text(); got != "Hello" {
		t.Errorf("target text = %q, want %q", got, "Hello")
	}
	if !target.Finished() {
		t.Error("expected target to be finished")
	}
	if conv.Busy() {
		t.Error("expected busy flag released")
	}
}

func TestGenerateRejectsConcurrentSend(t *testing.T) {
	fake := newFakeInstance()
	eng := New(fake, tools.NewRegistry(), nil, nil)

	conv, target := newConversation("hi")
	conv.SetBusy(true)

	if err := eng.Generate(context.Background(), conv, target); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestGenerateCancellationMidStream(t *testing.T) {
	fake := newFakeInstance()
	fake.deltas = []string{"one ", "two ", "three"}
	eng := New(fake, tools.NewRegistry(), nil, nil)

	conv, target := newConversation("count")
	fake.onEmit = func(i int) {
		if i == 1 {
			conv.SetBusy(false)
		}
	}

	if err := eng.Generate(context.Background(), conv, target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := target.Text(); got != "one " {
		t.Errorf("target text = %q, want partial %q", got, "one ")
	}
	if !target.Finished() {
		t.Error("expected cancelled target to be finalized")
	}
}

func TestGenerateWithToolsContinuesPastUnknownTool(t *testing.T) {
	fake := newFakeInstance()
	fake.completion = &instance.Completion{
		ToolCalls: []instance.ToolCall{
			{ID: "call_0", Name: "echo_tool", Arguments: `{"text":"hi"}`},
			{ID: "call_1", Name: "foo_bar", Arguments: `{}`},
		},
	}
	fake.deltas = []string{"done"}

	echo := &echoTool{name: "echo_tool", detail: "echoed!"}
	registry := tools.NewRegistry()
	registry.Register(echo)
	registry.SetEnabled("echo_tool", true)

	eng := New(fake, registry, nil, nil)
	conv, target := newConversation("use the tool")

	if err := eng.GenerateWithTools(context.Background(), conv, target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if echo.calls != 1 {
		t.Errorf("echo tool calls = %d, want 1", echo.calls)
	}
	if fake.streamCallCount() != 1 {
		t.Fatalf("stream calls = %d, want 1", fake.streamCallCount())
	}

	history := fake.streamedHistory(0)
	roles := make([]string, 0, len(history))
	for i := range history {
		roles = append(roles, history[i].Role)
	}
	want := []string{chat.RoleUser, chat.RoleAssistant, chat.RoleTool, chat.RoleTool}
	if len(roles) != len(want) {
		t.Fatalf("history roles = %v, want %v", roles, want)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("history roles = %v, want %v", roles, want)
		}
	}

	if history[2].ToolCallID != "call_0" || history[2].Text() != "echoed!" {
		t.Errorf("first tool result = (%q, %q)", history[2].ToolCallID, history[2].Text())
	}
	if history[3].ToolCallID != "call_1" || history[3].Text() != "" {
		t.Errorf("unknown tool result = (%q, %q), want empty content", history[3].ToolCallID, history[3].Text())
	}
	if len(history[1].ToolCalls) != 2 {
		t.Errorf("assistant call record holds %d calls, want 2", len(history[1].ToolCalls))
	}
}

func TestGenerateWithToolsSummaryLastWins(t *testing.T) {
	fake := newFakeInstance()
	fake.completion = &instance.Completion{
		ToolCalls: []instance.ToolCall{
			{ID: "call_0", Name: "first_tool", Arguments: `{}`},
			{ID: "call_1", Name: "second_tool", Arguments: `{}`},
		},
	}

	registry := tools.NewRegistry()
	registry.Register(&echoTool{name: "first_tool", summary: "first answer", detail: "a"})
	registry.Register(&echoTool{name: "second_tool", summary: "second answer", detail: "b"})
	registry.SetEnabled("first_tool", true)
	registry.SetEnabled("second_tool", true)

	eng := New(fake, registry, nil, nil)
	conv, target := newConversation("run both")

	if err := eng.GenerateWithTools(context.Background(), conv, target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := target.Text(); got != "second answer" {
		t.Errorf("target text = %q, want last summary", got)
	}
	if fake.streamCallCount() != 0 {
		t.Errorf("stream calls = %d, want 0 when a summary suppresses generation", fake.streamCallCount())
	}
	if !target.Finished() {
		t.Error("expected target finalized")
	}
}

func TestGenerateWithToolsAttachments(t *testing.T) {
	fake := newFakeInstance()
	fake.completion = &instance.Completion{
		ToolCalls: []instance.ToolCall{
			{ID: "call_0", Name: "echo_tool", Arguments: `{"url":"https://x.test"}`},
		},
	}
	fake.deltas = []string{"ok"}

	registry := tools.NewRegistry()
	registry.Register(&echoTool{name: "echo_tool", detail: "page content"})
	registry.SetEnabled("echo_tool", true)

	eng := New(fake, registry, nil, nil)
	conv, target := newConversation("scrape it")

	if err := eng.GenerateWithTools(context.Background(), conv, target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(target.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(target.Attachments))
	}
	att := target.Attachments[0]
	if att.Name != "echo_tool" || att.Type != chat.AttachmentTool {
		t.Errorf("attachment = %+v", att)
	}
	for _, fragment := range []string{"## Arguments", "| url | https://x.test |", "## Result", "page content"} {
		if !strings.Contains(att.Content, fragment) {
			t.Errorf("attachment content missing %q:\n%s", fragment, att.Content)
		}
	}
}

func TestGenerateWithToolsNoCallsFinalizesContent(t *testing.T) {
	fake := newFakeInstance()
	fake.completion = &instance.Completion{Content: "direct answer"}

	echo := &echoTool{name: "echo_tool"}
	registry := tools.NewRegistry()
	registry.Register(echo)
	registry.SetEnabled("echo_tool", true)

	eng := New(fake, registry, nil, nil)
	conv, target := newConversation("just a question")

	if err := eng.GenerateWithTools(context.Background(), conv, target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := target.Text(); got != "direct answer" {
		t.Errorf("target text = %q, want completion content", got)
	}
	if fake.streamCallCount() != 0 {
		t.Errorf("stream calls = %d, want 0 when the completion answers directly", fake.streamCallCount())
	}
	if echo.calls != 0 {
		t.Errorf("tool calls = %d, want 0", echo.calls)
	}
	if !target.Finished() {
		t.Error("expected target finalized")
	}
	if conv.Busy() {
		t.Error("expected busy flag released")
	}
}

func TestGenerateWithToolsErrorResultKeepsGenerating(t *testing.T) {
	fake := newFakeInstance()
	fake.completion = &instance.Completion{
		ToolCalls: []instance.ToolCall{
			{ID: "call_0", Name: "broken_tool", Arguments: `{}`},
		},
	}
	fake.deltas = []string{"recovered"}

	registry := tools.NewRegistry()
	registry.Register(&echoTool{name: "broken_tool", summary: "partial", err: errors.New("boom")})
	registry.SetEnabled("broken_tool", true)

	eng := New(fake, registry, nil, nil)
	conv, target := newConversation("try it")

	if err := eng.GenerateWithTools(context.Background(), conv, target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fake.streamCallCount() != 1 {
		t.Fatalf("stream calls = %d, want 1 after a failed tool", fake.streamCallCount())
	}
	if got := target.Text(); got != "recovered" {
		t.Errorf("target text = %q, want the follow-up generation", got)
	}

	history := fake.streamedHistory(0)
	last := &history[len(history)-1]
	if last.Role != chat.RoleTool || last.Text() != "Error: boom" {
		t.Errorf("tool result = (%q, %q), want error text as the result", last.Role, last.Text())
	}

	if len(target.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(target.Attachments))
	}
	if !strings.Contains(target.Attachments[0].Content, "Error: boom") {
		t.Errorf("attachment missing error text:\n%s", target.Attachments[0].Content)
	}
}

func TestGenerateWithToolsCompletionErrorFallsBackToGeneration(t *testing.T) {
	fake := newFakeInstance()
	fake.completeErr = errors.New("model unavailable")
	fake.deltas = []string{"plain answer"}

	eng := New(fake, tools.NewRegistry(), nil, nil)
	conv, target := newConversation("hello")

	if err := eng.GenerateWithTools(context.Background(), conv, target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := target.Text(); got != "plain answer" {
		t.Errorf("target text = %q", got)
	}
	if fake.streamCallCount() != 1 {
		t.Errorf("stream calls = %d, want 1", fake.streamCallCount())
	}
}

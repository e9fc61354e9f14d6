package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jcrabapple/Nanopaca/chat"
	"github.com/jcrabapple/Nanopaca/config"
	"github.com/jcrabapple/Nanopaca/instance"
	"github.com/jcrabapple/Nanopaca/tools"
)

// toolTimeout bounds one tool invocation. Interactive tools block on user
// action inside this window.
const toolTimeout = 120 * time.Second

// GenerateWithTools runs the tool dispatch flow: a non-streamed completion
// with the enabled tool schemas, one invocation per returned call, then
// either a follow-up streamed generation over the augmented history or, when
// a tool produced a user-facing summary, that summary as the final answer.
// With several summaries the last one wins. A completion without tool calls
// finalizes the target with its content directly; no second request is made.
func (e *Engine) GenerateWithTools(ctx context.Context, conv *chat.Conversation, target *chat.Message) error {
	if !conv.TryAcquire() {
		return ErrBusy
	}
	defer conv.SetBusy(false)

	e.maybeGenerateTitle(conv, target)

	history := conv.HistoryBefore(target)
	model := e.Instance.DefaultModel(ctx)

	completion, err := e.Instance.Complete(ctx, model, history, e.Registry.Schemas())
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("tool completion failed for conversation %s: %v", conv.ID, err)
		}
		e.View.ShowError("Tool Error", "An error occurred while running tool", err)
		err = e.stream(ctx, conv, target, history)
		e.finish(target)
		return err
	}

	if len(completion.ToolCalls) == 0 {
		e.finalize(target, completion.Content)
		return nil
	}

	history = append(history, e.recordToolCalls(conv, target, completion))

	var lastSummary string
	for _, call := range completion.ToolCalls {
		summary, detail := e.dispatch(ctx, conv, target, call.Name, call.Arguments, history)
		if summary != "" {
			lastSummary = summary
		}

		result := chat.NewToolMessage(call.ID, detail)
		conv.InsertBefore(target, result)
		history = append(history, result.Snapshot())
	}

	if lastSummary != "" {
		e.finalize(target, lastSummary)
		return nil
	}

	err = e.stream(ctx, conv, target, history)
	e.finish(target)
	return err
}

// dispatch runs one tool call through the registry and persists its
// attachment. An unknown or non-runnable tool yields an empty result; a
// failed tool yields its error text as the result with no summary, so the
// follow-up generation still runs. Neither aborts the remaining calls.
func (e *Engine) dispatch(ctx context.Context, conv *chat.Conversation, target *chat.Message, name, argumentsJSON string, history []chat.Message) (summary, detail string) {
	tool := e.Registry.Get(name)
	if tool == nil || !tool.Descriptor().Runnable {
		return "", ""
	}

	args := tools.ParseArguments(argumentsJSON)
	inv := tools.Invocation{
		Arguments: args,
		History:   history,
		Target:    target,
		View:      e.View,
		Backend:   e.Backend,
		Attach:    func(att chat.Attachment) { e.persistAttachment(target, att) },
	}

	callCtx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	summary, detail, err := e.Registry.Invoke(callCtx, name, argumentsJSON, inv)
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("tool %s failed: %v", name, err)
		}
		summary = ""
		detail = fmt.Sprintf("Error: %v", err)
	}

	content := tools.ArgumentTable(args)
	if content != "" {
		content += "\n"
	}
	content += "## Result\n" + detail

	att := chat.NewAttachment(name, chat.AttachmentTool, content)
	target.AddAttachment(att)
	e.persistAttachment(target, att)
	e.View.AddAttachment(att)

	return summary, detail
}

// recordToolCalls slots the assistant turn that requested the calls into the
// conversation so follow-up requests can pair results with their requests.
func (e *Engine) recordToolCalls(conv *chat.Conversation, target *chat.Message, completion *instance.Completion) chat.Message {
	call := chat.NewMessage(chat.RoleAssistant, completion.Content)
	for _, tc := range completion.ToolCalls {
		call.ToolCalls = append(call.ToolCalls, chat.ToolCallRef{
			ID:        tc.ID,
			Name:      tc.Name,
			Arguments: tc.Arguments,
		})
	}
	call.Finish()
	conv.InsertBefore(target, call)
	return call.Snapshot()
}

func (e *Engine) persistAttachment(target *chat.Message, att chat.Attachment) {
	if e.Store == nil {
		return
	}
	if err := e.Store.InsertOrUpdateAttachment(target.ID, att); err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("failed to persist attachment %s: %v", att.ID, err)
	}
}

// Package engine orchestrates generation: streaming responses into the
// conversation, dispatching tool calls, and titling new conversations in the
// background. It owns no provider or UI details; those arrive through the
// instance.Instance and chat.View interfaces.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/jcrabapple/Nanopaca/chat"
	"github.com/jcrabapple/Nanopaca/config"
	"github.com/jcrabapple/Nanopaca/instance"
	"github.com/jcrabapple/Nanopaca/storage"
	"github.com/jcrabapple/Nanopaca/tools"
)

// generateTimeout bounds a single generation request.
const generateTimeout = 120 * time.Second

// ErrBusy is returned when a generation is already in flight for the
// conversation.
var ErrBusy = errors.New("generation already in progress")

// Engine drives generation for one active instance.
type Engine struct {
	Instance instance.Instance
	Registry *tools.Registry
	Store    *storage.Store
	View     chat.View

	// Backend is the tool service surface of the active instance, nil when
	// it does not provide one.
	Backend tools.Backend
}

// New creates an engine. A nil view is replaced with a no-op one.
func New(inst instance.Instance, registry *tools.Registry, store *storage.Store, view chat.View) *Engine {
	if view == nil {
		view = chat.NopView{}
	}
	e := &Engine{
		Instance: inst,
		Registry: registry,
		Store:    store,
		View:     view,
	}
	if backend, ok := inst.(tools.Backend); ok {
		e.Backend = backend
	}
	return e
}

// Generate streams a completion for the conversation into target. It claims
// the conversation's busy flag for the duration; a second concurrent call
// returns ErrBusy. Clearing the flag from another goroutine stops the stream
// at the next increment, and whatever text accumulated by then is kept.
func (e *Engine) Generate(ctx context.Context, conv *chat.Conversation, target *chat.Message) error {
	if !conv.TryAcquire() {
		return ErrBusy
	}
	defer conv.SetBusy(false)

	e.maybeGenerateTitle(conv, target)

	err := e.stream(ctx, conv, target, conv.HistoryBefore(target))
	e.finish(target)
	return err
}

// stream runs one streaming request against the given history, appending
// increments to target. The conversation's busy flag is re-checked between
// increments so a cancel takes effect at the next chunk boundary.
func (e *Engine) stream(ctx context.Context, conv *chat.Conversation, target *chat.Message, history []chat.Message) error {
	model := e.Instance.DefaultModel(ctx)
	if model == "" {
		err := errors.New("no model available")
		e.View.ShowError("Instance Error", "Message generation failed", err)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	err := e.Instance.StreamCompletion(ctx, model, history, func(delta string) bool {
		if !conv.Busy() {
			return false
		}
		target.AppendText(delta)
		e.View.UpdateMessage(delta)
		return true
	})
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("generation failed for conversation %s: %v", conv.ID, err)
		}
		e.View.ShowError("Instance Error", "Message generation failed", err)
		return err
	}
	return nil
}

// finish transitions target to its terminal state and notifies the view.
// It runs on every outcome: success, error, and cancellation.
func (e *Engine) finish(target *chat.Message) {
	target.Finish()
	e.View.FinishGeneration(target.Text())
}

// finalize sets text that never went through the stream (a direct completion
// answer or a tool summary) and finishes the target. The text is surfaced as
// a single view update since no deltas were delivered for it.
func (e *Engine) finalize(target *chat.Message, text string) {
	target.SetText(text)
	if text != "" {
		e.View.UpdateMessage(text)
	}
	e.finish(target)
}

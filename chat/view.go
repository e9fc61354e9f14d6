package chat

// View is the surface the orchestration core projects onto. The real
// presentation layer lives outside this module; the engine only needs a way
// to push streamed increments, signal completion, surface attachments, and
// report errors without blocking generation.
type View interface {
	// UpdateMessage delivers one streamed increment of assistant output.
	UpdateMessage(delta string)

	// FinishGeneration signals that the in-progress message reached its
	// terminal state. final is empty when the streamed content stands as-is.
	FinishGeneration(final string)

	// AddAttachment surfaces a newly persisted attachment.
	AddAttachment(att Attachment)

	// ShowError reports a failure without interrupting the turn.
	ShowError(title, body string, err error)
}

// NopView discards all view events. Used by tests and background paths.
type NopView struct{}

func (NopView) UpdateMessage(string)            {}
func (NopView) FinishGeneration(string)         {}
func (NopView) AddAttachment(Attachment)        {}
func (NopView) ShowError(string, string, error) {}

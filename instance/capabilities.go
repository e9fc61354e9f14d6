package instance

// Capabilities is a bitset of request-shaping quirks an instance carries.
// Each flag marks something the provider cannot do (or does differently),
// checked through typed predicates rather than string membership.
type Capabilities uint8

const (
	// CapNoSystemMessages: the provider rejects system-role messages;
	// they are rewritten to user role before sending.
	CapNoSystemMessages Capabilities = 1 << iota

	// CapTextOnly: the provider accepts plain-string content only;
	// image blocks are stripped and content collapsed to text.
	CapTextOnly

	// CapNoSeed: the provider rejects the seed parameter entirely.
	CapNoSeed

	// CapMaxCompletionTokens: the provider names its token limit field
	// max_completion_tokens instead of max_tokens.
	CapMaxCompletionTokens
)

func (c Capabilities) NoSystemMessages() bool    { return c&CapNoSystemMessages != 0 }
func (c Capabilities) TextOnly() bool            { return c&CapTextOnly != 0 }
func (c Capabilities) NoSeed() bool              { return c&CapNoSeed != 0 }
func (c Capabilities) MaxCompletionTokens() bool { return c&CapMaxCompletionTokens != 0 }

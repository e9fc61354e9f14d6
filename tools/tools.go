// Package tools defines the uniform contract a tool backend satisfies and
// the registry the dispatch engine executes them through. A tool declares
// static metadata (a Descriptor) from which its function-call schema is
// derived, and a Run operation that receives the parsed arguments, the
// conversation history, and the in-progress assistant message.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/jcrabapple/Nanopaca/chat"
)

// Property is one typed argument a tool accepts.
type Property struct {
	Name        string
	Description string
	Type        string
	Required    bool
}

// Descriptor is the static metadata of a tool backend.
type Descriptor struct {
	Name        string
	DisplayName string
	Icon        string
	Description string
	Properties  []Property

	// Runnable is false for pseudo-tools ("No Tool", "Auto Detect") that
	// exist only as selector entries and must never be invoked.
	Runnable bool

	// RequiredBackends names external capabilities the tool depends on;
	// the tool is hidden when one is absent.
	RequiredBackends []string
}

// PropertySchema is the wire shape of one property in a function-call schema.
type PropertySchema struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Schema is the function-call-style schema sent to the model.
type Schema struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Properties  map[string]PropertySchema `json:"properties"`
	Required    []string                  `json:"required"`
}

// Schema derives the request-time schema from the descriptor. The output
// depends only on the declared Properties, so repeated calls are identical.
func (d Descriptor) Schema() Schema {
	properties := make(map[string]PropertySchema, len(d.Properties))
	var required []string
	for _, p := range d.Properties {
		properties[p.Name] = PropertySchema{Type: p.Type, Description: p.Description}
		if p.Required && !contains(required, p.Name) {
			required = append(required, p.Name)
		}
	}
	return Schema{
		Name:        d.Name,
		Description: d.Description,
		Properties:  properties,
		Required:    required,
	}
}

// Invocation carries everything a tool may need at run time. Fields a tool
// does not use are simply ignored; absent backends are reported as a
// capability error string, never a crash.
type Invocation struct {
	Arguments map[string]any
	History   []chat.Message
	Target    *chat.Message
	View      chat.View

	// Backend is the NanoGPT service surface of the active instance, nil
	// when the active instance does not provide one.
	Backend Backend

	// Attach persists an extra artifact produced by the tool itself
	// (generated or processed images). May be nil in tests.
	Attach func(chat.Attachment)
}

// Tool is one invocable backend.
type Tool interface {
	Descriptor() Descriptor

	// Run executes the tool. summary is a short user-facing string used as
	// the final visible answer when generation is skipped; detail is the
	// full result recorded as an attachment and fed back to the model.
	Run(ctx context.Context, inv Invocation) (summary, detail string, err error)
}

// GeneratedImage is the result of an image-generation backend call.
type GeneratedImage struct {
	URL           string
	RevisedPrompt string
}

// Backend is the service surface NanoGPT-backed tools call out to.
// *instance.NanoGPT satisfies it.
type Backend interface {
	WebSearch(ctx context.Context, query string) (string, error)
	ScrapeURL(ctx context.Context, url string) (string, error)
	YouTubeTranscript(ctx context.Context, url string) (string, error)
	CheckBalance(ctx context.Context) (float64, error)
	GenerateImage(ctx context.Context, prompt, size string) (*GeneratedImage, error)
}

// Registry holds the registered tools and which of them the user enabled.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	order   []string
	enabled map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		enabled: make(map[string]bool),
	}
}

// Register adds a tool. Registering the same name twice replaces it.
func (r *Registry) Register(t Tool) {
	name := t.Descriptor().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Get returns the named tool, or nil if unregistered.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// SetEnabled marks a tool as offered to the model.
func (r *Registry) SetEnabled(name string, enabled bool) {
	r.mu.Lock()
	r.enabled[name] = enabled
	r.mu.Unlock()
}

// Enabled returns the enabled, runnable tools in registration order.
func (r *Registry) Enabled() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Tool
	for _, name := range r.order {
		t := r.tools[name]
		if r.enabled[name] && t.Descriptor().Runnable {
			out = append(out, t)
		}
	}
	return out
}

// Schemas returns the request-time schemas of the enabled runnable tools.
func (r *Registry) Schemas() []Schema {
	var schemas []Schema
	for _, t := range r.Enabled() {
		schemas = append(schemas, t.Descriptor().Schema())
	}
	return schemas
}

// Invoke looks up and runs the named tool against a JSON-encoded argument
// object. An unknown or non-runnable tool yields empty results without error
// so a batch of calls is never aborted by one bad name.
func (r *Registry) Invoke(ctx context.Context, name, argumentsJSON string, inv Invocation) (summary, detail string, err error) {
	tool := r.Get(name)
	if tool == nil || !tool.Descriptor().Runnable {
		return "", "", nil
	}

	if inv.Arguments == nil {
		inv.Arguments = ParseArguments(argumentsJSON)
	}

	return tool.Run(ctx, inv)
}

// ParseArguments parses a JSON argument object, returning an empty map on
// malformed input so missing arguments surface as user-input errors inside
// the tool rather than a failed turn.
func ParseArguments(argumentsJSON string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return make(map[string]any)
	}
	if args == nil {
		args = make(map[string]any)
	}
	return args
}

// ArgumentTable renders the argument object as a markdown table, or ""
// when there are no arguments. Rows are sorted by name.
func ArgumentTable(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := "## Arguments\n| Argument | Value |\n| --- | --- |\n"
	for _, k := range keys {
		out += fmt.Sprintf("| %s | %v |\n", k, args[k])
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

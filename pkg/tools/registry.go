// Package tools implements the tool registry and bounded executor of spec
// §4.8: a name-unique handle map advertising an aggregate JSON schema to
// the language model, and a worker pool that executes calls with timeouts
// and panic recovery.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Definition describes one callable tool, per spec §3 ToolDefinition.
type Definition struct {
	Name             string
	Description      string
	ParameterSchema  json.RawMessage
}

// Result is what Execute returns, per spec §4.8.
type Result struct {
	Success bool
	Content string
	Error   string
}

// Handle is a registered tool: its definition plus the callback that
// executes it.
type Handle interface {
	Definition() Definition
	Execute(argsJSON string) Result
}

// Registry is a name-unique map from tool name to Handle. Grounded on
// AltairaLabs-PromptKit/runtime/skills/tool_executor.go's descriptor/schema
// construction pattern, generalized from that package's fixed skill__ tool
// set into an open registry of arbitrary tools.
type Registry struct {
	handles map[string]Handle
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]Handle)}
}

// Register adds h, enforcing the name-unique invariant. The tool's
// parameter schema is validated as well-formed JSON Schema before
// acceptance, using gojsonschema the way
// AltairaLabs-PromptKit/runtime validates tool descriptors.
func (r *Registry) Register(h Handle) error {
	def := h.Definition()
	if def.Name == "" {
		return fmt.Errorf("tools: registering tool with empty name")
	}
	if _, exists := r.handles[def.Name]; exists {
		return fmt.Errorf("tools: duplicate tool name %q", def.Name)
	}
	if len(def.ParameterSchema) > 0 {
		loader := gojsonschema.NewBytesLoader(def.ParameterSchema)
		if _, err := gojsonschema.NewSchema(loader); err != nil {
			return fmt.Errorf("tools: invalid parameter schema for %q: %w", def.Name, err)
		}
	}
	r.handles[def.Name] = h
	r.order = append(r.order, def.Name)
	return nil
}

// Get returns the handle for name, if registered.
func (r *Registry) Get(name string) (Handle, bool) {
	h, ok := r.handles[name]
	return h, ok
}

// Definitions returns all registered tool definitions in registration
// order, the shape advertised to the LLM (spec §4.8 "aggregate JSON schema
// for advertising tools").
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.handles[name].Definition())
	}
	return defs
}

// Len reports the number of registered tools.
func (r *Registry) Len() int {
	return len(r.handles)
}

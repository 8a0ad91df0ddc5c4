// Package tools provides the tool registry and the built-in coding tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vinayprograms/agentkit/llm"

	"github.com/vinayprograms/devloop/internal/session"
)

// Tool is a capability the agent can invoke against a session.
type Tool interface {
	// Name returns the tool name.
	Name() string
	// Description returns a description for the LLM.
	Description() string
	// Parameters returns the JSON schema for parameters.
	Parameters() map[string]interface{}
	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, sess *session.Session, args map[string]interface{}) (interface{}, error)
}

// Registry holds tools in registration order.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any tool with the same name.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) Tool {
	return r.tools[name]
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Definitions returns LLM-facing definitions in registration order.
func (r *Registry) Definitions() []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, llm.ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// Execute runs the named tool. Unknown tools are a retryable failure so the
// model can correct its call.
func (r *Registry) Execute(ctx context.Context, sess *session.Session, name string, args map[string]interface{}) (interface{}, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, Retryable("unknown tool: %s", name)
	}
	return t.Execute(ctx, sess, args)
}

// decodeArgs checks that every required key is present and decodes args into
// out through JSON so that tools work with typed structs.
func decodeArgs(args map[string]interface{}, out interface{}, required ...string) error {
	for _, key := range required {
		if _, ok := args[key]; !ok {
			return Retryable("missing required argument: %s", key)
		}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return Retryable("invalid arguments: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return Retryable("invalid arguments: %v", err)
	}
	return nil
}

func stringParam(desc string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": desc,
	}
}

func objectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// String renders a tool result as the text handed back to the model.
func String(result interface{}) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

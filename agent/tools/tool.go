// Package tools holds the retrieval tools the agent can dispatch to and the
// registry that exposes them under a uniform capability.
package tools

import (
	"context"
	"log/slog"
	"sort"

	"github.com/tmc/langchaingo/tools"
)

// Tool is a named, schema-described capability the agent loop can invoke.
// It extends langchaingo's tools.Tool with the JSON schema of its input so
// the registry can build function-calling definitions for the model.
type Tool interface {
	tools.Tool

	// InputSchema returns the JSON-schema properties and required list for
	// the tool's input object.
	InputSchema() (properties map[string]any, required []string)
}

// Registry maps tool names to implementations. The agent loop depends only
// on the registry, never on a concrete tool type.
type Registry struct {
	byName map[string]Tool
}

func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		r.byName[t.Name()] = t
	}
	return r
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Defs builds OpenAI-compatible function definitions for every registered
// tool, in name order.
func (r *Registry) Defs() []map[string]any {
	defs := make([]map[string]any, 0, len(r.byName))
	for _, name := range r.Names() {
		t := r.byName[name]
		props, required := t.InputSchema()
		defs = append(defs, buildToolDef(t.Name(), t.Description(), props, required))
	}
	return defs
}

// Dispatch invokes the named tool with the given JSON input and returns the
// observation text to append to the transcript. Failures never escape as
// errors: an unregistered name or a tool error is returned as observation
// text so the decision step can adapt.
func (r *Registry) Dispatch(ctx context.Context, name, input string) string {
	t, ok := r.byName[name]
	if !ok {
		slog.Warn("[AGENT TOOL CALL] unknown tool", "tool", name)
		return "Unknown tool: " + name
	}
	slog.Info("[AGENT TOOL CALL]", "tool", name, "input", input)
	result, err := t.Call(ctx, input)
	if err != nil {
		result = "Error: " + err.Error()
	}
	slog.Info("[AGENT TOOL RESULT]", "tool", name, "length", len(result))
	return result
}

// buildToolDef constructs an OpenAI-compatible tool definition map.
func buildToolDef(name, description string, properties map[string]any, required []string) map[string]any {
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        name,
			"description": description,
			"parameters": map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}

// errorRecord is the uniform shape of an error result returned as data from
// a tool. The sequence returned to the model always has exactly one element.
func errorRecord(fields map[string]any) []map[string]any {
	return []map[string]any{fields}
}

package agent

import "context"

// Role identifies who produced a transcript message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single entry in a conversation transcript. Messages are
// immutable once appended: the loop only ever adds to the slice.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls is set on assistant messages that request tool execution.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID is set on tool messages and references the ToolCall this
	// message answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall is a single tool invocation requested by the decision step.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Decision is one output of the decision step: either a final text answer
// (no tool calls) or one or more tool calls to execute, optionally with
// interim text.
type Decision struct {
	Text      string
	ToolCalls []ToolCall
}

// Provider is the text-generation decision capability. Given the transcript
// and the registered tool definitions it returns the model's next decision.
type Provider interface {
	Decide(ctx context.Context, messages []Message, toolDefs []map[string]any) (*Decision, error)
}

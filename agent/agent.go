// Package agent implements the bounded decide/act/observe control loop that
// turns a conversation into either a final natural-language answer or a
// sequence of tool invocations.
package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/partdesk/partdesk/agent/tools"
)

const (
	// DefaultMaxIterations caps decision cycles per request.
	DefaultMaxIterations = 10

	// DefaultToolTimeout bounds a single tool invocation so a hung backend
	// aborts only that call, not the whole loop iteration.
	DefaultToolTimeout = 30 * time.Second

	apologyAnswer = "I'm sorry, I'm having trouble answering right now. Please try again in a moment."

	exhaustedAnswer = "I couldn't find enough information to fully answer your question. " +
		"Could you rephrase it or provide more detail?"
)

// Config tunes an Agent. Zero values fall back to the defaults.
type Config struct {
	MaxIterations int
	ToolTimeout   time.Duration
	SystemPrompt  string
}

// Agent drives the control loop. It does not decide what to call; the
// Provider does. The agent enforces the protocol around that decision:
// bounded iteration, dispatch of every emitted tool call, and appending
// every observation back into the transcript before the next decision step.
type Agent struct {
	provider      Provider
	registry      *tools.Registry
	maxIterations int
	toolTimeout   time.Duration
	systemPrompt  string
}

func New(provider Provider, registry *tools.Registry, cfg Config) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = DefaultToolTimeout
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = SystemPrompt
	}
	return &Agent{
		provider:      provider,
		registry:      registry,
		maxIterations: cfg.MaxIterations,
		toolTimeout:   cfg.ToolTimeout,
		systemPrompt:  cfg.SystemPrompt,
	}
}

// Result is the outcome of one control-loop run.
type Result struct {
	// Answer is the final natural-language answer. Always non-empty: on
	// exhaustion or upstream failure it degrades to an explanatory message.
	Answer string

	// Messages is the transcript produced by this run, excluding the system
	// prompt: prior history, the new user turn, and every assistant/tool
	// message appended by the loop. Empty when the decision step failed
	// before producing anything.
	Messages []Message

	// ToolCalls counts tool invocations (not decision cycles).
	ToolCalls int

	// Exhausted is set when the iteration cap was reached before a natural
	// final answer.
	Exhausted bool

	// Failed is set when the decision capability itself was unreachable.
	// The returned Answer is then a generic apology.
	Failed bool
}

// Run executes the loop for one user turn appended to the given history.
// It never returns an error: every failure mode degrades to an answer, so
// the caller always has something to show the user.
func (a *Agent) Run(ctx context.Context, history []Message, userMessage string) *Result {
	transcript := make([]Message, 0, len(history)+2)
	transcript = append(transcript, history...)
	transcript = append(transcript, Message{Role: RoleUser, Content: userMessage})

	toolDefs := a.registry.Defs()
	toolCalls := 0

	slog.Info("[AGENT INIT]", "tools", len(toolDefs), "history", len(history))
	slog.Info("[AGENT PROMPT]", "input", userMessage)

	done := false
	for iter := 0; iter < a.maxIterations; iter++ {
		decision, err := a.provider.Decide(ctx, a.withSystem(transcript), toolDefs)
		if err != nil {
			slog.Error("[AGENT ERROR] decision step failed", "iteration", iter, "error", err)
			// No retry: surface a degraded answer. The logger still gets an
			// empty-transcript record so session continuity is preserved.
			return &Result{Answer: apologyAnswer, Messages: nil, ToolCalls: toolCalls, Failed: true}
		}

		if len(decision.ToolCalls) == 0 {
			transcript = append(transcript, Message{Role: RoleAssistant, Content: decision.Text})
			done = true
			break
		}

		transcript = append(transcript, Message{
			Role:      RoleAssistant,
			Content:   decision.Text,
			ToolCalls: decision.ToolCalls,
		})

		// Some models repeat a tool_call id within one decision; each id is
		// dispatched at most once.
		seen := make(map[string]bool, len(decision.ToolCalls))
		for _, tc := range decision.ToolCalls {
			if seen[tc.ID] {
				continue
			}
			seen[tc.ID] = true

			observation := a.invoke(ctx, tc)
			toolCalls++
			transcript = append(transcript, Message{
				Role:       RoleTool,
				Content:    observation,
				ToolCallID: tc.ID,
			})
		}
	}

	answer := finalAnswer(transcript)
	exhausted := false
	if !done {
		exhausted = true
		if answer == "" {
			answer = exhaustedAnswer
		}
		slog.Warn("[AGENT EXHAUSTED] iteration cap reached", "max", a.maxIterations, "tool_calls", toolCalls)
	}
	slog.Info("[AGENT FINISH]", "tool_calls", toolCalls, "answer_length", len(answer))

	return &Result{
		Answer:    answer,
		Messages:  transcript,
		ToolCalls: toolCalls,
		Exhausted: exhausted,
	}
}

// invoke dispatches one tool call under its own timeout.
func (a *Agent) invoke(ctx context.Context, tc ToolCall) string {
	callCtx, cancel := context.WithTimeout(ctx, a.toolTimeout)
	defer cancel()

	args, err := json.Marshal(tc.Args)
	if err != nil {
		return "Error: could not encode tool arguments: " + err.Error()
	}
	return a.registry.Dispatch(callCtx, tc.Name, string(args))
}

func (a *Agent) withSystem(transcript []Message) []Message {
	msgs := make([]Message, 0, len(transcript)+1)
	msgs = append(msgs, Message{Role: RoleSystem, Content: a.systemPrompt})
	return append(msgs, transcript...)
}

// finalAnswer extracts the answer as the last message carrying non-empty
// text content, scanning from the end backward. Any message qualifies: when
// the loop exhausts its iterations mid-investigation, the last tool
// observation is still a better partial answer than a canned fallback.
func finalAnswer(transcript []Message) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Content != "" {
			return transcript[i].Content
		}
	}
	return ""
}

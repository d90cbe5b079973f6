package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

const openRouterEndpoint = "https://openrouter.ai/api/v1/chat/completions"

// OpenRouterProvider implements Provider against any function-calling model
// behind the OpenAI-compatible chat completions API.
type OpenRouterProvider struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

func NewOpenRouterProvider(apiKey, model string) *OpenRouterProvider {
	return &OpenRouterProvider{
		apiKey:   apiKey,
		model:    model,
		endpoint: openRouterEndpoint,
		client:   http.DefaultClient,
	}
}

// wire types for the chat completions API.
type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// Decide sends the transcript plus tool definitions and parses the model's
// choice into a typed Decision.
func (p *OpenRouterProvider) Decide(ctx context.Context, messages []Message, toolDefs []map[string]any) (*Decision, error) {
	reqBody := map[string]any{
		"model":    p.model,
		"messages": toWire(messages),
	}
	if len(toolDefs) > 0 {
		reqBody["tools"] = toolDefs
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "LLM request failed")
	}
	defer resp.Body.Close()

	var apiResp struct {
		Choices []struct {
			Message wireMessage `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, errors.Wrap(err, "decode LLM response")
	}
	if apiResp.Error != nil {
		return nil, errors.Errorf("LLM error: %s", apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 {
		return nil, errors.New("empty response from LLM")
	}

	msg := apiResp.Choices[0].Message
	decision := &Decision{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			// Malformed arguments become an empty map; the tool reports the
			// missing parameters as a validation error observation.
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		}
		decision.ToolCalls = append(decision.ToolCalls, ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	return decision, nil
}

func toWire(messages []Message) []wireMessage {
	wire := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wm := wireMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			wtc := wireToolCall{ID: tc.ID, Type: "function"}
			wtc.Function.Name = tc.Name
			argsJSON, _ := json.Marshal(tc.Args)
			wtc.Function.Arguments = string(argsJSON)
			wm.ToolCalls = append(wm.ToolCalls, wtc)
		}
		wire = append(wire, wm)
	}
	return wire
}

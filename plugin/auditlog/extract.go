package auditlog

import "github.com/partdesk/partdesk/agent"

// CallRecord is one reconstructed tool_call or tool_result entry. A matched
// pair collapses into a single tool_call record carrying the result length
// and preview; a result whose id was never seen stays a standalone
// tool_result record.
type CallRecord struct {
	Type          string         `json:"type"` // "tool_call" | "tool_result"
	ToolName      string         `json:"tool_name"`
	Args          map[string]any `json:"args,omitempty"`
	ID            string         `json:"id,omitempty"`
	ResultLength  int            `json:"result_length,omitempty"`
	ResultPreview string         `json:"result_preview,omitempty"`
	ToolCallID    string         `json:"tool_call_id,omitempty"`
}

// extractToolCalls walks the transcript in order and reconstructs the
// tool-call/result pairs. Matching is forward-reference only: a result binds
// to the call with the same id seen earlier in the walk. This assumes a
// ToolCall always precedes its ToolResult in append order, which holds for
// the sequential control loop.
func extractToolCalls(transcript []agent.Message) []CallRecord {
	var records []CallRecord

	for _, msg := range transcript {
		switch msg.Role {
		case agent.RoleAssistant:
			for _, tc := range msg.ToolCalls {
				records = append(records, CallRecord{
					Type:     "tool_call",
					ToolName: tc.Name,
					Args:     tc.Args,
					ID:       tc.ID,
				})
			}
		case agent.RoleTool:
			matched := false
			for i := range records {
				if records[i].Type == "tool_call" && records[i].ID == msg.ToolCallID {
					records[i].ResultLength = len(msg.Content)
					records[i].ResultPreview = truncate(msg.Content, responsePreviewLimit)
					matched = true
					break
				}
			}
			if !matched {
				// Orphaned result: keep it rather than drop it.
				records = append(records, CallRecord{
					Type:         "tool_result",
					ToolName:     "unknown",
					ResultLength: len(msg.Content),
					ToolCallID:   msg.ToolCallID,
				})
			}
		}
	}
	return records
}

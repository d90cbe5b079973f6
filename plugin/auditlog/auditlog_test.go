package auditlog

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partdesk/partdesk/agent"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	l, err := NewLogger(t.TempDir())
	require.NoError(t, err)
	return l
}

func transcriptWithCalls() []agent.Message {
	return []agent.Message{
		{Role: agent.RoleUser, Content: "is PS11752778 in stock?"},
		{Role: agent.RoleAssistant, ToolCalls: []agent.ToolCall{
			{ID: "call_1", Name: "sql_search", Args: map[string]any{"sql_query": "SELECT 1"}},
			{ID: "call_2", Name: "vector_search", Args: map[string]any{"query": "availability"}},
		}},
		{Role: agent.RoleTool, ToolCallID: "call_1", Content: `[{"availability": "In Stock"}]`},
		{Role: agent.RoleTool, ToolCallID: "call_2", Content: `[]`},
		{Role: agent.RoleAssistant, Content: "Yes, it is in stock."},
	}
}

func TestLogExchangeReconstructsToolCalls(t *testing.T) {
	l := newTestLogger(t)
	id := l.CreateSession("")
	require.NotEmpty(t, id)

	err := l.LogExchange(id, "is PS11752778 in stock?", "Yes, it is in stock.", transcriptWithCalls(), 2)
	require.NoError(t, err)

	record, err := l.ReadSession(id)
	require.NoError(t, err)
	require.Len(t, record.Messages, 1)

	exchange := record.Messages[0]
	assert.Equal(t, 2, exchange.ToolCallsCount)
	assert.Equal(t, 5, exchange.TotalMessagesInConversation)
	require.Len(t, exchange.ToolCalls, 2)

	first := exchange.ToolCalls[0]
	assert.Equal(t, "tool_call", first.Type)
	assert.Equal(t, "sql_search", first.ToolName)
	assert.Equal(t, "call_1", first.ID)
	assert.Equal(t, len(`[{"availability": "In Stock"}]`), first.ResultLength)
	assert.Equal(t, `[{"availability": "In Stock"}]`, first.ResultPreview)

	second := exchange.ToolCalls[1]
	assert.Equal(t, "vector_search", second.ToolName)
	assert.Equal(t, 2, second.ResultLength)
}

func TestExtractOrphanedResult(t *testing.T) {
	transcript := []agent.Message{
		{Role: agent.RoleUser, Content: "hello"},
		{Role: agent.RoleTool, ToolCallID: "ghost", Content: "stray result"},
	}
	records := extractToolCalls(transcript)
	require.Len(t, records, 1)
	assert.Equal(t, "tool_result", records[0].Type)
	assert.Equal(t, "unknown", records[0].ToolName)
	assert.Equal(t, "ghost", records[0].ToolCallID)
	assert.Equal(t, len("stray result"), records[0].ResultLength)
}

func TestLogExchangeTruncatesResponse(t *testing.T) {
	l := newTestLogger(t)
	id := l.CreateSession("long")

	long := strings.Repeat("a", 500)
	require.NoError(t, l.LogExchange(id, "q", long, nil, 0))

	record, err := l.ReadSession(id)
	require.NoError(t, err)
	require.Len(t, record.Messages, 1)
	assert.Len(t, record.Messages[0].AgentResponse, responsePreviewLimit+len("..."))
	assert.True(t, strings.HasSuffix(record.Messages[0].AgentResponse, "..."))
}

func TestLogExchangeEmptyTranscript(t *testing.T) {
	// Upstream failures produce an apology with no transcript; the exchange
	// still lands in the record.
	l := newTestLogger(t)
	id := l.CreateSession("failed")

	require.NoError(t, l.LogExchange(id, "q", "sorry", nil, 0))

	record, err := l.ReadSession(id)
	require.NoError(t, err)
	require.Len(t, record.Messages, 1)
	assert.Empty(t, record.Messages[0].ToolCalls)
	assert.Equal(t, 0, record.Messages[0].TotalMessagesInConversation)
}

func TestSummarize(t *testing.T) {
	l := newTestLogger(t)
	id := l.CreateSession("stats")

	require.NoError(t, l.LogExchange(id, "q1", "a1", transcriptWithCalls(), 2))
	require.NoError(t, l.LogExchange(id, "q2", "a2", nil, 0))

	summary, ok := l.Summarize(id)
	require.True(t, ok)
	assert.Equal(t, 2, summary.TotalMessages)
	assert.Equal(t, 2, summary.TotalToolCalls)
	assert.InDelta(t, 1.0, summary.AvgToolCallsPerMessage, 0.0001)
	assert.Equal(t, map[string]int{"sql_search": 1, "vector_search": 1}, summary.ToolUsage)
}

func TestSummarizeUnknownSession(t *testing.T) {
	l := newTestLogger(t)
	_, ok := l.Summarize("missing")
	assert.False(t, ok)
}

func TestEndSessionFinalizesAndEvicts(t *testing.T) {
	l := newTestLogger(t)
	id := l.CreateSession("final")
	require.NoError(t, l.LogExchange(id, "q", "a", transcriptWithCalls(), 2))

	summary, err := l.EndSession(id)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalToolCalls)

	_, err = l.EndSession(id)
	assert.Error(t, err, "ended sessions are evicted from live memory")

	record, err := l.ReadSession(id)
	require.NoError(t, err)
	require.NotNil(t, record.Summary)
	require.NotNil(t, record.EndedAt)
}

func TestSweepIdle(t *testing.T) {
	l := newTestLogger(t)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	now := base
	l.now = func() time.Time { return now }

	stale := l.CreateSession("stale")
	require.NoError(t, l.LogExchange(stale, "q", "a", nil, 0))

	now = base.Add(45 * time.Minute)
	fresh := l.CreateSession("fresh")
	require.NoError(t, l.LogExchange(fresh, "q", "a", nil, 0))

	ended := l.SweepIdle(30 * time.Minute)
	assert.Equal(t, 1, ended)

	_, ok := l.Summarize("stale")
	assert.False(t, ok)
	_, ok = l.Summarize("fresh")
	assert.True(t, ok)
}

func TestRejectsPathEscapingSessionID(t *testing.T) {
	l := newTestLogger(t)

	for _, id := range []string{"../evil", "a/b", "a\\b", ".", "", "id with spaces"} {
		assert.Error(t, l.LogExchange(id, "q", "a", nil, 0), "id %q", id)
		_, err := l.ReadSession(id)
		assert.Error(t, err, "id %q", id)
	}

	// An unusable id handed to CreateSession is replaced, never used as a
	// filename.
	id := l.CreateSession("../evil")
	assert.NotEqual(t, "../evil", id)
	assert.True(t, ValidSessionID(id))
}

func TestConcurrentExchanges(t *testing.T) {
	l := newTestLogger(t)
	id := l.CreateSession("busy")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.LogExchange(id, "q", "a", transcriptWithCalls(), 2)
		}()
	}
	wg.Wait()

	record, err := l.ReadSession(id)
	require.NoError(t, err)
	assert.Len(t, record.Messages, 8)
}

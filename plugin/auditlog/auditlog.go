// Package auditlog observes completed control-loop runs and persists a
// structured per-session audit trail: which tools were called, with what
// arguments, and how large their results were.
package auditlog

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/partdesk/partdesk/agent"
)

// responsePreviewLimit bounds how much of the agent's answer is stored per
// exchange. The full answer lives in the conversation, not the audit log.
const responsePreviewLimit = 200

// Session ids become filename components, so only filesystem-safe
// characters are accepted.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidSessionID reports whether id is usable as a session identifier.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// SessionRecord is the durable per-session artifact. It is rewritten in
// full on every exchange, so a crash loses at most the in-flight exchange.
type SessionRecord struct {
	SessionID string     `json:"session_id"`
	CreatedAt time.Time  `json:"created_at"`
	Messages  []Exchange `json:"messages"`
	Summary   *Summary   `json:"summary,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Exchange is one user-message/agent-response pair plus its tool-call trace.
type Exchange struct {
	Timestamp                   time.Time    `json:"timestamp"`
	UserMessage                 string       `json:"user_message"`
	AgentResponse               string       `json:"agent_response"`
	ToolCallsCount              int          `json:"tool_calls_count"`
	ToolCalls                   []CallRecord `json:"tool_calls"`
	TotalMessagesInConversation int          `json:"total_messages_in_conversation"`
}

// Summary holds per-session aggregate statistics, computed at session end.
type Summary struct {
	SessionID              string         `json:"session_id"`
	TotalMessages          int            `json:"total_messages"`
	TotalToolCalls         int            `json:"total_tool_calls"`
	AvgToolCallsPerMessage float64        `json:"avg_tool_calls_per_message"`
	ToolUsage              map[string]int `json:"tool_usage"`
	CreatedAt              time.Time      `json:"created_at"`
}

type liveSession struct {
	mu         sync.Mutex
	record     SessionRecord
	lastActive time.Time
}

// Logger tracks live sessions in memory and mirrors each one to a
// session-scoped JSON file on every exchange. Two exchanges for the same
// session serialize on the session's own lock; different sessions never
// block each other.
type Logger struct {
	dir string
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]*liveSession
}

func NewLogger(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, "create audit log dir")
	}
	return &Logger{
		dir:      dir,
		now:      time.Now,
		sessions: make(map[string]*liveSession),
	}, nil
}

// CreateSession registers a new session and returns its id. An empty or
// unusable id is replaced with a generated one.
func (l *Logger) CreateSession(sessionID string) string {
	if !ValidSessionID(sessionID) {
		sessionID = shortuuid.New()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.createLocked(sessionID)
	return sessionID
}

func (l *Logger) createLocked(sessionID string) *liveSession {
	if s, ok := l.sessions[sessionID]; ok {
		return s
	}
	now := l.now()
	s := &liveSession{
		record: SessionRecord{
			SessionID: sessionID,
			CreatedAt: now,
			Messages:  []Exchange{},
		},
		lastActive: now,
	}
	l.sessions[sessionID] = s
	return s
}

// session returns the live session, creating it on first reference.
func (l *Logger) session(sessionID string) *liveSession {
	l.mu.RLock()
	s, ok := l.sessions[sessionID]
	l.mu.RUnlock()
	if ok {
		return s
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.createLocked(sessionID)
}

// LogExchange appends one completed control-loop run to the session and
// persists the full record immediately, so no prior exchange is lost on a
// later crash. The transcript may be empty (upstream decision failure);
// the exchange is still recorded for session continuity.
func (l *Logger) LogExchange(sessionID, userMessage, agentResponse string, transcript []agent.Message, toolCallsCount int) error {
	if !ValidSessionID(sessionID) {
		return errors.Errorf("invalid session id %q", sessionID)
	}
	s := l.session(sessionID)

	exchange := Exchange{
		Timestamp:                   l.now(),
		UserMessage:                 userMessage,
		AgentResponse:               truncate(agentResponse, responsePreviewLimit),
		ToolCallsCount:              toolCallsCount,
		ToolCalls:                   extractToolCalls(transcript),
		TotalMessagesInConversation: len(transcript),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Messages = append(s.record.Messages, exchange)
	s.lastActive = l.now()
	return l.persist(&s.record)
}

// Summarize computes the aggregate statistics for a live session.
func (l *Logger) Summarize(sessionID string) (*Summary, bool) {
	l.mu.RLock()
	s, ok := l.sessions[sessionID]
	l.mu.RUnlock()
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return summarize(&s.record), true
}

// EndSession computes the final summary, performs one last write, and
// evicts the session from live memory.
func (l *Logger) EndSession(sessionID string) (*Summary, error) {
	l.mu.Lock()
	s, ok := l.sessions[sessionID]
	if ok {
		delete(l.sessions, sessionID)
	}
	l.mu.Unlock()
	if !ok {
		return nil, errors.Errorf("session %s not found", sessionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := l.now()
	s.record.Summary = summarize(&s.record)
	s.record.EndedAt = &now
	if err := l.persist(&s.record); err != nil {
		return nil, err
	}
	return s.record.Summary, nil
}

// SweepIdle ends every session idle for longer than maxIdle. Live sessions
// would otherwise accumulate without bound, since clients do not reliably
// end them.
func (l *Logger) SweepIdle(maxIdle time.Duration) int {
	cutoff := l.now().Add(-maxIdle)

	l.mu.RLock()
	var stale []string
	for id, s := range l.sessions {
		s.mu.Lock()
		idle := s.lastActive.Before(cutoff)
		s.mu.Unlock()
		if idle {
			stale = append(stale, id)
		}
	}
	l.mu.RUnlock()

	ended := 0
	for _, id := range stale {
		if _, err := l.EndSession(id); err == nil {
			ended++
		} else {
			slog.Warn("failed to end idle session", "session", id, "error", err)
		}
	}
	if ended > 0 {
		slog.Info("swept idle sessions", "count", ended)
	}
	return ended
}

// RunJanitor sweeps idle sessions on the given interval until the context
// is canceled.
func (l *Logger) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.SweepIdle(maxIdle)
		}
	}
}

// ReadSession loads a persisted session record by id, live or ended.
func (l *Logger) ReadSession(sessionID string) (*SessionRecord, error) {
	if !ValidSessionID(sessionID) {
		return nil, errors.Errorf("invalid session id %q", sessionID)
	}
	data, err := os.ReadFile(l.path(sessionID))
	if err != nil {
		return nil, errors.Wrap(err, "read session record")
	}
	var record SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.Wrap(err, "parse session record")
	}
	return &record, nil
}

// persist writes the complete record. Callers hold the session lock.
func (l *Logger) persist(record *SessionRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode session record")
	}
	if err := os.WriteFile(l.path(record.SessionID), data, 0o640); err != nil {
		return errors.Wrap(err, "write session record")
	}
	return nil
}

func (l *Logger) path(sessionID string) string {
	return filepath.Join(l.dir, "session_"+sessionID+".json")
}

func summarize(record *SessionRecord) *Summary {
	totalMessages := len(record.Messages)
	totalToolCalls := 0
	toolUsage := map[string]int{}
	for _, exchange := range record.Messages {
		totalToolCalls += exchange.ToolCallsCount
		for _, call := range exchange.ToolCalls {
			toolUsage[call.ToolName]++
		}
	}
	avg := 0.0
	if totalMessages > 0 {
		avg = float64(totalToolCalls) / float64(totalMessages)
	}
	return &Summary{
		SessionID:              record.SessionID,
		TotalMessages:          totalMessages,
		TotalToolCalls:         totalToolCalls,
		AvgToolCallsPerMessage: avg,
		ToolUsage:              toolUsage,
		CreatedAt:              record.CreatedAt,
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

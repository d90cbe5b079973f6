package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/partdesk/partdesk/agent"
	"github.com/partdesk/partdesk/plugin/auditlog"
	"github.com/partdesk/partdesk/store"
)

// ─────────────────────────────────────────────────────────────────────────────
// Request / Response types
// ─────────────────────────────────────────────────────────────────────────────

type historyTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Message string        `json:"message"`
	History []historyTurn `json:"history"`
}

type chatResponse struct {
	Reply     string `json:"reply"`
	ToolCalls int    `json:"tool_calls"`
	SessionID string `json:"session_id"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Route registration (called from v1.go)
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) registerChatRoutes(e *echo.Echo) {
	e.POST("/api/v1/chat", s.handleFallbackChat)

	g := e.Group("/api/v1/agent")
	g.POST("/sessions", s.createSession)
	g.GET("/sessions/:uid", s.getSession)
	g.GET("/sessions/:uid/summary", s.getSessionSummary)
	g.DELETE("/sessions/:uid", s.endSession)
	g.POST("/sessions/:uid/chat", s.handleChat)
}

// ─────────────────────────────────────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) createSession(c *echo.Context) error {
	id := s.Audit.CreateSession("")
	return c.JSON(http.StatusOK, sessionResponse{SessionID: id})
}

func (s *APIV1Service) getSession(c *echo.Context) error {
	record, err := s.Audit.ReadSession(c.Param("uid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, record)
}

func (s *APIV1Service) getSessionSummary(c *echo.Context) error {
	summary, ok := s.Audit.Summarize(c.Param("uid"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *APIV1Service) endSession(c *echo.Context) error {
	summary, err := s.Audit.EndSession(c.Param("uid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, summary)
}

// handleChat runs one user message through the agent and records the
// exchange under the session's audit log.
func (s *APIV1Service) handleChat(c *echo.Context) error {
	sessionID := c.Param("uid")
	if !auditlog.ValidSessionID(sessionID) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	history := make([]agent.Message, 0, len(req.History))
	for _, turn := range req.History {
		switch agent.Role(turn.Role) {
		case agent.RoleUser, agent.RoleAssistant:
			history = append(history, agent.Message{Role: agent.Role(turn.Role), Content: turn.Content})
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "history roles must be user or assistant")
		}
	}

	result := s.Agent.Run(c.Request().Context(), history, req.Message)

	if err := s.Audit.LogExchange(sessionID, req.Message, result.Answer, result.Messages, result.ToolCalls); err != nil {
		slog.Error("[CHAT] failed to persist session log", "session", sessionID, "error", err)
	}

	return c.JSON(http.StatusOK, chatResponse{
		Reply:     result.Answer,
		ToolCalls: result.ToolCalls,
		SessionID: sessionID,
	})
}

// handleFallbackChat is the sessionless chat endpoint. Without a configured
// model gateway it degrades to a plain keyword search over the catalog and
// returns part cards instead of an agent answer.
func (s *APIV1Service) handleFallbackChat(c *echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil || req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	if s.Profile.OpenRouterAPIKey == "" {
		parts, err := s.Store.SearchParts(c.Request().Context(), &store.FindPart{
			Search: &req.Message,
			Limit:  5,
		})
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]any{
			"reply": "The support agent is not configured. Here are catalog matches for your query.",
			"parts": parts,
		})
	}

	sessionID := s.Audit.CreateSession("")
	result := s.Agent.Run(c.Request().Context(), nil, req.Message)
	if err := s.Audit.LogExchange(sessionID, req.Message, result.Answer, result.Messages, result.ToolCalls); err != nil {
		slog.Error("[CHAT] failed to persist session log", "session", sessionID, "error", err)
	}
	return c.JSON(http.StatusOK, chatResponse{
		Reply:     result.Answer,
		ToolCalls: result.ToolCalls,
		SessionID: sessionID,
	})
}

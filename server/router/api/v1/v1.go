// Package v1 exposes the HTTP API.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/partdesk/partdesk/agent"
	"github.com/partdesk/partdesk/internal/profile"
	"github.com/partdesk/partdesk/plugin/auditlog"
	"github.com/partdesk/partdesk/store"
)

type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store
	Agent   *agent.Agent
	Audit   *auditlog.Logger
}

func NewAPIV1Service(p *profile.Profile, st *store.Store, ag *agent.Agent, audit *auditlog.Logger) *APIV1Service {
	return &APIV1Service{
		Profile: p,
		Store:   st,
		Agent:   ag,
		Audit:   audit,
	}
}

func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	e.GET("/", s.root)
	e.GET("/healthz", s.healthz)
	s.registerChatRoutes(e)
	s.registerPartRoutes(e)
}

func (s *APIV1Service) root(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"service": "partdesk",
		"status":  "running",
	})
}

func (s *APIV1Service) healthz(c *echo.Context) error {
	if err := s.Store.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

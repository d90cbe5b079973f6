// Package server wires the HTTP surface over the agent, store, and audit log.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/partdesk/partdesk/agent"
	"github.com/partdesk/partdesk/internal/profile"
	"github.com/partdesk/partdesk/plugin/auditlog"
	apiv1 "github.com/partdesk/partdesk/server/router/api/v1"
	"github.com/partdesk/partdesk/store"
)

type Server struct {
	echo    *echo.Echo
	profile *profile.Profile
	audit   *auditlog.Logger
	done    chan struct{}
}

func NewServer(p *profile.Profile, st *store.Store, ag *agent.Agent, audit *auditlog.Logger) *Server {
	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	apiv1.NewAPIV1Service(p, st, ag, audit).RegisterRoutes(e)

	return &Server{
		echo:    e,
		profile: p,
		audit:   audit,
		done:    make(chan struct{}),
	}
}

// Start serves until ctx is canceled. The audit janitor runs alongside and
// finalizes sessions idle longer than the profile's idle timeout.
func (s *Server) Start(ctx context.Context) error {
	go s.audit.RunJanitor(ctx, time.Minute, s.profile.SessionIdleTimeout)

	addr := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	slog.Info("[SERVER] listening", "addr", addr)
	defer close(s.done)
	// echo v5 shuts the server down gracefully when ctx is canceled.
	sc := echo.StartConfig{Address: addr}
	return sc.Start(ctx, s.echo)
}

// Shutdown waits for the graceful shutdown triggered by canceling the
// context passed to Start, or until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

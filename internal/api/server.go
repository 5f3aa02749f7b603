// Package api provides the mesh hub's HTTP and WebSocket surface: agent
// registration/search (C1/C4), A2A messaging (C7), contract lifecycle (C6),
// orchestrator runs (C9), federation inbox (C8), and live presence streams
// (C3) — all on top of an Echo v5 router.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/meshhub/hub/internal/a2a"
	"github.com/meshhub/hub/internal/contract"
	"github.com/meshhub/hub/internal/federation"
	"github.com/meshhub/hub/internal/orchestrator"
	"github.com/meshhub/hub/internal/presence"
	"github.com/meshhub/hub/internal/store"
	"github.com/meshhub/hub/pkg/database"
	"github.com/meshhub/hub/pkg/version"
)

// Server is the mesh hub's HTTP API server.
type Server struct {
	echo *echo.Echo

	httpServer *http.Server

	dbClient     *database.Client
	store        *store.Store
	presence     *presence.Registry
	a2aRouter    *a2a.Router
	contracts    *contract.Engine
	orchestrator *orchestrator.Engine
	federation   *federation.Bridge

	logger *slog.Logger
}

// NewServer creates a new API server with Echo v5 and registers every route.
// Any service dependency may be nil; the corresponding routes then return
// 503 rather than panicking, so a partially-wired deployment (e.g. no
// federation configured) still serves its other endpoints. Per-identity
// rate limiting (C2) is enforced inside the a2a.Router itself, not at this
// HTTP layer.
func NewServer(
	dbClient *database.Client,
	st *store.Store,
	pres *presence.Registry,
	router *a2a.Router,
	contracts *contract.Engine,
	orch *orchestrator.Engine,
	fed *federation.Bridge,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	e := echo.New()
	s := &Server{
		echo:         e,
		dbClient:     dbClient,
		store:        st,
		presence:     pres,
		a2aRouter:    router,
		contracts:    contracts,
		orchestrator: orch,
		federation:   fed,
		logger:       logger,
	}
	s.setupRoutes()
	return s
}

// setupRoutes registers every route. Static paths are registered before
// :id-param routes on the same prefix so Echo's router doesn't try to match
// a literal segment against a param.
func (s *Server) setupRoutes() {
	s.echo.Use(securityHeaders())
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))

	s.echo.GET("/health", s.healthHandler)

	v1 := s.echo.Group("/api/v1")

	v1.POST("/agents", s.registerAgentHandler)
	v1.GET("/agents", s.searchAgentsHandler)
	v1.GET("/agents/:id", s.getAgentHandler)

	v1.POST("/a2a/messages", s.sendMessageHandler)
	v1.POST("/a2a/messages/:id/ack", s.ackMessageHandler)
	v1.GET("/a2a/inbox", s.inboxHandler)

	v1.POST("/contracts", s.createContractHandler)
	v1.GET("/contracts/:id", s.getContractHandler)
	v1.POST("/contracts/:id/bids", s.createBidHandler)
	v1.POST("/contracts/:id/deliver", s.deliverContractHandler)
	v1.POST("/contracts/:id/validate", s.validateContractHandler)

	v1.POST("/orchestrator/plans", s.createPlanHandler)
	v1.GET("/orchestrator/plans/:id", s.getPlanHandler)

	fed := s.echo.Group("/federation")
	fed.GET("/health", s.federationHealthHandler)
	fed.POST("/inbox", s.federationInboxHandler)

	ws := s.echo.Group("/ws")
	ws.GET("/agent/:id", s.wsAgentHandler)
	ws.GET("/task/:id", s.wsTaskHandler)
	ws.GET("/user/:id", s.wsUserHandler)
}

// Start starts the HTTP server on the given address (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener. Used
// by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string                 `json:"status"`
	Version  string                 `json:"version"`
	Database *database.HealthStatus `json:"database,omitempty"`
}

func (s *Server) healthHandler(c *echo.Context) error {
	if s.dbClient == nil {
		return c.JSON(http.StatusServiceUnavailable, &HealthResponse{Status: "unhealthy", Version: version.Full()})
	}
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	dbHealth, err := database.Health(reqCtx, s.dbClient.DB())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, &HealthResponse{Status: "unhealthy", Version: version.Full(), Database: dbHealth})
	}
	return c.JSON(http.StatusOK, &HealthResponse{Status: "healthy", Version: version.Full(), Database: dbHealth})
}

func (s *Server) federationHealthHandler(c *echo.Context) error {
	if s.federation == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "federation not configured")
	}
	return c.JSON(http.StatusOK, &HealthResponse{Status: "healthy"})
}

func requireService(ok bool, name string) error {
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, fmt.Sprintf("%s not available", name))
	}
	return nil
}

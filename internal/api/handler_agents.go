package api

import (
	"net/http"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v5"
	"github.com/google/uuid"

	"github.com/meshhub/hub/ent"
	"github.com/meshhub/hub/ent/agent"
	"github.com/meshhub/hub/internal/store"
)

// registerAgentHandler handles POST /api/v1/agents (C1).
func (s *Server) registerAgentHandler(c *echo.Context) error {
	if err := requireService(s.store != nil, "store"); err != nil {
		return err
	}

	var req RegisterAgentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	caller := extractCaller(c)
	a, err := s.store.UpsertAgent(c.Request().Context(), store.UpsertAgentParams{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Description:  req.Description,
		Endpoint:     req.Endpoint,
		Capabilities: req.Capabilities,
		Category:     req.Category,
		Status:       agent.StatusPendingReview,
		CreatorID:    &caller.CallerID,
		OrgID:        caller.CallerOrgID,
		IsPublic:     req.IsPublic,
		IsFree:       req.IsFree,
	})
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, toAgentResponse(a))
}

// searchAgentsHandler handles GET /api/v1/agents (C1 search).
func (s *Server) searchAgentsHandler(c *echo.Context) error {
	if err := requireService(s.store != nil, "store"); err != nil {
		return err
	}

	query := c.QueryParam("q")
	category := c.QueryParam("category")
	var caps []string
	if raw := c.QueryParam("capabilities"); raw != "" {
		caps = strings.Split(raw, ",")
	}
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	agents, err := s.store.SearchAgents(c.Request().Context(), query, caps, category, limit)
	if err != nil {
		return mapServiceError(err)
	}
	out := make([]AgentResponse, 0, len(agents))
	for _, a := range agents {
		out = append(out, toAgentResponse(a))
	}
	return c.JSON(http.StatusOK, out)
}

// getAgentHandler handles GET /api/v1/agents/:id.
func (s *Server) getAgentHandler(c *echo.Context) error {
	if err := requireService(s.store != nil, "store"); err != nil {
		return err
	}
	a, err := s.store.GetAgent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, toAgentResponse(a))
}

func toAgentResponse(a *ent.Agent) AgentResponse {
	return AgentResponse{
		ID:              a.ID,
		Name:            a.Name,
		Description:     a.Description,
		Endpoint:        a.Endpoint,
		Capabilities:    a.Capabilities,
		Category:        a.Category,
		Status:          string(a.Status),
		TrustScore:      a.TrustScore,
		IsPublic:        a.IsPublic,
		IsFree:          a.IsFree,
		TotalCalls:      a.TotalCalls,
		SuccessfulCalls: a.SuccessfulCalls,
		CreatedAt:       a.CreatedAt,
	}
}

package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/meshhub/hub/ent/a2amessage"
	"github.com/meshhub/hub/internal/a2a"
)

// sendMessageHandler handles POST /api/v1/a2a/messages (C7).
func (s *Server) sendMessageHandler(c *echo.Context) error {
	if err := requireService(s.a2aRouter != nil, "a2a router"); err != nil {
		return err
	}

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.FromAgentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "from_agent_id is required")
	}
	if req.ToAgentID == nil && req.ToAddress == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "to_agent_id or to_address is required")
	}

	caller := extractCaller(c)
	result, err := s.a2aRouter.Send(c.Request().Context(), a2a.SendRequest{
		CallerID:         caller.CallerID,
		CallerOrgID:      caller.CallerOrgID,
		APIKeyID:         caller.APIKeyID,
		FromAgentID:      req.FromAgentID,
		ToAgentID:        req.ToAgentID,
		ToAddress:        req.ToAddress,
		MessageType:      a2amessage.MessageType(req.MessageType),
		Content:          req.Content,
		RequiresResponse: req.RequiresResponse,
		IdempotencyKey:   req.IdempotencyKey,
		ConversationID:   req.ConversationID,
	})
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusAccepted, &SendMessageResponse{
		MessageID:      result.MessageID,
		Status:         result.Status,
		ConversationID: result.ConversationID,
	})
}

// ackMessageHandler handles POST /api/v1/a2a/messages/:id/ack.
func (s *Server) ackMessageHandler(c *echo.Context) error {
	if err := requireService(s.a2aRouter != nil, "a2a router"); err != nil {
		return err
	}
	agentID := c.QueryParam("agent_id")
	if agentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "agent_id query parameter is required")
	}
	if err := s.a2aRouter.Ack(c.Request().Context(), c.Param("id"), agentID); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// inboxHandler handles GET /api/v1/a2a/inbox?agent_id=...
func (s *Server) inboxHandler(c *echo.Context) error {
	if err := requireService(s.a2aRouter != nil, "a2a router"); err != nil {
		return err
	}
	agentID := c.QueryParam("agent_id")
	if agentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "agent_id query parameter is required")
	}
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	entries, err := s.a2aRouter.Inbox(c.Request().Context(), agentID, limit)
	if err != nil {
		return mapServiceError(err)
	}
	out := make([]InboxEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, InboxEntryResponse{
			MessageID:      e.Message.ID,
			ConversationID: e.Message.ConversationID,
			FromAgentID:    e.Message.FromAgentID,
			MessageType:    string(e.Message.MessageType),
			Content:        e.Message.Content,
			Delivered:      e.Receipt.DeliveredAt != nil,
			Acked:          e.Receipt.AckedAt != nil,
			CreatedAt:      e.Message.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}

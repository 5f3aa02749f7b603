package api

import (
	"io"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/meshhub/hub/internal/federation"
)

// federationInboxHandler handles POST /federation/inbox (C8).
func (s *Server) federationInboxHandler(c *echo.Context) error {
	if err := requireService(s.federation != nil, "federation bridge"); err != nil {
		return err
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read body")
	}
	sig := c.Request().Header.Get("X-Hub-Signature-256")

	result, err := s.federation.HandleInbound(c.Request().Context(), body, sig)
	if err != nil {
		if federation.IsSignatureInvalid(err) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
		}
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &FederationInboxResponse{
		Status:         result.Status,
		Delivered:      result.Delivered,
		ConversationID: result.ConversationID,
		MessageID:      result.MessageID,
	})
}

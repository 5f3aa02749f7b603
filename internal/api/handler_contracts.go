package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/google/uuid"

	"github.com/meshhub/hub/ent"
	"github.com/meshhub/hub/internal/store"
)

// createContractHandler handles POST /api/v1/contracts (C6).
func (s *Server) createContractHandler(c *echo.Context) error {
	if err := requireService(s.store != nil, "store"); err != nil {
		return err
	}

	var req CreateContractRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Intent == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "intent is required")
	}
	if req.AwardStrategy == "" {
		req.AwardStrategy = "reputation_weighted"
	}

	var expiresAt *time.Time
	if req.ExpiresInSec != nil {
		t := time.Now().Add(time.Duration(*req.ExpiresInSec) * time.Second)
		expiresAt = &t
	}

	caller := extractCaller(c)
	ct, err := s.store.CreateContract(c.Request().Context(), store.CreateContractParams{
		ID:            uuid.NewString(),
		Issuer:        caller.CallerID,
		Intent:        req.Intent,
		Context:       req.Context,
		RewardAmount:  req.RewardAmount,
		AwardStrategy: req.AwardStrategy,
		ExpiresAt:     expiresAt,
	})
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, toContractResponse(ct))
}

// getContractHandler handles GET /api/v1/contracts/:id.
func (s *Server) getContractHandler(c *echo.Context) error {
	if err := requireService(s.store != nil, "store"); err != nil {
		return err
	}
	ct, err := s.store.GetContract(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, toContractResponse(ct))
}

// createBidHandler handles POST /api/v1/contracts/:id/bids.
func (s *Server) createBidHandler(c *echo.Context) error {
	if err := requireService(s.store != nil, "store"); err != nil {
		return err
	}
	var req CreateBidRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.AgentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "agent_id is required")
	}

	bid, err := s.store.CreateBid(c.Request().Context(), uuid.NewString(), c.Param("id"), req.AgentID, req.Price, req.ETASeconds, req.Confidence)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, bid)
}

// deliverContractHandler handles POST /api/v1/contracts/:id/deliver.
func (s *Server) deliverContractHandler(c *echo.Context) error {
	if err := requireService(s.contracts != nil, "contract engine"); err != nil {
		return err
	}
	var req DeliverRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.AgentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "agent_id is required")
	}

	delivery, err := s.contracts.Deliver(c.Request().Context(), c.Param("id"), req.AgentID, req.Data)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, delivery)
}

// validateContractHandler handles POST /api/v1/contracts/:id/validate.
func (s *Server) validateContractHandler(c *echo.Context) error {
	if err := requireService(s.contracts != nil, "contract engine"); err != nil {
		return err
	}
	var req ValidateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := s.contracts.Validate(c.Request().Context(), c.Param("id"), req.Score); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func toContractResponse(ct *ent.Contract) ContractResponse {
	return ContractResponse{
		ID:            ct.ID,
		Issuer:        ct.Issuer,
		Intent:        ct.Intent,
		RewardAmount:  ct.RewardAmount,
		Status:        string(ct.Status),
		AwardedTo:     ct.AwardedTo,
		AwardStrategy: ct.AwardStrategy,
		CreatedAt:     ct.CreatedAt,
		AwardedAt:     ct.AwardedAt,
		CompletedAt:   ct.CompletedAt,
	}
}

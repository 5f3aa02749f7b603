package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// createPlanHandler handles POST /api/v1/orchestrator/plans (C9).
func (s *Server) createPlanHandler(c *echo.Context) error {
	if err := requireService(s.orchestrator != nil, "orchestrator"); err != nil {
		return err
	}

	var req CreatePlanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	userID := req.UserID
	if userID == "" {
		userID = extractCaller(c).CallerID
	}

	result, err := s.orchestrator.Run(c.Request().Context(), userID, req.Query)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, &PlanResponse{
		PlanID:     result.PlanID,
		Pattern:    string(result.Pattern),
		Output:     result.Output,
		Confidence: result.Confidence,
	})
}

// getPlanHandler handles GET /api/v1/orchestrator/plans/:id.
func (s *Server) getPlanHandler(c *echo.Context) error {
	if err := requireService(s.store != nil, "store"); err != nil {
		return err
	}

	plan, err := s.store.GetPlan(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	steps, err := s.store.ListPlanSteps(c.Request().Context(), plan.ID)
	if err != nil {
		return mapServiceError(err)
	}

	out := PlanDetailResponse{
		ID:         plan.ID,
		UserID:     plan.UserID,
		Query:      plan.Query,
		Pattern:    string(plan.Pattern),
		Status:     string(plan.Status),
		Confidence: plan.Confidence,
		Steps:      make([]PlanStepResponse, 0, len(steps)),
	}
	for _, st := range steps {
		out.Steps = append(out.Steps, PlanStepResponse{
			ID:         st.ID,
			NodeID:     st.NodeID,
			Level:      st.Level,
			AgentID:    st.AgentID,
			Status:     string(st.Status),
			Confidence: st.Confidence,
		})
	}
	return c.JSON(http.StatusOK, out)
}

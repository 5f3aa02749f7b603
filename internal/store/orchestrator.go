package store

import (
	"context"
	"fmt"
	"time"

	"github.com/meshhub/hub/ent"
	"github.com/meshhub/hub/ent/agent"
	"github.com/meshhub/hub/ent/collaborationstep"
	"github.com/meshhub/hub/ent/orchestrationplan"
	"github.com/meshhub/hub/internal/apperr"
)

// CreatePlanParams describes a newly decomposed orchestration run.
type CreatePlanParams struct {
	ID         string
	UserID     string
	Query      string
	Pattern    orchestrationplan.Pattern
	Complexity float64
}

// CreatePlan persists a plan in the "planning" status (spec §4.9 step 8).
func (s *Store) CreatePlan(ctx context.Context, p CreatePlanParams) (*ent.OrchestrationPlan, error) {
	plan, err := s.client.OrchestrationPlan.Create().
		SetID(p.ID).
		SetUserID(p.UserID).
		SetQuery(p.Query).
		SetPattern(p.Pattern).
		SetComplexity(p.Complexity).
		SetStatus(orchestrationplan.StatusPlanning).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("create orchestration plan: %w", err)
	}
	return plan, nil
}

// GetPlan fetches a plan by id.
func (s *Store) GetPlan(ctx context.Context, id string) (*ent.OrchestrationPlan, error) {
	plan, err := s.client.OrchestrationPlan.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("get orchestration plan %s: %w", id, err)
	}
	return plan, nil
}

// UpdatePlanStatus moves a plan between planning/running/completed/failed.
func (s *Store) UpdatePlanStatus(ctx context.Context, id string, status orchestrationplan.Status) error {
	update := s.client.OrchestrationPlan.UpdateOneID(id).SetStatus(status)
	if status == orchestrationplan.StatusCompleted || status == orchestrationplan.StatusFailed {
		update = update.SetCompletedAt(time.Now())
	}
	if err := update.Exec(ctx); err != nil {
		if ent.IsNotFound(err) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("update plan status %s: %w", id, err)
	}
	return nil
}

// CompletePlan stamps the synthesized result and overall confidence, and
// moves the plan to "completed" (spec §4.9 step 8).
func (s *Store) CompletePlan(ctx context.Context, id string, result map[string]interface{}, confidence *float64) error {
	update := s.client.OrchestrationPlan.UpdateOneID(id).
		SetStatus(orchestrationplan.StatusCompleted).
		SetResult(result).
		SetCompletedAt(time.Now())
	if confidence != nil {
		update = update.SetConfidence(*confidence)
	}
	if err := update.Exec(ctx); err != nil {
		if ent.IsNotFound(err) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("complete plan %s: %w", id, err)
	}
	return nil
}

// CreateStepParams describes a single DAG node before it runs.
type CreateStepParams struct {
	ID                   string
	PlanID               string
	NodeID               string
	Level                int
	RequiredCapabilities []string
}

// CreateStep persists a DAG node in the "pending" status.
func (s *Store) CreateStep(ctx context.Context, p CreateStepParams) (*ent.CollaborationStep, error) {
	step, err := s.client.CollaborationStep.Create().
		SetID(p.ID).
		SetPlanID(p.PlanID).
		SetNodeID(p.NodeID).
		SetLevel(p.Level).
		SetRequiredCapabilities(p.RequiredCapabilities).
		SetStatus(collaborationstep.StatusPending).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("create collaboration step: %w", err)
	}
	return step, nil
}

// ListPlanSteps returns every step of a plan, ordered by level then node id.
func (s *Store) ListPlanSteps(ctx context.Context, planID string) ([]*ent.CollaborationStep, error) {
	steps, err := s.client.CollaborationStep.Query().
		Where(collaborationstep.PlanIDEQ(planID)).
		Order(ent.Asc(collaborationstep.FieldLevel), ent.Asc(collaborationstep.FieldNodeID)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list steps for plan %s: %w", planID, err)
	}
	return steps, nil
}

// StartStep marks a node as dispatched to its assigned agent.
func (s *Store) StartStep(ctx context.Context, id string, agentID string) error {
	err := s.client.CollaborationStep.UpdateOneID(id).
		SetAgentID(agentID).
		SetStatus(collaborationstep.StatusRunning).
		Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("start step %s: %w", id, err)
	}
	return nil
}

// CompleteStep stamps a node's output and confidence on success, or marks it
// failed when ok is false.
func (s *Store) CompleteStep(ctx context.Context, id string, ok bool, output map[string]interface{}, confidence *float64) error {
	status := collaborationstep.StatusCompleted
	if !ok {
		status = collaborationstep.StatusFailed
	}
	update := s.client.CollaborationStep.UpdateOneID(id).
		SetStatus(status).
		SetCompletedAt(time.Now())
	if output != nil {
		update = update.SetOutput(output)
	}
	if confidence != nil {
		update = update.SetConfidence(*confidence)
	}
	if err := update.Exec(ctx); err != nil {
		if ent.IsNotFound(err) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("complete step %s: %w", id, err)
	}
	return nil
}

// ListActiveAgents returns every active agent, used by the orchestrator's
// agent selector to score candidates (spec §4.9 step 5).
func (s *Store) ListActiveAgents(ctx context.Context, limit int) ([]*ent.Agent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	agents, err := s.client.Agent.Query().
		Where(agent.StatusEQ(agent.StatusActive)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active agents: %w", err)
	}
	return agents, nil
}

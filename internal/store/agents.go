package store

import (
	"context"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/meshhub/hub/ent"
	"github.com/meshhub/hub/ent/agent"
	"github.com/meshhub/hub/ent/predicate"
	"github.com/meshhub/hub/internal/apperr"
)

// UpsertAgentParams describes a registration or federation-stub upsert.
type UpsertAgentParams struct {
	ID           string
	Name         string
	Description  string
	Endpoint     string
	Capabilities []string
	Category     string
	Status       agent.Status
	CreatorID    *string
	OrgID        *string
	IsPublic     bool
	IsFree       bool
}

// UpsertAgent creates an agent by name, or returns the existing row
// unchanged if one already exists. Used both for normal registration and
// for federation stub mirroring (spec §4.8 step 4), where "already exists"
// is the common case on repeat inbound traffic.
func (s *Store) UpsertAgent(ctx context.Context, p UpsertAgentParams) (*ent.Agent, error) {
	existing, err := s.FindAgentByName(ctx, p.Name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	create := s.client.Agent.Create().
		SetID(p.ID).
		SetName(p.Name).
		SetDescription(p.Description).
		SetEndpoint(p.Endpoint).
		SetCapabilities(p.Capabilities).
		SetCategory(p.Category).
		SetStatus(p.Status).
		SetIsPublic(p.IsPublic).
		SetIsFree(p.IsFree)
	if p.CreatorID != nil {
		create = create.SetCreatorID(*p.CreatorID)
	}
	if p.OrgID != nil {
		create = create.SetOrgID(*p.OrgID)
	}

	created, err := create.Save(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			// Lost the race against a concurrent upsert of the same name.
			return s.FindAgentByName(ctx, p.Name)
		}
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return created, nil
}

// GetAgent fetches an agent by id.
func (s *Store) GetAgent(ctx context.Context, id string) (*ent.Agent, error) {
	a, err := s.client.Agent.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("get agent %s: %w", id, err)
	}
	return a, nil
}

// FindAgentByName fetches an agent by its globally unique name
// ("name" locally, "name@domain" for federated identities).
func (s *Store) FindAgentByName(ctx context.Context, name string) (*ent.Agent, error) {
	a, err := s.client.Agent.Query().Where(agent.NameEQ(name)).Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("find agent by name %s: %w", name, err)
	}
	return a, nil
}

// SearchAgents filters agents by a case-insensitive substring match on name
// and description, optionally by capability tags and category, and orders
// the result by trust score, highest first. No
// vector-similarity extension is assumed present (spec_full §4 C1 note);
// a pgvector-backed path is a documented non-goal extension point.
func (s *Store) SearchAgents(ctx context.Context, query string, caps []string, category string, limit int) ([]*ent.Agent, error) {
	q := s.client.Agent.Query()

	if query != "" {
		q = q.Where(agent.Or(
			agent.NameContainsFold(query),
			agent.DescriptionContainsFold(query),
		))
	}
	if category != "" {
		q = q.Where(agent.CategoryEQ(category))
	}
	if len(caps) > 0 {
		// Ent has no built-in "array overlaps" predicate; filter with a raw
		// SQL predicate over the GIN-indexed capabilities column.
		q = q.Where(capabilitiesOverlap(caps))
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	agents, err := q.Order(ent.Desc(agent.FieldTrustScore)).Limit(limit).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("search agents: %w", err)
	}
	return agents, nil
}

// UpdateAgentStatus transitions an agent's moderation status (admin/owner action).
func (s *Store) UpdateAgentStatus(ctx context.Context, id string, status agent.Status) error {
	err := s.client.Agent.UpdateOneID(id).SetStatus(status).Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("update agent status %s: %w", id, err)
	}
	return nil
}

// RecordCallOutcome bumps an agent's rolling call counters for one call
// outcome. Neither the A2A router nor the contract engine calls it, so
// message and contract traffic do not move these counters.
func (s *Store) RecordCallOutcome(ctx context.Context, id string, success bool, duration float64) error {
	update := s.client.Agent.UpdateOneID(id).AddTotalCalls(1)
	if success {
		update = update.AddSuccessfulCalls(1)
	} else {
		update = update.AddFailedCalls(1)
	}
	if err := update.Exec(ctx); err != nil {
		if ent.IsNotFound(err) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("record call outcome %s: %w", id, err)
	}
	return nil
}

// capabilitiesOverlap builds a raw "&&" (array overlap) predicate against
// the capabilities column, since ent has no typed predicate for it.
func capabilitiesOverlap(caps []string) predicate.Agent {
	return predicate.Agent(func(s *entsql.Selector) {
		s.Where(entsql.P(func(b *entsql.Builder) {
			b.Ident(s.C(agent.FieldCapabilities))
			b.WriteString(" && ")
			b.Arg(caps)
		}))
	})
}

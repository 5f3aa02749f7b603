package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/meshhub/hub/ent"
	"github.com/meshhub/hub/ent/a2aagentallow"
	"github.com/meshhub/hub/ent/a2aorgallow"
	"github.com/meshhub/hub/internal/apperr"
)

// FindOrgAllow looks up a directed org-level ACL rule, if one exists.
func (s *Store) FindOrgAllow(ctx context.Context, sourceOrgID, targetOrgID string) (*ent.A2AOrgAllow, error) {
	rule, err := s.client.A2AOrgAllow.Query().
		Where(
			a2aorgallow.SourceOrgIDEQ(sourceOrgID),
			a2aorgallow.TargetOrgIDEQ(targetOrgID),
		).Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("find org allow %s->%s: %w", sourceOrgID, targetOrgID, err)
	}
	return rule, nil
}

// FindAgentAllow looks up a directed agent-level ACL rule, if one exists.
func (s *Store) FindAgentAllow(ctx context.Context, sourceAgentID, targetAgentID string) (*ent.A2AAgentAllow, error) {
	rule, err := s.client.A2AAgentAllow.Query().
		Where(
			a2aagentallow.SourceAgentIDEQ(sourceAgentID),
			a2aagentallow.TargetAgentIDEQ(targetAgentID),
		).Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("find agent allow %s->%s: %w", sourceAgentID, targetAgentID, err)
	}
	return rule, nil
}

// UpsertOrgAllow creates or overwrites the directed (source_org, target_org) rule.
// Invariant: at most one row per directed pair (spec §3).
func (s *Store) UpsertOrgAllow(ctx context.Context, id, sourceOrgID, targetOrgID string, allowed bool) (*ent.A2AOrgAllow, error) {
	existing, err := s.FindOrgAllow(ctx, sourceOrgID, targetOrgID)
	if err == nil {
		updated, uErr := existing.Update().SetAllowed(allowed).Save(ctx)
		if uErr != nil {
			return nil, fmt.Errorf("update org allow: %w", uErr)
		}
		return updated, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	rule, err := s.client.A2AOrgAllow.Create().
		SetID(id).
		SetSourceOrgID(sourceOrgID).
		SetTargetOrgID(targetOrgID).
		SetAllowed(allowed).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("create org allow: %w", err)
	}
	return rule, nil
}

// UpsertAgentAllow creates or overwrites the directed (source_agent, target_agent) rule.
func (s *Store) UpsertAgentAllow(ctx context.Context, id, sourceAgentID, targetAgentID string, allowed bool) (*ent.A2AAgentAllow, error) {
	existing, err := s.FindAgentAllow(ctx, sourceAgentID, targetAgentID)
	if err == nil {
		updated, uErr := existing.Update().SetAllowed(allowed).Save(ctx)
		if uErr != nil {
			return nil, fmt.Errorf("update agent allow: %w", uErr)
		}
		return updated, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	rule, err := s.client.A2AAgentAllow.Create().
		SetID(id).
		SetSourceAgentID(sourceAgentID).
		SetTargetAgentID(targetAgentID).
		SetAllowed(allowed).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("create agent allow: %w", err)
	}
	return rule, nil
}

// RecordPolicyDecision writes a best-effort observability row for a
// federation-inbound ACL evaluation (spec §9 — write-only, never consulted
// on the hot path).
func (s *Store) RecordPolicyDecision(ctx context.Context, id, sourceID, targetID string, allowed bool, reason string) error {
	_, err := s.client.A2APolicyCache.Create().
		SetID(id).
		SetSourceID(sourceID).
		SetTargetID(targetID).
		SetAllowed(allowed).
		SetReason(reason).
		Save(ctx)
	if err != nil {
		return fmt.Errorf("record policy decision: %w", err)
	}
	return nil
}

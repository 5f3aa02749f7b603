// Package acl implements the mesh hub's ACL evaluator (C4): a pure
// precedence check over agent- and org-level allow rules, with no caching
// on the hot path — A2APolicyCache (spec §3) is write-only observability,
// never consulted here.
package acl

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/meshhub/hub/ent"
	"github.com/meshhub/hub/ent/agent"
	"github.com/meshhub/hub/internal/apperr"
)

// RuleLookup is the subset of internal/store.Store the evaluator depends
// on, kept as an interface so it can be exercised with a fake in tests
// without a live database.
type RuleLookup interface {
	FindAgentAllow(ctx context.Context, sourceAgentID, targetAgentID string) (*ent.A2AAgentAllow, error)
	FindOrgAllow(ctx context.Context, sourceOrgID, targetOrgID string) (*ent.A2AOrgAllow, error)
	RecordPolicyDecision(ctx context.Context, id, sourceID, targetID string, allowed bool, reason string) error
}

// Evaluator checks A2A send permission between two agents.
type Evaluator struct {
	store RuleLookup
}

// New wraps a rule lookup (normally *store.Store) for ACL rule lookups.
func New(s RuleLookup) *Evaluator {
	return &Evaluator{store: s}
}

// Decision is the outcome of a single Check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Check applies the precedence chain from spec §4.4 to a (source, target)
// agent pair.
func (e *Evaluator) Check(ctx context.Context, source, target *ent.Agent) (Decision, error) {
	// 1. Either party inactive → deny.
	if source.Status != agent.StatusActive || target.Status != agent.StatusActive {
		return Decision{Allowed: false, Reason: "source or target is not active"}, nil
	}

	// 2. Explicit agent-level rule wins outright.
	agentRule, err := e.store.FindAgentAllow(ctx, source.ID, target.ID)
	if err == nil {
		reason := "denied by agent rule"
		if agentRule.Allowed {
			reason = "allowed by agent rule"
		}
		return Decision{Allowed: agentRule.Allowed, Reason: reason}, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return Decision{}, fmt.Errorf("lookup agent allow rule: %w", err)
	}

	// 3. Org-level rule, only when both parties belong to an org.
	if source.OrgID != nil && target.OrgID != nil {
		orgRule, err := e.store.FindOrgAllow(ctx, *source.OrgID, *target.OrgID)
		if err == nil {
			reason := "denied by org rule"
			if orgRule.Allowed {
				reason = "allowed by org rule"
			}
			return Decision{Allowed: orgRule.Allowed, Reason: reason}, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return Decision{}, fmt.Errorf("lookup org allow rule: %w", err)
		}
	}

	// 4. Same org, no explicit rule → allow.
	if source.OrgID != nil && target.OrgID != nil && *source.OrgID == *target.OrgID {
		return Decision{Allowed: true, Reason: "same organization"}, nil
	}

	// 5. Public target → allow.
	if target.IsPublic {
		return Decision{Allowed: true, Reason: "target is public"}, nil
	}

	// 6. Default deny.
	return Decision{Allowed: false, Reason: "No permission rules allow this access"}, nil
}

// CheckBulk evaluates source against every target, pre-fetching nothing
// itself — callers pass already-loaded target agents so the batched read
// happens once, in the caller's store round-trip (spec §4.4).
func (e *Evaluator) CheckBulk(ctx context.Context, source *ent.Agent, targets []*ent.Agent) (map[string]Decision, error) {
	results := make(map[string]Decision, len(targets))
	for _, target := range targets {
		decision, err := e.Check(ctx, source, target)
		if err != nil {
			return nil, fmt.Errorf("check target %s: %w", target.ID, err)
		}
		results[target.ID] = decision
	}
	return results, nil
}

// CheckFederationInbound runs the same precedence against a federation stub
// source agent and records the outcome into A2APolicyCache on a best-effort
// basis (spec §4.4, §9) — a recording failure never changes the decision.
func (e *Evaluator) CheckFederationInbound(ctx context.Context, source, target *ent.Agent) (Decision, error) {
	decision, err := e.Check(ctx, source, target)
	if err != nil {
		return Decision{}, err
	}

	if recErr := e.store.RecordPolicyDecision(ctx, uuid.NewString(), source.ID, target.ID, decision.Allowed, decision.Reason); recErr != nil {
		// Observability only; never fail the request over this.
		_ = recErr
	}
	return decision, nil
}

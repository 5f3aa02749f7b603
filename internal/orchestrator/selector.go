package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"github.com/meshhub/hub/ent"
)

// AgentStore is the subset of internal/store.Store the selector needs.
type AgentStore interface {
	ListActiveAgents(ctx context.Context, limit int) ([]*ent.Agent, error)
}

// Selector scores and ranks agents for a sub-task (spec §4.9 step 5).
type Selector struct {
	store AgentStore
}

// NewSelector builds an agent selector over a narrow agent lookup.
func NewSelector(s AgentStore) *Selector {
	return &Selector{store: s}
}

// SelectTopK returns the k highest-scoring active agents for the given
// required capabilities, highest score first.
func (s *Selector) SelectTopK(ctx context.Context, requiredCapabilities []string, k int) ([]*ent.Agent, error) {
	agents, err := s.store.ListActiveAgents(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list active agents: %w", err)
	}
	if len(agents) == 0 {
		return nil, nil
	}

	type scored struct {
		agent *ent.Agent
		score float64
	}
	ranked := make([]scored, 0, len(agents))
	for _, a := range agents {
		ranked = append(ranked, scored{agent: a, score: scoreAgent(a, requiredCapabilities)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if k <= 0 || k > len(ranked) {
		k = len(ranked)
	}
	top := make([]*ent.Agent, 0, k)
	for i := 0; i < k; i++ {
		top = append(top, ranked[i].agent)
	}
	return top, nil
}

// scoreAgent weighs capability match, trust score, success rate, and cost
// efficiency (spec §4.9 step 5: 0.4/0.3/0.2/0.1). Cost efficiency has no
// per-request price field on Agent in this schema (spec §3 models pricing
// per-bid on contracts, not per-agent); free agents score 1.0 and priced
// agents a flat 0.3, a documented simplification of the original's
// 1/(cost_per_request+0.01) formula.
func scoreAgent(a *ent.Agent, requiredCapabilities []string) float64 {
	capabilityMatch := overlapFraction(a.Capabilities, requiredCapabilities)

	successRate := 0.5
	if a.TotalCalls > 0 {
		successRate = float64(a.SuccessfulCalls) / float64(a.TotalCalls)
	}

	costEfficiency := 0.3
	if a.IsFree {
		costEfficiency = 1.0
	}

	return capabilityMatch*0.4 + a.TrustScore*0.3 + successRate*0.2 + costEfficiency*0.1
}

func overlapFraction(have, want []string) float64 {
	if len(want) == 0 {
		return 1.0
	}
	haveSet := make(map[string]bool, len(have))
	for _, c := range have {
		haveSet[c] = true
	}
	matches := 0
	for _, c := range want {
		if haveSet[c] {
			matches++
		}
	}
	return float64(matches) / float64(len(want))
}

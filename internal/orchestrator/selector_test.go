package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshhub/hub/ent"
)

type fakeAgentStore struct {
	agents []*ent.Agent
}

func (f *fakeAgentStore) ListActiveAgents(ctx context.Context, limit int) ([]*ent.Agent, error) {
	return f.agents, nil
}

func TestSelector_SelectTopK_OrdersByScore(t *testing.T) {
	store := &fakeAgentStore{agents: []*ent.Agent{
		{ID: "low", Name: "low", Capabilities: []string{"search"}, TrustScore: 0.1, IsFree: false},
		{ID: "high", Name: "high", Capabilities: []string{"search"}, TrustScore: 0.9, IsFree: true, TotalCalls: 10, SuccessfulCalls: 10},
		{ID: "mid", Name: "mid", Capabilities: []string{"search"}, TrustScore: 0.5, IsFree: false, TotalCalls: 10, SuccessfulCalls: 5},
	}}
	sel := NewSelector(store)

	top, err := sel.SelectTopK(context.Background(), []string{"search"}, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "high", top[0].ID)
}

func TestSelector_SelectTopK_ClampsKToAvailable(t *testing.T) {
	store := &fakeAgentStore{agents: []*ent.Agent{
		{ID: "only", Name: "only", Capabilities: []string{"general"}},
	}}
	sel := NewSelector(store)

	top, err := sel.SelectTopK(context.Background(), []string{"general"}, 5)
	require.NoError(t, err)
	require.Len(t, top, 1)
}

func TestSelector_SelectTopK_NoAgentsReturnsEmpty(t *testing.T) {
	sel := NewSelector(&fakeAgentStore{})
	top, err := sel.SelectTopK(context.Background(), []string{"search"}, 3)
	require.NoError(t, err)
	require.Empty(t, top)
}

func TestOverlapFraction_EmptyWantMeansFullMatch(t *testing.T) {
	require.Equal(t, 1.0, overlapFraction([]string{"a"}, nil))
}

func TestOverlapFraction_PartialMatch(t *testing.T) {
	require.InDelta(t, 0.5, overlapFraction([]string{"a"}, []string{"a", "b"}), 1e-9)
}

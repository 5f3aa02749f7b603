package orchestrator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshhub/hub/ent"
)

func agentWithTrust(id string, trust float64) *ent.Agent {
	return &ent.Agent{ID: id, Name: id, TrustScore: trust}
}

func TestMergeResults_AveragesConfidence(t *testing.T) {
	synth := mergeResults([]NodeResult{
		{Output: "a", Confidence: 0.5},
		{Output: "b", Confidence: 1.0},
	})
	require.Equal(t, "a; b", synth.Output)
	require.InDelta(t, 0.75, synth.Confidence, 1e-9)
}

func TestMergeResults_EmptyInput(t *testing.T) {
	synth := mergeResults(nil)
	require.Equal(t, "parallel", synth.Pattern)
	require.Equal(t, "", synth.Output)
}

func TestVoteResults_WeightedMajorityWins(t *testing.T) {
	results := []NodeResult{{Output: "yes"}, {Output: "no"}, {Output: "yes"}}
	weights := []float64{1, 5, 1}
	synth := voteResults(results, weights)
	require.Equal(t, "no", synth.Output)
	require.InDelta(t, 5.0/7.0, synth.Confidence, 1e-9)
}

func TestVoteResults_DefaultsToEqualWeights(t *testing.T) {
	results := []NodeResult{{Output: "a"}, {Output: "a"}, {Output: "b"}}
	synth := voteResults(results, nil)
	require.Equal(t, "a", synth.Output)
}

func TestDebateWinner_PicksHighestConfidence(t *testing.T) {
	synth := debateWinner([]NodeResult{
		{Output: "weak", Confidence: 0.2},
		{Output: "strong", Confidence: 0.9},
	})
	require.Equal(t, "strong", synth.Output)
}

func TestConsensusResult_DetectsAgreement(t *testing.T) {
	results := []NodeResult{{Output: "x"}, {Output: "x"}, {Output: "x"}, {Output: "y"}}
	synth, ok := consensusResult(results, 0.66)
	require.True(t, ok)
	require.Equal(t, "x", synth.Output)
	require.True(t, synth.Converged)
}

func TestConsensusResult_NoAgreementBelowThreshold(t *testing.T) {
	results := []NodeResult{{Output: "x"}, {Output: "y"}, {Output: "z"}}
	_, ok := consensusResult(results, 0.66)
	require.False(t, ok)
}

type countingExecutor struct {
	calls int
}

func (e *countingExecutor) Execute(ctx context.Context, a *ent.Agent, task string, priorContext map[string]interface{}) (NodeResult, error) {
	e.calls++
	return NodeResult{AgentID: a.ID, AgentName: a.Name, Output: fmt.Sprintf("%s:%s", a.Name, task), Confidence: 0.8}, nil
}

func TestRunSequential_ChainsPriorOutputIntoNextTask(t *testing.T) {
	exec := &countingExecutor{}
	agents := []*ent.Agent{agentWithTrust("a1", 0.5), agentWithTrust("a2", 0.5)}
	results, err := runSequential(context.Background(), exec, agents, "task")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Contains(t, results[1].Output, results[0].Output)
}

func TestRunParallelPattern_DispatchesEveryAgent(t *testing.T) {
	exec := &countingExecutor{}
	agents := []*ent.Agent{agentWithTrust("a1", 0.5), agentWithTrust("a2", 0.5), agentWithTrust("a3", 0.5)}
	results, err := runParallelPattern(context.Background(), exec, agents, "task")
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, 3, exec.calls)
}

func TestRunDebatePattern_RunsRequestedRounds(t *testing.T) {
	exec := &countingExecutor{}
	agents := []*ent.Agent{agentWithTrust("a1", 0.5), agentWithTrust("a2", 0.5)}
	rounds, synth, err := runDebatePattern(context.Background(), exec, agents, "task", 2)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	require.Equal(t, 2, synth.Rounds)
}

func TestRunSwarmPattern_RunsRequestedIterations(t *testing.T) {
	exec := &countingExecutor{}
	agents := []*ent.Agent{agentWithTrust("a1", 0.5)}
	iterations, synth, err := runSwarmPattern(context.Background(), exec, agents, "task", 2)
	require.NoError(t, err)
	require.Len(t, iterations, 2)
	require.Equal(t, "swarm", synth.Pattern)
}

type agreeingExecutor struct{}

func (agreeingExecutor) Execute(ctx context.Context, a *ent.Agent, task string, priorContext map[string]interface{}) (NodeResult, error) {
	return NodeResult{AgentID: a.ID, AgentName: a.Name, Output: "consensus answer", Confidence: 0.9}, nil
}

func TestRunConsensusPattern_StopsEarlyOnAgreement(t *testing.T) {
	agents := []*ent.Agent{agentWithTrust("a1", 0.5), agentWithTrust("a2", 0.5), agentWithTrust("a3", 0.5)}
	rounds, synth, err := runConsensusPattern(context.Background(), agreeingExecutor{}, agents, "same task", 0.5, 5)
	require.NoError(t, err)
	require.True(t, synth.Converged)
	require.Equal(t, "consensus answer", synth.Output)
	require.Len(t, rounds, 1)
}

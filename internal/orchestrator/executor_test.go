package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshhub/hub/ent"
)

func TestSimulatedExecutor_ReturnsDeterministicOutput(t *testing.T) {
	a := &ent.Agent{ID: "a1", Name: "helper"}
	result, err := SimulatedExecutor{}.Execute(context.Background(), a, "do a thing", nil)
	require.NoError(t, err)
	require.Equal(t, "a1", result.AgentID)
	require.Contains(t, result.Output, "helper")
	require.Contains(t, result.Output, "do a thing")
	require.Greater(t, result.Confidence, 0.0)
}

package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshhub/hub/ent/orchestrationplan"
)

func TestBuildGraph_SequentialChainsEveryNode(t *testing.T) {
	g, err := BuildGraph(orchestrationplan.PatternSequential, []string{"a", "b", "c"}, nil)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 3)
	require.Len(t, g.Edges, 2)
	require.Equal(t, [][]string{{"step_0"}, {"step_1"}, {"step_2"}}, g.Levels)
}

func TestBuildGraph_ParallelHasNoEdges(t *testing.T) {
	g, err := BuildGraph(orchestrationplan.PatternParallel, []string{"a", "b", "c"}, nil)
	require.NoError(t, err)
	require.Empty(t, g.Edges)
	require.Len(t, g.Levels, 1)
	require.ElementsMatch(t, []string{"step_0", "step_1", "step_2"}, g.Levels[0])
}

func TestBuildGraph_SingleCollaborativeNode(t *testing.T) {
	g, err := BuildGraph(orchestrationplan.PatternVote, []string{"whole query"}, nil)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	require.Empty(t, g.Edges)
	require.Equal(t, [][]string{{"step_0"}}, g.Levels)
}

func TestTopologicalLevels_RejectsCycle(t *testing.T) {
	nodes := []Node{{ID: "a"}, {ID: "b"}}
	edges := []Edge{{Source: "a", Target: "b"}, {Source: "b", Target: "a"}}
	_, err := topologicalLevels(nodes, edges)
	require.Error(t, err)
}

func TestTopologicalLevels_DiamondLevels(t *testing.T) {
	nodes := []Node{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	edges := []Edge{
		{Source: "a", Target: "b"},
		{Source: "a", Target: "c"},
		{Source: "b", Target: "d"},
		{Source: "c", Target: "d"},
	}
	levels, err := topologicalLevels(nodes, edges)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, levels[0])
	require.ElementsMatch(t, []string{"b", "c"}, levels[1])
	require.Equal(t, []string{"d"}, levels[2])
}

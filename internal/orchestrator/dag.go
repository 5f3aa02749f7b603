package orchestrator

import (
	"fmt"

	"github.com/meshhub/hub/ent/orchestrationplan"
)

// Node is one sub-task in the plan's execution graph.
type Node struct {
	ID           string
	Description  string
	Capabilities []string
}

// Edge models a sequential dependency: Target may not start until Source
// has completed.
type Edge struct {
	Source string
	Target string
}

// Graph is a decomposed plan's DAG plus its topological levels.
type Graph struct {
	Nodes  []Node
	Edges  []Edge
	Levels [][]string // node ids, grouped by level; peers within a level share no edges, and Engine.Run executes them one after another
}

// BuildGraph turns sub-task descriptions into a DAG (spec §4.9 steps 2-4).
// Sequential patterns chain every node to the next; every other pattern
// leaves its nodes independent (no edges between peers).
func BuildGraph(pattern orchestrationplan.Pattern, subTasks []string, capsPerTask [][]string) (*Graph, error) {
	nodes := make([]Node, 0, len(subTasks))
	for i, desc := range subTasks {
		var caps []string
		if i < len(capsPerTask) {
			caps = capsPerTask[i]
		}
		nodes = append(nodes, Node{ID: fmt.Sprintf("step_%d", i), Description: desc, Capabilities: caps})
	}

	var edges []Edge
	if pattern == orchestrationplan.PatternSequential {
		for i := 0; i < len(nodes)-1; i++ {
			edges = append(edges, Edge{Source: nodes[i].ID, Target: nodes[i+1].ID})
		}
	}

	levels, err := topologicalLevels(nodes, edges)
	if err != nil {
		return nil, err
	}

	return &Graph{Nodes: nodes, Edges: edges, Levels: levels}, nil
}

// topologicalLevels runs Kahn's algorithm, grouping nodes with no remaining
// dependencies into successive levels. Returns an error if a cycle prevents
// every node from being assigned a level (spec §4.9 step 3: "cycles are
// rejected").
func topologicalLevels(nodes []Node, edges []Edge) ([][]string, error) {
	adjacency := make(map[string][]string, len(nodes))
	inDegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		inDegree[n.ID] = 0
	}
	for _, e := range edges {
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		inDegree[e.Target]++
	}

	var queue []string
	for _, n := range nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	var levels [][]string
	visited := 0
	for len(queue) > 0 {
		level := queue
		queue = nil
		levels = append(levels, level)
		visited += len(level)

		for _, id := range level {
			for _, next := range adjacency[id] {
				inDegree[next]--
				if inDegree[next] == 0 {
					queue = append(queue, next)
				}
			}
		}
	}

	if visited != len(nodes) {
		return nil, fmt.Errorf("orchestration graph has a cycle: %d of %d nodes reachable", visited, len(nodes))
	}
	return levels, nil
}

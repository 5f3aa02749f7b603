package orchestrator

import (
	"context"
	"fmt"

	"github.com/meshhub/hub/ent"
)

// NodeResult is one agent's output for a single sub-task.
type NodeResult struct {
	AgentID    string
	AgentName  string
	Task       string
	Output     string
	Confidence float64
	DurationS  float64
}

// NodeExecutor runs a single sub-task against one agent. The default
// SimulatedExecutor stands in for a real A2A round trip: wiring a live C7
// send/await-response loop is left as an extension point, since A2A
// delivery here is asynchronous push rather than request/response.
type NodeExecutor interface {
	Execute(ctx context.Context, a *ent.Agent, task string, priorContext map[string]interface{}) (NodeResult, error)
}

// SimulatedExecutor is the default NodeExecutor.
type SimulatedExecutor struct{}

// Execute implements NodeExecutor.
func (SimulatedExecutor) Execute(ctx context.Context, a *ent.Agent, task string, priorContext map[string]interface{}) (NodeResult, error) {
	return NodeResult{
		AgentID:    a.ID,
		AgentName:  a.Name,
		Task:       task,
		Output:     fmt.Sprintf("result from %s for: %s", a.Name, task),
		Confidence: 0.85,
		DurationS:  0,
	}, nil
}

package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/meshhub/hub/ent"
	"github.com/meshhub/hub/ent/orchestrationplan"
	"github.com/meshhub/hub/internal/store"
)

// collaborativePatterns keep the whole query as one DAG node and run several
// agents against that single shared task (spec §4.9 step 7); sequential and
// parallel patterns instead decompose the query into one node per sub-task
// and assign each node a single top-scoring agent.
var collaborativePatterns = map[orchestrationplan.Pattern]bool{
	orchestrationplan.PatternVote:      true,
	orchestrationplan.PatternDebate:    true,
	orchestrationplan.PatternSwarm:     true,
	orchestrationplan.PatternConsensus: true,
}

// collaborativeFanout is how many agents a vote/debate/swarm/consensus node
// runs against, mirroring collaboration.py's default panel size.
const collaborativeFanout = 3

// PlanStore is the subset of internal/store.Store the engine needs to
// persist plans and steps.
type PlanStore interface {
	CreatePlan(ctx context.Context, p store.CreatePlanParams) (*ent.OrchestrationPlan, error)
	UpdatePlanStatus(ctx context.Context, id string, status orchestrationplan.Status) error
	CompletePlan(ctx context.Context, id string, result map[string]interface{}, confidence *float64) error
	CreateStep(ctx context.Context, p store.CreateStepParams) (*ent.CollaborationStep, error)
	StartStep(ctx context.Context, id string, agentID string) error
	CompleteStep(ctx context.Context, id string, ok bool, output map[string]interface{}, confidence *float64) error
}

// Engine runs the full orchestration pipeline: analyze intent, build a DAG,
// select agents per node, dispatch level by level, synthesize the
// pattern-dependent result, and persist progress throughout (spec §4.9).
type Engine struct {
	analyzer IntentAnalyzer
	selector *Selector
	executor NodeExecutor
	store    PlanStore
	log      *slog.Logger
}

// NewEngine wires the orchestrator core from its collaborators.
func NewEngine(analyzer IntentAnalyzer, selector *Selector, executor NodeExecutor, planStore PlanStore, log *slog.Logger) *Engine {
	if analyzer == nil {
		analyzer = NewHeuristicAnalyzer()
	}
	if executor == nil {
		executor = SimulatedExecutor{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{analyzer: analyzer, selector: selector, executor: executor, store: planStore, log: log}
}

// PlanResult is the outcome of running a query through the full pipeline.
type PlanResult struct {
	PlanID     string
	Pattern    orchestrationplan.Pattern
	Output     string
	Confidence float64
}

// Run executes spec §4.9's full 8-step procedure for one user query.
func (e *Engine) Run(ctx context.Context, userID, query string) (*PlanResult, error) {
	intent := e.analyzer.Analyze(query)

	capsPerTask := make([][]string, len(intent.SubIntents))
	for i := range intent.SubIntents {
		capsPerTask[i] = extractCapabilities(intent.SubIntents[i])
	}

	graph, err := BuildGraph(intent.Pattern, intent.SubIntents, capsPerTask)
	if err != nil {
		return nil, fmt.Errorf("build orchestration graph: %w", err)
	}

	planID := uuid.NewString()
	plan, err := e.store.CreatePlan(ctx, store.CreatePlanParams{
		ID:         planID,
		UserID:     userID,
		Query:      query,
		Pattern:    intent.Pattern,
		Complexity: intent.Complexity,
	})
	if err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	planID = plan.ID

	nodesByID := make(map[string]Node, len(graph.Nodes))
	for _, n := range graph.Nodes {
		nodesByID[n.ID] = n
	}

	stepIDs := make(map[string]string, len(graph.Nodes))
	for level, ids := range graph.Levels {
		for _, nodeID := range ids {
			node := nodesByID[nodeID]
			stepID := uuid.NewString()
			if _, err := e.store.CreateStep(ctx, store.CreateStepParams{
				ID:                   stepID,
				PlanID:               planID,
				NodeID:               nodeID,
				Level:                level,
				RequiredCapabilities: node.Capabilities,
			}); err != nil {
				return nil, fmt.Errorf("create step %s: %w", nodeID, err)
			}
			stepIDs[nodeID] = stepID
		}
	}

	if err := e.store.UpdatePlanStatus(ctx, planID, orchestrationplan.StatusRunning); err != nil {
		return nil, fmt.Errorf("mark plan running: %w", err)
	}

	var lastSynth SynthesizedResult
	for level, ids := range graph.Levels {
		for _, nodeID := range ids {
			node := nodesByID[nodeID]
			synth, err := e.runNode(ctx, stepIDs[nodeID], node, intent.Pattern)
			if err != nil {
				_ = e.store.UpdatePlanStatus(ctx, planID, orchestrationplan.StatusFailed)
				return nil, fmt.Errorf("run node %s (level %d): %w", nodeID, level, err)
			}
			lastSynth = synth
		}
	}

	confidence := lastSynth.Confidence
	result := map[string]interface{}{
		"pattern":    string(intent.Pattern),
		"output":     lastSynth.Output,
		"converged":  lastSynth.Converged,
		"rounds":     lastSynth.Rounds,
		"complexity": intent.Complexity,
	}
	if err := e.store.CompletePlan(ctx, planID, result, &confidence); err != nil {
		return nil, fmt.Errorf("complete plan: %w", err)
	}

	e.log.Info("orchestration plan completed", "plan_id", planID, "pattern", intent.Pattern, "confidence", confidence)

	return &PlanResult{PlanID: planID, Pattern: intent.Pattern, Output: lastSynth.Output, Confidence: confidence}, nil
}

// runNode selects agents for one DAG node, dispatches them according to the
// plan's pattern, and persists the node's outcome.
func (e *Engine) runNode(ctx context.Context, stepID string, node Node, pattern orchestrationplan.Pattern) (SynthesizedResult, error) {
	k := 1
	if collaborativePatterns[pattern] {
		k = collaborativeFanout
	}

	agents, err := e.selector.SelectTopK(ctx, node.Capabilities, k)
	if err != nil {
		return SynthesizedResult{}, fmt.Errorf("select agents: %w", err)
	}
	if len(agents) == 0 {
		_ = e.store.CompleteStep(ctx, stepID, false, nil, nil)
		return SynthesizedResult{}, fmt.Errorf("no active agent available for capabilities %v", node.Capabilities)
	}

	if err := e.store.StartStep(ctx, stepID, agents[0].ID); err != nil {
		return SynthesizedResult{}, fmt.Errorf("start step: %w", err)
	}

	synth, err := e.dispatch(ctx, pattern, agents, node.Description)
	if err != nil {
		_ = e.store.CompleteStep(ctx, stepID, false, nil, nil)
		return SynthesizedResult{}, err
	}

	confidence := synth.Confidence
	output := map[string]interface{}{"text": synth.Output, "pattern": synth.Pattern}
	if err := e.store.CompleteStep(ctx, stepID, true, output, &confidence); err != nil {
		return SynthesizedResult{}, fmt.Errorf("complete step: %w", err)
	}
	return synth, nil
}

// dispatch runs the pattern-appropriate execution strategy for one node
// (spec §4.9 step 7).
func (e *Engine) dispatch(ctx context.Context, pattern orchestrationplan.Pattern, agents []*ent.Agent, task string) (SynthesizedResult, error) {
	switch pattern {
	case orchestrationplan.PatternSequential:
		results, err := runSequential(ctx, e.executor, agents, task)
		if err != nil {
			return SynthesizedResult{}, err
		}
		last := results[len(results)-1]
		return SynthesizedResult{Pattern: "sequential", Output: last.Output, Confidence: last.Confidence}, nil

	case orchestrationplan.PatternParallel:
		results, err := runParallelPattern(ctx, e.executor, agents, task)
		if err != nil {
			return SynthesizedResult{}, err
		}
		return mergeResults(results), nil

	case orchestrationplan.PatternVote:
		_, synth, err := runVotePattern(ctx, e.executor, agents, task)
		return synth, err

	case orchestrationplan.PatternDebate:
		_, synth, err := runDebatePattern(ctx, e.executor, agents, task, defaultDebateRounds)
		return synth, err

	case orchestrationplan.PatternSwarm:
		_, synth, err := runSwarmPattern(ctx, e.executor, agents, task, defaultSwarmIterations)
		return synth, err

	case orchestrationplan.PatternConsensus:
		_, synth, err := runConsensusPattern(ctx, e.executor, agents, task, defaultConsensusThresh, defaultConsensusRounds)
		return synth, err

	default:
		return SynthesizedResult{}, fmt.Errorf("unsupported orchestration pattern %q", pattern)
	}
}

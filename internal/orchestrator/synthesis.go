package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/meshhub/hub/ent"
)

const (
	defaultDebateRounds    = 3
	defaultSwarmIterations = 3
	defaultConsensusRounds = 5
	defaultConsensusThresh = 0.66
	swarmKnowledgeMinConf  = 0.7
)

// SynthesizedResult is the pattern-dependent combination of one or more
// NodeResults into a single answer (spec §4.9 step 7).
type SynthesizedResult struct {
	Pattern         string
	Output          string
	Confidence      float64
	VoteDistribution map[string]float64
	Rounds          int
	Converged       bool
}

// dispatchConcurrent runs fn against every agent in parallel and collects
// results in agent order (sync.WaitGroup + indexed result slice rather than
// an unordered channel read) so callers can zip results back against their
// agents deterministically.
func dispatchConcurrent(ctx context.Context, agents []*ent.Agent, fn func(context.Context, *ent.Agent) (NodeResult, error)) ([]NodeResult, error) {
	results := make([]NodeResult, len(agents))
	errs := make([]error, len(agents))

	var wg sync.WaitGroup
	wg.Add(len(agents))
	for i, a := range agents {
		go func(i int, a *ent.Agent) {
			defer wg.Done()
			r, err := fn(ctx, a)
			results[i] = r
			errs[i] = err
		}(i, a)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("execute agent %s: %w", agents[i].ID, err)
		}
	}
	return results, nil
}

// mergeResults implements ResultSynthesizer.merge: combine every output,
// confidence is the mean.
func mergeResults(results []NodeResult) SynthesizedResult {
	if len(results) == 0 {
		return SynthesizedResult{Pattern: "parallel"}
	}
	var sum float64
	for _, r := range results {
		sum += r.Confidence
	}
	return SynthesizedResult{
		Pattern:    "parallel",
		Output:     joinOutputs(results),
		Confidence: sum / float64(len(results)),
	}
}

func joinOutputs(results []NodeResult) string {
	out := ""
	for i, r := range results {
		if i > 0 {
			out += "; "
		}
		out += r.Output
	}
	return out
}

// voteResults implements ResultSynthesizer.vote: weighted majority over each
// agent's raw output string, weighted by trust score.
func voteResults(results []NodeResult, weights []float64) SynthesizedResult {
	if len(weights) != len(results) {
		weights = make([]float64, len(results))
		for i := range weights {
			weights[i] = 1.0
		}
	}

	tally := make(map[string]float64)
	for i, r := range results {
		tally[r.Output] += weights[i]
	}

	var total float64
	for _, w := range tally {
		total += w
	}

	winner := ""
	best := -1.0
	for output, w := range tally {
		if w > best {
			best = w
			winner = output
		}
	}

	confidence := 0.0
	if total > 0 {
		confidence = best / total
	}
	return SynthesizedResult{Pattern: "vote", Output: winner, Confidence: confidence, VoteDistribution: tally}
}

// debateWinner implements ResultSynthesizer.debate_winner: the final round's
// highest confidence*quality entry wins. Quality is approximated by
// confidence itself, since no separate quality signal exists on NodeResult.
func debateWinner(finalRound []NodeResult) SynthesizedResult {
	if len(finalRound) == 0 {
		return SynthesizedResult{Pattern: "debate"}
	}
	sorted := append([]NodeResult(nil), finalRound...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence*sorted[i].Confidence > sorted[j].Confidence*sorted[j].Confidence
	})
	winner := sorted[0]
	return SynthesizedResult{Pattern: "debate", Output: winner.Output, Confidence: winner.Confidence}
}

// consensusResult implements ResultSynthesizer.consensus: groups identical
// outputs and reports the first group whose share meets threshold.
func consensusResult(results []NodeResult, threshold float64) (SynthesizedResult, bool) {
	groups := make(map[string]int)
	for _, r := range results {
		groups[r.Output]++
	}
	total := len(results)
	for output, count := range groups {
		if total > 0 && float64(count)/float64(total) >= threshold {
			return SynthesizedResult{Pattern: "consensus", Output: output, Confidence: float64(count) / float64(total), Converged: true}, true
		}
	}
	return SynthesizedResult{Pattern: "consensus"}, false
}

// runSequential executes agents one at a time, each seeing the prior
// agent's output, and returns the final agent's result as the task output
// (spec §4.9: "sequential: final node's output is the plan result").
func runSequential(ctx context.Context, exec NodeExecutor, agents []*ent.Agent, task string) ([]NodeResult, error) {
	results := make([]NodeResult, 0, len(agents))
	priorCtx := map[string]interface{}{"task": task}
	for i, a := range agents {
		stepTask := task
		if i > 0 {
			stepTask = fmt.Sprintf("%s\nPrevious result: %s", task, results[i-1].Output)
		}
		r, err := exec.Execute(ctx, a, stepTask, priorCtx)
		if err != nil {
			return nil, fmt.Errorf("execute agent %s: %w", a.ID, err)
		}
		results = append(results, r)
		priorCtx[fmt.Sprintf("step_%d", i)] = r.Output
	}
	return results, nil
}

// runParallelPattern executes every agent independently and concurrently
// (spec §4.9: "parallel: merge all outputs").
func runParallelPattern(ctx context.Context, exec NodeExecutor, agents []*ent.Agent, task string) ([]NodeResult, error) {
	return dispatchConcurrent(ctx, agents, func(ctx context.Context, a *ent.Agent) (NodeResult, error) {
		return exec.Execute(ctx, a, task, nil)
	})
}

// runVotePattern executes every agent once and weighs their outputs by
// trust score (spec §4.9: "vote: weighted majority; weights = per-agent trust").
func runVotePattern(ctx context.Context, exec NodeExecutor, agents []*ent.Agent, task string) ([]NodeResult, SynthesizedResult, error) {
	results, err := runParallelPattern(ctx, exec, agents, task)
	if err != nil {
		return nil, SynthesizedResult{}, err
	}
	weights := make([]float64, len(agents))
	for i, a := range agents {
		weights[i] = a.TrustScore
	}
	return results, voteResults(results, weights), nil
}

// runDebatePattern runs a fixed number of rounds where every agent sees its
// peers' prior-round outputs, then picks the winner of the final round
// (spec §4.9: "debate: fixed number of rounds (default 3)").
func runDebatePattern(ctx context.Context, exec NodeExecutor, agents []*ent.Agent, task string, rounds int) ([][]NodeResult, SynthesizedResult, error) {
	if rounds <= 0 {
		rounds = defaultDebateRounds
	}
	allRounds := make([][]NodeResult, 0, rounds)
	for round := 0; round < rounds; round++ {
		roundTask := task
		if round > 0 {
			prior := allRounds[round-1]
			roundTask = task + "\n\nPrevious responses:"
			for _, r := range prior {
				roundTask += fmt.Sprintf("\n- %s: %s", r.AgentName, r.Output)
			}
		}
		results, err := dispatchConcurrent(ctx, agents, func(ctx context.Context, a *ent.Agent) (NodeResult, error) {
			return exec.Execute(ctx, a, roundTask, nil)
		})
		if err != nil {
			return nil, SynthesizedResult{}, err
		}
		allRounds = append(allRounds, results)
	}
	synth := debateWinner(allRounds[len(allRounds)-1])
	synth.Rounds = len(allRounds)
	return allRounds, synth, nil
}

// runSwarmPattern runs a fixed number of iterations where agents share a
// growing set of high-confidence outputs (spec §4.9: "swarm: fixed
// iterations (default 3)").
func runSwarmPattern(ctx context.Context, exec NodeExecutor, agents []*ent.Agent, task string, iterations int) ([][]NodeResult, SynthesizedResult, error) {
	if iterations <= 0 {
		iterations = defaultSwarmIterations
	}
	var knowledge []string
	var allIterations [][]NodeResult

	for iter := 0; iter < iterations; iter++ {
		priorCtx := map[string]interface{}{"task": task, "shared_knowledge": append([]string(nil), knowledge...)}
		results, err := dispatchConcurrent(ctx, agents, func(ctx context.Context, a *ent.Agent) (NodeResult, error) {
			return exec.Execute(ctx, a, task, priorCtx)
		})
		if err != nil {
			return nil, SynthesizedResult{}, err
		}
		for _, r := range results {
			if r.Confidence > swarmKnowledgeMinConf {
				knowledge = append(knowledge, r.Output)
			}
		}
		allIterations = append(allIterations, results)
	}

	synth := mergeResults(allIterations[len(allIterations)-1])
	synth.Pattern = "swarm"
	return allIterations, synth, nil
}

// runConsensusPattern iterates up to maxRounds, checking for a Byzantine-style
// agreement each round, falling back to a weighted vote of the last round if
// no consensus forms (spec §4.9: "consensus: iterate up to max_rounds
// (default 5); terminate when a single answer exceeds threshold").
func runConsensusPattern(ctx context.Context, exec NodeExecutor, agents []*ent.Agent, task string, threshold float64, maxRounds int) ([][]NodeResult, SynthesizedResult, error) {
	if threshold <= 0 {
		threshold = defaultConsensusThresh
	}
	if maxRounds <= 0 {
		maxRounds = defaultConsensusRounds
	}

	var allRounds [][]NodeResult
	for round := 0; round < maxRounds; round++ {
		results, err := dispatchConcurrent(ctx, agents, func(ctx context.Context, a *ent.Agent) (NodeResult, error) {
			return exec.Execute(ctx, a, task, map[string]interface{}{"round": round})
		})
		if err != nil {
			return nil, SynthesizedResult{}, err
		}
		allRounds = append(allRounds, results)

		if synth, ok := consensusResult(results, threshold); ok {
			synth.Rounds = len(allRounds)
			return allRounds, synth, nil
		}
	}

	last := allRounds[len(allRounds)-1]
	weights := make([]float64, len(agents))
	for i, a := range agents {
		weights[i] = a.TrustScore
	}
	synth := voteResults(last, weights)
	synth.Pattern = "consensus"
	synth.Rounds = len(allRounds)
	synth.Converged = false
	return allRounds, synth, nil
}

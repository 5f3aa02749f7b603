// Package orchestrator implements the mesh hub's orchestrator core (C9):
// intent analysis, task decomposition, DAG construction and leveling, agent
// selection, per-level dispatch, and pattern-dependent synthesis.
package orchestrator

import (
	"strings"

	"github.com/meshhub/hub/ent/orchestrationplan"
)

// IntentAnalyzer turns a free-form query into a structured intent. The
// default heuristic implementation is keyword-based; a real deployment
// would swap this for an LLM-backed collaborator, which is out of scope
// here (spec §1).
type IntentAnalyzer interface {
	Analyze(query string) Intent
}

// Intent is the result of analyzing a user query (spec §4.9 step 1).
type Intent struct {
	MainIntent   string
	SubIntents   []string
	Complexity   float64
	Pattern      orchestrationplan.Pattern
	Capabilities []string
}

var complexityKeywords = []string{
	"and", "then", "also", "multiple", "several", "all",
	"compare", "analyze", "comprehensive", "detailed",
}

// HeuristicAnalyzer is the default, non-LLM IntentAnalyzer.
type HeuristicAnalyzer struct{}

// NewHeuristicAnalyzer constructs the default keyword-based analyzer.
func NewHeuristicAnalyzer() *HeuristicAnalyzer { return &HeuristicAnalyzer{} }

// Analyze implements IntentAnalyzer.
func (HeuristicAnalyzer) Analyze(query string) Intent {
	lower := strings.ToLower(query)

	hits := 0
	for _, kw := range complexityKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	complexity := float64(hits) / 10.0
	if complexity > 1.0 {
		complexity = 1.0
	}

	pattern := suggestPattern(lower)
	subIntents := decompose(query, pattern)

	caps := make([]string, 0, len(subIntents))
	seen := make(map[string]bool)
	for _, s := range subIntents {
		for _, c := range extractCapabilities(s) {
			if !seen[c] {
				seen[c] = true
				caps = append(caps, c)
			}
		}
	}

	return Intent{
		MainIntent:   query,
		SubIntents:   subIntents,
		Complexity:   complexity,
		Pattern:      pattern,
		Capabilities: caps,
	}
}

func suggestPattern(lower string) orchestrationplan.Pattern {
	switch {
	case strings.Contains(lower, "debate") || strings.Contains(lower, "discuss") || strings.Contains(lower, "argue"):
		return orchestrationplan.PatternDebate
	case strings.Contains(lower, "consensus") || strings.Contains(lower, "agree"):
		return orchestrationplan.PatternConsensus
	case strings.Contains(lower, "swarm"):
		return orchestrationplan.PatternSwarm
	case strings.Contains(lower, "compare") || strings.Contains(lower, "versus") || strings.Contains(lower, " vs "):
		return orchestrationplan.PatternVote
	case strings.Contains(lower, "all") || strings.Contains(lower, "multiple") || strings.Contains(lower, "several"):
		return orchestrationplan.PatternParallel
	case strings.Contains(lower, "then") || strings.Contains(lower, "after") || strings.Contains(lower, "next"):
		return orchestrationplan.PatternSequential
	default:
		return orchestrationplan.PatternSequential
	}
}

// decompose splits a query into sub-tasks. Sequential and parallel patterns
// split on connective words, since each part becomes its own DAG node;
// collaboration patterns (vote/debate/swarm/consensus) keep the query whole,
// since those patterns run several agents against a single shared task.
func decompose(query string, pattern orchestrationplan.Pattern) []string {
	switch pattern {
	case orchestrationplan.PatternSequential:
		parts := splitAny(query, " and then ", " then ")
		return nonEmpty(parts)
	case orchestrationplan.PatternParallel:
		parts := splitAny(query, " and ", ", ")
		return nonEmpty(parts)
	default:
		return []string{query}
	}
}

func splitAny(s string, seps ...string) []string {
	for _, sep := range seps {
		s = strings.ReplaceAll(s, sep, "|")
	}
	return strings.Split(s, "|")
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{""}
	}
	return out
}

var capabilityKeywords = map[string][]string{
	"search":    {"search", "find", "lookup", "query"},
	"generate":  {"generate", "create", "write", "compose"},
	"analyze":   {"analyze", "evaluate", "assess", "review"},
	"translate": {"translate", "convert", "transform"},
	"summarize": {"summarize", "condense", "brief"},
}

// extractCapabilities maps a task description to capability tags by keyword
// match, falling back to "general" when nothing matches.
func extractCapabilities(task string) []string {
	lower := strings.ToLower(task)
	var caps []string
	for cap, keywords := range capabilityKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				caps = append(caps, cap)
				break
			}
		}
	}
	if len(caps) == 0 {
		return []string{"general"}
	}
	return caps
}

// Package reputation implements the mesh hub's reputation engine (C5):
// a five-dimension (quality, reliability, speed, honesty, collaboration)
// weighted composite score, recalculated on a ticker-driven periodic sweep.
package reputation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meshhub/hub/ent/agenttrustscore"
	"github.com/meshhub/hub/internal/store"
)

const (
	weightQuality       = 0.40
	weightReliability   = 0.25
	weightSpeed         = 0.15
	weightHonesty       = 0.10
	weightCollaboration = 0.10

	defaultDimensionScore = 0.5

	// reliabilityBoostHigh/Low give a mild confidence boost to the
	// reliability rate for agents with a longer call-volume track record.
	reliabilityBoostHighThreshold = 100
	reliabilityBoostHigh          = 1.05
	reliabilityBoostLowThreshold  = 50
	reliabilityBoostLow           = 1.02

	// collaborationScoreCap is the collaboration count past which the
	// collaboration dimension saturates at 1.0.
	collaborationScoreCap = 100.0
)

// Store is the subset of internal/store.Store this engine needs, kept as an
// interface so recomputation can be tested without a live database.
type Store interface {
	AgentCallCounters(ctx context.Context, agentID string) (total, successful int, err error)
	ValidatedDeliveryScores(ctx context.Context, agentID string) ([]float64, error)
	SpeedSamples(ctx context.Context, agentID string) ([]store.SpeedSample, error)
	HonestySamples(ctx context.Context, agentID string) ([]store.HonestySample, error)
	CollaborationCount(ctx context.Context, agentID string) (int, error)
	ListActiveAgentIDs(ctx context.Context) ([]string, error)
	SaveTrustSnapshot(ctx context.Context, snapshotID, metricID string, snap store.TrustSnapshot) error
}

// Engine computes and persists per-agent reputation snapshots.
type Engine struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a reputation engine. interval configures the periodic sweep
// (spec §6 TRUST_RECALC_INTERVAL_SECONDS).
func New(s Store, interval time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Engine{store: s, interval: interval, logger: logger, stopCh: make(chan struct{})}
}

// Start launches the periodic sweep goroutine. Safe to call once.
func (e *Engine) Start(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runSweep(ctx)
	}()
}

// Stop signals the sweep goroutine to exit and waits for it.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

func (e *Engine) runSweep(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			if err := e.RecalculateAll(ctx); err != nil {
				e.logger.ErrorContext(ctx, "reputation sweep failed", "error", err)
			}
		}
	}
}

// RecalculateAll recomputes reputation for every active agent (spec §4.5).
func (e *Engine) RecalculateAll(ctx context.Context) error {
	ids, err := e.store.ListActiveAgentIDs(ctx)
	if err != nil {
		return fmt.Errorf("list active agents: %w", err)
	}

	var recalculated int
	for _, id := range ids {
		if err := e.Recalculate(ctx, id); err != nil {
			e.logger.ErrorContext(ctx, "failed to recalculate reputation", "agent_id", id, "error", err)
			continue
		}
		recalculated++
	}
	e.logger.InfoContext(ctx, "reputation sweep complete", "recalculated", recalculated, "total", len(ids))
	return nil
}

// Recalculate computes and persists a single agent's reputation snapshot.
// RecalculateAll calls it for each active agent on every sweep tick; nothing
// else calls it, so a settled delivery is reflected only at the next sweep.
func (e *Engine) Recalculate(ctx context.Context, agentID string) error {
	reliability, err := e.reliabilityScore(ctx, agentID)
	if err != nil {
		return fmt.Errorf("reliability score: %w", err)
	}
	speed, err := e.speedScore(ctx, agentID)
	if err != nil {
		return fmt.Errorf("speed score: %w", err)
	}
	quality, err := e.qualityScore(ctx, agentID)
	if err != nil {
		return fmt.Errorf("quality score: %w", err)
	}
	honesty, err := e.honestyScore(ctx, agentID)
	if err != nil {
		return fmt.Errorf("honesty score: %w", err)
	}
	collaboration, err := e.collaborationScore(ctx, agentID)
	if err != nil {
		return fmt.Errorf("collaboration score: %w", err)
	}

	composite := quality*weightQuality +
		reliability*weightReliability +
		speed*weightSpeed +
		honesty*weightHonesty +
		collaboration*weightCollaboration

	snap := store.TrustSnapshot{
		AgentID:      agentID,
		SuccessRate:  reliability,
		LatencyScore: speed,
		RatingScore:  quality,
		UptimeScore:  honesty,
		Consistency:  collaboration,
		TrustScore:   composite,
		TrustGrade:   gradeFor(composite),
	}

	if err := e.store.SaveTrustSnapshot(ctx, uuid.NewString(), uuid.NewString(), snap); err != nil {
		return fmt.Errorf("save trust snapshot: %w", err)
	}
	return nil
}

func (e *Engine) reliabilityScore(ctx context.Context, agentID string) (float64, error) {
	total, successful, err := e.store.AgentCallCounters(ctx, agentID)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return defaultDimensionScore, nil
	}

	rate := float64(successful) / float64(total)
	switch {
	case total >= reliabilityBoostHighThreshold:
		rate = min1(rate * reliabilityBoostHigh)
	case total >= reliabilityBoostLowThreshold:
		rate = min1(rate * reliabilityBoostLow)
	}
	return rate, nil
}

func (e *Engine) speedScore(ctx context.Context, agentID string) (float64, error) {
	samples, err := e.store.SpeedSamples(ctx, agentID)
	if err != nil {
		return 0, err
	}
	if len(samples) == 0 {
		return defaultDimensionScore, nil
	}

	var sum float64
	for _, s := range samples {
		ratio := s.ActualSeconds / s.PromisedSeconds
		if ratio <= 1.0 {
			sum += 1.0
		} else {
			sum += 1.0 / ratio
		}
	}
	return sum / float64(len(samples)), nil
}

func (e *Engine) qualityScore(ctx context.Context, agentID string) (float64, error) {
	scores, err := e.store.ValidatedDeliveryScores(ctx, agentID)
	if err != nil {
		return 0, err
	}
	if len(scores) == 0 {
		return defaultDimensionScore, nil
	}
	return mean(scores), nil
}

func (e *Engine) honestyScore(ctx context.Context, agentID string) (float64, error) {
	samples, err := e.store.HonestySamples(ctx, agentID)
	if err != nil {
		return 0, err
	}
	if len(samples) == 0 {
		return defaultDimensionScore, nil
	}

	var sum float64
	for _, s := range samples {
		diff := s.Confidence - s.ValidationScore
		if diff < 0 {
			diff = -diff
		}
		accuracy := 1.0 - diff
		if accuracy < 0 {
			accuracy = 0
		}
		sum += accuracy
	}
	return sum / float64(len(samples)), nil
}

func (e *Engine) collaborationScore(ctx context.Context, agentID string) (float64, error) {
	count, err := e.store.CollaborationCount(ctx, agentID)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return defaultDimensionScore, nil
	}
	return min1(0.5 + float64(count)/collaborationScoreCap), nil
}

// gradeFor converts a composite score to a letter grade (spec §4.5). Enum
// values are constructed from their literal strings rather than generated
// constants, since "A+" is not a valid Go identifier suffix.
func gradeFor(score float64) agenttrustscore.TrustGrade {
	switch {
	case score >= 0.95:
		return agenttrustscore.TrustGrade("A+")
	case score >= 0.90:
		return agenttrustscore.TrustGrade("A")
	case score >= 0.75:
		return agenttrustscore.TrustGrade("B")
	case score >= 0.60:
		return agenttrustscore.TrustGrade("C")
	case score >= 0.40:
		return agenttrustscore.TrustGrade("D")
	default:
		return agenttrustscore.TrustGrade("F")
	}
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func min1(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}

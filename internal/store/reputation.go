package store

import (
	"context"
	"fmt"

	"github.com/meshhub/hub/ent"
	"github.com/meshhub/hub/ent/agent"
	"github.com/meshhub/hub/ent/agentmetric"
	"github.com/meshhub/hub/ent/agenttrustscore"
	"github.com/meshhub/hub/ent/bid"
	"github.com/meshhub/hub/ent/collaborationstep"
	"github.com/meshhub/hub/ent/delivery"
	"github.com/meshhub/hub/ent/trustmetric"
	"github.com/meshhub/hub/internal/apperr"
)

// AppendAgentMetricParams describes a single completed-contract outcome
// record fed to the reputation engine.
type AppendAgentMetricParams struct {
	ID            string
	AgentID       string
	ContractID    *string
	ExecutionTime float64
	PromisedTime  float64
	Success       bool
	UserRating    *int
}

// AppendAgentMetric writes an append-only outcome row (spec §4.1, §4.5 input).
func (s *Store) AppendAgentMetric(ctx context.Context, p AppendAgentMetricParams) error {
	create := s.client.AgentMetric.Create().
		SetID(p.ID).
		SetAgentID(p.AgentID).
		SetExecutionTime(p.ExecutionTime).
		SetPromisedTime(p.PromisedTime).
		SetSuccess(p.Success)
	if p.ContractID != nil {
		create = create.SetContractID(*p.ContractID)
	}
	if p.UserRating != nil {
		create = create.SetUserRating(*p.UserRating)
	}
	if _, err := create.Save(ctx); err != nil {
		return fmt.Errorf("append agent metric: %w", err)
	}
	return nil
}

// SpeedSample is one (promised, actual) pair used for the speed dimension.
type SpeedSample struct {
	PromisedSeconds float64
	ActualSeconds   float64
}

// SpeedSamples returns every metric row with both a promised and an actual
// duration recorded, for the speed-dimension ratio computation (spec §4.5).
func (s *Store) SpeedSamples(ctx context.Context, agentID string) ([]SpeedSample, error) {
	metrics, err := s.client.AgentMetric.Query().
		Where(agentmetric.AgentIDEQ(agentID), agentmetric.PromisedTimeGT(0)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("query speed samples for agent %s: %w", agentID, err)
	}

	samples := make([]SpeedSample, 0, len(metrics))
	for _, m := range metrics {
		samples = append(samples, SpeedSample{PromisedSeconds: m.PromisedTime, ActualSeconds: m.ExecutionTime})
	}
	return samples, nil
}

// AgentCallCounters returns the rolling (total, successful) call counters
// denormalized onto the Agent row, used for the reliability dimension.
func (s *Store) AgentCallCounters(ctx context.Context, agentID string) (total, successful int, err error) {
	a, err := s.GetAgent(ctx, agentID)
	if err != nil {
		return 0, 0, err
	}
	return a.TotalCalls, a.SuccessfulCalls, nil
}

// ValidatedDeliveryScores returns the validation scores of every validated
// delivery won by agentID, for the quality dimension's mean.
func (s *Store) ValidatedDeliveryScores(ctx context.Context, agentID string) ([]float64, error) {
	deliveries, err := s.client.Delivery.Query().
		Where(delivery.AgentIDEQ(agentID), delivery.IsValidatedEQ(true)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("query validated deliveries for agent %s: %w", agentID, err)
	}

	scores := make([]float64, 0, len(deliveries))
	for _, d := range deliveries {
		if d.ValidationScore != nil {
			scores = append(scores, *d.ValidationScore)
		}
	}
	return scores, nil
}

// HonestySample pairs a bid's declared confidence with the actual
// validation score it earned, for the honesty dimension.
type HonestySample struct {
	Confidence      float64
	ValidationScore float64
}

// HonestySamples joins validated deliveries back to the winning bid on the
// same contract to compare declared confidence against actual outcome.
func (s *Store) HonestySamples(ctx context.Context, agentID string) ([]HonestySample, error) {
	deliveries, err := s.client.Delivery.Query().
		Where(delivery.AgentIDEQ(agentID), delivery.IsValidatedEQ(true)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("query validated deliveries for agent %s: %w", agentID, err)
	}

	samples := make([]HonestySample, 0, len(deliveries))
	for _, d := range deliveries {
		if d.ValidationScore == nil {
			continue
		}
		b, err := s.client.Bid.Query().
			Where(bid.ContractIDEQ(d.ContractID), bid.AgentIDEQ(agentID)).
			Only(ctx)
		if err != nil {
			if ent.IsNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("query winning bid for contract %s: %w", d.ContractID, err)
		}
		samples = append(samples, HonestySample{Confidence: b.Confidence, ValidationScore: *d.ValidationScore})
	}
	return samples, nil
}

// CollaborationCount returns how many orchestration steps this agent has
// participated in, feeding the collaboration dimension.
func (s *Store) CollaborationCount(ctx context.Context, agentID string) (int, error) {
	count, err := s.client.CollaborationStep.Query().
		Where(collaborationstep.AgentIDEQ(agentID)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count collaborations for agent %s: %w", agentID, err)
	}
	return count, nil
}

// ListActiveAgentIDs returns every agent eligible for the periodic
// reputation sweep (spec §4.5 — "all active agents").
func (s *Store) ListActiveAgentIDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.Agent.Query().
		Where(agent.StatusEQ(agent.StatusActive)).
		IDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active agent ids: %w", err)
	}
	return ids, nil
}

// TrustSnapshot is the full set of dimension scores plus the composite,
// written atomically to AgentTrustScore and appended to TrustMetric.
type TrustSnapshot struct {
	AgentID      string
	SuccessRate  float64 // reliability
	LatencyScore float64 // speed
	RatingScore  float64 // quality
	UptimeScore  float64 // honesty
	Consistency  float64 // collaboration
	TrustScore   float64 // weighted composite
	TrustGrade   agenttrustscore.TrustGrade
}

// SaveTrustSnapshot rebuilds the agent's AgentTrustScore row in place,
// appends an immutable TrustMetric for trend queries, and mirrors the
// composite onto Agent.trust_score so search ranking stays current.
func (s *Store) SaveTrustSnapshot(ctx context.Context, snapshotID, metricID string, snap TrustSnapshot) error {
	return s.withTx(ctx, func(tx *ent.Tx) error {
		existing, err := tx.AgentTrustScore.Query().
			Where(agenttrustscore.AgentIDEQ(snap.AgentID)).
			Only(ctx)
		switch {
		case err == nil:
			if _, uErr := existing.Update().
				SetSuccessRate(snap.SuccessRate).
				SetLatencyScore(snap.LatencyScore).
				SetRatingScore(snap.RatingScore).
				SetUptimeScore(snap.UptimeScore).
				SetConsistency(snap.Consistency).
				SetTrustScore(snap.TrustScore).
				SetTrustGrade(snap.TrustGrade).
				AddCalculationCount(1).
				Save(ctx); uErr != nil {
				return fmt.Errorf("update trust score: %w", uErr)
			}
		case ent.IsNotFound(err):
			if _, cErr := tx.AgentTrustScore.Create().
				SetID(snapshotID).
				SetAgentID(snap.AgentID).
				SetSuccessRate(snap.SuccessRate).
				SetLatencyScore(snap.LatencyScore).
				SetRatingScore(snap.RatingScore).
				SetUptimeScore(snap.UptimeScore).
				SetConsistency(snap.Consistency).
				SetTrustScore(snap.TrustScore).
				SetTrustGrade(snap.TrustGrade).
				SetCalculationCount(1).
				Save(ctx); cErr != nil {
				return fmt.Errorf("create trust score: %w", cErr)
			}
		default:
			return fmt.Errorf("query trust score: %w", err)
		}

		if _, err := tx.TrustMetric.Create().
			SetID(metricID).
			SetAgentID(snap.AgentID).
			SetTrustScore(snap.TrustScore).
			SetTrustGrade(trustmetric.TrustGrade(string(snap.TrustGrade))).
			Save(ctx); err != nil {
			return fmt.Errorf("append trust metric: %w", err)
		}

		if err := tx.Agent.UpdateOneID(snap.AgentID).SetTrustScore(snap.TrustScore).Exec(ctx); err != nil {
			if ent.IsNotFound(err) {
				return apperr.ErrNotFound
			}
			return fmt.Errorf("mirror trust score onto agent: %w", err)
		}
		return nil
	})
}

// GetAgentTrustScore fetches the current snapshot, if one has been computed.
func (s *Store) GetAgentTrustScore(ctx context.Context, agentID string) (*ent.AgentTrustScore, error) {
	score, err := s.client.AgentTrustScore.Query().
		Where(agenttrustscore.AgentIDEQ(agentID)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("get trust score for agent %s: %w", agentID, err)
	}
	return score, nil
}

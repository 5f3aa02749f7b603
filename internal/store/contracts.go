package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meshhub/hub/ent"
	"github.com/meshhub/hub/ent/awardpreference"
	"github.com/meshhub/hub/ent/bid"
	"github.com/meshhub/hub/ent/contract"
	"github.com/meshhub/hub/ent/delivery"
	"github.com/meshhub/hub/internal/apperr"
)

// CreateContractParams describes a new contract posting.
type CreateContractParams struct {
	ID            string
	Issuer        string
	Intent        string
	Context       map[string]interface{}
	RewardAmount  float64
	AwardStrategy string
	ExpiresAt     *time.Time
}

func (s *Store) CreateContract(ctx context.Context, p CreateContractParams) (*ent.Contract, error) {
	create := s.client.Contract.Create().
		SetID(p.ID).
		SetIssuer(p.Issuer).
		SetIntent(p.Intent).
		SetRewardAmount(p.RewardAmount).
		SetStatus(contract.StatusOpen)
	if p.Context != nil {
		create = create.SetContext(p.Context)
	}
	if p.AwardStrategy != "" {
		create = create.SetAwardStrategy(p.AwardStrategy)
	}
	if p.ExpiresAt != nil {
		create = create.SetExpiresAt(*p.ExpiresAt)
	}

	c, err := create.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("create contract: %w", err)
	}
	return c, nil
}

func (s *Store) GetContract(ctx context.Context, id string) (*ent.Contract, error) {
	c, err := s.client.Contract.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("get contract %s: %w", id, err)
	}
	return c, nil
}

// ListContractsByStatus lists contracts in a given status, oldest first.
// Used by the award sweeper to find contracts whose bidding window has
// elapsed and by the delivery-deadline sweeper for awarded contracts.
func (s *Store) ListContractsByStatus(ctx context.Context, status contract.Status, limit int) ([]*ent.Contract, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	contracts, err := s.client.Contract.Query().
		Where(contract.StatusEQ(status)).
		Order(ent.Asc(contract.FieldCreatedAt)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contracts by status %s: %w", status, err)
	}
	return contracts, nil
}

// TransitionContract moves a contract to a new status, optionally stamping
// awarded_to/awarded_at or completed_at depending on the target state.
func (s *Store) TransitionContract(ctx context.Context, id string, to contract.Status, awardedTo *string) (*ent.Contract, error) {
	update := s.client.Contract.UpdateOneID(id).SetStatus(to)
	switch to {
	case contract.StatusAwarded:
		if awardedTo != nil {
			update = update.SetAwardedTo(*awardedTo).SetAwardedAt(time.Now())
		}
	case contract.StatusSettled, contract.StatusFailed, contract.StatusCancelled:
		update = update.SetCompletedAt(time.Now())
	}

	c, err := update.Save(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("transition contract %s to %s: %w", id, to, err)
	}
	return c, nil
}

// CreateBid records an agent's bid. Invariant: at most one bid per
// (contract, agent) — a repeat bid overwrites the prior offer rather than
// erroring, since re-bidding before the window closes is a normal update.
func (s *Store) CreateBid(ctx context.Context, id, contractID, agentID string, price float64, etaSeconds int, confidence float64) (*ent.Bid, error) {
	existing, err := s.client.Bid.Query().
		Where(bid.ContractIDEQ(contractID), bid.AgentIDEQ(agentID)).
		Only(ctx)
	if err == nil {
		updated, uErr := existing.Update().
			SetPrice(price).
			SetEtaSeconds(etaSeconds).
			SetConfidence(confidence).
			Save(ctx)
		if uErr != nil {
			return nil, fmt.Errorf("update bid: %w", uErr)
		}
		return updated, nil
	}
	if !ent.IsNotFound(err) {
		return nil, fmt.Errorf("query existing bid: %w", err)
	}

	b, err := s.client.Bid.Create().
		SetID(id).
		SetContractID(contractID).
		SetAgentID(agentID).
		SetPrice(price).
		SetEtaSeconds(etaSeconds).
		SetConfidence(confidence).
		Save(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			return nil, apperr.ErrConflict
		}
		return nil, fmt.Errorf("create bid: %w", err)
	}
	return b, nil
}

// ListBids returns every bid on a contract, used by the award sweeper to
// run the configured strategy.
func (s *Store) ListBids(ctx context.Context, contractID string) ([]*ent.Bid, error) {
	bids, err := s.client.Bid.Query().
		Where(bid.ContractIDEQ(contractID)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bids for contract %s: %w", contractID, err)
	}
	return bids, nil
}

// CreateDelivery records the winning agent's result. Invariant: at most one
// delivery per (contract, agent) — spec §3.
func (s *Store) CreateDelivery(ctx context.Context, id, contractID, agentID string, data map[string]interface{}) (*ent.Delivery, error) {
	d, err := s.client.Delivery.Create().
		SetID(id).
		SetContractID(contractID).
		SetAgentID(agentID).
		SetData(data).
		Save(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			return nil, apperr.ErrConflict
		}
		return nil, fmt.Errorf("create delivery: %w", err)
	}
	return d, nil
}

// ValidateDelivery stamps the issuer's validation outcome onto a delivery.
func (s *Store) ValidateDelivery(ctx context.Context, contractID string, score float64, validated bool) (*ent.Delivery, error) {
	d, err := s.client.Delivery.Query().Where(delivery.ContractIDEQ(contractID)).Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("find delivery for contract %s: %w", contractID, err)
	}

	updated, err := d.Update().SetIsValidated(validated).SetValidationScore(score).Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("validate delivery: %w", err)
	}
	return updated, nil
}

// GetAwardPreference returns a user's award-strategy weight vector, or
// apperr.ErrNotFound if the user has never configured one — callers fall
// back to the documented default (0.25 across all four weights).
func (s *Store) GetAwardPreference(ctx context.Context, userID string) (*ent.AwardPreference, error) {
	pref, err := s.client.AwardPreference.Query().
		Where(awardpreference.UserIDEQ(userID)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("get award preference for user %s: %w", userID, err)
	}
	return pref, nil
}

// UpsertAwardPreference creates or replaces a user's award preference row.
func (s *Store) UpsertAwardPreference(ctx context.Context, id, userID string, weightPrice, weightConfidence, weightSpeed, weightTrust float64, maxPrice, minConfidence *float64, maxLatency *int, minReputation *float64, freeOnly bool) (*ent.AwardPreference, error) {
	existing, err := s.GetAwardPreference(ctx, userID)
	if err == nil {
		update := existing.Update().
			SetWeightPrice(weightPrice).
			SetWeightConfidence(weightConfidence).
			SetWeightSpeed(weightSpeed).
			SetWeightTrust(weightTrust).
			SetFreeOnly(freeOnly)
		if maxPrice != nil {
			update = update.SetMaxPrice(*maxPrice)
		}
		if minConfidence != nil {
			update = update.SetMinConfidence(*minConfidence)
		}
		if maxLatency != nil {
			update = update.SetMaxLatency(*maxLatency)
		}
		if minReputation != nil {
			update = update.SetMinReputation(*minReputation)
		}
		updated, uErr := update.Save(ctx)
		if uErr != nil {
			return nil, fmt.Errorf("update award preference: %w", uErr)
		}
		return updated, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	create := s.client.AwardPreference.Create().
		SetID(id).
		SetUserID(userID).
		SetWeightPrice(weightPrice).
		SetWeightConfidence(weightConfidence).
		SetWeightSpeed(weightSpeed).
		SetWeightTrust(weightTrust).
		SetFreeOnly(freeOnly)
	if maxPrice != nil {
		create = create.SetMaxPrice(*maxPrice)
	}
	if minConfidence != nil {
		create = create.SetMinConfidence(*minConfidence)
	}
	if maxLatency != nil {
		create = create.SetMaxLatency(*maxLatency)
	}
	if minReputation != nil {
		create = create.SetMinReputation(*minReputation)
	}

	pref, err := create.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("create award preference: %w", err)
	}
	return pref, nil
}

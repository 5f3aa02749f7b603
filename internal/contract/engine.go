// Package contract implements the mesh hub's contract lifecycle engine (C6):
// the OPEN→BIDDING→AWARDED→IN_PROGRESS→DELIVERED→VALIDATED→SETTLED/FAILED/
// CANCELLED state machine and its award strategies. The award sweeper runs
// as a goroutine owned by a long-lived handle, started at process init and
// stopped via a sync.Once-guarded channel plus sync.WaitGroup.
package contract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meshhub/hub/ent"
	"github.com/meshhub/hub/ent/contract"
	"github.com/meshhub/hub/internal/apperr"
	"github.com/meshhub/hub/internal/store"
)

const (
	defaultBiddingWindow      = 3 * time.Second
	defaultSweepInterval      = 2 * time.Second
	defaultValidationPass     = 0.6
	defaultMaxExecutionWindow = 10 * time.Minute
	defaultAwardWeight        = 0.25
)

// Notifier pushes award/settlement/failure events to the winning agent's
// presence stream (C3). Kept as a narrow interface so the engine can be
// tested without a live registry.
type Notifier interface {
	SendToAgent(ctx context.Context, agentID string, event interface{})
}

// Store is the subset of internal/store.Store this engine needs, kept as an
// interface so the state machine and award strategies can be tested without
// a live database.
type Store interface {
	GetContract(ctx context.Context, id string) (*ent.Contract, error)
	ListContractsByStatus(ctx context.Context, status contract.Status, limit int) ([]*ent.Contract, error)
	TransitionContract(ctx context.Context, id string, to contract.Status, awardedTo *string) (*ent.Contract, error)
	ListBids(ctx context.Context, contractID string) ([]*ent.Bid, error)
	CreateDelivery(ctx context.Context, id, contractID, agentID string, data map[string]interface{}) (*ent.Delivery, error)
	ValidateDelivery(ctx context.Context, contractID string, score float64, validated bool) (*ent.Delivery, error)
	GetAwardPreference(ctx context.Context, userID string) (*ent.AwardPreference, error)
	GetAgent(ctx context.Context, id string) (*ent.Agent, error)
	AppendAgentMetric(ctx context.Context, p store.AppendAgentMetricParams) error
}

// Config tunes the engine's timing thresholds (spec §4.6, §6).
type Config struct {
	BiddingWindow      time.Duration
	SweepInterval      time.Duration
	ValidationPass     float64
	MaxExecutionWindow time.Duration
}

// Engine owns the contract state machine and its award sweeper.
type Engine struct {
	store    Store
	notifier Notifier
	cfg      Config
	logger   *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a contract engine with the given timing configuration.
func New(s Store, notifier Notifier, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BiddingWindow <= 0 {
		cfg.BiddingWindow = defaultBiddingWindow
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.ValidationPass <= 0 {
		cfg.ValidationPass = defaultValidationPass
	}
	if cfg.MaxExecutionWindow <= 0 {
		cfg.MaxExecutionWindow = defaultMaxExecutionWindow
	}
	return &Engine{store: s, notifier: notifier, cfg: cfg, logger: logger, stopCh: make(chan struct{})}
}

// Start launches the award sweeper and execution-deadline sweeper goroutines.
func (e *Engine) Start(ctx context.Context) {
	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.runAwardSweep(ctx)
	}()
	go func() {
		defer e.wg.Done()
		e.runDeadlineSweep(ctx)
	}()
}

// Stop signals both sweeper goroutines to exit and waits for them.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

func (e *Engine) runAwardSweep(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			if err := e.sweepBidding(ctx); err != nil {
				e.logger.ErrorContext(ctx, "award sweep failed", "error", err)
			}
		}
	}
}

func (e *Engine) runDeadlineSweep(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			if err := e.sweepExpiredExecutions(ctx); err != nil {
				e.logger.ErrorContext(ctx, "execution deadline sweep failed", "error", err)
			}
		}
	}
}

// sweepBidding awards every BIDDING contract whose bidding window has
// elapsed and which has at least one bid, or cancels it if the window
// elapsed with zero bids (spec §4.6).
func (e *Engine) sweepBidding(ctx context.Context) error {
	contracts, err := e.store.ListContractsByStatus(ctx, contract.StatusBidding, 200)
	if err != nil {
		return fmt.Errorf("list bidding contracts: %w", err)
	}

	for _, c := range contracts {
		if time.Since(c.CreatedAt) < e.cfg.BiddingWindow {
			continue
		}

		bids, err := e.store.ListBids(ctx, c.ID)
		if err != nil {
			e.logger.ErrorContext(ctx, "list bids failed", "contract_id", c.ID, "error", err)
			continue
		}

		if len(bids) == 0 {
			if _, err := e.store.TransitionContract(ctx, c.ID, contract.StatusCancelled, nil); err != nil {
				e.logger.ErrorContext(ctx, "cancel contract with no bids failed", "contract_id", c.ID, "error", err)
			}
			continue
		}

		if err := e.award(ctx, c, bids); err != nil {
			e.logger.ErrorContext(ctx, "award contract failed", "contract_id", c.ID, "error", err)
		}
	}
	return nil
}

func (e *Engine) award(ctx context.Context, c *ent.Contract, bids []*ent.Bid) error {
	winner, err := e.selectWinner(ctx, c, bids)
	if err != nil {
		return fmt.Errorf("select winner: %w", err)
	}

	if _, err := e.store.TransitionContract(ctx, c.ID, contract.StatusAwarded, &winner.AgentID); err != nil {
		return fmt.Errorf("transition to awarded: %w", err)
	}

	if e.notifier != nil {
		e.notifier.SendToAgent(ctx, winner.AgentID, map[string]interface{}{
			"type":        "contract.awarded",
			"contract_id": c.ID,
			"price":       winner.Price,
		})
	}
	return nil
}

// selectWinner dispatches to the contract's configured award strategy.
func (e *Engine) selectWinner(ctx context.Context, c *ent.Contract, bids []*ent.Bid) (*ent.Bid, error) {
	trustByAgent, err := e.trustScores(ctx, bids)
	if err != nil {
		return nil, err
	}

	switch c.AwardStrategy {
	case "lowest_price":
		return selectLowestPrice(bids, trustByAgent), nil
	case "fastest":
		return selectFastest(bids, trustByAgent), nil
	case "highest_trust":
		return selectHighestTrust(bids, trustByAgent), nil
	default:
		return e.selectReputationWeighted(ctx, c, bids, trustByAgent)
	}
}

func (e *Engine) trustScores(ctx context.Context, bids []*ent.Bid) (map[string]float64, error) {
	scores := make(map[string]float64, len(bids))
	for _, b := range bids {
		if _, ok := scores[b.AgentID]; ok {
			continue
		}
		agent, err := e.store.GetAgent(ctx, b.AgentID)
		if err != nil {
			return nil, fmt.Errorf("get agent %s: %w", b.AgentID, err)
		}
		scores[b.AgentID] = agent.TrustScore
	}
	return scores, nil
}

func selectLowestPrice(bids []*ent.Bid, trust map[string]float64) *ent.Bid {
	sorted := sortedCopy(bids)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Price != b.Price {
			return a.Price < b.Price
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return trust[a.AgentID] > trust[b.AgentID]
	})
	return sorted[0]
}

func selectFastest(bids []*ent.Bid, trust map[string]float64) *ent.Bid {
	sorted := sortedCopy(bids)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.EtaSeconds != b.EtaSeconds {
			return a.EtaSeconds < b.EtaSeconds
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return trust[a.AgentID] > trust[b.AgentID]
	})
	return sorted[0]
}

func selectHighestTrust(bids []*ent.Bid, trust map[string]float64) *ent.Bid {
	sorted := sortedCopy(bids)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if trust[a.AgentID] != trust[b.AgentID] {
			return trust[a.AgentID] > trust[b.AgentID]
		}
		return a.Price < b.Price
	})
	return sorted[0]
}

// selectReputationWeighted implements spec §4.6's weighted formula with a
// per-user weight vector and optional hard filters.
func (e *Engine) selectReputationWeighted(ctx context.Context, c *ent.Contract, bids []*ent.Bid, trust map[string]float64) (*ent.Bid, error) {
	wPrice, wConfidence, wSpeed, wTrust := defaultAwardWeight, defaultAwardWeight, defaultAwardWeight, defaultAwardWeight
	var maxPrice, minConfidence, minReputation *float64
	var maxLatency *int
	var freeOnly bool

	pref, err := e.store.GetAwardPreference(ctx, c.Issuer)
	if err == nil {
		wPrice, wConfidence, wSpeed, wTrust = pref.WeightPrice, pref.WeightConfidence, pref.WeightSpeed, pref.WeightTrust
		maxPrice, minConfidence, minReputation = pref.MaxPrice, pref.MinConfidence, pref.MinReputation
		maxLatency = pref.MaxLatency
		freeOnly = pref.FreeOnly
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("get award preference: %w", err)
	}

	eligible := make([]*ent.Bid, 0, len(bids))
	for _, b := range bids {
		if maxPrice != nil && b.Price > *maxPrice {
			continue
		}
		if minConfidence != nil && b.Confidence < *minConfidence {
			continue
		}
		if maxLatency != nil && b.EtaSeconds > *maxLatency {
			continue
		}
		if minReputation != nil && trust[b.AgentID] < *minReputation {
			continue
		}
		if freeOnly {
			agent, err := e.store.GetAgent(ctx, b.AgentID)
			if err != nil {
				return nil, fmt.Errorf("get agent %s: %w", b.AgentID, err)
			}
			if !agent.IsFree {
				continue
			}
		}
		eligible = append(eligible, b)
	}
	if len(eligible) == 0 {
		eligible = bids
	}

	maxPriceInSet := maxOf(eligible, func(b *ent.Bid) float64 { return b.Price })
	maxEtaInSet := maxOf(eligible, func(b *ent.Bid) float64 { return float64(b.EtaSeconds) })

	var best *ent.Bid
	var bestScore float64
	for _, b := range eligible {
		priceTerm := 1.0
		if maxPriceInSet > 0 {
			priceTerm = 1.0 - b.Price/maxPriceInSet
		}
		etaTerm := 1.0
		if maxEtaInSet > 0 {
			etaTerm = 1.0 - float64(b.EtaSeconds)/maxEtaInSet
		}
		score := wPrice*priceTerm + wConfidence*b.Confidence + wSpeed*etaTerm + wTrust*trust[b.AgentID]
		if best == nil || score > bestScore {
			best, bestScore = b, score
		}
	}
	return best, nil
}

func maxOf(bids []*ent.Bid, f func(*ent.Bid) float64) float64 {
	var max float64
	for _, b := range bids {
		if v := f(b); v > max {
			max = v
		}
	}
	return max
}

func sortedCopy(bids []*ent.Bid) []*ent.Bid {
	out := make([]*ent.Bid, len(bids))
	copy(out, bids)
	return out
}

// sweepExpiredExecutions fails any AWARDED/IN_PROGRESS contract whose
// winner has not delivered by awarded_at + max_execution_window.
func (e *Engine) sweepExpiredExecutions(ctx context.Context) error {
	for _, status := range []contract.Status{contract.StatusAwarded, contract.StatusInProgress} {
		contracts, err := e.store.ListContractsByStatus(ctx, status, 200)
		if err != nil {
			return fmt.Errorf("list %s contracts: %w", status, err)
		}
		for _, c := range contracts {
			if c.AwardedAt == nil {
				continue
			}
			if time.Since(*c.AwardedAt) < e.cfg.MaxExecutionWindow {
				continue
			}
			if _, err := e.store.TransitionContract(ctx, c.ID, contract.StatusFailed, nil); err != nil {
				e.logger.ErrorContext(ctx, "fail expired contract failed", "contract_id", c.ID, "error", err)
				continue
			}
			if c.AwardedTo != nil {
				if aErr := e.store.AppendAgentMetric(ctx, store.AppendAgentMetricParams{
					ID:            uuid.NewString(),
					AgentID:       *c.AwardedTo,
					ContractID:    &c.ID,
					ExecutionTime: time.Since(*c.AwardedAt).Seconds(),
					PromisedTime:  0,
					Success:       false,
				}); aErr != nil {
					e.logger.ErrorContext(ctx, "append failure metric failed", "contract_id", c.ID, "error", aErr)
				}
			}
		}
	}
	return nil
}

// Deliver accepts the winner's delivery and transitions DELIVERED (spec §4.6).
// Only the address the contract was awarded_to may deliver.
func (e *Engine) Deliver(ctx context.Context, contractID, agentID string, data map[string]interface{}) (*ent.Delivery, error) {
	c, err := e.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if c.AwardedTo == nil || *c.AwardedTo != agentID {
		return nil, apperr.ErrForbidden
	}

	d, err := e.store.CreateDelivery(ctx, uuid.NewString(), contractID, agentID, data)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.TransitionContract(ctx, contractID, contract.StatusDelivered, nil); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate applies the issuer's validation score, transitioning to
// VALIDATED→SETTLED on pass or FAILED on fail (spec §4.6).
func (e *Engine) Validate(ctx context.Context, contractID string, score float64) error {
	c, err := e.store.GetContract(ctx, contractID)
	if err != nil {
		return err
	}

	passed := score >= e.cfg.ValidationPass
	if _, err := e.store.ValidateDelivery(ctx, contractID, score, passed); err != nil {
		return err
	}

	if !passed {
		_, err := e.store.TransitionContract(ctx, contractID, contract.StatusFailed, nil)
		return err
	}

	if _, err := e.store.TransitionContract(ctx, contractID, contract.StatusValidated, nil); err != nil {
		return err
	}
	if _, err := e.store.TransitionContract(ctx, contractID, contract.StatusSettled, nil); err != nil {
		return err
	}

	if c.AwardedTo != nil {
		promised := 0.0
		if bids, err := e.store.ListBids(ctx, contractID); err == nil {
			for _, b := range bids {
				if b.AgentID == *c.AwardedTo {
					promised = float64(b.EtaSeconds)
					break
				}
			}
		}
		actual := 0.0
		if c.AwardedAt != nil {
			actual = time.Since(*c.AwardedAt).Seconds()
		}
		if err := e.store.AppendAgentMetric(ctx, store.AppendAgentMetricParams{
			ID:            uuid.NewString(),
			AgentID:       *c.AwardedTo,
			ContractID:    &c.ID,
			ExecutionTime: actual,
			PromisedTime:  promised,
			Success:       true,
		}); err != nil {
			return fmt.Errorf("append settlement metric: %w", err)
		}
	}
	return nil
}

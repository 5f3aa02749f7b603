package contract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meshhub/hub/ent"
	"github.com/meshhub/hub/ent/contract"
	"github.com/meshhub/hub/internal/apperr"
	"github.com/meshhub/hub/internal/store"
)

type fakeContractStore struct {
	contracts  map[string]*ent.Contract
	bids       map[string][]*ent.Bid
	agents     map[string]*ent.Agent
	prefs      map[string]*ent.AwardPreference
	deliveries map[string]*ent.Delivery

	transitions []string
	metrics     []store.AppendAgentMetricParams
}

func newFakeContractStore() *fakeContractStore {
	return &fakeContractStore{
		contracts:  make(map[string]*ent.Contract),
		bids:       make(map[string][]*ent.Bid),
		agents:     make(map[string]*ent.Agent),
		prefs:      make(map[string]*ent.AwardPreference),
		deliveries: make(map[string]*ent.Delivery),
	}
}

func (f *fakeContractStore) GetContract(ctx context.Context, id string) (*ent.Contract, error) {
	c, ok := f.contracts[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return c, nil
}

func (f *fakeContractStore) ListContractsByStatus(ctx context.Context, status contract.Status, limit int) ([]*ent.Contract, error) {
	var out []*ent.Contract
	for _, c := range f.contracts {
		if c.Status == status {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeContractStore) TransitionContract(ctx context.Context, id string, to contract.Status, awardedTo *string) (*ent.Contract, error) {
	c := f.contracts[id]
	c.Status = to
	if awardedTo != nil {
		c.AwardedTo = awardedTo
		now := time.Now()
		c.AwardedAt = &now
	}
	f.transitions = append(f.transitions, string(to))
	return c, nil
}

func (f *fakeContractStore) ListBids(ctx context.Context, contractID string) ([]*ent.Bid, error) {
	return f.bids[contractID], nil
}

func (f *fakeContractStore) CreateDelivery(ctx context.Context, id, contractID, agentID string, data map[string]interface{}) (*ent.Delivery, error) {
	d := &ent.Delivery{ID: id, ContractID: contractID, AgentID: agentID, Data: data}
	f.deliveries[contractID] = d
	return d, nil
}

func (f *fakeContractStore) ValidateDelivery(ctx context.Context, contractID string, score float64, validated bool) (*ent.Delivery, error) {
	d := f.deliveries[contractID]
	d.ValidationScore = &score
	d.IsValidated = validated
	return d, nil
}

func (f *fakeContractStore) GetAwardPreference(ctx context.Context, userID string) (*ent.AwardPreference, error) {
	p, ok := f.prefs[userID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return p, nil
}

func (f *fakeContractStore) GetAgent(ctx context.Context, id string) (*ent.Agent, error) {
	a, ok := f.agents[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return a, nil
}

func (f *fakeContractStore) AppendAgentMetric(ctx context.Context, p store.AppendAgentMetricParams) error {
	f.metrics = append(f.metrics, p)
	return nil
}

type fakeNotifier struct {
	sent []string
}

func (n *fakeNotifier) SendToAgent(ctx context.Context, agentID string, event interface{}) {
	n.sent = append(n.sent, agentID)
}

func bidFixture(contractID, agentID string, price float64, eta int, confidence float64) *ent.Bid {
	return &ent.Bid{ContractID: contractID, AgentID: agentID, Price: price, EtaSeconds: eta, Confidence: confidence}
}

func TestEngine_SweepBiddingCancelsContractWithNoBids(t *testing.T) {
	fs := newFakeContractStore()
	old := time.Now().Add(-time.Hour)
	fs.contracts["c1"] = &ent.Contract{ID: "c1", Status: contract.StatusBidding, CreatedAt: old}

	e := New(fs, nil, Config{}, nil)
	require.NoError(t, e.sweepBidding(context.Background()))
	require.Equal(t, contract.StatusCancelled, fs.contracts["c1"].Status)
}

func TestEngine_SweepBiddingSkipsContractsStillWithinWindow(t *testing.T) {
	fs := newFakeContractStore()
	fs.contracts["c1"] = &ent.Contract{ID: "c1", Status: contract.StatusBidding, CreatedAt: time.Now()}

	e := New(fs, nil, Config{BiddingWindow: time.Hour}, nil)
	require.NoError(t, e.sweepBidding(context.Background()))
	require.Equal(t, contract.StatusBidding, fs.contracts["c1"].Status)
}

func TestEngine_SweepBiddingAwardsLowestPrice(t *testing.T) {
	fs := newFakeContractStore()
	old := time.Now().Add(-time.Hour)
	fs.contracts["c1"] = &ent.Contract{ID: "c1", Status: contract.StatusBidding, CreatedAt: old, AwardStrategy: "lowest_price"}
	fs.bids["c1"] = []*ent.Bid{
		bidFixture("c1", "agent-cheap", 5, 10, 0.9),
		bidFixture("c1", "agent-pricey", 50, 5, 0.9),
	}
	fs.agents["agent-cheap"] = &ent.Agent{ID: "agent-cheap", TrustScore: 0.5}
	fs.agents["agent-pricey"] = &ent.Agent{ID: "agent-pricey", TrustScore: 0.9}
	notifier := &fakeNotifier{}

	e := New(fs, notifier, Config{}, nil)
	require.NoError(t, e.sweepBidding(context.Background()))

	require.Equal(t, contract.StatusAwarded, fs.contracts["c1"].Status)
	require.Equal(t, "agent-cheap", *fs.contracts["c1"].AwardedTo)
	require.Equal(t, []string{"agent-cheap"}, notifier.sent)
}

func TestEngine_SweepBiddingAwardsHighestTrust(t *testing.T) {
	fs := newFakeContractStore()
	old := time.Now().Add(-time.Hour)
	fs.contracts["c1"] = &ent.Contract{ID: "c1", Status: contract.StatusBidding, CreatedAt: old, AwardStrategy: "highest_trust"}
	fs.bids["c1"] = []*ent.Bid{
		bidFixture("c1", "agent-low", 5, 10, 0.9),
		bidFixture("c1", "agent-high", 50, 5, 0.9),
	}
	fs.agents["agent-low"] = &ent.Agent{ID: "agent-low", TrustScore: 0.3}
	fs.agents["agent-high"] = &ent.Agent{ID: "agent-high", TrustScore: 0.95}

	e := New(fs, nil, Config{}, nil)
	require.NoError(t, e.sweepBidding(context.Background()))
	require.Equal(t, "agent-high", *fs.contracts["c1"].AwardedTo)
}

func TestEngine_ReputationWeightedHonorsMaxPriceFilter(t *testing.T) {
	fs := newFakeContractStore()
	old := time.Now().Add(-time.Hour)
	fs.contracts["c1"] = &ent.Contract{ID: "c1", Issuer: "user-1", Status: contract.StatusBidding, CreatedAt: old, AwardStrategy: "reputation_weighted"}
	fs.bids["c1"] = []*ent.Bid{
		bidFixture("c1", "agent-expensive", 100, 10, 0.99),
		bidFixture("c1", "agent-cheap", 5, 10, 0.5),
	}
	fs.agents["agent-expensive"] = &ent.Agent{ID: "agent-expensive", TrustScore: 0.9}
	fs.agents["agent-cheap"] = &ent.Agent{ID: "agent-cheap", TrustScore: 0.9}
	maxPrice := 10.0
	fs.prefs["user-1"] = &ent.AwardPreference{
		UserID: "user-1", WeightPrice: 0.25, WeightConfidence: 0.25, WeightSpeed: 0.25, WeightTrust: 0.25,
		MaxPrice: &maxPrice,
	}

	e := New(fs, nil, Config{}, nil)
	require.NoError(t, e.sweepBidding(context.Background()))
	require.Equal(t, "agent-cheap", *fs.contracts["c1"].AwardedTo)
}

func TestEngine_DeliverRejectsNonWinner(t *testing.T) {
	fs := newFakeContractStore()
	winner := "agent-1"
	fs.contracts["c1"] = &ent.Contract{ID: "c1", Status: contract.StatusAwarded, AwardedTo: &winner}

	e := New(fs, nil, Config{}, nil)
	_, err := e.Deliver(context.Background(), "c1", "agent-2", nil)
	require.Error(t, err)
}

func TestEngine_DeliverTransitionsToDelivered(t *testing.T) {
	fs := newFakeContractStore()
	winner := "agent-1"
	fs.contracts["c1"] = &ent.Contract{ID: "c1", Status: contract.StatusAwarded, AwardedTo: &winner}

	e := New(fs, nil, Config{}, nil)
	_, err := e.Deliver(context.Background(), "c1", "agent-1", map[string]interface{}{"ok": true})
	require.NoError(t, err)
	require.Equal(t, contract.StatusDelivered, fs.contracts["c1"].Status)
}

func TestEngine_ValidatePassingScoreSettlesAndEmitsMetric(t *testing.T) {
	fs := newFakeContractStore()
	winner := "agent-1"
	now := time.Now()
	fs.contracts["c1"] = &ent.Contract{ID: "c1", Status: contract.StatusDelivered, AwardedTo: &winner, AwardedAt: &now}
	fs.deliveries["c1"] = &ent.Delivery{ContractID: "c1", AgentID: "agent-1"}
	fs.bids["c1"] = []*ent.Bid{bidFixture("c1", "agent-1", 10, 5, 0.9)}

	e := New(fs, nil, Config{ValidationPass: 0.6}, nil)
	require.NoError(t, e.Validate(context.Background(), "c1", 0.8))

	require.Equal(t, contract.StatusSettled, fs.contracts["c1"].Status)
	require.Len(t, fs.metrics, 1)
	require.True(t, fs.metrics[0].Success)
}

func TestEngine_ValidateFailingScoreFailsContract(t *testing.T) {
	fs := newFakeContractStore()
	winner := "agent-1"
	fs.contracts["c1"] = &ent.Contract{ID: "c1", Status: contract.StatusDelivered, AwardedTo: &winner}
	fs.deliveries["c1"] = &ent.Delivery{ContractID: "c1", AgentID: "agent-1"}

	e := New(fs, nil, Config{ValidationPass: 0.6}, nil)
	require.NoError(t, e.Validate(context.Background(), "c1", 0.2))
	require.Equal(t, contract.StatusFailed, fs.contracts["c1"].Status)
}

func TestEngine_SweepExpiredExecutionsFailsOverdueContract(t *testing.T) {
	fs := newFakeContractStore()
	winner := "agent-1"
	old := time.Now().Add(-time.Hour)
	fs.contracts["c1"] = &ent.Contract{ID: "c1", Status: contract.StatusAwarded, AwardedTo: &winner, AwardedAt: &old}

	e := New(fs, nil, Config{MaxExecutionWindow: time.Minute}, nil)
	require.NoError(t, e.sweepExpiredExecutions(context.Background()))

	require.Equal(t, contract.StatusFailed, fs.contracts["c1"].Status)
	require.Len(t, fs.metrics, 1)
	require.False(t, fs.metrics[0].Success)
}

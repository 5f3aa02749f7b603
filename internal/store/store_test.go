package store

import (
	"context"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/meshhub/hub/ent"
	"github.com/meshhub/hub/ent/agent"
	"github.com/meshhub/hub/ent/contract"
	"github.com/meshhub/hub/ent/orchestrationplan"
	"github.com/meshhub/hub/pkg/database"
)

// newTestStore spins up a throwaway Postgres container, runs ent's
// auto-migration and the search indexes, and returns a Store over it.
// Mirrors pkg/database/client_test.go's newTestClient helper.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	drv, err := sql.Open(dialect.Postgres, connStr)
	require.NoError(t, err)

	entClient := ent.NewClient(ent.Driver(drv))
	require.NoError(t, entClient.Schema.Create(ctx))
	require.NoError(t, database.CreateSearchIndexes(ctx, drv))

	t.Cleanup(func() {
		_ = entClient.Close()
	})

	return New(entClient)
}

func newTestAgent(t *testing.T, s *Store, name string) *ent.Agent {
	t.Helper()
	a, err := s.UpsertAgent(context.Background(), UpsertAgentParams{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  "diagnoses production incidents",
		Endpoint:     "https://" + name + ".example/a2a",
		Capabilities: []string{"kubernetes", "logs"},
		Category:     "ops",
		Status:       agent.StatusActive,
		IsPublic:     true,
	})
	require.NoError(t, err)
	return a
}

func TestStore_UpsertAgent_IsIdempotentByName(t *testing.T) {
	s := newTestStore(t)
	a1 := newTestAgent(t, s, "cluster-doctor")
	a2 := newTestAgent(t, s, "cluster-doctor")
	require.Equal(t, a1.ID, a2.ID)
}

func TestStore_GetAgent_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetAgent(context.Background(), uuid.NewString())
	require.Error(t, err)
}

func TestStore_SearchAgents_MatchesCapabilityOverlap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestAgent(t, s, "cluster-doctor")

	_, err := s.client.Agent.Create().
		SetID(uuid.NewString()).
		SetName("billing-bot").
		SetDescription("handles invoices").
		SetEndpoint("https://billing-bot.example/a2a").
		SetCapabilities([]string{"billing"}).
		SetCategory("finance").
		SetStatus(agent.StatusActive).
		SetIsPublic(true).
		Save(ctx)
	require.NoError(t, err)

	results, err := s.SearchAgents(ctx, "", []string{"kubernetes"}, "", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "cluster-doctor", results[0].Name)
}

func TestStore_UpdateAgentStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := newTestAgent(t, s, "cluster-doctor")

	require.NoError(t, s.UpdateAgentStatus(ctx, a.ID, agent.StatusInactive))

	got, err := s.GetAgent(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, agent.StatusInactive, got.Status)
}

func TestStore_ACLAllow_PrecedenceRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	source := newTestAgent(t, s, "source-agent")
	target := newTestAgent(t, s, "target-agent")

	_, err := s.UpsertAgentAllow(ctx, uuid.NewString(), source.ID, target.ID, true)
	require.NoError(t, err)

	allow, err := s.FindAgentAllow(ctx, source.ID, target.ID)
	require.NoError(t, err)
	require.True(t, allow.Allowed)

	_, err = s.FindAgentAllow(ctx, target.ID, source.ID)
	require.Error(t, err)
}

func TestStore_CreateMessageWithReceipt_And_Inbox(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	from := newTestAgent(t, s, "from-agent")
	to := newTestAgent(t, s, "to-agent")

	conv, err := s.GetOrCreateConversation(ctx, uuid.NewString(), from.ID, to.ID)
	require.NoError(t, err)

	msg, receipt, err := s.CreateMessageWithReceipt(ctx, CreateMessageParams{
		MessageID:      uuid.NewString(),
		ConversationID: conv.ID,
		FromAgentID:    from.ID,
		ToAgentID:      to.ID,
		Content:        map[string]interface{}{"text": "hello"},
		ReceiptID:      uuid.NewString(),
	})
	require.NoError(t, err)
	require.NotNil(t, receipt)
	require.Nil(t, receipt.DeliveredAt)

	entries, err := s.Inbox(ctx, to.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, msg.ID, entries[0].Message.ID)
}

func TestStore_FindMessageByIdempotencyKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	from := newTestAgent(t, s, "from-agent")
	to := newTestAgent(t, s, "to-agent")
	conv, err := s.GetOrCreateConversation(ctx, uuid.NewString(), from.ID, to.ID)
	require.NoError(t, err)

	key := uuid.NewString()
	_, _, err = s.CreateMessageWithReceipt(ctx, CreateMessageParams{
		MessageID:      uuid.NewString(),
		ConversationID: conv.ID,
		FromAgentID:    from.ID,
		ToAgentID:      to.ID,
		Content:        map[string]interface{}{"text": "hi"},
		IdempotencyKey: &key,
		ReceiptID:      uuid.NewString(),
	})
	require.NoError(t, err)

	found, err := s.FindMessageByIdempotencyKey(ctx, from.ID, key)
	require.NoError(t, err)
	require.NotNil(t, found)

	_, err = s.FindMessageByIdempotencyKey(ctx, from.ID, uuid.NewString())
	require.Error(t, err)
}

func TestStore_ContractLifecycle_CreateBidAwardDeliver(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	issuer := newTestAgent(t, s, "issuer-agent")
	bidder := newTestAgent(t, s, "bidder-agent")

	c, err := s.CreateContract(ctx, CreateContractParams{
		ID:           uuid.NewString(),
		Issuer:       issuer.ID,
		Intent:       "diagnose outage",
		Context:      map[string]interface{}{"priority": "high"},
		RewardAmount: 10,
	})
	require.NoError(t, err)
	require.Equal(t, contract.StatusOpen, c.Status)

	bid, err := s.CreateBid(ctx, uuid.NewString(), c.ID, bidder.ID, 8, 60, 0.9)
	require.NoError(t, err)
	require.NotEmpty(t, bid.ID)

	awarded, err := s.TransitionContract(ctx, c.ID, contract.StatusAwarded, &bidder.ID)
	require.NoError(t, err)
	require.Equal(t, contract.StatusAwarded, awarded.Status)
	require.NotNil(t, awarded.AwardedTo)
	require.Equal(t, bidder.ID, *awarded.AwardedTo)

	delivery, err := s.CreateDelivery(ctx, uuid.NewString(), c.ID, bidder.ID, map[string]interface{}{"result": "done"})
	require.NoError(t, err)
	require.NotEmpty(t, delivery.ID)

	validated, err := s.ValidateDelivery(ctx, c.ID, 0.95, true)
	require.NoError(t, err)
	require.True(t, validated.IsValidated)
}

func TestStore_OrchestratorPlanAndSteps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	worker := newTestAgent(t, s, "worker-agent")

	plan, err := s.CreatePlan(ctx, CreatePlanParams{
		ID:         uuid.NewString(),
		UserID:     uuid.NewString(),
		Query:      "investigate latency spike",
		Pattern:    orchestrationplan.PatternSequential,
		Complexity: 0.4,
	})
	require.NoError(t, err)

	step, err := s.CreateStep(ctx, CreateStepParams{
		ID:                   uuid.NewString(),
		PlanID:               plan.ID,
		NodeID:               "node-1",
		Level:                0,
		RequiredCapabilities: []string{"kubernetes"},
	})
	require.NoError(t, err)

	require.NoError(t, s.StartStep(ctx, step.ID, worker.ID))
	require.NoError(t, s.CompleteStep(ctx, step.ID, true, map[string]interface{}{"ok": true}, nil))

	steps, err := s.ListPlanSteps(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, steps, 1)

	require.NoError(t, s.CompletePlan(ctx, plan.ID, map[string]interface{}{"summary": "done"}, nil))
	got, err := s.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	require.Equal(t, orchestrationplan.StatusCompleted, got.Status)
}

func TestStore_ReputationMetricsAndCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := newTestAgent(t, s, "metric-agent")

	require.NoError(t, s.AppendAgentMetric(ctx, AppendAgentMetricParams{
		ID:            uuid.NewString(),
		AgentID:       a.ID,
		ExecutionTime: 5,
		PromisedTime:  10,
		Success:       true,
	}))
	require.NoError(t, s.AppendAgentMetric(ctx, AppendAgentMetricParams{
		ID:            uuid.NewString(),
		AgentID:       a.ID,
		ExecutionTime: 20,
		PromisedTime:  10,
		Success:       false,
	}))
	require.NoError(t, s.RecordCallOutcome(ctx, a.ID, true, 5))
	require.NoError(t, s.RecordCallOutcome(ctx, a.ID, false, 20))

	total, successful, err := s.AgentCallCounters(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, 1, successful)

	samples, err := s.SpeedSamples(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, samples, 2)
}

func TestStore_FederationContactAndOrgUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	org1, err := s.GetOrCreateOrgForDomain(ctx, uuid.NewString(), "remote.example")
	require.NoError(t, err)
	org2, err := s.GetOrCreateOrgForDomain(ctx, uuid.NewString(), "remote.example")
	require.NoError(t, err)
	require.Equal(t, org1.ID, org2.ID)

	contact, err := s.UpsertFederationContact(ctx, UpsertFederationContactParams{
		ID:            uuid.NewString(),
		RemoteAgentAt: "agent@remote.example",
		RemoteDomain:  "remote.example",
	})
	require.NoError(t, err)

	found, err := s.FindFederationContact(ctx, "agent@remote.example")
	require.NoError(t, err)
	require.Equal(t, contact.ID, found.ID)
}

package a2a

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meshhub/hub/ent"
	"github.com/meshhub/hub/internal/acl"
	"github.com/meshhub/hub/internal/apperr"
	"github.com/meshhub/hub/internal/store"
)

type fakeA2AStore struct {
	agents       map[string]*ent.Agent
	byIdempotent map[string]*ent.A2AMessage
	messages     []store.CreateMessageParams
	delivered    []string
	acked        []string
}

func newFakeA2AStore() *fakeA2AStore {
	return &fakeA2AStore{agents: make(map[string]*ent.Agent), byIdempotent: make(map[string]*ent.A2AMessage)}
}

func (f *fakeA2AStore) GetAgent(ctx context.Context, id string) (*ent.Agent, error) {
	a, ok := f.agents[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return a, nil
}

func (f *fakeA2AStore) FindAgentByName(ctx context.Context, name string) (*ent.Agent, error) {
	for _, a := range f.agents {
		if a.Name == name {
			return a, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeA2AStore) FindMessageByIdempotencyKey(ctx context.Context, fromAgentID, idempotencyKey string) (*ent.A2AMessage, error) {
	m, ok := f.byIdempotent[fromAgentID+":"+idempotencyKey]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return m, nil
}

func (f *fakeA2AStore) GetOrCreateConversation(ctx context.Context, id, initiatorID, targetID string) (*ent.A2AConversation, error) {
	return &ent.A2AConversation{ID: id, InitiatorID: initiatorID, TargetID: targetID}, nil
}

func (f *fakeA2AStore) CreateMessageWithReceipt(ctx context.Context, p store.CreateMessageParams) (*ent.A2AMessage, *ent.A2AMessageReceipt, error) {
	f.messages = append(f.messages, p)
	msg := &ent.A2AMessage{ID: p.MessageID, ConversationID: p.ConversationID, FromAgentID: p.FromAgentID, ToAgentID: p.ToAgentID}
	if p.IdempotencyKey != nil {
		f.byIdempotent[p.FromAgentID+":"+*p.IdempotencyKey] = msg
	}
	return msg, &ent.A2AMessageReceipt{ID: p.ReceiptID, MessageID: msg.ID, AgentID: p.ToAgentID}, nil
}

func (f *fakeA2AStore) MarkDelivered(ctx context.Context, messageID, recipientID string) error {
	f.delivered = append(f.delivered, messageID)
	return nil
}

func (f *fakeA2AStore) Ack(ctx context.Context, messageID, recipientID string) error {
	f.acked = append(f.acked, messageID)
	return nil
}

func (f *fakeA2AStore) Inbox(ctx context.Context, agentID string, limit int) ([]store.InboxEntry, error) {
	return nil, nil
}

type allowAllACL struct{}

func (allowAllACL) Check(ctx context.Context, source, target *ent.Agent) (acl.Decision, error) {
	return acl.Decision{Allowed: true, Reason: "test"}, nil
}

type denyAllACL struct{}

func (denyAllACL) Check(ctx context.Context, source, target *ent.Agent) (acl.Decision, error) {
	return acl.Decision{Allowed: false, Reason: "test deny"}, nil
}

type noopLimiter struct{ allow bool }

func (n noopLimiter) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return n.allow, nil
}

type fakePresence struct{ sent []string }

func (f *fakePresence) SendToAgent(ctx context.Context, agentID string, event interface{}) {
	f.sent = append(f.sent, agentID)
}

func agentFixture(id, name string, creator *string, org *string) *ent.Agent {
	return &ent.Agent{ID: id, Name: name, CreatorID: creator, OrgID: org}
}

func strp(s string) *string { return &s }

func TestRouter_SendLocalDeliversAndMarksSent(t *testing.T) {
	fs := newFakeA2AStore()
	fs.agents["a1"] = agentFixture("a1", "sender", strp("user-1"), nil)
	fs.agents["a2"] = agentFixture("a2", "recipient", strp("user-2"), nil)
	presence := &fakePresence{}

	r := New(fs, noopLimiter{allow: true}, allowAllACL{}, presence, nil, Config{}, nil)
	res, err := r.Send(context.Background(), SendRequest{
		CallerID: "user-1", FromAgentID: "a1", ToAgentID: strp("a2"), Content: map[string]interface{}{"x": 1},
	})
	require.NoError(t, err)
	require.Equal(t, "sent", res.Status)
	require.Len(t, fs.delivered, 1)
	require.Equal(t, []string{"a2"}, presence.sent)
}

func TestRouter_SendRejectsUnownedSender(t *testing.T) {
	fs := newFakeA2AStore()
	fs.agents["a1"] = agentFixture("a1", "sender", strp("user-1"), nil)
	fs.agents["a2"] = agentFixture("a2", "recipient", strp("user-2"), nil)

	r := New(fs, noopLimiter{allow: true}, allowAllACL{}, nil, nil, Config{}, nil)
	_, err := r.Send(context.Background(), SendRequest{
		CallerID: "someone-else", FromAgentID: "a1", ToAgentID: strp("a2"),
	})
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestRouter_SendDeniedByACL(t *testing.T) {
	fs := newFakeA2AStore()
	fs.agents["a1"] = agentFixture("a1", "sender", strp("user-1"), nil)
	fs.agents["a2"] = agentFixture("a2", "recipient", strp("user-2"), nil)

	r := New(fs, noopLimiter{allow: true}, denyAllACL{}, nil, nil, Config{}, nil)
	_, err := r.Send(context.Background(), SendRequest{
		CallerID: "user-1", FromAgentID: "a1", ToAgentID: strp("a2"),
	})
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestRouter_SendRateLimited(t *testing.T) {
	fs := newFakeA2AStore()
	fs.agents["a1"] = agentFixture("a1", "sender", strp("user-1"), nil)
	fs.agents["a2"] = agentFixture("a2", "recipient", strp("user-2"), nil)

	r := New(fs, noopLimiter{allow: false}, allowAllACL{}, nil, nil, Config{}, nil)
	_, err := r.Send(context.Background(), SendRequest{
		CallerID: "user-1", FromAgentID: "a1", ToAgentID: strp("a2"),
	})
	require.ErrorIs(t, err, apperr.ErrRateLimited)
}

func TestRouter_SendDuplicateIdempotencyKey(t *testing.T) {
	fs := newFakeA2AStore()
	fs.agents["a1"] = agentFixture("a1", "sender", strp("user-1"), nil)
	fs.agents["a2"] = agentFixture("a2", "recipient", strp("user-2"), nil)
	key := "abc-123"

	r := New(fs, noopLimiter{allow: true}, allowAllACL{}, nil, nil, Config{}, nil)
	first, err := r.Send(context.Background(), SendRequest{
		CallerID: "user-1", FromAgentID: "a1", ToAgentID: strp("a2"), IdempotencyKey: &key,
	})
	require.NoError(t, err)
	require.Equal(t, "queued", first.Status)

	second, err := r.Send(context.Background(), SendRequest{
		CallerID: "user-1", FromAgentID: "a1", ToAgentID: strp("a2"), IdempotencyKey: &key,
	})
	require.NoError(t, err)
	require.Equal(t, "duplicate", second.Status)
	require.Equal(t, first.MessageID, second.MessageID)
}

type fakeFederation struct {
	sent []OutboundMessage
}

func (f *fakeFederation) SendOutbound(ctx context.Context, msg OutboundMessage) error {
	f.sent = append(f.sent, msg)
	return nil
}

func TestRouter_SendFederatedDispatchesToFederationSender(t *testing.T) {
	fs := newFakeA2AStore()
	fs.agents["a1"] = agentFixture("a1", "sender", strp("user-1"), nil)
	fed := &fakeFederation{}

	r := New(fs, noopLimiter{allow: true}, allowAllACL{}, nil, fed, Config{LocalDomain: "hub.example"}, nil)
	res, err := r.Send(context.Background(), SendRequest{
		CallerID: "user-1", FromAgentID: "a1", ToAddress: strp("bob@remote.example"),
	})
	require.NoError(t, err)
	require.Equal(t, "queued", res.Status)
	require.Len(t, fed.sent, 1)
	require.Equal(t, "bob@remote.example", fed.sent[0].ToAddress)
	require.Equal(t, "sender@hub.example", fed.sent[0].FromAddress)
}

func TestRouter_AckDelegatesToStore(t *testing.T) {
	fs := newFakeA2AStore()
	r := New(fs, noopLimiter{allow: true}, allowAllACL{}, nil, nil, Config{}, nil)
	require.NoError(t, r.Ack(context.Background(), "msg-1", "agent-1"))
	require.Equal(t, []string{"msg-1"}, fs.acked)
}

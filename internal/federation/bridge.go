package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/meshhub/hub/ent"
	"github.com/meshhub/hub/ent/a2amessage"
	"github.com/meshhub/hub/ent/agent"
	"github.com/meshhub/hub/internal/acl"
	"github.com/meshhub/hub/internal/apperr"
	"github.com/meshhub/hub/internal/store"
)

// BridgeStore is the subset of internal/store.Store the inbound bridge needs.
type BridgeStore interface {
	FindAgentByName(ctx context.Context, name string) (*ent.Agent, error)
	UpsertAgent(ctx context.Context, p store.UpsertAgentParams) (*ent.Agent, error)
	GetOrCreateOrgForDomain(ctx context.Context, id, domain string) (*ent.Organization, error)
	UpsertFederationContact(ctx context.Context, p store.UpsertFederationContactParams) (*ent.FederationContact, error)
	FindMessageByIdempotencyKey(ctx context.Context, fromAgentID, idempotencyKey string) (*ent.A2AMessage, error)
	GetOrCreateConversation(ctx context.Context, id, initiatorID, targetID string) (*ent.A2AConversation, error)
	CreateMessageWithReceipt(ctx context.Context, p store.CreateMessageParams) (*ent.A2AMessage, *ent.A2AMessageReceipt, error)
	MarkDelivered(ctx context.Context, messageID, recipientID string) error
}

// ACLChecker is the subset of internal/acl.Evaluator the bridge needs.
type ACLChecker interface {
	CheckFederationInbound(ctx context.Context, source, target *ent.Agent) (acl.Decision, error)
}

// Notifier pushes an inbound federated message to the local target's
// presence stream (C3).
type Notifier interface {
	SendToAgent(ctx context.Context, agentID string, event interface{})
}

// Acker sends a best-effort ACK envelope back to the sending hub.
type Acker interface {
	Ack(ctx context.Context, toDomain, messageID string)
}

// BridgeConfig tunes domain and signature enforcement.
type BridgeConfig struct {
	LocalDomain  string
	SharedSecret string
	HMACRequired bool
}

// Bridge processes inbound federation traffic (spec §4.8 "Inbound").
type Bridge struct {
	store    BridgeStore
	aclCheck ACLChecker
	presence Notifier
	acker    Acker
	cfg      BridgeConfig
	logger   *slog.Logger
}

// NewBridge creates an inbound federation bridge.
func NewBridge(s BridgeStore, aclCheck ACLChecker, presence Notifier, acker Acker, cfg BridgeConfig, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{store: s, aclCheck: aclCheck, presence: presence, acker: acker, cfg: cfg, logger: logger}
}

// InboundResult is returned to the HTTP layer to build its response.
type InboundResult struct {
	Status         string // "accepted" or "duplicate"
	Delivered      bool
	ConversationID string
	MessageID      string
}

// errSignatureInvalid signals the caller should respond 401.
var errSignatureInvalid = errors.New("invalid federation signature")

// HandleInbound runs the full nine-step inbound procedure against a raw
// request body and its signature header.
func (b *Bridge) HandleInbound(ctx context.Context, rawBody []byte, sigHeader string) (InboundResult, error) {
	// 1. Verify signature.
	if !Verify(VerifyOptions{Secret: b.cfg.SharedSecret, Required: b.cfg.HMACRequired}, rawBody, sigHeader) {
		return InboundResult{}, errSignatureInvalid
	}

	// 2. Parse envelope; reject domain mismatch.
	var env Envelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		return InboundResult{}, fmt.Errorf("parse envelope: %w", apperr.ErrBadRequest)
	}
	toName, toDomain, ok := SplitAddress(env.To)
	if !ok {
		return InboundResult{}, fmt.Errorf("invalid 'to' address %q: %w", env.To, apperr.ErrBadRequest)
	}
	if b.cfg.LocalDomain != "" && toDomain != b.cfg.LocalDomain {
		return InboundResult{}, apperr.ErrNotFound
	}

	fromName, fromDomain, ok := SplitAddress(env.From)
	if !ok {
		return InboundResult{}, fmt.Errorf("invalid 'from' address %q: %w", env.From, apperr.ErrBadRequest)
	}

	// 3. Resolve local target.
	localTarget, err := b.store.FindAgentByName(ctx, toName)
	if err != nil {
		return InboundResult{}, fmt.Errorf("resolve local target %s: %w", toName, apperr.ErrNotFound)
	}

	// 4. Upsert remote stub, its org, and the federation contact.
	remoteStub, err := b.store.UpsertAgent(ctx, store.UpsertAgentParams{
		ID:       uuid.NewString(),
		Name:     env.From,
		Category: "federated",
		Status:   agent.StatusInactive,
		IsFree:   true,
	})
	if err != nil {
		return InboundResult{}, fmt.Errorf("upsert remote stub %s: %w", env.From, err)
	}

	remoteOrg, err := b.store.GetOrCreateOrgForDomain(ctx, uuid.NewString(), fromDomain)
	if err != nil {
		b.logger.WarnContext(ctx, "link remote agent to org failed", "domain", fromDomain, "error", err)
	}

	var remoteOrgID, localOrgID *string
	if remoteOrg != nil {
		remoteOrgID = &remoteOrg.ID
	}
	if localTarget.OrgID != nil {
		localOrgID = localTarget.OrgID
	}
	if _, err := b.store.UpsertFederationContact(ctx, store.UpsertFederationContactParams{
		ID:              uuid.NewString(),
		RemoteAgentAt:   env.From,
		RemoteAgentName: fromName,
		RemoteDomain:    fromDomain,
		RemoteOrgID:     remoteOrgID,
		LocalAgentID:    &localTarget.ID,
		LocalOrgID:      localOrgID,
	}); err != nil {
		b.logger.WarnContext(ctx, "upsert federation contact failed", "remote", env.From, "error", err)
	}

	// 5. ACL.
	decision, err := b.aclCheck.CheckFederationInbound(ctx, remoteStub, localTarget)
	if err != nil {
		return InboundResult{}, fmt.Errorf("federation acl check: %w", err)
	}
	if !decision.Allowed {
		return InboundResult{}, apperr.ErrForbidden
	}

	// 6. Dedupe by (conversation, idempotency_key=envelope.id, from=stub).
	conv, err := b.store.GetOrCreateConversation(ctx, uuid.NewString(), remoteStub.ID, localTarget.ID)
	if err != nil {
		return InboundResult{}, fmt.Errorf("get or create conversation: %w", err)
	}
	if env.ID != "" {
		if prior, err := b.store.FindMessageByIdempotencyKey(ctx, remoteStub.ID, env.ID); err == nil {
			return InboundResult{Status: "duplicate", ConversationID: prior.ConversationID, MessageID: prior.ID}, nil
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return InboundResult{}, fmt.Errorf("check dedupe: %w", err)
		}
	}

	// 7. Persist message + receipt (attempts=1, last_attempt_at=now).
	messageID := env.ID
	if messageID == "" {
		messageID = uuid.NewString()
	}
	msgType := a2amessage.MessageType(env.Type)
	switch msgType {
	case "request", "response", "notification", "heartbeat", "error":
	default:
		msgType = a2amessage.MessageTypeNotification
	}

	var idempotencyKey *string
	if env.ID != "" {
		idempotencyKey = &env.ID
	}

	msg, receipt, err := b.store.CreateMessageWithReceipt(ctx, store.CreateMessageParams{
		MessageID:          messageID,
		ConversationID:     conv.ID,
		FromAgentID:        remoteStub.ID,
		ToAgentID:          localTarget.ID,
		MessageType:        msgType,
		Content:            env.Payload,
		RequiresResponse:   env.RequiresResponse,
		IdempotencyKey:     idempotencyKey,
		ReceiptID:          uuid.NewString(),
		InitialAttempts:    1,
		InitialLastAttempt: true,
	})
	if err != nil {
		return InboundResult{}, fmt.Errorf("persist inbound message: %w", err)
	}

	// 8. Best-effort push.
	delivered := false
	if b.presence != nil {
		b.presence.SendToAgent(ctx, localTarget.ID, map[string]interface{}{
			"type":            "a2a.federated_message",
			"from":            env.From,
			"payload":         env.Payload,
			"id":              msg.ID,
			"timestamp":       env.Timestamp,
			"conversation_id": conv.ID,
		})
		if err := b.store.MarkDelivered(ctx, msg.ID, localTarget.ID); err != nil {
			b.logger.WarnContext(ctx, "mark inbound federated message delivered failed", "message_id", msg.ID, "error", err)
		} else {
			delivered = true
		}
	}
	_ = receipt

	// 9. Best-effort ACK back to sender hub.
	if b.acker != nil && fromDomain != "" {
		go b.acker.Ack(context.WithoutCancel(ctx), fromDomain, msg.ID)
	}

	return InboundResult{Status: "accepted", Delivered: delivered, ConversationID: conv.ID, MessageID: msg.ID}, nil
}

// IsSignatureInvalid reports whether err is the inbound signature-rejection
// sentinel, so the HTTP layer can map it to 401.
func IsSignatureInvalid(err error) bool {
	return errors.Is(err, errSignatureInvalid)
}

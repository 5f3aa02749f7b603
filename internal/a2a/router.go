// Package a2a implements the mesh hub's agent-to-agent message router (C7):
// the nine-step send procedure from spec §4.7 (auth, rate limit, idempotency,
// target resolution, ACL, conversation, persist, push, return), plus ack and
// inbox. Federated targets are handed off to a FederationSender (C8) rather
// than implemented here.
package a2a

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meshhub/hub/ent"
	"github.com/meshhub/hub/ent/a2amessage"
	"github.com/meshhub/hub/internal/acl"
	"github.com/meshhub/hub/internal/apperr"
	"github.com/meshhub/hub/internal/ratelimit"
	"github.com/meshhub/hub/internal/store"
)

const (
	defaultAPIKeyLimit  = 100
	defaultAPIKeyWindow = time.Minute
	defaultOrgLimit     = 600
	defaultOrgWindow    = time.Minute
)

// Store is the subset of internal/store.Store the router needs.
type Store interface {
	GetAgent(ctx context.Context, id string) (*ent.Agent, error)
	FindAgentByName(ctx context.Context, name string) (*ent.Agent, error)
	FindMessageByIdempotencyKey(ctx context.Context, fromAgentID, idempotencyKey string) (*ent.A2AMessage, error)
	GetOrCreateConversation(ctx context.Context, id, initiatorID, targetID string) (*ent.A2AConversation, error)
	CreateMessageWithReceipt(ctx context.Context, p store.CreateMessageParams) (*ent.A2AMessage, *ent.A2AMessageReceipt, error)
	MarkDelivered(ctx context.Context, messageID, recipientID string) error
	Ack(ctx context.Context, messageID, recipientID string) error
	Inbox(ctx context.Context, agentID string, limit int) ([]store.InboxEntry, error)
}

// RateLimiter is the subset of internal/ratelimit.Limiter the router needs.
type RateLimiter interface {
	CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// ACLChecker is the subset of internal/acl.Evaluator the router needs.
type ACLChecker interface {
	Check(ctx context.Context, source, target *ent.Agent) (acl.Decision, error)
}

// Notifier pushes a message envelope to a local recipient's presence stream (C3).
type Notifier interface {
	SendToAgent(ctx context.Context, agentID string, event interface{})
}

// FederationSender hands an outbound message to the federation bridge (C8)
// when the target address is not on the local domain.
type FederationSender interface {
	SendOutbound(ctx context.Context, msg OutboundMessage) error
}

// OutboundMessage is everything C8 needs to build and sign an envelope and
// locally persist the outbound message.
type OutboundMessage struct {
	MessageID        string
	FromAgentID      string
	FromAddress      string
	ToAddress        string
	MessageType      string
	Payload          map[string]interface{}
	RequiresResponse bool
}

// Config tunes per-identity rate limits (spec §6).
type Config struct {
	LocalDomain  string
	APIKeyLimit  int
	APIKeyWindow time.Duration
	OrgLimit     int
	OrgWindow    time.Duration
}

// Router implements send/ack/inbox.
type Router struct {
	store       Store
	limiter     RateLimiter
	aclCheck    ACLChecker
	presence    Notifier
	federation  FederationSender
	cfg         Config
	logger      *slog.Logger
}

// New creates an A2A router. federation may be nil if this deployment never
// federates; a federated-target send then fails with apperr.ErrNotFound.
func New(s Store, limiter RateLimiter, aclCheck ACLChecker, presence Notifier, federation FederationSender, cfg Config, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKeyLimit <= 0 {
		cfg.APIKeyLimit = defaultAPIKeyLimit
	}
	if cfg.APIKeyWindow <= 0 {
		cfg.APIKeyWindow = defaultAPIKeyWindow
	}
	if cfg.OrgLimit <= 0 {
		cfg.OrgLimit = defaultOrgLimit
	}
	if cfg.OrgWindow <= 0 {
		cfg.OrgWindow = defaultOrgWindow
	}
	return &Router{store: s, limiter: limiter, aclCheck: aclCheck, presence: presence, federation: federation, cfg: cfg, logger: logger}
}

// SendRequest is the caller-supplied payload for a send (spec §4.7).
type SendRequest struct {
	CallerID         string
	CallerOrgID      *string
	APIKeyID         string
	FromAgentID      string
	ToAgentID        *string
	ToAddress        *string // "name@domain" form for federated or local-by-name targets
	MessageType      a2amessage.MessageType
	Content          map[string]interface{}
	RequiresResponse bool
	IdempotencyKey   *string
	ConversationID   *string
}

// SendResult is the response shape from spec §4.7 step 9.
type SendResult struct {
	MessageID      string
	Status         string // "queued", "sent", or "duplicate"
	ConversationID string
}

// Send implements the nine-step procedure.
func (r *Router) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	from, err := r.store.GetAgent(ctx, req.FromAgentID)
	if err != nil {
		return SendResult{}, fmt.Errorf("load sender: %w", err)
	}

	// 1. Authentication: the caller must own the sending agent or share its org.
	if from.CreatorID == nil || *from.CreatorID != req.CallerID {
		sameOrg := from.OrgID != nil && req.CallerOrgID != nil && *from.OrgID == *req.CallerOrgID
		if !sameOrg {
			return SendResult{}, apperr.ErrForbidden
		}
	}

	// 2. Rate limits: api-key then org.
	if r.limiter != nil {
		ok, err := r.limiter.CheckAndIncrement(ctx, ratelimit.KeyForAPIKey(req.APIKeyID), r.cfg.APIKeyLimit, r.cfg.APIKeyWindow)
		if err != nil {
			return SendResult{}, fmt.Errorf("check api-key rate limit: %w", err)
		}
		if !ok {
			return SendResult{}, apperr.ErrRateLimited
		}
		if from.OrgID != nil {
			ok, err := r.limiter.CheckAndIncrement(ctx, ratelimit.KeyForOrg(*from.OrgID), r.cfg.OrgLimit, r.cfg.OrgWindow)
			if err != nil {
				return SendResult{}, fmt.Errorf("check org rate limit: %w", err)
			}
			if !ok {
				return SendResult{}, apperr.ErrRateLimited
			}
		}
	}

	// 3. Idempotency.
	if req.IdempotencyKey != nil {
		prior, err := r.store.FindMessageByIdempotencyKey(ctx, from.ID, *req.IdempotencyKey)
		if err == nil {
			return SendResult{MessageID: prior.ID, Status: "duplicate", ConversationID: prior.ConversationID}, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return SendResult{}, fmt.Errorf("check idempotency: %w", err)
		}
	}

	// 4. Target resolution.
	messageID := uuid.NewString()
	if req.ToAddress != nil {
		if domain, ok := federatedDomain(*req.ToAddress, r.cfg.LocalDomain); ok {
			return r.sendFederated(ctx, messageID, from, *req.ToAddress, domain, req)
		}
		target, err := r.store.FindAgentByName(ctx, localName(*req.ToAddress))
		if err != nil {
			return SendResult{}, fmt.Errorf("resolve target: %w", err)
		}
		return r.sendLocal(ctx, messageID, from, target, req)
	}
	if req.ToAgentID == nil {
		return SendResult{}, apperr.ErrBadRequest
	}
	target, err := r.store.GetAgent(ctx, *req.ToAgentID)
	if err != nil {
		return SendResult{}, fmt.Errorf("resolve target: %w", err)
	}
	return r.sendLocal(ctx, messageID, from, target, req)
}

func (r *Router) sendLocal(ctx context.Context, messageID string, from, target *ent.Agent, req SendRequest) (SendResult, error) {
	// 5. ACL.
	decision, err := r.aclCheck.Check(ctx, from, target)
	if err != nil {
		return SendResult{}, fmt.Errorf("acl check: %w", err)
	}
	if !decision.Allowed {
		return SendResult{}, apperr.ErrForbidden
	}

	// 6. Conversation.
	convID := ""
	if req.ConversationID != nil {
		convID = *req.ConversationID
	} else {
		conv, err := r.store.GetOrCreateConversation(ctx, uuid.NewString(), from.ID, target.ID)
		if err != nil {
			return SendResult{}, fmt.Errorf("get or create conversation: %w", err)
		}
		convID = conv.ID
	}

	// 7. Persist.
	msg, _, err := r.store.CreateMessageWithReceipt(ctx, store.CreateMessageParams{
		MessageID:       messageID,
		ConversationID:  convID,
		FromAgentID:     from.ID,
		ToAgentID:       target.ID,
		MessageType:     req.MessageType,
		Content:         req.Content,
		RequiresResponse: req.RequiresResponse,
		IdempotencyKey:  req.IdempotencyKey,
		ReceiptID:       uuid.NewString(),
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("persist message: %w", err)
	}

	// 8. Push.
	status := "queued"
	if r.presence != nil {
		r.presence.SendToAgent(ctx, target.ID, map[string]interface{}{
			"type":            "a2a.message",
			"id":              msg.ID,
			"conversation_id": convID,
			"from_agent_id":   from.ID,
			"message_type":    string(req.MessageType),
			"content":         req.Content,
		})
		if err := r.store.MarkDelivered(ctx, msg.ID, target.ID); err != nil {
			r.logger.ErrorContext(ctx, "mark delivered failed", "message_id", msg.ID, "error", err)
		} else {
			status = "sent"
		}
	}

	// 9. Return.
	return SendResult{MessageID: msg.ID, Status: status, ConversationID: convID}, nil
}

func (r *Router) sendFederated(ctx context.Context, messageID string, from *ent.Agent, toAddress, domain string, req SendRequest) (SendResult, error) {
	if r.federation == nil {
		return SendResult{}, apperr.ErrNotFound
	}

	convID := ""
	if req.ConversationID != nil {
		convID = *req.ConversationID
	}

	fromAddress := from.Name
	if r.cfg.LocalDomain != "" {
		fromAddress = fmt.Sprintf("%s@%s", from.Name, r.cfg.LocalDomain)
	}

	err := r.federation.SendOutbound(ctx, OutboundMessage{
		MessageID:        messageID,
		FromAgentID:      from.ID,
		FromAddress:      fromAddress,
		ToAddress:        toAddress,
		MessageType:      string(req.MessageType),
		Payload:          req.Content,
		RequiresResponse: req.RequiresResponse,
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("federation send to %s: %w", domain, err)
	}
	return SendResult{MessageID: messageID, Status: "queued", ConversationID: convID}, nil
}

// Ack marks a message's receipt as acknowledged.
func (r *Router) Ack(ctx context.Context, messageID, agentID string) error {
	return r.store.Ack(ctx, messageID, agentID)
}

// Inbox lists an agent's unacknowledged messages.
func (r *Router) Inbox(ctx context.Context, agentID string, limit int) ([]store.InboxEntry, error) {
	return r.store.Inbox(ctx, agentID, limit)
}

// federatedDomain splits "name@domain" and reports whether domain differs
// from the local domain (spec §4.7 step 4, §4.8).
func federatedDomain(address, localDomain string) (string, bool) {
	idx := strings.LastIndex(address, "@")
	if idx < 0 {
		return "", false
	}
	domain := address[idx+1:]
	if domain == "" || domain == localDomain {
		return "", false
	}
	return domain, true
}

func localName(address string) string {
	idx := strings.LastIndex(address, "@")
	if idx < 0 {
		return address
	}
	return address[:idx]
}

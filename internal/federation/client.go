package federation

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/meshhub/hub/ent"
	"github.com/meshhub/hub/ent/a2amessage"
	"github.com/meshhub/hub/ent/agent"
	"github.com/meshhub/hub/internal/a2a"
	"github.com/meshhub/hub/internal/apperr"
	"github.com/meshhub/hub/internal/store"
	"github.com/meshhub/hub/pkg/version"
)

const defaultOutboundTimeout = 10 * time.Second

// ClientStore is the subset of internal/store.Store the outbound client
// needs, kept as an interface so sends can be tested without a live database.
type ClientStore interface {
	UpsertAgent(ctx context.Context, p store.UpsertAgentParams) (*ent.Agent, error)
	GetOrCreateConversation(ctx context.Context, id, initiatorID, targetID string) (*ent.A2AConversation, error)
	CreateMessageWithReceipt(ctx context.Context, p store.CreateMessageParams) (*ent.A2AMessage, *ent.A2AMessageReceipt, error)
	MarkDelivered(ctx context.Context, messageID, recipientID string) error
}

// Client sends outbound federation traffic and best-effort ACKs to remote hubs.
type Client struct {
	httpClient   *http.Client
	store        ClientStore
	localDomain  string
	sharedSecret string
	logger       *slog.Logger
}

// ClientConfig configures an outbound federation client.
type ClientConfig struct {
	LocalDomain  string
	SharedSecret string
	Timeout      time.Duration
}

// NewClient builds an outbound federation client.
func NewClient(s ClientStore, cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOutboundTimeout
	}
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		store:        s,
		localDomain:  cfg.LocalDomain,
		sharedSecret: cfg.SharedSecret,
		logger:       logger,
	}
}

// SendOutbound implements a2a.FederationSender: it mirrors the remote
// target as a local stub, persists the outbound message and receipt, signs
// and POSTs the envelope, and marks the receipt delivered on a 2xx response
// (spec §4.8 "Outbound").
func (c *Client) SendOutbound(ctx context.Context, msg a2a.OutboundMessage) error {
	_, toDomain, ok := SplitAddress(msg.ToAddress)
	if !ok {
		return fmt.Errorf("invalid to address %q: %w", msg.ToAddress, apperr.ErrBadRequest)
	}

	stub, err := c.store.UpsertAgent(ctx, store.UpsertAgentParams{
		ID:       uuid.NewString(),
		Name:     msg.ToAddress,
		Endpoint: "",
		Category: "federated",
		Status:   agent.StatusInactive,
		IsFree:   true,
	})
	if err != nil {
		return fmt.Errorf("upsert remote stub %s: %w", msg.ToAddress, err)
	}

	conv, err := c.store.GetOrCreateConversation(ctx, uuid.NewString(), msg.FromAgentID, stub.ID)
	if err != nil {
		return fmt.Errorf("get or create conversation: %w", err)
	}

	receiptID := uuid.NewString()
	_, receipt, err := c.store.CreateMessageWithReceipt(ctx, store.CreateMessageParams{
		MessageID:      msg.MessageID,
		ConversationID: conv.ID,
		FromAgentID:    msg.FromAgentID,
		ToAgentID:      stub.ID,
		MessageType:    a2amessage.MessageType(normalizeType(msg.MessageType)),
		Content:        msg.Payload,
		RequiresResponse: msg.RequiresResponse,
		ReceiptID:      receiptID,
	})
	if err != nil {
		return fmt.Errorf("persist outbound message: %w", err)
	}

	env := Envelope{
		ID:               msg.MessageID,
		From:             msg.FromAddress,
		To:               msg.ToAddress,
		Type:             normalizeType(msg.MessageType),
		Payload:          msg.Payload,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		RequiresResponse: msg.RequiresResponse,
	}
	raw, err := marshalCompact(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	url := fmt.Sprintf("http://%s/api/v1/a2a/federation/inbox", toDomain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build outbound request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.Full())
	if sig := Sign(c.sharedSecret, raw); sig != "" {
		req.Header.Set("X-Hub-Signature-256", sig)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "federation outbound send failed", "to", msg.ToAddress, "error", err)
		return nil // logged only: the receipt stays undelivered and the send is not retried
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := c.store.MarkDelivered(ctx, receipt.MessageID, stub.ID); err != nil {
			c.logger.ErrorContext(ctx, "mark federated receipt delivered failed", "message_id", msg.MessageID, "error", err)
		}
	} else {
		c.logger.WarnContext(ctx, "federation outbound rejected", "to", msg.ToAddress, "status", resp.StatusCode)
	}
	return nil
}

// Ack sends a best-effort acknowledgement envelope back to a remote hub for
// a message previously received from it (spec §4.8 "Best-effort: send ACK").
func (c *Client) Ack(ctx context.Context, toDomain, messageID string) {
	body := map[string]interface{}{"message_id": messageID}
	raw, err := marshalCompact(body)
	if err != nil {
		return
	}

	url := fmt.Sprintf("http://%s/api/v1/a2a/federation/ack", toDomain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.Full())
	if sig := Sign(c.sharedSecret, raw); sig != "" {
		req.Header.Set("X-Hub-Signature-256", sig)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "federation ack send failed", "to_domain", toDomain, "error", err)
		return
	}
	defer resp.Body.Close()
}

func normalizeType(t string) string {
	if t == "" {
		return "notification"
	}
	return t
}

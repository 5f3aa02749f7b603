package store

import (
	"context"
	"fmt"
	"time"

	"github.com/meshhub/hub/ent"
	"github.com/meshhub/hub/ent/a2aconversation"
	"github.com/meshhub/hub/ent/a2amessage"
	"github.com/meshhub/hub/ent/a2amessagereceipt"
	"github.com/meshhub/hub/internal/apperr"
)

// FindActiveConversation finds an active conversation for a (initiator, target)
// pair. Used to satisfy the "at most one active conversation per ordered pair"
// invariant in the federation context (spec §3); callers in the purely local
// path may allow multiple conversations to coexist and skip this lookup.
func (s *Store) FindActiveConversation(ctx context.Context, initiatorID, targetID string) (*ent.A2AConversation, error) {
	conv, err := s.client.A2AConversation.Query().
		Where(
			a2aconversation.InitiatorIDEQ(initiatorID),
			a2aconversation.TargetIDEQ(targetID),
			a2aconversation.StatusEQ(a2aconversation.StatusActive),
		).Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("find active conversation %s->%s: %w", initiatorID, targetID, err)
	}
	return conv, nil
}

// GetOrCreateConversation returns the active (initiator, target) conversation,
// creating one with topic "a2a" if none exists (spec §4.7 step 6).
func (s *Store) GetOrCreateConversation(ctx context.Context, id, initiatorID, targetID string) (*ent.A2AConversation, error) {
	existing, err := s.FindActiveConversation(ctx, initiatorID, targetID)
	if err == nil {
		return existing, nil
	}

	conv, err := s.client.A2AConversation.Create().
		SetID(id).
		SetInitiatorID(initiatorID).
		SetTargetID(targetID).
		SetTopic("a2a").
		Save(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			return s.FindActiveConversation(ctx, initiatorID, targetID)
		}
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// FindMessageByIdempotencyKey looks up a prior message by
// (from_agent_id, idempotency_key) for replay detection (spec §4.7 step 3,
// testable property 1). Must be O(1) in the expected case via the unique
// partial index declared on A2AMessage.
func (s *Store) FindMessageByIdempotencyKey(ctx context.Context, fromAgentID, idempotencyKey string) (*ent.A2AMessage, error) {
	msg, err := s.client.A2AMessage.Query().
		Where(
			a2amessage.FromAgentIDEQ(fromAgentID),
			a2amessage.IdempotencyKeyEQ(idempotencyKey),
		).Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("find message by idempotency key: %w", err)
	}
	return msg, nil
}

// CreateMessageParams describes a new A2A message plus its initial receipt.
type CreateMessageParams struct {
	MessageID         string
	ConversationID    string
	FromAgentID       string
	ToAgentID         string
	MessageType       a2amessage.MessageType
	Content           map[string]interface{}
	RequiresResponse  bool
	IdempotencyKey    *string
	ReceiptID         string
	InitialAttempts   int  // 0 for local sends, 1 for federation inbound (attempts already made)
	InitialLastAttempt bool // set last_attempt_at=now when true
}

// CreateMessageWithReceipt persists a message and its per-recipient receipt
// in a single transaction (spec §4.7 step 7, §4.8 step 7).
func (s *Store) CreateMessageWithReceipt(ctx context.Context, p CreateMessageParams) (*ent.A2AMessage, *ent.A2AMessageReceipt, error) {
	var msg *ent.A2AMessage
	var receipt *ent.A2AMessageReceipt

	err := s.withTx(ctx, func(tx *ent.Tx) error {
		create := tx.A2AMessage.Create().
			SetID(p.MessageID).
			SetConversationID(p.ConversationID).
			SetFromAgentID(p.FromAgentID).
			SetToAgentID(p.ToAgentID).
			SetMessageType(p.MessageType).
			SetContent(p.Content).
			SetRequiresResponse(p.RequiresResponse)
		if p.IdempotencyKey != nil {
			create = create.SetIdempotencyKey(*p.IdempotencyKey)
		}

		m, err := create.Save(ctx)
		if err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		msg = m

		receiptCreate := tx.A2AMessageReceipt.Create().
			SetID(p.ReceiptID).
			SetMessageID(m.ID).
			SetAgentID(p.ToAgentID).
			SetDeliveryAttempts(p.InitialAttempts)
		if p.InitialLastAttempt {
			receiptCreate = receiptCreate.SetLastAttemptAt(time.Now())
		}
		r, err := receiptCreate.Save(ctx)
		if err != nil {
			return fmt.Errorf("create receipt: %w", err)
		}
		receipt = r
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return msg, receipt, nil
}

// MarkDelivered sets delivered_at the first time a push succeeds, and bumps
// the attempt counters (spec §4.7 step 8, §3 receipt transitions).
func (s *Store) MarkDelivered(ctx context.Context, messageID, recipientID string) error {
	receipt, err := s.getReceipt(ctx, messageID, recipientID)
	if err != nil {
		return err
	}

	update := receipt.Update().AddDeliveryAttempts(1).SetLastAttemptAt(time.Now())
	if receipt.DeliveredAt == nil {
		update = update.SetDeliveredAt(time.Now())
	}
	if err := update.Exec(ctx); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

// Ack sets receipt.acked_at idempotently: once set, subsequent calls are
// no-ops (testable property 2).
func (s *Store) Ack(ctx context.Context, messageID, recipientID string) error {
	receipt, err := s.getReceipt(ctx, messageID, recipientID)
	if err != nil {
		return err
	}
	if receipt.AckedAt != nil {
		return nil
	}
	if err := receipt.Update().SetAckedAt(time.Now()).Exec(ctx); err != nil {
		return fmt.Errorf("ack message %s: %w", messageID, err)
	}
	return nil
}

func (s *Store) getReceipt(ctx context.Context, messageID, recipientID string) (*ent.A2AMessageReceipt, error) {
	receipt, err := s.client.A2AMessageReceipt.Query().
		Where(
			a2amessagereceipt.MessageIDEQ(messageID),
			a2amessagereceipt.AgentIDEQ(recipientID),
		).Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("find receipt: %w", err)
	}
	return receipt, nil
}

// InboxEntry pairs a message with its receipt for the inbox listing.
type InboxEntry struct {
	Message *ent.A2AMessage
	Receipt *ent.A2AMessageReceipt
}

// Inbox returns the most recent <= limit unacked messages for a recipient
// (spec §4.7 "inbox"), joined with message content, newest first.
func (s *Store) Inbox(ctx context.Context, agentID string, limit int) ([]InboxEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	receipts, err := s.client.A2AMessageReceipt.Query().
		Where(
			a2amessagereceipt.AgentIDEQ(agentID),
			a2amessagereceipt.AckedAtIsNil(),
		).
		Order(ent.Desc(a2amessagereceipt.FieldCreatedAt)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("query inbox receipts: %w", err)
	}

	entries := make([]InboxEntry, 0, len(receipts))
	for _, r := range receipts {
		msg, err := s.client.A2AMessage.Get(ctx, r.MessageID)
		if err != nil {
			if ent.IsNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("load inbox message %s: %w", r.MessageID, err)
		}

		// Opportunistically stamp delivered_at for rows missing it, since
		// being listed here means the recipient observed it.
		if r.DeliveredAt == nil {
			now := time.Now()
			if uErr := r.Update().SetDeliveredAt(now).Exec(ctx); uErr == nil {
				r.DeliveredAt = &now
			}
		}

		entries = append(entries, InboxEntry{Message: msg, Receipt: r})
	}
	return entries, nil
}

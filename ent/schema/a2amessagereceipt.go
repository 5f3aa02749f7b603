package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// A2AMessageReceipt holds the schema definition for a per-recipient delivery
// receipt. Exactly one row per (message, recipient) pair.
//
// Transitions (spec §3): attempts=0 on enqueue; attempts++ and
// last_attempt_at set on every push attempt; delivered_at set once, on the
// first successful push; acked_at set once, on the first ACK, and is then
// terminal — repeated ACKs are idempotent no-ops (spec §8 property 2).
type A2AMessageReceipt struct {
	ent.Schema
}

// Fields of the A2AMessageReceipt.
func (A2AMessageReceipt) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("message_id").
			Immutable(),
		field.String("agent_id").
			Comment("Recipient").
			Immutable(),
		field.Int("delivery_attempts").
			Default(0),
		field.Time("last_attempt_at").
			Optional().
			Nillable(),
		field.Time("delivered_at").
			Optional().
			Nillable(),
		field.Time("acked_at").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the A2AMessageReceipt.
func (A2AMessageReceipt) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("message", A2AMessage.Type).
			Ref("receipts").
			Field("message_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the A2AMessageReceipt.
func (A2AMessageReceipt) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("message_id", "agent_id").
			Unique(),
		index.Fields("agent_id", "acked_at"),
	}
}

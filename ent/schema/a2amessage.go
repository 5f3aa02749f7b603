package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// A2AMessage holds the schema definition for a single A2A message.
//
// Invariant: (from_agent_id, idempotency_key) is unique when idempotency_key
// is set. Ent's partial unique index (entsql.IndexWhere) encodes the
// "when set" qualifier directly at the storage layer.
type A2AMessage struct {
	ent.Schema
}

// Fields of the A2AMessage.
func (A2AMessage) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("conversation_id").
			Immutable(),
		field.String("from_agent_id").
			Immutable(),
		field.String("to_agent_id").
			Immutable(),
		field.Enum("message_type").
			Values("request", "response", "notification", "heartbeat", "error").
			Default("notification"),
		field.JSON("content", map[string]interface{}{}),
		field.Bool("requires_response").
			Default(false),
		field.String("idempotency_key").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the A2AMessage.
func (A2AMessage) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("conversation", A2AConversation.Type).
			Ref("messages").
			Field("conversation_id").
			Unique().
			Required().
			Immutable(),
		edge.To("receipts", A2AMessageReceipt.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the A2AMessage.
func (A2AMessage) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("from_agent_id", "idempotency_key").
			Unique().
			Annotations(entsql.IndexWhere("idempotency_key IS NOT NULL")),
		index.Fields("conversation_id", "created_at"),
		index.Fields("to_agent_id"),
	}
}

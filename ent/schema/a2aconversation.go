package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// A2AConversation holds the schema definition for an A2A conversation thread.
type A2AConversation struct {
	ent.Schema
}

// Fields of the A2AConversation.
func (A2AConversation) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("initiator_id").
			Immutable(),
		field.String("target_id").
			Immutable(),
		field.String("topic").
			Default("a2a"),
		field.Enum("status").
			Values("active", "closed").
			Default("active"),
		field.JSON("context_data", map[string]interface{}{}).
			Optional(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the A2AConversation.
func (A2AConversation) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("messages", A2AMessage.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the A2AConversation.
func (A2AConversation) Indexes() []ent.Index {
	return []ent.Index{
		// Supports "at most one active conversation per ordered pair" lookups;
		// the invariant itself is enforced by internal/store's
		// GetOrCreateConversation, not at the DB level, since it only applies
		// to the federation context (spec §3).
		index.Fields("initiator_id", "target_id", "status"),
	}
}

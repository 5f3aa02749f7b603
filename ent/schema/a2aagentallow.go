package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// A2AAgentAllow holds the schema definition for an agent-level ACL rule.
// Invariant: at most one row per directed (source_agent_id, target_agent_id) pair.
// Agent-level rules take precedence over org-level rules (spec §4.4).
type A2AAgentAllow struct {
	ent.Schema
}

// Fields of the A2AAgentAllow.
func (A2AAgentAllow) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("source_agent_id").
			Immutable(),
		field.String("target_agent_id").
			Immutable(),
		field.Bool("allowed"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the A2AAgentAllow.
func (A2AAgentAllow) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("source_agent_id", "target_agent_id").
			Unique(),
	}
}

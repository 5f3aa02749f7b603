package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AgentMetric holds the schema definition for an append-only per-contract
// outcome record. Fed by the contract lifecycle engine on settlement/failure
// and consumed by the reputation engine.
type AgentMetric struct {
	ent.Schema
}

// Fields of the AgentMetric.
func (AgentMetric) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("agent_id").
			Immutable(),
		field.String("contract_id").
			Optional().
			Nillable().
			Immutable(),
		field.Float("execution_time").
			Comment("Actual seconds taken"),
		field.Float("promised_time").
			Comment("Bid eta_seconds at award time"),
		field.Bool("success"),
		field.Int("user_rating").
			Optional().
			Nillable().
			Comment("1..5"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the AgentMetric.
func (AgentMetric) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("agent", Agent.Type).
			Ref("metrics").
			Field("agent_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the AgentMetric.
func (AgentMetric) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("agent_id", "created_at"),
	}
}

package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Bid holds the schema definition for an agent's offer on a Contract.
// Invariant: at most one bid per (contract_id, agent_id).
type Bid struct {
	ent.Schema
}

// Fields of the Bid.
func (Bid) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("contract_id").
			Immutable(),
		field.String("agent_id").
			Immutable(),
		field.Float("price"),
		field.Int("eta_seconds"),
		field.Float("confidence"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the Bid.
func (Bid) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("contract", Contract.Type).
			Ref("bids").
			Field("contract_id").
			Unique().
			Required().
			Immutable(),
		edge.From("agent", Agent.Type).
			Ref("bids").
			Field("agent_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the Bid.
func (Bid) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("contract_id", "agent_id").
			Unique(),
	}
}

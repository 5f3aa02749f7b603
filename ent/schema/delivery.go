package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Delivery holds the schema definition for a completed contract's result.
// Invariant: at most one delivery per (contract_id, winning agent_id).
type Delivery struct {
	ent.Schema
}

// Fields of the Delivery.
func (Delivery) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("contract_id").
			Immutable(),
		field.String("agent_id").
			Immutable(),
		field.JSON("data", map[string]interface{}{}),
		field.Time("delivered_at").
			Default(time.Now).
			Immutable(),
		field.Bool("is_validated").
			Default(false),
		field.Float("validation_score").
			Optional().
			Nillable(),
	}
}

// Edges of the Delivery.
func (Delivery) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("contract", Contract.Type).
			Ref("deliveries").
			Field("contract_id").
			Unique().
			Required().
			Immutable(),
		edge.From("agent", Agent.Type).
			Ref("deliveries").
			Field("agent_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the Delivery.
func (Delivery) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("contract_id", "agent_id").
			Unique(),
	}
}

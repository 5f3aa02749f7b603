package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Contract holds the schema definition for a unit of work posted for bidding.
type Contract struct {
	ent.Schema
}

// Fields of the Contract.
func (Contract) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("issuer").
			Immutable().
			Comment("User or agent id that posted the contract"),
		field.Text("intent"),
		field.JSON("context", map[string]interface{}{}).
			Optional(),
		field.Float("reward_amount"),
		field.Enum("status").
			Values("open", "bidding", "awarded", "in_progress", "delivered", "validated", "settled", "failed", "cancelled").
			Default("open"),
		field.String("awarded_to").
			Optional().
			Nillable(),
		field.String("award_strategy").
			Default("reputation_weighted"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("awarded_at").
			Optional().
			Nillable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
		field.Time("expires_at").
			Optional().
			Nillable(),
	}
}

// Edges of the Contract.
func (Contract) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("bids", Bid.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("deliveries", Delivery.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Contract.
func (Contract) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status"),
		index.Fields("status", "created_at"),
		index.Fields("awarded_to"),
	}
}

package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AwardPreference holds the schema definition for a user's per-strategy
// weight vector and hard filters used by the reputation_weighted award
// strategy (spec §4.6). Absent a row, the engine defaults every weight to
// 0.25 — an Open Question resolved in SPEC_FULL.md §9.
type AwardPreference struct {
	ent.Schema
}

// Fields of the AwardPreference.
func (AwardPreference) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("user_id").
			Unique().
			Immutable(),
		field.Float("weight_price").
			Default(0.25),
		field.Float("weight_confidence").
			Default(0.25),
		field.Float("weight_speed").
			Default(0.25),
		field.Float("weight_trust").
			Default(0.25),
		field.Float("max_price").
			Optional().
			Nillable(),
		field.Float("min_confidence").
			Optional().
			Nillable(),
		field.Int("max_latency").
			Optional().
			Nillable(),
		field.Float("min_reputation").
			Optional().
			Nillable(),
		field.Bool("free_only").
			Default(false),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Indexes of the AwardPreference.
func (AwardPreference) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id").
			Unique(),
	}
}

package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// TrustMetric holds the schema definition for an append-only reputation
// snapshot, recorded on every recomputation for trend queries.
type TrustMetric struct {
	ent.Schema
}

// Fields of the TrustMetric.
func (TrustMetric) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("agent_id").
			Immutable(),
		field.Float("trust_score").
			Immutable(),
		field.Enum("trust_grade").
			Values("A+", "A", "B", "C", "D", "F").
			Immutable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the TrustMetric.
func (TrustMetric) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("agent_id", "created_at"),
	}
}

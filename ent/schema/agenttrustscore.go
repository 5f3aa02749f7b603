package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
)

// AgentTrustScore holds the schema definition for the latest reputation
// snapshot of an agent. Rebuilt in place by the reputation engine; the
// append-only history lives in TrustMetric.
type AgentTrustScore struct {
	ent.Schema
}

// Fields of the AgentTrustScore.
func (AgentTrustScore) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("agent_id").
			Unique().
			Immutable(),
		field.Float("success_rate").
			Default(0.5),
		field.Float("latency_score").
			Default(0.5),
		field.Float("rating_score").
			Default(0.5),
		field.Float("uptime_score").
			Default(0.5),
		field.Float("consistency").
			Default(0.5),
		field.Float("trust_score").
			Default(0.5),
		field.Enum("trust_grade").
			Values("A+", "A", "B", "C", "D", "F").
			Default("F"),
		field.Int("calculation_count").
			Default(0),
		field.Time("last_calculated").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// OrchestrationPlan holds the schema definition for a decomposed, DAG-scheduled
// orchestration run (spec §4.9).
type OrchestrationPlan struct {
	ent.Schema
}

// Fields of the OrchestrationPlan.
func (OrchestrationPlan) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("user_id").
			Immutable(),
		field.Text("query").
			Immutable(),
		field.Enum("pattern").
			Values("sequential", "parallel", "vote", "debate", "swarm", "consensus").
			Immutable(),
		field.Float("complexity").
			Immutable(),
		field.Enum("status").
			Values("planning", "running", "completed", "failed").
			Default("planning"),
		field.JSON("result", map[string]interface{}{}).
			Optional(),
		field.Float("confidence").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
	}
}

// Edges of the OrchestrationPlan.
func (OrchestrationPlan) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("steps", CollaborationStep.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the OrchestrationPlan.
func (OrchestrationPlan) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "created_at"),
		index.Fields("status"),
	}
}

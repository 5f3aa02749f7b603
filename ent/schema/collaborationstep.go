package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// CollaborationStep holds the schema definition for a single DAG node's
// execution record within an OrchestrationPlan.
type CollaborationStep struct {
	ent.Schema
}

// Fields of the CollaborationStep.
func (CollaborationStep) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("plan_id").
			Immutable(),
		field.String("node_id").
			Immutable(),
		field.Int("level").
			Immutable().
			Comment("Topological level assigned by Kahn's algorithm"),
		field.String("agent_id").
			Optional().
			Nillable(),
		field.Strings("required_capabilities").
			Optional(),
		field.Enum("status").
			Values("pending", "running", "completed", "failed").
			Default("pending"),
		field.JSON("output", map[string]interface{}{}).
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

// Edges of the CollaborationStep.
func (CollaborationStep) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("plan", OrchestrationPlan.Type).
			Ref("steps").
			Field("plan_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the CollaborationStep.
func (CollaborationStep) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("plan_id", "level"),
		index.Fields("plan_id", "node_id").
			Unique(),
	}
}

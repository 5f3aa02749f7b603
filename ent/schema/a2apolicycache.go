package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// A2APolicyCache holds the schema definition for a materialized ACL decision.
// Write-only from the hot path (spec §9): federation inbound records its
// evaluator outcome here for observability; nothing reads it back to
// short-circuit C4.
type A2APolicyCache struct {
	ent.Schema
}

// Fields of the A2APolicyCache.
func (A2APolicyCache) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("source_id"),
		field.String("target_id"),
		field.Bool("allowed"),
		field.String("reason"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the A2APolicyCache.
func (A2APolicyCache) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("source_id", "target_id"),
	}
}

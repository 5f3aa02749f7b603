package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// A2AOrgAllow holds the schema definition for an org-level ACL rule.
// Invariant: at most one row per directed (source_org_id, target_org_id) pair.
type A2AOrgAllow struct {
	ent.Schema
}

// Fields of the A2AOrgAllow.
func (A2AOrgAllow) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("source_org_id").
			Immutable(),
		field.String("target_org_id").
			Immutable(),
		field.Bool("allowed"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the A2AOrgAllow.
func (A2AOrgAllow) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("source_org_id", "target_org_id").
			Unique(),
	}
}

package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// FederationContact holds the schema definition for a remote agent identity
// a hub has seen inbound traffic from, upserted on every inbound envelope.
type FederationContact struct {
	ent.Schema
}

// Fields of the FederationContact.
func (FederationContact) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("remote_agent_at").
			Unique().
			Comment("'name@domain'"),
		field.String("remote_agent_name"),
		field.String("remote_domain"),
		field.String("remote_org_id").
			Optional().
			Nillable(),
		field.String("local_agent_id").
			Optional().
			Nillable(),
		field.String("local_org_id").
			Optional().
			Nillable(),
		field.Time("last_seen_at").
			Default(time.Now).
			UpdateDefault(time.Now),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the FederationContact.
func (FederationContact) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("remote_domain"),
	}
}

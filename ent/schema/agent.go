package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Agent holds the schema definition for the Agent entity.
//
// A federation stub (a remote identity mirrored locally on first contact) is
// an ordinary Agent row pinned to status=inactive, category=federated. There
// is no separate "remote agent" type.
type Agent struct {
	ent.Schema
}

// Fields of the Agent.
func (Agent) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("name").
			Unique().
			Comment("Globally unique; federated identities are stored as 'name@domain'"),
		field.Text("description").
			Optional(),
		field.String("endpoint").
			Optional().
			Comment("Empty for federation stubs — the remote hub owns delivery"),
		field.Strings("capabilities").
			Optional().
			Comment("Capability tags used for search, ACL context, and orchestrator matching"),
		field.String("category").
			Optional().
			Comment("'federated' for stub agents mirrored from a remote hub"),
		field.Enum("status").
			Values("active", "inactive", "pending_review", "rejected").
			Default("pending_review"),
		field.String("creator_id").
			Optional().
			Nillable(),
		field.String("org_id").
			Optional().
			Nillable(),
		field.Float("trust_score").
			Default(0.5),
		field.Bool("is_public").
			Default(false),
		field.Bool("is_free").
			Default(false).
			Comment("Consumed by the reputation_weighted award strategy's free_only filter"),
		field.Int("total_calls").
			Default(0),
		field.Int("successful_calls").
			Default(0),
		field.Int("failed_calls").
			Default(0),
		field.Float("avg_duration").
			Default(0),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the Agent.
func (Agent) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("organization", Organization.Type).
			Ref("agents").
			Field("org_id").
			Unique(),
		edge.To("bids", Bid.Type),
		edge.To("deliveries", Delivery.Type),
		edge.To("metrics", AgentMetric.Type),
	}
}

// Indexes of the Agent.
func (Agent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status"),
		index.Fields("category"),
		index.Fields("org_id"),
		index.Fields("capabilities").
			Annotations(entsql.IndexTypes(map[string]string{
				dialectPostgres: "GIN",
			})),
	}
}

// dialectPostgres keeps the literal out of the index annotation call for readability.
const dialectPostgres = "postgres"

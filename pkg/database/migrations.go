package database

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql"
)

// CreateSearchIndexes creates the PostgreSQL-specific indexes Ent's schema
// DSL cannot express: full-text search over agent/contract text fields and
// a GIN index over the agent capability array used for discovery lookups.
func CreateSearchIndexes(ctx context.Context, driver *sql.Driver) error {
	db := driver.DB()

	// GIN index for agent description full-text search.
	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_agents_description_gin
		ON agents USING gin(to_tsvector('english', description))`)
	if err != nil {
		return fmt.Errorf("failed to create agents.description GIN index: %w", err)
	}

	// GIN index for contract intent full-text search.
	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_contracts_intent_gin
		ON contracts USING gin(to_tsvector('english', intent))`)
	if err != nil {
		return fmt.Errorf("failed to create contracts.intent GIN index: %w", err)
	}

	// GIN index over the agent capability array for discovery filtering.
	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_agents_capabilities_gin
		ON agents USING gin(capabilities)`)
	if err != nil {
		return fmt.Errorf("failed to create agents.capabilities GIN index: %w", err)
	}

	return nil
}

// Package store is the persistence façade (C1): a thin layer over the
// generated ent client, one file per aggregate.
package store

import (
	"context"
	"fmt"

	"github.com/meshhub/hub/ent"
)

// Store wraps the ent client and exposes transactional operations grouped
// by aggregate (agents, acl, conversations, contracts, reputation, federation).
type Store struct {
	client *ent.Client
}

// New wraps an existing ent client.
func New(client *ent.Client) *Store {
	return &Store{client: client}
}

// Client exposes the underlying ent client for operations that don't yet
// have a façade method (read-mostly admin/debug paths).
func (s *Store) Client() *ent.Client {
	return s.client
}

// withTx runs fn inside an ent transaction, committing on success and
// rolling back on any error or panic.
func (s *Store) withTx(ctx context.Context, fn func(tx *ent.Tx) error) error {
	tx, err := s.client.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

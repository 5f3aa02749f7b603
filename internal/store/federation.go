package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meshhub/hub/ent"
	"github.com/meshhub/hub/ent/federationcontact"
	"github.com/meshhub/hub/ent/organization"
	"github.com/meshhub/hub/internal/apperr"
)

// GetOrCreateOrgForDomain upserts an Organization keyed by its federation
// domain: the domain is the upsert's natural key, since a remote hub has no
// local org id to key off of.
func (s *Store) GetOrCreateOrgForDomain(ctx context.Context, id, domain string) (*ent.Organization, error) {
	existing, err := s.client.Organization.Query().Where(organization.DomainEQ(domain)).Only(ctx)
	if err == nil {
		return existing, nil
	}
	if !ent.IsNotFound(err) {
		return nil, fmt.Errorf("query organization by domain %s: %w", domain, err)
	}

	org, err := s.client.Organization.Create().
		SetID(id).
		SetName(domain).
		SetDomain(domain).
		Save(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			return s.client.Organization.Query().Where(organization.DomainEQ(domain)).Only(ctx)
		}
		return nil, fmt.Errorf("create organization for domain %s: %w", domain, err)
	}
	return org, nil
}

// FindFederationContact looks up a known remote identity by its "name@domain" key.
func (s *Store) FindFederationContact(ctx context.Context, remoteAgentAt string) (*ent.FederationContact, error) {
	contact, err := s.client.FederationContact.Query().
		Where(federationcontact.RemoteAgentAtEQ(remoteAgentAt)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("find federation contact %s: %w", remoteAgentAt, err)
	}
	return contact, nil
}

// UpsertFederationContactParams describes a remote identity observed on
// inbound federation traffic.
type UpsertFederationContactParams struct {
	ID              string
	RemoteAgentAt   string
	RemoteAgentName string
	RemoteDomain    string
	RemoteOrgID     *string
	LocalAgentID    *string
	LocalOrgID      *string
}

// UpsertFederationContact records or refreshes last_seen_at for a remote
// identity, upserted on every inbound envelope (spec §4.8 step 4).
func (s *Store) UpsertFederationContact(ctx context.Context, p UpsertFederationContactParams) (*ent.FederationContact, error) {
	existing, err := s.FindFederationContact(ctx, p.RemoteAgentAt)
	if err == nil {
		update := existing.Update().SetLastSeenAt(time.Now())
		if p.LocalAgentID != nil {
			update = update.SetLocalAgentID(*p.LocalAgentID)
		}
		if p.LocalOrgID != nil {
			update = update.SetLocalOrgID(*p.LocalOrgID)
		}
		updated, uErr := update.Save(ctx)
		if uErr != nil {
			return nil, fmt.Errorf("touch federation contact %s: %w", p.RemoteAgentAt, uErr)
		}
		return updated, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	create := s.client.FederationContact.Create().
		SetID(p.ID).
		SetRemoteAgentAt(p.RemoteAgentAt).
		SetRemoteAgentName(p.RemoteAgentName).
		SetRemoteDomain(p.RemoteDomain)
	if p.RemoteOrgID != nil {
		create = create.SetRemoteOrgID(*p.RemoteOrgID)
	}
	if p.LocalAgentID != nil {
		create = create.SetLocalAgentID(*p.LocalAgentID)
	}
	if p.LocalOrgID != nil {
		create = create.SetLocalOrgID(*p.LocalOrgID)
	}

	contact, err := create.Save(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			return s.FindFederationContact(ctx, p.RemoteAgentAt)
		}
		return nil, fmt.Errorf("create federation contact %s: %w", p.RemoteAgentAt, err)
	}
	return contact, nil
}

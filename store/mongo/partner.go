package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ovuhq/partnergate/credential"
	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/partner"
)

// CreatePartner persists a new partner.
func (s *Store) CreatePartner(ctx context.Context, p *partner.Partner) error {
	if _, err := s.db.Collection(colPartners).InsertOne(ctx, toPartnerModel(p)); err != nil {
		return fmt.Errorf("partnergate/mongo: create partner: %w", err)
	}
	return nil
}

// GetPartner returns a partner by ID.
func (s *Store) GetPartner(ctx context.Context, partnerID id.ID) (*partner.Partner, error) {
	var m partnerModel
	err := s.db.Collection(colPartners).
		FindOne(ctx, bson.M{"_id": partnerID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, partner.ErrNotFound
		}
		return nil, fmt.Errorf("partnergate/mongo: get partner: %w", err)
	}
	return fromPartnerModel(&m)
}

// GetPartnerByCode returns a partner by its public code.
func (s *Store) GetPartnerByCode(ctx context.Context, code string) (*partner.Partner, error) {
	var m partnerModel
	err := s.db.Collection(colPartners).
		FindOne(ctx, bson.M{"code": code}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, partner.ErrNotFound
		}
		return nil, fmt.Errorf("partnergate/mongo: get partner by code: %w", err)
	}
	return fromPartnerModel(&m)
}

// UpdatePartner modifies an existing partner.
func (s *Store) UpdatePartner(ctx context.Context, p *partner.Partner) error {
	p.UpdatedAt = now()
	m := toPartnerModel(p)

	res, err := s.db.Collection(colPartners).
		ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("partnergate/mongo: update partner: %w", err)
	}
	if res.MatchedCount == 0 {
		return partner.ErrNotFound
	}
	return nil
}

// TerminatePartner soft-deletes a partner. The record is retained.
func (s *Store) TerminatePartner(ctx context.Context, partnerID id.ID) error {
	ts := now()
	res, err := s.db.Collection(colPartners).UpdateOne(ctx,
		bson.M{"_id": partnerID.String()},
		bson.M{"$set": bson.M{
			"status":        string(partner.StatusTerminated),
			"terminated_at": ts,
			"updated_at":    ts,
		}})
	if err != nil {
		return fmt.Errorf("partnergate/mongo: terminate partner: %w", err)
	}
	if res.MatchedCount == 0 {
		return partner.ErrNotFound
	}
	return nil
}

// PartnerEntitlements returns the scopes a partner may grant.
func (s *Store) PartnerEntitlements(ctx context.Context, partnerID id.ID) ([]credential.Scope, error) {
	p, err := s.GetPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	return p.Entitlements, nil
}

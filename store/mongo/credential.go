package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ovuhq/partnergate/credential"
	"github.com/ovuhq/partnergate/id"
)

// CreateCredential persists a new credential.
func (s *Store) CreateCredential(ctx context.Context, c *credential.Credential) error {
	if _, err := s.db.Collection(colCredentials).InsertOne(ctx, toCredentialModel(c)); err != nil {
		return fmt.Errorf("partnergate/mongo: create credential: %w", err)
	}
	return nil
}

// GetCredential returns a credential by ID.
func (s *Store) GetCredential(ctx context.Context, credID id.ID) (*credential.Credential, error) {
	var m credentialModel
	err := s.db.Collection(colCredentials).
		FindOne(ctx, bson.M{"_id": credID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credential.ErrNotFound
		}
		return nil, fmt.Errorf("partnergate/mongo: get credential: %w", err)
	}
	return fromCredentialModel(&m)
}

// GetCredentialByPublicID returns a credential by its public identifier.
func (s *Store) GetCredentialByPublicID(ctx context.Context, publicID string) (*credential.Credential, error) {
	var m credentialModel
	err := s.db.Collection(colCredentials).
		FindOne(ctx, bson.M{"public_id": publicID}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credential.ErrNotFound
		}
		return nil, fmt.Errorf("partnergate/mongo: get credential by public id: %w", err)
	}
	return fromCredentialModel(&m)
}

// UpdateCredential modifies an existing credential.
func (s *Store) UpdateCredential(ctx context.Context, c *credential.Credential) error {
	c.UpdatedAt = now()
	m := toCredentialModel(c)

	res, err := s.db.Collection(colCredentials).
		ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("partnergate/mongo: update credential: %w", err)
	}
	if res.MatchedCount == 0 {
		return credential.ErrNotFound
	}
	return nil
}

// RotateCredential atomically revokes old and persists issued inside one
// transaction, so either both land or neither does.
func (s *Store) RotateCredential(ctx context.Context, old *credential.Credential, issued *credential.Credential) error {
	old.UpdatedAt = now()
	oldModel := toCredentialModel(old)
	newModel := toCredentialModel(issued)

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("partnergate/mongo: rotate session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		res, err := s.db.Collection(colCredentials).
			ReplaceOne(ctx, bson.M{"_id": oldModel.ID}, oldModel)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, credential.ErrNotFound
		}
		if _, err := s.db.Collection(colCredentials).InsertOne(ctx, newModel); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("partnergate/mongo: rotate credential: %w", err)
	}
	return nil
}

// ListCredentialsByPartner returns all credentials owned by a partner.
func (s *Store) ListCredentialsByPartner(ctx context.Context, partnerID id.ID) ([]*credential.Credential, error) {
	cur, err := s.db.Collection(colCredentials).Find(ctx,
		bson.M{"partner_id": partnerID.String()})
	if err != nil {
		return nil, fmt.Errorf("partnergate/mongo: list credentials: %w", err)
	}
	defer cur.Close(ctx)

	var result []*credential.Credential
	for cur.Next(ctx) {
		var m credentialModel
		if err := cur.Decode(&m); err != nil {
			return nil, fmt.Errorf("partnergate/mongo: decode credential: %w", err)
		}
		c, err := fromCredentialModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, cur.Err()
}

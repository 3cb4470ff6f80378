package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ovuhq/partnergate/credential"
	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/internal/entity"
)

// credentialModel is the JSON representation stored in Redis. It carries the
// secret hash and salt, which the domain struct never serializes.
type credentialModel struct {
	ID         string     `json:"id"`
	PartnerID  string     `json:"partner_id"`
	PublicID   string     `json:"public_id"`
	SecretHash string     `json:"secret_hash"`
	SecretSalt string     `json:"secret_salt"`
	Status     string     `json:"status"`
	Scopes     []string   `json:"scopes"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	AllowedIPs []string   `json:"allowed_ips,omitempty"`
	PerMinute  *int64     `json:"per_minute,omitempty"`
	PerDay     *int64     `json:"per_day,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func toCredentialModel(c *credential.Credential) *credentialModel {
	scopes := make([]string, len(c.Scopes))
	for i, sc := range c.Scopes {
		scopes[i] = string(sc)
	}
	return &credentialModel{
		ID:         c.ID.String(),
		PartnerID:  c.PartnerID.String(),
		PublicID:   c.PublicID,
		SecretHash: c.SecretHash,
		SecretSalt: c.SecretSalt,
		Status:     string(c.Status),
		Scopes:     scopes,
		ExpiresAt:  c.ExpiresAt,
		AllowedIPs: c.AllowedIPs,
		PerMinute:  c.PerMinute,
		PerDay:     c.PerDay,
		RevokedAt:  c.RevokedAt,
		LastUsedAt: c.LastUsedAt,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func fromCredentialModel(m *credentialModel) (*credential.Credential, error) {
	credID, err := id.ParseCredentialID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse credential ID %q: %w", m.ID, err)
	}
	ptnID, err := id.ParsePartnerID(m.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("parse partner ID %q: %w", m.PartnerID, err)
	}
	scopes := make([]credential.Scope, len(m.Scopes))
	for i, sc := range m.Scopes {
		scopes[i] = credential.Scope(sc)
	}
	return &credential.Credential{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         credID,
		PartnerID:  ptnID,
		PublicID:   m.PublicID,
		SecretHash: m.SecretHash,
		SecretSalt: m.SecretSalt,
		Status:     credential.Status(m.Status),
		Scopes:     scopes,
		ExpiresAt:  m.ExpiresAt,
		AllowedIPs: m.AllowedIPs,
		PerMinute:  m.PerMinute,
		PerDay:     m.PerDay,
		RevokedAt:  m.RevokedAt,
		LastUsedAt: m.LastUsedAt,
	}, nil
}

// CreateCredential persists a new credential and its indexes.
func (s *Store) CreateCredential(ctx context.Context, c *credential.Credential) error {
	m := toCredentialModel(c)
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("partnergate/redis: marshal credential: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, entityKey(prefixCredential, m.ID), raw, 0)
	pipe.Set(ctx, uniqueCredPublicID+m.PublicID, m.ID, 0)
	pipe.ZAdd(ctx, zCredPartner+m.PartnerID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("partnergate/redis: create credential: %w", err)
	}
	return nil
}

// GetCredential returns a credential by ID.
func (s *Store) GetCredential(ctx context.Context, credID id.ID) (*credential.Credential, error) {
	var m credentialModel
	if err := s.getEntity(ctx, entityKey(prefixCredential, credID.String()), &m); err != nil {
		if isRedisNil(err) {
			return nil, credential.ErrNotFound
		}
		return nil, fmt.Errorf("partnergate/redis: get credential: %w", err)
	}
	return fromCredentialModel(&m)
}

// GetCredentialByPublicID returns a credential by its public identifier.
func (s *Store) GetCredentialByPublicID(ctx context.Context, publicID string) (*credential.Credential, error) {
	credID, err := s.rdb.Get(ctx, uniqueCredPublicID+publicID).Result()
	if err != nil {
		if isRedisNil(err) {
			return nil, credential.ErrNotFound
		}
		return nil, fmt.Errorf("partnergate/redis: get credential by public id: %w", err)
	}

	parsed, err := id.ParseCredentialID(credID)
	if err != nil {
		return nil, fmt.Errorf("partnergate/redis: public id index: %w", err)
	}
	return s.GetCredential(ctx, parsed)
}

// UpdateCredential modifies an existing credential.
func (s *Store) UpdateCredential(ctx context.Context, c *credential.Credential) error {
	key := entityKey(prefixCredential, c.ID.String())
	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("partnergate/redis: update credential: %w", err)
	}
	if exists == 0 {
		return credential.ErrNotFound
	}

	c.UpdatedAt = now()
	if err := s.setEntity(ctx, key, toCredentialModel(c)); err != nil {
		return fmt.Errorf("partnergate/redis: update credential: %w", err)
	}
	return nil
}

// RotateCredential atomically revokes old and persists issued. Both writes
// go through one MULTI/EXEC pipeline so no reader observes the intermediate
// state.
func (s *Store) RotateCredential(ctx context.Context, old *credential.Credential, issued *credential.Credential) error {
	oldKey := entityKey(prefixCredential, old.ID.String())
	exists, err := s.rdb.Exists(ctx, oldKey).Result()
	if err != nil {
		return fmt.Errorf("partnergate/redis: rotate credential: %w", err)
	}
	if exists == 0 {
		return credential.ErrNotFound
	}

	old.UpdatedAt = now()
	oldRaw, err := json.Marshal(toCredentialModel(old))
	if err != nil {
		return fmt.Errorf("partnergate/redis: marshal old credential: %w", err)
	}
	newModel := toCredentialModel(issued)
	newRaw, err := json.Marshal(newModel)
	if err != nil {
		return fmt.Errorf("partnergate/redis: marshal issued credential: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, oldKey, oldRaw, 0)
	pipe.Set(ctx, entityKey(prefixCredential, newModel.ID), newRaw, 0)
	pipe.Set(ctx, uniqueCredPublicID+newModel.PublicID, newModel.ID, 0)
	pipe.ZAdd(ctx, zCredPartner+newModel.PartnerID, goredis.Z{Score: scoreFromTime(newModel.CreatedAt), Member: newModel.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("partnergate/redis: rotate credential: %w", err)
	}
	return nil
}

// ListCredentialsByPartner returns all credentials owned by a partner.
func (s *Store) ListCredentialsByPartner(ctx context.Context, partnerID id.ID) ([]*credential.Credential, error) {
	ids, err := s.rdb.ZRange(ctx, zCredPartner+partnerID.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("partnergate/redis: list credentials: %w", err)
	}

	result := make([]*credential.Credential, 0, len(ids))
	for _, credID := range ids {
		var m credentialModel
		if err := s.getEntity(ctx, entityKey(prefixCredential, credID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		c, err := fromCredentialModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

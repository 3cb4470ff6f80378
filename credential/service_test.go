package credential_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ovuhq/partnergate/credential"
	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/internal/entity"
	"github.com/ovuhq/partnergate/partner"
	"github.com/ovuhq/partnergate/store/memory"
)

func setupCredentials(t *testing.T) (*credential.Service, *memory.Store, id.ID) {
	t.Helper()

	st := memory.New()
	p := &partner.Partner{
		Entity:       entity.New(),
		ID:           id.NewPartnerID(),
		Code:         "ACME-7F3A",
		Name:         "Acme Travel",
		Status:       partner.StatusActive,
		Entitlements: []credential.Scope{credential.ScopeSearch, credential.ScopeBooking},
	}
	if err := st.CreatePartner(context.Background(), p); err != nil {
		t.Fatalf("CreatePartner() error = %v", err)
	}
	return credential.NewService(st, slog.Default()), st, p.ID
}

func TestIssue(t *testing.T) {
	svc, _, partnerID := setupCredentials(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, partnerID, credential.IssueInput{
		Scopes: []credential.Scope{credential.ScopeSearch},
	})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if !strings.HasPrefix(issued.PublicID, "pk_live_") {
		t.Fatalf("expected pk_live_ public ID, got %s", issued.PublicID)
	}
	if !strings.HasPrefix(issued.Secret, "sk_live_") {
		t.Fatalf("expected sk_live_ secret, got %s", issued.Secret[:8])
	}

	c := issued.Credential
	if c.Status != credential.StatusActive {
		t.Fatalf("expected active status, got %s", c.Status)
	}
	if c.SecretHash == "" || c.SecretHash == issued.Secret {
		t.Fatal("expected stored hash distinct from plaintext")
	}
	if !c.HasScope(credential.ScopeSearch) || c.HasScope(credential.ScopeBooking) {
		t.Fatalf("unexpected scopes: %v", c.Scopes)
	}
}

func TestIssueNeverSerializesSecret(t *testing.T) {
	svc, _, partnerID := setupCredentials(t)

	issued, err := svc.Issue(context.Background(), partnerID, credential.IssueInput{})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	data, err := json.Marshal(issued.Credential)
	if err != nil {
		t.Fatalf("marshal error = %v", err)
	}
	body := string(data)
	if strings.Contains(body, issued.Secret) {
		t.Fatal("plaintext secret leaked into JSON")
	}
	if strings.Contains(body, issued.Credential.SecretHash) || strings.Contains(body, issued.Credential.SecretSalt) {
		t.Fatal("secret hash material leaked into JSON")
	}
}

func TestIssueScopeNotEntitled(t *testing.T) {
	svc, _, partnerID := setupCredentials(t)

	_, err := svc.Issue(context.Background(), partnerID, credential.IssueInput{
		Scopes: []credential.Scope{credential.ScopePayment},
	})
	if !errors.Is(err, credential.ErrScopeNotEntitled) {
		t.Fatalf("expected ErrScopeNotEntitled, got %v", err)
	}
}

func TestIssueDefaultsToEntitlements(t *testing.T) {
	svc, _, partnerID := setupCredentials(t)

	issued, err := svc.Issue(context.Background(), partnerID, credential.IssueInput{})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if !issued.Credential.HasScope(credential.ScopeSearch) || !issued.Credential.HasScope(credential.ScopeBooking) {
		t.Fatalf("expected full entitlement grant, got %v", issued.Credential.Scopes)
	}
}

func TestIssueWithTTL(t *testing.T) {
	svc, _, partnerID := setupCredentials(t)

	issued, err := svc.Issue(context.Background(), partnerID, credential.IssueInput{TTL: time.Hour})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if issued.Credential.ExpiresAt == nil {
		t.Fatal("expected expiry to be set")
	}
	if until := time.Until(*issued.Credential.ExpiresAt); until < 55*time.Minute || until > 65*time.Minute {
		t.Fatalf("expiry not about an hour out: %v", until)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _, partnerID := setupCredentials(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, partnerID, credential.IssueInput{})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	c, err := svc.Authenticate(ctx, issued.PublicID, issued.Secret, "")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if c.ID.String() != issued.Credential.ID.String() {
		t.Fatal("authenticated wrong credential")
	}
	if c.LastUsedAt == nil {
		t.Fatal("expected LastUsedAt to be set")
	}

	if _, err := svc.Authenticate(ctx, issued.PublicID, "sk_live_wrong", ""); !errors.Is(err, credential.ErrSecretMismatch) {
		t.Fatalf("expected ErrSecretMismatch, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "pk_live_missing", issued.Secret, ""); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuthenticateRevoked(t *testing.T) {
	svc, _, partnerID := setupCredentials(t)
	ctx := context.Background()

	issued, _ := svc.Issue(ctx, partnerID, credential.IssueInput{})
	if err := svc.Revoke(ctx, issued.Credential.ID); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	if _, err := svc.Authenticate(ctx, issued.PublicID, issued.Secret, ""); !errors.Is(err, credential.ErrRevoked) {
		t.Fatalf("expected ErrRevoked, got %v", err)
	}
}

func TestAuthenticateExpired(t *testing.T) {
	svc, st, partnerID := setupCredentials(t)
	ctx := context.Background()

	issued, _ := svc.Issue(ctx, partnerID, credential.IssueInput{})
	past := time.Now().UTC().Add(-time.Minute)
	issued.Credential.ExpiresAt = &past
	if err := st.UpdateCredential(ctx, issued.Credential); err != nil {
		t.Fatalf("UpdateCredential() error = %v", err)
	}

	if _, err := svc.Authenticate(ctx, issued.PublicID, issued.Secret, ""); !errors.Is(err, credential.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestAuthenticateIPAllowList(t *testing.T) {
	svc, _, partnerID := setupCredentials(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, partnerID, credential.IssueInput{
		AllowedIPs: []string{"203.0.113.7", "10.0.0.0/8"},
	})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := svc.Authenticate(ctx, issued.PublicID, issued.Secret, "203.0.113.7"); err != nil {
		t.Fatalf("exact IP rejected: %v", err)
	}
	if _, err := svc.Authenticate(ctx, issued.PublicID, issued.Secret, "10.42.1.9"); err != nil {
		t.Fatalf("CIDR IP rejected: %v", err)
	}
	if _, err := svc.Authenticate(ctx, issued.PublicID, issued.Secret, "198.51.100.1"); !errors.Is(err, credential.ErrIPNotAllowed) {
		t.Fatalf("expected ErrIPNotAllowed, got %v", err)
	}
}

func TestRotate(t *testing.T) {
	svc, _, partnerID := setupCredentials(t)
	ctx := context.Background()

	perMin := int64(42)
	old, err := svc.Issue(ctx, partnerID, credential.IssueInput{
		Scopes:    []credential.Scope{credential.ScopeSearch},
		PerMinute: &perMin,
	})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	rotated, err := svc.Rotate(ctx, old.Credential.ID)
	if err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	if rotated.PublicID == old.PublicID {
		t.Fatal("rotation reused the public ID")
	}
	if !rotated.Credential.HasScope(credential.ScopeSearch) {
		t.Fatal("rotation dropped scopes")
	}
	if rotated.Credential.PerMinute == nil || *rotated.Credential.PerMinute != 42 {
		t.Fatal("rotation dropped the per-minute override")
	}

	// New secret authenticates, old is revoked.
	if _, err := svc.Authenticate(ctx, rotated.PublicID, rotated.Secret, ""); err != nil {
		t.Fatalf("new credential failed to authenticate: %v", err)
	}
	if _, err := svc.Authenticate(ctx, old.PublicID, old.Secret, ""); !errors.Is(err, credential.ErrRevoked) {
		t.Fatalf("expected old credential revoked, got %v", err)
	}

	// Rotating a revoked credential is refused.
	if _, err := svc.Rotate(ctx, old.Credential.ID); !errors.Is(err, credential.ErrRevoked) {
		t.Fatalf("expected ErrRevoked rotating revoked credential, got %v", err)
	}
}

// rotateFailStore simulates a store that cannot complete the swap.
type rotateFailStore struct {
	*memory.Store
}

func (s *rotateFailStore) RotateCredential(context.Context, *credential.Credential, *credential.Credential) error {
	return errors.New("store offline")
}

func TestRotateFailureKeepsOldActive(t *testing.T) {
	svc, st, partnerID := setupCredentials(t)
	ctx := context.Background()

	old, err := svc.Issue(ctx, partnerID, credential.IssueInput{})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	failing := credential.NewService(&rotateFailStore{Store: st}, slog.Default())
	if _, err := failing.Rotate(ctx, old.Credential.ID); err == nil {
		t.Fatal("expected rotate to fail")
	}

	// The swap never happened, so the old credential still works.
	if _, err := svc.Authenticate(ctx, old.PublicID, old.Secret, ""); err != nil {
		t.Fatalf("old credential unusable after failed rotate: %v", err)
	}
}

func TestRevokeIdempotent(t *testing.T) {
	svc, _, partnerID := setupCredentials(t)
	ctx := context.Background()

	issued, _ := svc.Issue(ctx, partnerID, credential.IssueInput{})
	if err := svc.Revoke(ctx, issued.Credential.ID); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if err := svc.Revoke(ctx, issued.Credential.ID); err != nil {
		t.Fatalf("second Revoke() error = %v", err)
	}
}

func TestResolve(t *testing.T) {
	svc, _, partnerID := setupCredentials(t)
	ctx := context.Background()

	issued, _ := svc.Issue(ctx, partnerID, credential.IssueInput{})
	c, err := svc.Resolve(ctx, issued.PublicID)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if c.ID.String() != issued.Credential.ID.String() {
		t.Fatal("resolved wrong credential")
	}
}

func TestRequireScope(t *testing.T) {
	svc, _, partnerID := setupCredentials(t)

	issued, _ := svc.Issue(context.Background(), partnerID, credential.IssueInput{
		Scopes: []credential.Scope{credential.ScopeSearch},
	})

	if err := svc.RequireScope(issued.Credential, credential.ScopeSearch); err != nil {
		t.Fatalf("RequireScope() error = %v", err)
	}
	if err := svc.RequireScope(issued.Credential, credential.ScopeBooking); !errors.Is(err, credential.ErrScopeInsufficient) {
		t.Fatalf("expected ErrScopeInsufficient, got %v", err)
	}
}

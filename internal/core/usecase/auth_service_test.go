package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

type stubAPIKeyRepo struct {
	findFn func(ctx context.Context, tokenHash string) (domain.APIKey, error)
	keys   map[string]domain.APIKey
}

func (s *stubAPIKeyRepo) FindByTokenHash(ctx context.Context, tokenHash string) (domain.APIKey, error) {
	if s.findFn != nil {
		return s.findFn(ctx, tokenHash)
	}
	if key, ok := s.keys[tokenHash]; ok {
		return key, nil
	}
	return domain.APIKey{}, domain.ErrNotFound
}

func (s *stubAPIKeyRepo) Upsert(_ context.Context, key domain.APIKey) error {
	if s.keys == nil {
		s.keys = map[string]domain.APIKey{}
	}
	s.keys[key.TokenHash] = key
	return nil
}

func (s *stubAPIKeyRepo) SetActive(_ context.Context, tokenHash string, active bool) error {
	key, ok := s.keys[tokenHash]
	if !ok {
		return domain.ErrNotFound
	}
	key.Active = active
	s.keys[tokenHash] = key
	return nil
}

func TestAuthServiceAuthenticateSuccess(t *testing.T) {
	repo := &stubAPIKeyRepo{findFn: func(_ context.Context, tokenHash string) (domain.APIKey, error) {
		if tokenHash != HashToken("token-1") {
			t.Fatalf("unexpected token hash: %s", tokenHash)
		}
		return domain.APIKey{TenantID: "tenant-a", Active: true, CreatedAt: time.Now()}, nil
	}}

	svc := NewAuthService(repo)
	key, err := svc.Authenticate(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if key.TenantID != "tenant-a" {
		t.Fatalf("expected tenant-a, got %s", key.TenantID)
	}
}

func TestAuthServiceAuthenticateUnauthorized(t *testing.T) {
	svc := NewAuthService(&stubAPIKeyRepo{})
	_, err := svc.Authenticate(context.Background(), "")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestIdentityForIsNeverTrusted(t *testing.T) {
	id := IdentityFor(domain.APIKey{TenantID: "tenant-a", Name: "ci"})
	if id.UserID != "ci" || id.Trusted {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if got := IdentityFor(domain.APIKey{TenantID: "tenant-a"}).UserID; got != "tenant-a" {
		t.Fatalf("expected tenant fallback, got %s", got)
	}
}

func TestAuthServiceIssueAndRevoke(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(&stubAPIKeyRepo{})

	if _, err := svc.Issue(ctx, "", "ci", false); !domain.ErrConfiguration.Has(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	token, err := svc.Issue(ctx, "tenant-a", "ops", true)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	key, err := svc.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if err := RequireAdmin(key); err != nil {
		t.Fatalf("expected admin key, got %v", err)
	}

	if err := svc.Revoke(ctx, token); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, err := svc.Authenticate(ctx, token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized after revoke, got %v", err)
	}
	if err := svc.Revoke(ctx, "unknown"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRequireAdmin(t *testing.T) {
	if err := RequireAdmin(domain.APIKey{Active: true}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

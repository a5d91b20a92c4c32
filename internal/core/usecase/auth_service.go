package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

type AuthService struct {
	repo ports.APIKeyRepository
}

func NewAuthService(repo ports.APIKeyRepository) *AuthService {
	return &AuthService{repo: repo}
}

func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.APIKey, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.APIKey{}, ErrUnauthorized
	}

	hash := HashToken(token)
	apiKey, err := s.repo.FindByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.APIKey{}, ErrUnauthorized
		}
		return domain.APIKey{}, err
	}
	if !apiKey.Active {
		return domain.APIKey{}, ErrUnauthorized
	}
	return apiKey, nil
}

// RequireAdmin fails with ErrForbidden unless key may manage schemas.
func RequireAdmin(key domain.APIKey) error {
	if !key.Admin {
		return ErrForbidden
	}
	return nil
}

// Issue creates an active key and returns its token. The token is not
// stored and cannot be recovered later.
func (s *AuthService) Issue(ctx context.Context, tenantID, name string, admin bool) (string, error) {
	if tenantID == "" || name == "" {
		return "", domain.ErrConfiguration.New("api key needs a tenant and a name")
	}
	token := "dg_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	err := s.repo.Upsert(ctx, domain.APIKey{
		TokenHash: HashToken(token),
		TenantID:  tenantID,
		Name:      name,
		Active:    true,
		Admin:     admin,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Revoke deactivates the key behind token.
func (s *AuthService) Revoke(ctx context.Context, token string) error {
	return s.repo.SetActive(ctx, HashToken(strings.TrimSpace(token)), false)
}

// IdentityFor is the identity mutations made with key run under. API
// callers are never trusted.
func IdentityFor(key domain.APIKey) domain.Identity {
	userID := key.Name
	if userID == "" {
		userID = key.TenantID
	}
	return domain.Identity{UserID: userID}
}

func HashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}

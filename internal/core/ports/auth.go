package ports

import (
	"context"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

type APIKeyRepository interface {
	FindByTokenHash(ctx context.Context, tokenHash string) (domain.APIKey, error)
	Upsert(ctx context.Context, key domain.APIKey) error
	// SetActive returns domain.ErrNotFound for unknown hashes.
	SetActive(ctx context.Context, tokenHash string, active bool) error
}

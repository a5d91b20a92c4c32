package ports

import (
	"context"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

// AuditRepository receives one event per committed mutation.
type AuditRepository interface {
	Log(ctx context.Context, event domain.AuditEvent) error
}

// AuditLog is an AuditRepository that can be read back.
type AuditLog interface {
	AuditRepository
	// List returns the newest events of collection first. A limit of zero
	// or less selects a default.
	List(ctx context.Context, collection string, limit int) ([]domain.AuditEvent, error)
}

package ports

import (
	"context"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

type UpdateOptions struct {
	Multi  bool
	Upsert bool
}

type UpdateResult struct {
	Matched    int64
	InsertedID string
}

// DocumentStore is the storage engine behind a collection.
type DocumentStore interface {
	NewID() string
	Insert(ctx context.Context, collection string, doc domain.Document) (string, error)
	Update(ctx context.Context, collection string, selector, modifier domain.Document, opts UpdateOptions) (UpdateResult, error)
	Remove(ctx context.Context, collection string, selector domain.Document) (int64, error)
	Find(ctx context.Context, collection string, selector domain.Document, limit int) ([]domain.Document, error)
	// EnsureUniqueIndex creates the unique index name over field.
	EnsureUniqueIndex(ctx context.Context, collection, name, field string) error
}

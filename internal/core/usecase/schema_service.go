package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
)

// SchemaService attaches schemas to catalog collections and keeps the
// attachments in a repository so Restore can replay them.
type SchemaService struct {
	repo    ports.SchemaRepository
	catalog *Catalog
	decoder ports.DefinitionDecoder
	log     *zap.Logger
}

func NewSchemaService(repo ports.SchemaRepository, catalog *Catalog, decoder ports.DefinitionDecoder, log *zap.Logger) *SchemaService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SchemaService{repo: repo, catalog: catalog, decoder: decoder, log: log.Named("schemas")}
}

// Put attaches schema and stores it once the attach succeeded.
func (s *SchemaService) Put(ctx context.Context, schema domain.StoredSchema) error {
	if err := s.attach(ctx, schema); err != nil {
		return err
	}
	if err := s.repo.Upsert(ctx, schema); err != nil {
		return domain.ErrStorage.Wrap(err)
	}
	s.log.Info("schema stored",
		zap.String("collection", schema.Collection),
		zap.String("adapter", schema.Adapter),
		zap.Any("selector", schema.Selector))
	return nil
}

func (s *SchemaService) List(ctx context.Context, collection string) ([]domain.StoredSchema, error) {
	return s.repo.List(ctx, collection)
}

// Restore attaches every stored schema whose collection is defined.
// Schemas of unknown collections are skipped.
func (s *SchemaService) Restore(ctx context.Context) (int, error) {
	stored, err := s.repo.List(ctx, "")
	if err != nil {
		return 0, err
	}
	n := 0
	for _, schema := range stored {
		if _, ok := s.catalog.Collection(schema.Collection); !ok {
			s.log.Warn("stored schema for unknown collection", zap.String("collection", schema.Collection))
			continue
		}
		if err := s.attach(ctx, schema); err != nil {
			return n, fmt.Errorf("restore schema of %s: %w", schema.Collection, err)
		}
		n++
	}
	return n, nil
}

func (s *SchemaService) attach(ctx context.Context, schema domain.StoredSchema) error {
	coll, ok := s.catalog.Collection(schema.Collection)
	if !ok {
		return domain.ErrConfiguration.New("unknown collection %q", schema.Collection)
	}
	if len(schema.Definition) == 0 {
		return domain.ErrConfiguration.New("schema definition is empty")
	}
	def, err := s.decoder.Decode(schema.Adapter, schema.Definition)
	if err != nil {
		return err
	}
	selector := schema.Selector
	if len(selector) == 0 {
		selector = nil
	}
	return coll.AttachSchema(ctx, def, AttachOptions{Selector: selector, Replace: schema.Replace})
}

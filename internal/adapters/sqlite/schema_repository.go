package sqlite

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"gorm.io/gorm/clause"

	"github.com/atvirokodosprendimai/docgate/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

type collectionSchemaModel struct {
	Collection   string    `gorm:"column:collection;primaryKey"`
	SelectorKey  string    `gorm:"column:selector_key;primaryKey"`
	SelectorJSON string    `gorm:"column:selector_json;not null"`
	Adapter      string    `gorm:"column:adapter;not null"`
	SchemaJSON   string    `gorm:"column:schema_json;not null"`
	ReplaceBase  bool      `gorm:"column:replace_base;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null"`
}

func (collectionSchemaModel) TableName() string {
	return "collection_schemas"
}

// SchemaRepository persists schema attachments so they can be replayed at
// startup. The base schema of a collection is stored under an empty
// selector key.
type SchemaRepository struct {
	db *gormsqlite.DB
}

func NewSchemaRepository(db *gormsqlite.DB) *SchemaRepository {
	return &SchemaRepository{db: db}
}

func selectorKey(selector domain.Document) (string, string, error) {
	if len(selector) == 0 {
		return "", "{}", nil
	}
	data, err := json.Marshal(selector)
	if err != nil {
		return "", "", err
	}
	// goccy sorts map keys, so equal selectors share a key.
	return string(data), string(data), nil
}

func (r *SchemaRepository) Upsert(ctx context.Context, schema domain.StoredSchema) error {
	key, selectorJSON, err := selectorKey(schema.Selector)
	if err != nil {
		return fmt.Errorf("encode selector: %w", err)
	}
	now := time.Now().UTC()
	model := collectionSchemaModel{
		Collection:   schema.Collection,
		SelectorKey:  key,
		SelectorJSON: selectorJSON,
		Adapter:      schema.Adapter,
		SchemaJSON:   string(schema.Definition),
		ReplaceBase:  schema.Replace,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "selector_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"adapter", "schema_json", "replace_base", "updated_at"}),
		}).Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("upsert schema: %w", err)
	}
	return nil
}

// List returns the schemas of collection, base first, then in the order
// they were first stored.
func (r *SchemaRepository) List(ctx context.Context, collection string) ([]domain.StoredSchema, error) {
	var models []collectionSchemaModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		q := tx.Order("selector_key <> ''").Order("created_at").Order("rowid")
		if collection != "" {
			q = q.Where("collection = ?", collection)
		}
		return q.Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	out := make([]domain.StoredSchema, 0, len(models))
	for _, m := range models {
		s, err := toSchemaDomain(m)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *SchemaRepository) Delete(ctx context.Context, collection string, selector domain.Document) (bool, error) {
	key, _, err := selectorKey(selector)
	if err != nil {
		return false, fmt.Errorf("encode selector: %w", err)
	}
	var affected int64
	err = r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Where("collection = ? AND selector_key = ?", collection, key).Delete(&collectionSchemaModel{})
		if res.Error != nil {
			return fmt.Errorf("delete schema: %w", res.Error)
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func toSchemaDomain(model collectionSchemaModel) (domain.StoredSchema, error) {
	s := domain.StoredSchema{
		Collection: model.Collection,
		Adapter:    model.Adapter,
		Definition: json.RawMessage(model.SchemaJSON),
		Replace:    model.ReplaceBase,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
	if model.SelectorKey != "" {
		if err := json.Unmarshal([]byte(model.SelectorJSON), &s.Selector); err != nil {
			return domain.StoredSchema{}, fmt.Errorf("decode selector of %s: %w", model.Collection, err)
		}
	}
	return s, nil
}

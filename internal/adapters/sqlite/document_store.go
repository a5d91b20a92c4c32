package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atvirokodosprendimai/docgate/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/docgate/internal/core/docops"
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
)

type documentModel struct {
	Collection string    `gorm:"column:collection;primaryKey"`
	ID         string    `gorm:"column:id;primaryKey"`
	Body       string    `gorm:"column:body;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null"`
}

func (documentModel) TableName() string {
	return "documents"
}

type uniqueIndexModel struct {
	Collection string `gorm:"column:collection;primaryKey"`
	IndexName  string `gorm:"column:index_name;primaryKey"`
	Field      string `gorm:"column:field;not null"`
}

func (uniqueIndexModel) TableName() string {
	return "unique_indexes"
}

type uniqueValueModel struct {
	Collection string `gorm:"column:collection"`
	IndexName  string `gorm:"column:index_name"`
	ValueKey   string `gorm:"column:value_key"`
	DocID      string `gorm:"column:doc_id"`
}

func (uniqueValueModel) TableName() string {
	return "unique_values"
}

// DocumentStore keeps documents as JSON rows. Unique fields are mirrored
// into unique_values, whose UNIQUE constraint backs the pre-checks.
type DocumentStore struct {
	db *gormsqlite.DB
}

var _ ports.DocumentStore = (*DocumentStore)(nil)

func NewDocumentStore(db *gormsqlite.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) NewID() string { return uuid.NewString() }

func (s *DocumentStore) Insert(ctx context.Context, collection string, doc domain.Document) (string, error) {
	d := docops.CloneDocument(doc)
	if d == nil {
		d = domain.Document{}
	}
	id := idOf(d)
	if id == "" {
		id = s.NewID()
		d[domain.IDField] = id
	}
	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return s.insert(tx, collection, id, d)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func idOf(d domain.Document) string {
	switch v := d[domain.IDField].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (s *DocumentStore) insert(tx *gormsqlite.Tx, collection, id string, d domain.Document) error {
	var n int64
	if err := tx.Model(&documentModel{}).Where("collection = ? AND id = ?", collection, id).Count(&n).Error; err != nil {
		return domain.ErrStorage.Wrap(err)
	}
	if n > 0 {
		return &domain.DuplicateKeyError{Collection: collection, Index: "_id_", Value: id}
	}
	if err := s.index(tx, collection, id, d); err != nil {
		return err
	}
	body, err := docops.MarshalDocument(d)
	if err != nil {
		return domain.ErrStorage.New("encode document: %v", err)
	}
	now := time.Now().UTC()
	model := documentModel{Collection: collection, ID: id, Body: string(body), CreatedAt: now, UpdatedAt: now}
	if err := tx.Create(&model).Error; err != nil {
		return domain.ErrStorage.Wrap(err)
	}
	return nil
}

// index replaces the unique_values rows of document id.
func (s *DocumentStore) index(tx *gormsqlite.Tx, collection, id string, d domain.Document) error {
	var indexes []uniqueIndexModel
	if err := tx.Where("collection = ?", collection).Order("index_name").Find(&indexes).Error; err != nil {
		return domain.ErrStorage.Wrap(err)
	}
	if err := tx.Where("collection = ? AND doc_id = ?", collection, id).Delete(&uniqueValueModel{}).Error; err != nil {
		return domain.ErrStorage.Wrap(err)
	}
	for _, idx := range indexes {
		v, ok := docops.Get(d, idx.Field)
		if !ok || v == nil {
			continue
		}
		if err := claim(tx, collection, idx.IndexName, id, v); err != nil {
			return err
		}
	}
	return nil
}

func claim(tx *gormsqlite.Tx, collection, indexName, id string, v any) error {
	key, err := valueKey(v)
	if err != nil {
		return domain.ErrStorage.New("encode unique value: %v", err)
	}
	var holder uniqueValueModel
	err = tx.Where("collection = ? AND index_name = ? AND value_key = ?", collection, indexName, key).Take(&holder).Error
	switch {
	case err == nil && holder.DocID != id:
		return &domain.DuplicateKeyError{Collection: collection, Index: indexName, Value: v}
	case err == nil:
		return nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrStorage.Wrap(err)
	}
	row := uniqueValueModel{Collection: collection, IndexName: indexName, ValueKey: key, DocID: id}
	if err := tx.Create(&row).Error; err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return &domain.DuplicateKeyError{Collection: collection, Index: indexName, Value: v}
		}
		return domain.ErrStorage.Wrap(err)
	}
	return nil
}

// valueKey gives equal values the same key regardless of numeric kind.
func valueKey(v any) (string, error) {
	if f, ok := docops.ToFloat(v); ok {
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64), nil
	}
	if str, ok := v.(string); ok {
		return "s:" + str, nil
	}
	data, err := json.Marshal(docops.ToExtended(v))
	if err != nil {
		return "", err
	}
	return "j:" + string(data), nil
}

type stored struct {
	id  string
	doc domain.Document
}

func (s *DocumentStore) load(tx *gormsqlite.Tx, collection string, selector domain.Document, limit int) ([]stored, error) {
	q := tx.Where("collection = ?", collection)
	if id, ok := selector[domain.IDField].(string); ok {
		q = q.Where("id = ?", id)
	}
	var models []documentModel
	if err := q.Order("rowid").Find(&models).Error; err != nil {
		return nil, domain.ErrStorage.Wrap(err)
	}
	var out []stored
	for _, m := range models {
		d, err := docops.UnmarshalDocument([]byte(m.Body))
		if err != nil {
			return nil, domain.ErrStorage.New("decode document %s: %v", m.ID, err)
		}
		if !docops.Matches(d, selector) {
			continue
		}
		out = append(out, stored{id: m.ID, doc: d})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *DocumentStore) Update(ctx context.Context, collection string, selector, modifier domain.Document, opts ports.UpdateOptions) (ports.UpdateResult, error) {
	var res ports.UpdateResult
	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		limit := 1
		if opts.Multi {
			limit = 0
		}
		matches, err := s.load(tx, collection, selector, limit)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			if !opts.Upsert {
				return nil
			}
			d := docops.FlattenSelector(selector)
			if err := docops.Apply(d, docops.CloneDocument(modifier), true); err != nil {
				return err
			}
			id := idOf(d)
			if id == "" {
				id = s.NewID()
				d[domain.IDField] = id
			}
			if err := s.insert(tx, collection, id, d); err != nil {
				return err
			}
			res = ports.UpdateResult{Matched: 1, InsertedID: id}
			return nil
		}
		now := time.Now().UTC()
		for _, m := range matches {
			if err := docops.Apply(m.doc, docops.CloneDocument(modifier), false); err != nil {
				return err
			}
			if err := s.index(tx, collection, m.id, m.doc); err != nil {
				return err
			}
			body, err := docops.MarshalDocument(m.doc)
			if err != nil {
				return domain.ErrStorage.New("encode document: %v", err)
			}
			err = tx.Model(&documentModel{}).
				Where("collection = ? AND id = ?", collection, m.id).
				Updates(map[string]any{"body": string(body), "updated_at": now}).Error
			if err != nil {
				return domain.ErrStorage.Wrap(err)
			}
		}
		res.Matched = int64(len(matches))
		return nil
	})
	if err != nil {
		return ports.UpdateResult{}, err
	}
	return res, nil
}

func (s *DocumentStore) Remove(ctx context.Context, collection string, selector domain.Document) (int64, error) {
	var n int64
	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		matches, err := s.load(tx, collection, selector, 0)
		if err != nil {
			return err
		}
		for _, m := range matches {
			if err := tx.Where("collection = ? AND id = ?", collection, m.id).Delete(&documentModel{}).Error; err != nil {
				return domain.ErrStorage.Wrap(err)
			}
			if err := tx.Where("collection = ? AND doc_id = ?", collection, m.id).Delete(&uniqueValueModel{}).Error; err != nil {
				return domain.ErrStorage.Wrap(err)
			}
		}
		n = int64(len(matches))
		return nil
	})
	return n, err
}

func (s *DocumentStore) Find(ctx context.Context, collection string, selector domain.Document, limit int) ([]domain.Document, error) {
	var out []domain.Document
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		matches, err := s.load(tx, collection, selector, limit)
		if err != nil {
			return err
		}
		out = make([]domain.Document, 0, len(matches))
		for _, m := range matches {
			out = append(out, m.doc)
		}
		return nil
	})
	return out, err
}

// EnsureUniqueIndex registers the index and claims values for documents
// already stored. It fails when those documents already collide.
func (s *DocumentStore) EnsureUniqueIndex(ctx context.Context, collection, name, field string) error {
	return s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		var existing uniqueIndexModel
		err := tx.Where("collection = ? AND index_name = ?", collection, name).Take(&existing).Error
		if err == nil && existing.Field == field {
			return nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrStorage.Wrap(err)
		}
		model := uniqueIndexModel{Collection: collection, IndexName: name, Field: field}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "index_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"field"}),
		}).Create(&model).Error
		if err != nil {
			return domain.ErrStorage.Wrap(err)
		}
		if err := tx.Where("collection = ? AND index_name = ?", collection, name).Delete(&uniqueValueModel{}).Error; err != nil {
			return domain.ErrStorage.Wrap(err)
		}
		docs, err := s.load(tx, collection, domain.Document{}, 0)
		if err != nil {
			return err
		}
		for _, d := range docs {
			v, ok := docops.Get(d.doc, field)
			if !ok || v == nil {
				continue
			}
			if err := claim(tx, collection, name, d.id, v); err != nil {
				return err
			}
		}
		return nil
	})
}

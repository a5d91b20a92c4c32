package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/docgate/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

type auditModel struct {
	ID         uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Collection string    `gorm:"column:collection;not null"`
	DocumentID string    `gorm:"column:document_id;not null"`
	Action     string    `gorm:"column:action;not null"`
	Actor      string    `gorm:"column:actor;not null"`
	Trusted    bool      `gorm:"column:trusted;not null"`
	Affected   int64     `gorm:"column:affected;not null"`
	At         time.Time `gorm:"column:at;not null"`
}

func (auditModel) TableName() string {
	return "audit_logs"
}

type AuditRepository struct {
	db *gormsqlite.DB
}

func NewAuditRepository(db *gormsqlite.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Log(ctx context.Context, event domain.AuditEvent) error {
	model := auditModel{
		Collection: event.Collection,
		DocumentID: event.DocumentID,
		Action:     event.Action,
		Actor:      event.Actor,
		Trusted:    event.Trusted,
		Affected:   event.Affected,
		At:         event.At,
	}
	if model.At.IsZero() {
		model.At = time.Now().UTC()
	}

	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// List returns the newest events of collection first.
func (r *AuditRepository) List(ctx context.Context, collection string, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []auditModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("collection = ?", collection).Order("id DESC").Limit(limit).Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	out := make([]domain.AuditEvent, 0, len(models))
	for _, m := range models {
		out = append(out, domain.AuditEvent{
			Collection: m.Collection,
			DocumentID: m.DocumentID,
			Action:     m.Action,
			Actor:      m.Actor,
			Trusted:    m.Trusted,
			Affected:   m.Affected,
			At:         m.At,
		})
	}
	return out, nil
}

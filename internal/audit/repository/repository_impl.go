package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/waitline/internal/audit/domain"
	"github.com/smallbiznis/waitline/pkg/tenantctx"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, entry *domain.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListRecent(ctx context.Context, tenantID snowflake.ID, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	// the tenant carried by the request context pins the query; the
	// explicit id only applies on tenant-less admin portal reads
	tx := r.db.WithContext(ctx)
	if _, ok := tenantctx.TenantIDFromContext(ctx); ok {
		tx = tx.Scopes(tenantctx.Scope(ctx))
	} else {
		tx = tx.Where("tenant_id = ?", tenantID)
	}

	var logs []domain.AuditLog
	err := tx.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Insert(ctx context.Context, entry *AuditLog) error
	ListRecent(ctx context.Context, tenantID snowflake.ID, limit int) ([]AuditLog, error)
}

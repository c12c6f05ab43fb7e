package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, tenant *Tenant) error
	// FindBySlugOrDomain matches an active tenant whose slug equals the
	// subdomain label or whose custom domain equals the full hostname,
	// with its subscription loaded.
	FindBySlugOrDomain(ctx context.Context, slug, host string) (*Tenant, error)
	FindActiveByID(ctx context.Context, id snowflake.ID) (*Tenant, error)
	// FirstActive returns the oldest active tenant, ordered by creation
	// time with the ID as deterministic tiebreaker.
	FirstActive(ctx context.Context) (*Tenant, error)
	Deactivate(ctx context.Context, id snowflake.ID, now time.Time) error
}

package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	CreateAdmin(ctx context.Context, admin *PlatformAdmin) error
	FindAdminByID(ctx context.Context, id snowflake.ID) (*PlatformAdmin, error)
	FindAdminByEmail(ctx context.Context, email string) (*PlatformAdmin, error)
	TouchAdminActivity(ctx context.Context, id snowflake.ID, at time.Time) error

	CreateMember(ctx context.Context, member *OrganizationUser) error
	FindMemberByID(ctx context.Context, id snowflake.ID) (*OrganizationUser, error)
	FindMemberByEmail(ctx context.Context, tenantID snowflake.ID, email string) (*OrganizationUser, error)
	CountMembers(ctx context.Context, tenantID snowflake.ID) (int64, error)
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/waitline/internal/identity/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) CreateAdmin(ctx context.Context, admin *domain.PlatformAdmin) error {
	return r.db.WithContext(ctx).Create(admin).Error
}

func (r *repository) FindAdminByID(ctx context.Context, id snowflake.ID) (*domain.PlatformAdmin, error) {
	var admin domain.PlatformAdmin
	if err := r.db.WithContext(ctx).First(&admin, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &admin, nil
}

func (r *repository) FindAdminByEmail(ctx context.Context, email string) (*domain.PlatformAdmin, error) {
	var admin domain.PlatformAdmin
	if err := r.db.WithContext(ctx).First(&admin, "email = ?", email).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &admin, nil
}

func (r *repository) TouchAdminActivity(ctx context.Context, id snowflake.ID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.PlatformAdmin{}).
		Where("id = ?", id).
		Update("last_activity_at", at).Error
}

func (r *repository) CreateMember(ctx context.Context, member *domain.OrganizationUser) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *repository) FindMemberByID(ctx context.Context, id snowflake.ID) (*domain.OrganizationUser, error) {
	var member domain.OrganizationUser
	if err := r.db.WithContext(ctx).First(&member, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &member, nil
}

func (r *repository) FindMemberByEmail(ctx context.Context, tenantID snowflake.ID, email string) (*domain.OrganizationUser, error) {
	var member domain.OrganizationUser
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("email = ?", email).
		First(&member).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &member, nil
}

func (r *repository) CountMembers(ctx context.Context, tenantID snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.OrganizationUser{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error
	return count, err
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrActorNotFound
	}
	return err
}

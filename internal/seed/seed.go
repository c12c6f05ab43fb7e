// Package seed bootstraps a single-tenant development install: one
// tenant with an active subscription, one platform admin and one
// organization user, all idempotent across restarts.
package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	identitydomain "github.com/smallbiznis/waitline/internal/identity/domain"
	"github.com/smallbiznis/waitline/internal/identity/password"
	tenantdomain "github.com/smallbiznis/waitline/internal/tenant/domain"
	"gorm.io/gorm"
)

const (
	defaultTenantName = "Main"
	defaultTenantSlug = "main"

	defaultAdminEmail    = "admin@waitline.local"
	defaultAdminPassword = "admin"

	defaultMemberEmail    = "staff@waitline.local"
	defaultMemberPassword = "staff"
	defaultMemberRole     = "owner"
)

// EnsureDefaultTenantAndAdmin seeds the local development fixture.
func EnsureDefaultTenantAndAdmin(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seeded, err := ensureTenantTx(ctx, tx, node)
		if err != nil {
			return err
		}
		if err := ensureAdminTx(ctx, tx, node); err != nil {
			return err
		}
		return ensureMemberTx(ctx, tx, node, seeded.ID)
	})
}

func ensureTenantTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (*tenantdomain.Tenant, error) {
	var seeded tenantdomain.Tenant
	err := tx.WithContext(ctx).Where("slug = ?", defaultTenantSlug).First(&seeded).Error
	if err == nil {
		return &seeded, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	seeded = tenantdomain.Tenant{
		ID:        node.Generate(),
		Name:      defaultTenantName,
		Slug:      defaultTenantSlug,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	seeded.Subscription = &tenantdomain.Subscription{
		ID:        node.Generate(),
		TenantID:  seeded.ID,
		Status:    tenantdomain.SubscriptionStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&seeded).Error; err != nil {
		return nil, err
	}
	return &seeded, nil
}

func ensureAdminTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var admin identitydomain.PlatformAdmin
	err := tx.WithContext(ctx).Where("email = ?", defaultAdminEmail).First(&admin).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := password.Hash(defaultAdminPassword)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	admin = identitydomain.PlatformAdmin{
		ID:           node.Generate(),
		Email:        strings.ToLower(defaultAdminEmail),
		PasswordHash: &hashed,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return tx.WithContext(ctx).Create(&admin).Error
}

func ensureMemberTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, tenantID snowflake.ID) error {
	var user identitydomain.OrganizationUser
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND email = ?", tenantID, defaultMemberEmail).
		First(&user).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := password.Hash(defaultMemberPassword)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	user = identitydomain.OrganizationUser{
		ID:           node.Generate(),
		TenantID:     tenantID,
		Email:        strings.ToLower(defaultMemberEmail),
		PasswordHash: &hashed,
		Role:         defaultMemberRole,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return tx.WithContext(ctx).Create(&user).Error
}

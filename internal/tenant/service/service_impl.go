package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/waitline/internal/clock"
	"github.com/smallbiznis/waitline/internal/config"
	"github.com/smallbiznis/waitline/internal/tenant/domain"
	"github.com/smallbiznis/waitline/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	log      *zap.Logger
	dbConn   *gorm.DB
	repo     domain.Repository
	genID    *snowflake.Node
	clock    clock.Clock
	reserved map[string]struct{}
}

func NewService(log *zap.Logger, cfg config.Config, dbConn *gorm.DB, repo domain.Repository, genID *snowflake.Node, clk clock.Clock) domain.Service {
	return &Service{
		log:    log.Named("tenant.service"),
		dbConn: dbConn,
		repo:   repo,
		genID:  genID,
		clock:  clk,
		reserved: map[string]struct{}{
			cfg.AdminLabel: {},
			cfg.APILabel:   {},
		},
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTenantRequest) (*domain.Tenant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	raw := strings.TrimSpace(req.Slug)
	if raw == "" {
		raw = name
	}
	normalized := slug.Make(raw)
	if normalized == "" || !slug.IsSlug(normalized) {
		return nil, domain.ErrInvalidSlug
	}
	if _, ok := s.reserved[normalized]; ok {
		return nil, domain.ErrReservedSlug
	}

	now := s.clock.Now().UTC()
	tenant := &domain.Tenant{
		ID:        s.genID.Generate(),
		Name:      name,
		Slug:      normalized,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		Subscription: &domain.Subscription{
			ID:        s.genID.Generate(),
			Status:    domain.SubscriptionStatusTrial,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	tenant.Subscription.TenantID = tenant.ID
	if custom := strings.ToLower(strings.TrimSpace(req.CustomDomain)); custom != "" {
		tenant.CustomDomain = &custom
	}

	if err := s.repo.Create(ctx, tenant); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugTaken
		}
		s.log.Error("create tenant failed", zap.String("slug", normalized), zap.Error(err))
		return nil, err
	}

	return tenant, nil
}

func (s *Service) Deactivate(ctx context.Context, id snowflake.ID) error {
	return s.repo.Deactivate(ctx, id, s.clock.Now().UTC())
}

package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/waitline/internal/config"
	"github.com/smallbiznis/waitline/internal/hostname"
	"github.com/smallbiznis/waitline/internal/tenant/domain"
	"go.uber.org/zap"
)

// Resolver maps request hosts to tenants. The check order matters:
// the reserved admin and api labels are tested before any slug lookup,
// so those labels can never resolve as tenant slugs.
type Resolver struct {
	log        *zap.Logger
	classifier *hostname.Classifier
	repo       domain.Repository
	adminLabel string
	apiLabel   string
}

func NewResolver(log *zap.Logger, cfg config.Config, classifier *hostname.Classifier, repo domain.Repository) domain.Resolver {
	return &Resolver{
		log:        log.Named("tenant.resolver"),
		classifier: classifier,
		repo:       repo,
		adminLabel: cfg.AdminLabel,
		apiLabel:   cfg.APILabel,
	}
}

func (r *Resolver) Resolve(ctx context.Context, host string, apiTenantID string) (domain.Resolution, error) {
	class := r.classifier.Classify(host)

	if class.Subdomain == "" {
		if class.IsLocal && r.classifier.IsBareLocalRoot(host) {
			// developer convenience only: a bare local root resolves the
			// oldest active tenant so http://localhost works out of the box
			tenant, err := r.repo.FirstActive(ctx)
			if err != nil {
				if errors.Is(err, domain.ErrTenantNotFound) {
					return domain.Resolution{Kind: domain.OutcomeNoSubdomain}, nil
				}
				return domain.Resolution{}, r.internal("first active tenant lookup failed", host, err)
			}
			return r.entitled(tenant)
		}
		return domain.Resolution{Kind: domain.OutcomeNoSubdomain}, nil
	}

	switch class.Subdomain {
	case r.adminLabel:
		return domain.Resolution{Kind: domain.OutcomeAdminPortal}, nil
	case r.apiLabel:
		return r.resolveAPICall(ctx, host, apiTenantID)
	}

	tenant, err := r.repo.FindBySlugOrDomain(ctx, class.Subdomain, hostname.Normalize(host))
	if err != nil {
		if errors.Is(err, domain.ErrTenantNotFound) {
			return domain.Resolution{}, domain.ErrTenantNotFound
		}
		return domain.Resolution{}, r.internal("tenant lookup failed", host, err)
	}

	return r.entitled(tenant)
}

func (r *Resolver) resolveAPICall(ctx context.Context, host, apiTenantID string) (domain.Resolution, error) {
	raw := strings.TrimSpace(apiTenantID)
	if raw == "" {
		return domain.Resolution{}, domain.ErrTenantIDRequired
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return domain.Resolution{}, domain.ErrTenantIDRequired
	}

	tenant, err := r.repo.FindActiveByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrTenantNotFound) {
			return domain.Resolution{}, domain.ErrTenantNotFound
		}
		return domain.Resolution{}, r.internal("api tenant lookup failed", host, err)
	}

	res, err := r.entitled(tenant)
	if err != nil {
		return domain.Resolution{}, err
	}
	res.Kind = domain.OutcomeAPICall
	return res, nil
}

func (r *Resolver) entitled(tenant *domain.Tenant) (domain.Resolution, error) {
	if tenant.Subscription == nil || !tenant.Subscription.Entitled() {
		return domain.Resolution{}, domain.ErrSubscriptionInactive
	}
	return domain.Resolution{Kind: domain.OutcomeResolved, Tenant: tenant}, nil
}

func (r *Resolver) internal(msg, host string, err error) error {
	r.log.Error(msg, zap.String("host", host), zap.Error(err))
	return domain.ErrResolverInternal
}

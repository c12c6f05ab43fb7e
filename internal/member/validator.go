// Package member validates that an authenticated actor may act inside
// the tenant the request resolved to.
package member

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	identitydomain "github.com/smallbiznis/waitline/internal/identity/domain"
	"github.com/smallbiznis/waitline/pkg/tenantctx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrMembershipDenied is the generic denial for a member acting
	// outside their tenant. It deliberately carries no detail about
	// which tenants exist.
	ErrMembershipDenied = errors.New("membership_denied")

	// ErrSessionTenantMismatch means the tenant cached in the session
	// disagrees with the one the hostname resolved to. The session can
	// no longer be trusted and must be destroyed.
	ErrSessionTenantMismatch = errors.New("session_tenant_mismatch")
)

// Validator gates tenant-scoped request handling. Platform admins are
// tenant-agnostic and always pass; organization users must belong to
// the resolved tenant.
type Validator struct {
	log *zap.Logger
}

func NewValidator(log *zap.Logger) *Validator {
	return &Validator{log: log.Named("member.validator")}
}

// Validate checks actor against the tenant the request resolved to.
// sessionTenantID is the tenant cached in the session when the actor
// logged in; zero means the session carries no cached tenant.
func (v *Validator) Validate(actor identitydomain.Actor, resolvedTenantID, sessionTenantID snowflake.ID) error {
	if actor.Type == identitydomain.ActorTypeAdmin {
		return nil
	}
	if actor.Type != identitydomain.ActorTypeMember || actor.Member == nil {
		return ErrMembershipDenied
	}

	if sessionTenantID != 0 && sessionTenantID != resolvedTenantID {
		v.log.Warn("session tenant disagrees with resolved tenant",
			zap.Int64("session_tenant_id", int64(sessionTenantID)),
			zap.Int64("resolved_tenant_id", int64(resolvedTenantID)),
			zap.Int64("user_id", int64(actor.Member.ID)),
		)
		return ErrSessionTenantMismatch
	}

	if actor.Member.TenantID != resolvedTenantID {
		v.log.Warn("member denied outside own tenant",
			zap.Int64("member_tenant_id", int64(actor.Member.TenantID)),
			zap.Int64("resolved_tenant_id", int64(resolvedTenantID)),
			zap.Int64("user_id", int64(actor.Member.ID)),
		)
		return ErrMembershipDenied
	}
	return nil
}

// Scope narrows a query to the tenant carried by the request context.
// The context value overrides any tenant filter the caller supplied.
func Scope(ctx context.Context) func(*gorm.DB) *gorm.DB {
	return tenantctx.Scope(ctx)
}

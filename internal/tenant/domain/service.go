package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// OutcomeKind discriminates the result of resolving a request host.
type OutcomeKind string

const (
	// OutcomeAdminPortal marks the reserved administrative namespace.
	// No tenant context may be attached downstream.
	OutcomeAdminPortal OutcomeKind = "admin_portal"
	// OutcomeAPICall marks a machine-to-machine request with an
	// explicit tenant identifier.
	OutcomeAPICall OutcomeKind = "api_call"
	// OutcomeResolved carries a resolved, entitled tenant.
	OutcomeResolved OutcomeKind = "resolved"
	// OutcomeNoSubdomain marks apex-domain requests.
	OutcomeNoSubdomain OutcomeKind = "no_subdomain"
)

// Resolution is the outcome of the host-to-tenant resolution protocol.
type Resolution struct {
	Kind   OutcomeKind
	Tenant *Tenant // set for OutcomeResolved and OutcomeAPICall
}

type Resolver interface {
	// Resolve maps a request host (and, for api calls, an explicit
	// tenant identifier supplied out-of-band) to a Resolution. Failed
	// lookups surface as sentinel errors, storage failures as
	// ErrResolverInternal with the cause logged, never leaked.
	Resolve(ctx context.Context, host string, apiTenantID string) (Resolution, error)
}

type CreateTenantRequest struct {
	Name         string
	Slug         string
	CustomDomain string
}

type Service interface {
	Create(ctx context.Context, req CreateTenantRequest) (*Tenant, error)
	Deactivate(ctx context.Context, id snowflake.ID) error
}

var (
	ErrTenantNotFound       = errors.New("tenant_not_found")
	ErrSubscriptionInactive = errors.New("subscription_inactive")
	ErrTenantIDRequired     = errors.New("tenant_id_required")
	ErrResolverInternal     = errors.New("resolver_internal")
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidSlug          = errors.New("invalid_slug")
	ErrReservedSlug         = errors.New("reserved_slug")
	ErrSlugTaken            = errors.New("slug_taken")
)

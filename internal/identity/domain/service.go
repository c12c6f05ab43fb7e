package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// AuthenticateAdmin and AuthenticateMember verify credentials only;
	// session handling (regeneration included) belongs to the caller.
	AuthenticateAdmin(ctx context.Context, email, password string) (*PlatformAdmin, error)
	AuthenticateMember(ctx context.Context, tenantID snowflake.ID, email, password string) (*OrganizationUser, error)

	// LoadActor resolves the actor behind a session reference. Missing
	// or deactivated records surface as ErrActorNotFound /
	// ErrActorInactive so the guard can destroy the session.
	LoadActor(ctx context.Context, actorType ActorType, id snowflake.ID) (Actor, error)

	CreateAdmin(ctx context.Context, req CreateAdminRequest) (*PlatformAdmin, error)
	CreateMember(ctx context.Context, req CreateMemberRequest) (*OrganizationUser, error)
}

type CreateAdminRequest struct {
	Email    string
	Password string
}

type CreateMemberRequest struct {
	TenantID snowflake.ID
	Email    string
	Password string
	Role     string
}

package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/waitline/internal/clock"
	"github.com/smallbiznis/waitline/internal/identity/domain"
	"github.com/smallbiznis/waitline/internal/identity/password"
	"github.com/smallbiznis/waitline/pkg/db"
	"go.uber.org/zap"
)

const minPasswordLength = 8

type Service struct {
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func New(log *zap.Logger, repo domain.Repository, genID *snowflake.Node, clk clock.Clock) domain.Service {
	return &Service{
		log:   log.Named("identity.service"),
		repo:  repo,
		genID: genID,
		clock: clk,
	}
}

func (s *Service) AuthenticateAdmin(ctx context.Context, email, rawPassword string) (*domain.PlatformAdmin, error) {
	email, err := normalizeEmail(email)
	if err != nil || strings.TrimSpace(rawPassword) == "" {
		return nil, domain.ErrInvalidCredentials
	}

	admin, err := s.repo.FindAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrActorNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !admin.IsActive {
		return nil, domain.ErrActorInactive
	}
	if admin.PasswordHash == nil || !password.Verify(rawPassword, *admin.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	now := s.clock.Now().UTC()
	if err := s.repo.TouchAdminActivity(ctx, admin.ID, now); err != nil {
		s.log.Warn("failed to stamp admin activity", zap.String("admin_id", admin.ID.String()), zap.Error(err))
	}
	admin.LastActivityAt = &now

	return admin, nil
}

func (s *Service) AuthenticateMember(ctx context.Context, tenantID snowflake.ID, email, rawPassword string) (*domain.OrganizationUser, error) {
	email, err := normalizeEmail(email)
	if err != nil || strings.TrimSpace(rawPassword) == "" || tenantID == 0 {
		return nil, domain.ErrInvalidCredentials
	}

	member, err := s.repo.FindMemberByEmail(ctx, tenantID, email)
	if err != nil {
		if errors.Is(err, domain.ErrActorNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !member.IsActive {
		return nil, domain.ErrActorInactive
	}
	if member.PasswordHash == nil || !password.Verify(rawPassword, *member.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	return member, nil
}

func (s *Service) LoadActor(ctx context.Context, actorType domain.ActorType, id snowflake.ID) (domain.Actor, error) {
	switch actorType {
	case domain.ActorTypeAdmin:
		admin, err := s.repo.FindAdminByID(ctx, id)
		if err != nil {
			return domain.Actor{}, err
		}
		if !admin.IsActive {
			return domain.Actor{}, domain.ErrActorInactive
		}
		return domain.Actor{Type: domain.ActorTypeAdmin, Admin: admin}, nil
	case domain.ActorTypeMember:
		member, err := s.repo.FindMemberByID(ctx, id)
		if err != nil {
			return domain.Actor{}, err
		}
		if !member.IsActive {
			return domain.Actor{}, domain.ErrActorInactive
		}
		return domain.Actor{Type: domain.ActorTypeMember, Member: member}, nil
	default:
		return domain.Actor{}, domain.ErrActorNotFound
	}
}

func (s *Service) CreateAdmin(ctx context.Context, req domain.CreateAdminRequest) (*domain.PlatformAdmin, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if len(strings.TrimSpace(req.Password)) < minPasswordLength {
		return nil, domain.ErrInvalidCredentials
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	admin := &domain.PlatformAdmin{
		ID:           s.genID.Generate(),
		Email:        email,
		PasswordHash: &hashed,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateAdmin(ctx, admin); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrActorExists
		}
		return nil, err
	}
	return admin, nil
}

func (s *Service) CreateMember(ctx context.Context, req domain.CreateMemberRequest) (*domain.OrganizationUser, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil || req.TenantID == 0 {
		return nil, domain.ErrInvalidCredentials
	}
	if len(strings.TrimSpace(req.Password)) < minPasswordLength {
		return nil, domain.ErrInvalidCredentials
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = "member"
	}

	now := s.clock.Now().UTC()
	member := &domain.OrganizationUser{
		ID:           s.genID.Generate(),
		TenantID:     req.TenantID,
		Email:        email,
		PasswordHash: &hashed,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateMember(ctx, member); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrActorExists
		}
		return nil, err
	}
	return member, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

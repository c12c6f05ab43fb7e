package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/waitline/internal/audit/auditcontext"
	auditdomain "github.com/smallbiznis/waitline/internal/audit/domain"
	"github.com/smallbiznis/waitline/internal/clock"
	"github.com/smallbiznis/waitline/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository
	Clock clock.Clock
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
	clock clock.Clock
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) Record(ctx context.Context, event auditdomain.Event) {
	action := strings.TrimSpace(event.Action)
	if action == "" {
		s.log.Warn("audit event dropped, empty action")
		return
	}

	tenantID := event.TenantID
	if tenantID == 0 {
		if ctxTenant, ok := tenantctx.TenantIDFromContext(ctx); ok {
			tenantID = ctxTenant
		}
	}

	targetType := strings.TrimSpace(event.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}

	payload := datatypes.JSONMap{}
	for key, value := range event.Metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	entry := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		TenantID:   tenantID,
		ActorType:  strings.TrimSpace(event.ActorType),
		Action:     action,
		TargetType: targetType,
		Metadata:   payload,
		CreatedAt:  s.clock.Now().UTC(),
	}
	if actorID := strings.TrimSpace(event.ActorID); actorID != "" {
		entry.ActorID = &actorID
	}
	if targetID := strings.TrimSpace(event.TargetID); targetID != "" {
		entry.TargetID = &targetID
	}
	if ip := auditcontext.IPAddressFromContext(ctx); ip != "" {
		entry.IPAddress = &ip
	}
	if ua := auditcontext.UserAgentFromContext(ctx); ua != "" {
		entry.UserAgent = &ua
	}

	if err := s.repo.Insert(ctx, &entry); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

func (s *Service) ListRecent(ctx context.Context, tenantID snowflake.ID, limit int) ([]auditdomain.AuditLog, error) {
	return s.repo.ListRecent(ctx, tenantID, limit)
}

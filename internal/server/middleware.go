package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smallbiznis/waitline/internal/audit/auditcontext"
	auditdomain "github.com/smallbiznis/waitline/internal/audit/domain"
	identitydomain "github.com/smallbiznis/waitline/internal/identity/domain"
	"github.com/smallbiznis/waitline/internal/member"
	"github.com/smallbiznis/waitline/internal/session"
	tenantdomain "github.com/smallbiznis/waitline/internal/tenant/domain"
	"github.com/smallbiznis/waitline/pkg/tenantctx"
	"go.uber.org/zap"
)

const (
	HeaderTenantID  = "X-Tenant-ID"
	HeaderRequestID = "X-Request-ID"

	contextResolutionKey = "resolution"
	contextSessionKey    = "session_record"
	contextActorKey      = "actor"

	loginPath = "/login"

	reasonSessionTimeout  = "session_timeout"
	reasonAccountInactive = "account_inactive"
	reasonSessionError    = "session_error"
)

// RequestMeta stamps a request id and carries client metadata into the
// request context for audit writes.
func RequestMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(HeaderRequestID, requestID)

		ctx := auditcontext.WithRequestID(c.Request.Context(), requestID)
		ctx = auditcontext.WithRequestMeta(ctx, c.ClientIP(), c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ResolveTenant runs hostname classification and tenant resolution and
// loads the session record. Every route below the engine root passes
// through here before any guard or handler.
func (s *Server) ResolveTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiTenantID := strings.TrimSpace(c.GetHeader(HeaderTenantID))
		if apiTenantID == "" {
			apiTenantID = strings.TrimSpace(c.Query("tenant_id"))
		}

		resolution, err := s.resolver.Resolve(c.Request.Context(), c.Request.Host, apiTenantID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Set(contextResolutionKey, resolution)

		if resolution.Tenant != nil {
			ctx := tenantctx.WithTenantID(c.Request.Context(), resolution.Tenant.ID)
			c.Request = c.Request.WithContext(ctx)
		}

		record, err := s.sessions.Load(c.Request.Context(), c)
		if err != nil {
			s.log.Error("session load failed", zap.Error(err))
			AbortWithError(c, ErrInternal)
			return
		}
		c.Set(contextSessionKey, record)

		if resolution.Kind == tenantdomain.OutcomeResolved {
			if record.ResolvedTenantID != resolution.Tenant.ID {
				record.ResolvedTenantID = resolution.Tenant.ID
				record.ResolvedTenantSlug = resolution.Tenant.Slug
				if err := s.sessions.Save(c.Request.Context(), record); err != nil {
					s.log.Warn("failed to stamp resolved tenant on session", zap.Error(err))
				}
			}
		}

		c.Next()
	}
}

// RequireAdminPortal hides admin routes from every non-admin host.
func (s *Server) RequireAdminPortal() gin.HandlerFunc {
	return func(c *gin.Context) {
		if resolutionFrom(c).Kind != tenantdomain.OutcomeAdminPortal {
			AbortWithError(c, ErrNotFound)
			return
		}
		c.Next()
	}
}

// RequireTenantHost admits tenant subdomains, custom domains and api
// calls carrying an explicit tenant.
func (s *Server) RequireTenantHost() gin.HandlerFunc {
	return func(c *gin.Context) {
		resolution := resolutionFrom(c)
		if resolution.Tenant == nil {
			AbortWithError(c, ErrNotFound)
			return
		}
		c.Next()
	}
}

// RequireGuest bounces an actor who is already signed in for this host
// off the login surface: home for browsers, a conflict for data
// callers. Hosts that have no login surface fall through to the 404 in
// the handler.
func (s *Server) RequireGuest() gin.HandlerFunc {
	return func(c *gin.Context) {
		entry, ok := entryTypeFor(resolutionFrom(c))
		if !ok {
			c.Next()
			return
		}
		record := sessionFrom(c)
		if record == nil || record.State.Kind != entry {
			c.Next()
			return
		}
		if wantsJSON(c) {
			AbortWithError(c, ErrConflict)
			return
		}
		c.Redirect(http.StatusFound, "/")
		c.Abort()
	}
}

// Authenticated is the full guard chain for one actor family: isolation
// purge, type check, idle timeout, actor load, and, on tenant hosts,
// membership validation. The surviving record gets a fresh activity
// stamp.
func (s *Server) Authenticated(entry session.Type) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		record := sessionFrom(c)
		if record == nil {
			s.challenge(c, "")
			return
		}

		if purged := s.sessions.EnforceIsolation(record, entry); purged {
			s.auditSvc.Record(ctx, auditdomain.Event{
				ActorType:  string(entry),
				Action:     auditdomain.ActionIsolationViolation,
				TargetType: "session",
				Metadata:   map[string]any{"entry": string(entry)},
			})
			if err := s.sessions.Save(ctx, record); err != nil {
				s.log.Warn("failed to persist isolation purge", zap.Error(err))
			}
		}

		if record.State.Kind != entry {
			s.challenge(c, "")
			return
		}

		policy := s.sessions.Policy()
		timeout := policy.TenantIdleTimeout
		if entry == session.TypeAdmin {
			timeout = policy.AdminIdleTimeout
		}
		if s.sessions.IdleTimedOut(record, timeout) {
			s.sessions.Destroy(ctx, c, record)
			s.challenge(c, reasonSessionTimeout)
			return
		}

		actor, err := s.loadActor(c, entry, record)
		if err != nil {
			s.sessions.Destroy(ctx, c, record)
			reason := reasonSessionError
			if err == identitydomain.ErrActorInactive {
				reason = reasonAccountInactive
			}
			s.challenge(c, reason)
			return
		}

		if entry == session.TypeTenant {
			resolution := resolutionFrom(c)
			if resolution.Tenant == nil {
				AbortWithError(c, ErrNotFound)
				return
			}
			if err := s.validator.Validate(actor, resolution.Tenant.ID, record.State.TenantID); err != nil {
				if err == member.ErrSessionTenantMismatch {
					s.auditSvc.Record(ctx, auditdomain.Event{
						TenantID:   resolution.Tenant.ID,
						ActorType:  auditdomain.ActorTypeMember,
						ActorID:    actor.ID().String(),
						Action:     auditdomain.ActionSessionDestroyed,
						TargetType: "session",
						Metadata:   map[string]any{"reason": "tenant_mismatch"},
					})
					s.sessions.Destroy(ctx, c, record)
				}
				// membership denials are explicit, never a redirect
				AbortWithError(c, err)
				return
			}
		}

		s.sessions.Touch(record)
		if err := s.sessions.Save(ctx, record); err != nil {
			s.log.Warn("failed to refresh session activity", zap.Error(err))
		}

		c.Set(contextActorKey, actor)
		c.Next()
	}
}

func (s *Server) loadActor(c *gin.Context, entry session.Type, record *session.Record) (identitydomain.Actor, error) {
	ctx := c.Request.Context()
	if entry == session.TypeAdmin {
		return s.identitySvc.LoadActor(ctx, identitydomain.ActorTypeAdmin, record.State.AdminID)
	}
	return s.identitySvc.LoadActor(ctx, identitydomain.ActorTypeMember, record.State.UserID)
}

// challenge answers a failed authentication gate: a structured denial
// for data callers, a login redirect with the original path preserved
// for browsers.
func (s *Server) challenge(c *gin.Context, reason string) {
	if wantsJSON(c) {
		if reason == reasonAccountInactive {
			AbortWithError(c, identitydomain.ErrActorInactive)
			return
		}
		AbortWithError(c, ErrUnauthorized)
		return
	}

	values := url.Values{}
	returnTo := c.Request.URL.Path
	if raw := c.Request.URL.RawQuery; raw != "" {
		returnTo += "?" + raw
	}
	if returnTo != "" && returnTo != loginPath {
		values.Set("return_to", returnTo)
	}
	if reason != "" {
		values.Set("reason", reason)
	}

	target := loginPath
	if encoded := values.Encode(); encoded != "" {
		target += "?" + encoded
	}
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

func wantsJSON(c *gin.Context) bool {
	if resolutionFrom(c).Kind == tenantdomain.OutcomeAPICall {
		return true
	}
	if strings.EqualFold(c.GetHeader("X-Requested-With"), "XMLHttpRequest") {
		return true
	}
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "application/json")
}

// entryTypeFor maps a resolution to the actor family that signs in on
// that host: admin credentials on the admin portal, member credentials
// on a resolved tenant host. Other hosts carry no login surface.
func entryTypeFor(resolution tenantdomain.Resolution) (session.Type, bool) {
	switch resolution.Kind {
	case tenantdomain.OutcomeAdminPortal:
		return session.TypeAdmin, true
	case tenantdomain.OutcomeResolved:
		return session.TypeTenant, true
	}
	return session.TypeNone, false
}

func resolutionFrom(c *gin.Context) tenantdomain.Resolution {
	if value, ok := c.Get(contextResolutionKey); ok {
		if resolution, ok := value.(tenantdomain.Resolution); ok {
			return resolution
		}
	}
	return tenantdomain.Resolution{}
}

func sessionFrom(c *gin.Context) *session.Record {
	if value, ok := c.Get(contextSessionKey); ok {
		if record, ok := value.(*session.Record); ok {
			return record
		}
	}
	return nil
}

func actorFrom(c *gin.Context) (identitydomain.Actor, bool) {
	if value, ok := c.Get(contextActorKey); ok {
		if actor, ok := value.(identitydomain.Actor); ok {
			return actor, true
		}
	}
	return identitydomain.Actor{}, false
}
